// Package embed converts chunk text to float32 vectors through any
// OpenAI-compatible embedding server, keeping the pipeline independent of
// which backend (vLLM, Ollama, ONNX server, OpenAI) actually serves the
// vectors.
package embed

import (
	"context"
	"log/slog"
	"time"
)

// Embedder converts text to vectors.
type Embedder interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns embeddings for multiple texts, batching HTTP
	// calls as needed. Output order matches input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the vector dimension, or 0 if not yet known
	// (auto-detect backends learn it on the first call).
	Dimension() int

	// Model returns the model name.
	Model() string
}

// Config configures the embedding client.
type Config struct {
	// Endpoint is the base URL of the embedding server. Empty selects
	// the noop embedder (zero vectors).
	Endpoint string `yaml:"endpoint"`

	// Model is the model name sent with each request.
	Model string `yaml:"model"`

	// Dimension is the expected vector size. 0 means auto-detect.
	Dimension int `yaml:"dimension"`

	// BatchSize caps the number of texts per HTTP request. Default: 32.
	BatchSize int `yaml:"batch_size"`

	// Timeout per HTTP request. Default: 30s.
	Timeout time.Duration `yaml:"timeout"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 32
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// New builds an Embedder from config. An empty endpoint yields a noop
// embedder producing zero vectors of the configured dimension.
func New(cfg Config) Embedder {
	cfg.defaults()
	if cfg.Endpoint == "" {
		dim := cfg.Dimension
		if dim <= 0 {
			dim = 768
		}
		return &noop{dim: dim, model: cfg.Model}
	}
	return newClient(cfg)
}

type noop struct {
	dim   int
	model string
}

func (n *noop) Embed(_ context.Context, _ string) ([]float32, error) {
	return make([]float32, n.dim), nil
}

func (n *noop) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, n.dim)
	}
	return out, nil
}

func (n *noop) Dimension() int { return n.dim }
func (n *noop) Model() string  { return n.model }

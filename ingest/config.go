package ingest

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mverel/ragpipe/embed"
	"github.com/mverel/ragpipe/vecstore"
)

// StoreConfig selects and configures the vector backend.
type StoreConfig struct {
	// Backend is "qdrant" or "sqlite".
	Backend    string `yaml:"backend"`
	URL        string `yaml:"url"`
	APIKey     string `yaml:"api_key"`
	Collection string `yaml:"collection"`
	// Path is the database file for the sqlite backend.
	Path string `yaml:"path"`
}

// Config holds the full pipeline configuration.
type Config struct {
	ImagesDir    string       `yaml:"images_dir"`
	ChunkSize    int          `yaml:"chunk_size"`
	ChunkOverlap int          `yaml:"chunk_overlap"`
	ScanLimit    int          `yaml:"scan_limit"`
	Embedding    embed.Config `yaml:"embedding"`
	Store        StoreConfig  `yaml:"store"`

	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns sane defaults: local sqlite store, noop embedder.
func DefaultConfig() *Config {
	return &Config{
		ImagesDir:    "extracted_images",
		ChunkSize:    800,
		ChunkOverlap: 120,
		ScanLimit:    1000,
		Store: StoreConfig{
			Backend:    "sqlite",
			Collection: "my_documents",
			Path:       "ragpipe.db",
		},
	}
}

// LoadConfig reads and parses a YAML config file, merged over defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be > 0")
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("chunk_overlap must be >= 0")
	}
	switch c.Store.Backend {
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite backend")
		}
	case "qdrant":
		if c.Store.URL == "" {
			return fmt.Errorf("store.url is required for the qdrant backend")
		}
	default:
		return fmt.Errorf("unsupported store backend %q (use qdrant or sqlite)", c.Store.Backend)
	}
	return nil
}

func (c *Config) defaults() {
	if c.ImagesDir == "" {
		c.ImagesDir = "extracted_images"
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 800
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = 0
	}
	if c.ScanLimit <= 0 {
		c.ScanLimit = 1000
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// NewStore builds the configured vector store backend.
func (c *Config) NewStore() (vecstore.Store, error) {
	switch c.Store.Backend {
	case "qdrant":
		return vecstore.NewQdrant(vecstore.QdrantConfig{
			URL:        c.Store.URL,
			APIKey:     c.Store.APIKey,
			Collection: c.Store.Collection,
		}), nil
	case "sqlite", "":
		return vecstore.NewSQLite(c.Store.Path)
	}
	return nil, fmt.Errorf("unsupported store backend %q", c.Store.Backend)
}

// NewEmbedder builds the configured embedding client.
func (c *Config) NewEmbedder() embed.Embedder {
	cfg := c.Embedding
	if cfg.Logger == nil {
		cfg.Logger = c.Logger
	}
	return embed.New(cfg)
}

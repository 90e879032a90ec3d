package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// Hashed is a deterministic offline embedder: each whitespace token is
// hashed into a bucket of the vector, and the result is L2-normalized.
// No semantic meaning, but identical text always yields identical vectors,
// which is enough for local mode and tests that need non-zero vectors.
type Hashed struct {
	Dim       int
	ModelName string
}

// NewHashed builds a Hashed embedder; dim defaults to 256.
func NewHashed(dim int) *Hashed {
	if dim <= 0 {
		dim = 256
	}
	return &Hashed{Dim: dim, ModelName: "hashed-bow"}
}

func (h *Hashed) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.Dim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		f := fnv.New32a()
		f.Write([]byte(tok))
		vec[int(f.Sum32())%h.Dim]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

func (h *Hashed) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := h.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (h *Hashed) Dimension() int { return h.Dim }
func (h *Hashed) Model() string  { return h.ModelName }

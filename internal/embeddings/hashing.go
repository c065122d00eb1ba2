package embeddings

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`[a-z0-9+#./-]+`)

// Hashing is a deterministic, dependency-free bag-of-words embedder that
// hashes lower-cased tokens into a fixed-width vector and L2-normalizes it.
// It needs no credentials, which makes it the test double of choice and a
// local fallback when no embedding backend is configured. Quality is far
// below a learned model; it only captures token overlap.
type Hashing struct {
	Dim int
}

// NewHashing creates a hashing embedder with the given vector width
// (256 when width <= 0).
func NewHashing(dim int) *Hashing {
	if dim <= 0 {
		dim = 256
	}
	return &Hashing{Dim: dim}
}

// Embed returns one normalized vector per text, in order
func (h *Hashing) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = h.embedOne(text)
	}
	return vectors, nil
}

// Dimension returns the configured vector width
func (h *Hashing) Dimension() int {
	return h.Dim
}

func (h *Hashing) embedOne(text string) []float32 {
	vec := make([]float32, h.Dim)
	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)
	for _, token := range tokens {
		hasher := fnv.New32a()
		_, _ = hasher.Write([]byte(token))
		vec[hasher.Sum32()%uint32(h.Dim)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

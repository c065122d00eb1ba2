// Package embeddings converts profile and job-description text into
// fixed-length numeric vectors for similarity search.
package embeddings

import (
	"context"
	"crypto/sha1" //nolint:gosec // content fingerprint, not a security boundary
	"encoding/hex"
	"math"
	"strings"
)

// Embedder converts texts into vector representations. Implementations must
// return one vector per input text, preserving order, and should issue a
// single batch request when given multiple texts.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension returns the width of produced vectors, or 0 before the first
	// successful embedding call.
	Dimension() int
}

// Fingerprint returns a stable content hash of the trimmed text, suitable as
// a deduplication or caching key.
func Fingerprint(text string) string {
	sum := sha1.Sum([]byte(strings.TrimSpace(text))) //nolint:gosec // see above
	return hex.EncodeToString(sum[:])
}

// Cosine returns the cosine similarity of two vectors. Empty or zero-norm
// inputs score 0.0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}

	if na == 0 || nb == 0 {
		return 0.0
	}

	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

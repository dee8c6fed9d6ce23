package agents

import (
	"context"
	"hash/fnv"

	"apogee/internal/textutil"
)

// HashingEmbedder is a deterministic, dependency-free embedding provider.
// It feature-hashes tokens into a fixed-width vector with a sign hash to
// reduce bucket collisions. It is not a semantic model; it serves local
// runs and tests where a real provider is unavailable, and guarantees
// that identical text always embeds identically.
type HashingEmbedder struct {
	dimension int
}

// NewHashingEmbedder builds an embedder producing vectors of the given width.
func NewHashingEmbedder(dimension int) *HashingEmbedder {
	if dimension <= 0 {
		dimension = 384
	}
	return &HashingEmbedder{dimension: dimension}
}

// Embed maps text onto the fixed-width vector space.
func (e *HashingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vector := make([]float32, e.dimension)
	tokens := textutil.Tokenize(text)
	if len(tokens) == 0 {
		// A lone bias component keeps empty or stop-word-only text from
		// producing a zero vector the index would reject.
		vector[0] = 1
		return vector, nil
	}
	for _, token := range tokens {
		bucket, sign := hashToken(token, e.dimension)
		vector[bucket] += sign
	}
	return vector, nil
}

func hashToken(token string, dimension int) (int, float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	sum := h.Sum64()
	bucket := int(sum % uint64(dimension))
	if (sum>>63)&1 == 1 {
		return bucket, -1
	}
	return bucket, 1
}

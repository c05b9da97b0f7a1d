// Package hashing provides a deterministic, local embedding provider.
//
// It maps text to a hashed term-frequency vector: each non-trivial term is
// hashed into one of the configured dimensions and the resulting frequency
// vector is L2-normalized. The output is deterministic for identical input,
// which makes it usable offline and as a fallback when a remote provider is
// unavailable. Vectors from this provider are only comparable to each other,
// not to vectors from a remote model.
package hashing

import (
	"context"
	"math"
	"strings"
)

// Provider implements embedder.Provider with hashed term frequencies.
type Provider struct {
	dimensions int
}

// New creates a hashing provider producing vectors of the given dimension.
func New(dimensions int) *Provider {
	if dimensions <= 0 {
		dimensions = 1536
	}
	return &Provider{dimensions: dimensions}
}

// Embed converts text into a normalized hashed term-frequency vector.
//
// Terms shorter than two characters and stop words are ignored. An input
// with no usable terms produces a zero vector.
func (p *Provider) Embed(ctx context.Context, text string) ([]float64, error) {
	vector := make([]float64, p.dimensions)

	frequencies := make(map[string]float64)
	for _, term := range strings.Fields(strings.ToLower(text)) {
		term = strings.Trim(term, ".,!?():;\"'")
		if len(term) <= 1 || isStopWord(term) {
			continue
		}
		frequencies[term]++
	}

	for term, freq := range frequencies {
		vector[hashTerm(term)%p.dimensions] += freq
	}

	normalize(vector)
	return vector, nil
}

// Dimensions returns the configured vector dimension.
func (p *Provider) Dimensions() int {
	return p.dimensions
}

// Close releases nothing; it exists to satisfy embedder.Provider.
func (p *Provider) Close() error {
	return nil
}

// hashTerm computes a non-negative polynomial hash of the term.
func hashTerm(term string) int {
	h := 0
	for _, c := range term {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}

// normalize scales the vector to unit L2 length in place.
// Zero vectors are left unchanged.
func normalize(vector []float64) {
	var sum float64
	for _, v := range vector {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vector {
		vector[i] /= norm
	}
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {},
	"being": {}, "in": {}, "on": {}, "at": {}, "to": {}, "for": {},
	"with": {}, "by": {}, "about": {}, "of": {}, "from": {}, "as": {},
	"it": {}, "its": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"i": {}, "you": {}, "he": {}, "she": {}, "we": {}, "they": {},
	"my": {}, "your": {}, "his": {}, "her": {}, "our": {}, "their": {},
	"have": {}, "has": {}, "had": {}, "do": {}, "does": {}, "did": {},
	"will": {}, "would": {}, "can": {}, "could": {}, "not": {}, "no": {},
}

func isStopWord(term string) bool {
	_, ok := stopWords[term]
	return ok
}

package embedding

import (
	"context"
	"hash/fnv"
	"strings"

	"mindkb/internal/adapter/analyzer"
)

// HashEmbedder maps text to vectors by signed feature hashing of its terms
// and adjacent term pairs. It needs no model or network and is fully
// deterministic, so identical inputs always produce identical vectors.
type HashEmbedder struct {
	dimension int
	tokenizer *analyzer.Tokenizer
}

func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = 384
	}
	return &HashEmbedder{
		dimension: dimension,
		tokenizer: analyzer.NewTokenizer(),
	}
}

func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		embeddings[i] = e.vector(text)
	}
	return embeddings, nil
}

func (e *HashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.vector(text), nil
}

func (e *HashEmbedder) vector(text string) []float32 {
	v := make([]float32, e.dimension)

	terms := e.tokenizer.Tokenize(text)
	if len(terms) == 0 {
		// all stopwords or single letters: fall back to raw lowercase words
		terms = analyzer.Words(strings.ToLower(text))
	}
	for i, term := range terms {
		e.add(v, term, 1)
		if i > 0 {
			e.add(v, terms[i-1]+" "+term, 0.5)
		}
	}

	if strings.TrimSpace(text) != "" && isZero(v) {
		// signed collisions cancelled every feature
		bucket, _ := e.bucket(text)
		v[bucket] = 1
	}
	return v
}

func (e *HashEmbedder) add(v []float32, feature string, weight float32) {
	bucket, sign := e.bucket(feature)
	v[bucket] += sign * weight
}

func (e *HashEmbedder) bucket(feature string) (int, float32) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()

	sign := float32(1)
	if sum>>63 == 1 {
		sign = -1
	}
	return int(sum % uint64(e.dimension)), sign
}

func (e *HashEmbedder) Dimension() int {
	return e.dimension
}

func (e *HashEmbedder) ModelName() string {
	return "feature-hash"
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

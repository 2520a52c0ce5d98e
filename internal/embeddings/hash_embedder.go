package embeddings

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const (
	// DefaultLocalModel is the only model the local provider knows.
	DefaultLocalModel = "feature-hash"
	// DefaultLocalDimension is the vector size used when none is configured.
	DefaultLocalDimension = 384
)

// HashEmbedder embeds text by hashing term frequencies into a fixed number of
// buckets. It needs no vocabulary or network access, so the same text always
// yields the same vector across processes.
type HashEmbedder struct {
	model     string
	dimension int
}

// NewHashEmbedder creates a local embedder. An empty model or zero dimension
// selects the defaults.
func NewHashEmbedder(model string, dimension int) (*HashEmbedder, error) {
	if model == "" {
		model = DefaultLocalModel
	}
	if model != DefaultLocalModel {
		return nil, fmt.Errorf("unsupported local embedding model: %s", model)
	}
	if dimension == 0 {
		dimension = DefaultLocalDimension
	}
	if dimension < 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dimension)
	}
	return &HashEmbedder{model: model, dimension: dimension}, nil
}

// EmbedDocuments returns one vector per text
func (e *HashEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = e.embed(text)
	}
	return vectors, nil
}

// EmbedQuery returns the vector for a search query
func (e *HashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.embed(text), nil
}

// VectorName identifies the vector space, including its size
func (e *HashEmbedder) VectorName() string {
	return fmt.Sprintf("local-%s-%d", e.model, e.dimension)
}

// Dimension returns the dimensionality of generated embeddings
func (e *HashEmbedder) Dimension() int {
	return e.dimension
}

func (e *HashEmbedder) embed(text string) []float32 {
	embedding := make([]float32, e.dimension)

	words := tokenize(text)
	if len(words) == 0 {
		return embedding
	}

	termFreq := make(map[string]int)
	for _, word := range words {
		termFreq[word]++
	}

	totalTerms := float32(len(words))
	for word, count := range termFreq {
		h := fnv.New64a()
		_, _ = h.Write([]byte(word))
		sum := h.Sum64()

		// The top bit picks the sign so colliding terms tend to cancel out.
		sign := float32(1)
		if sum>>63 == 1 {
			sign = -1
		}
		embedding[sum%uint64(e.dimension)] += sign * float32(count) / totalTerms
	}

	return normalize(embedding)
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "with": true, "by": true, "from": true,
	"as": true, "is": true, "was": true, "are": true, "were": true,
	"be": true, "been": true, "being": true, "have": true, "has": true,
	"had": true, "do": true, "does": true, "did": true, "will": true,
	"would": true, "could": true, "should": true, "may": true, "might": true,
	"can": true, "this": true, "that": true, "these": true, "those": true,
}

// tokenize converts text to lowercase tokens without stop words
func tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})

	filtered := make([]string, 0, len(words))
	for _, word := range words {
		if len(word) > 1 && !stopWords[word] {
			filtered = append(filtered, word)
		}
	}
	return filtered
}

// normalize performs L2 normalization on the embedding
func normalize(embedding []float32) []float32 {
	var norm float32
	for _, val := range embedding {
		norm += val * val
	}
	norm = float32(math.Sqrt(float64(norm)))

	if norm > 0 {
		for i := range embedding {
			embedding[i] /= norm
		}
	}
	return embedding
}

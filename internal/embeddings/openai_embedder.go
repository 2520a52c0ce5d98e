package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "text-embedding-3-small"

var knownOpenAIDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIOptions configures the OpenAI embedder.
type OpenAIOptions struct {
	APIKey     string
	BaseURL    string // Any OpenAI compatible endpoint
	Model      string
	Dimensions int // Requested output size; 0 keeps the model default
}

// OpenAIEmbedder calls the OpenAI embeddings API.
type OpenAIEmbedder struct {
	api        *openai.Client
	model      string
	dimensions int
}

// NewOpenAIEmbedder creates an embedder backed by the OpenAI API.
func NewOpenAIEmbedder(opts OpenAIOptions) (*OpenAIEmbedder, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("missing OPENAI_API_KEY")
	}
	cfg := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		cfg = append(cfg, option.WithBaseURL(strings.TrimRight(base, "/")+"/"))
	}
	client := openai.NewClient(cfg...)

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultOpenAIModel
	}

	return &OpenAIEmbedder{
		api:        &client,
		model:      model,
		dimensions: opts.Dimensions,
	}, nil
}

// EmbedDocuments embeds all texts in a single request
func (e *OpenAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(e.model),
	}
	if e.dimensions > 0 {
		params.Dimensions = openai.Int(int64(e.dimensions))
	}

	resp, err := e.api.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		idx := int(item.Index)
		if idx < 0 || idx >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", idx)
		}
		vectors[idx] = toFloat32(item.Embedding)
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}
	return vectors, nil
}

// EmbedQuery embeds a single search query
func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// VectorName identifies the vector space of the configured model
func (e *OpenAIEmbedder) VectorName() string {
	return "openai-" + e.model
}

// Dimension returns the configured or known model dimension, 0 if unknown
func (e *OpenAIEmbedder) Dimension() int {
	if e.dimensions > 0 {
		return e.dimensions
	}
	return knownOpenAIDimensions[e.model]
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

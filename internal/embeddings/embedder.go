package embeddings

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Embedder converts text into vectors. Implementations are safe for concurrent use.
type Embedder interface {
	// EmbedDocuments returns one vector per text, in order
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery returns the vector for a search query
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// VectorName identifies the named vector space the embeddings live in
	VectorName() string

	// Dimension returns the vector size, or 0 if it is only known after the first call
	Dimension() int
}

const (
	ProviderLocal  = "local"
	ProviderOpenAI = "openai"
	ProviderGloVe  = "glove"
)

// Config selects and configures an embedding provider.
type Config struct {
	Provider   string
	Model      string
	Dimensions int
	APIKey     string
	BaseURL    string
	CacheDir   string // Model files for the glove provider
}

// New builds the embedder for the configured provider. ctx bounds any model
// download the provider needs at startup.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Embedder, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	model := strings.TrimSpace(cfg.Model)

	switch provider {
	case "", ProviderLocal:
		embedder, err := NewHashEmbedder(model, cfg.Dimensions)
		if err != nil {
			return nil, err
		}
		logger.Info("Using local embedder", "vector_name", embedder.VectorName(), "dimension", embedder.Dimension())
		return embedder, nil
	case ProviderOpenAI:
		embedder, err := NewOpenAIEmbedder(OpenAIOptions{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      model,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("Using OpenAI embedder", "model", embedder.model, "vector_name", embedder.VectorName())
		return embedder, nil
	case ProviderGloVe:
		embedder, err := NewGloVeEmbedder(ctx, GloVeOptions{
			Model:    model,
			CacheDir: cfg.CacheDir,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		return embedder, nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

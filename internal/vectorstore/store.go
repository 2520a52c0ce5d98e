package vectorstore

import (
	"errors"
	"log/slog"
)

// MemoryLocation selects the in-memory store instead of a server URL.
const MemoryLocation = ":memory:"

// Config locates the vector store. URL and LocalPath are mutually exclusive.
type Config struct {
	URL       string
	APIKey    string
	LocalPath string
}

// Open creates the store for cfg.
func Open(cfg Config, logger *slog.Logger) (VectorStore, error) {
	switch {
	case cfg.URL != "" && cfg.LocalPath != "":
		return nil, errors.New("qdrant url and local path cannot be used together")
	case cfg.URL == MemoryLocation:
		logger.Info("Using in-memory vector store")
		return NewInMemoryVectorStore(logger), nil
	case cfg.URL != "":
		return NewQdrantVectorStore(cfg.URL, cfg.APIKey, logger)
	case cfg.LocalPath != "":
		logger.Info("Using local vector store", "path", cfg.LocalPath)
		return NewSQLiteVectorStore(cfg.LocalPath, logger)
	default:
		return nil, errors.New("either a qdrant url or a local path is required")
	}
}

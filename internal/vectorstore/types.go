package vectorstore

import (
	"context"
	"errors"
)

// Payload keys under which entries are stored.
const (
	PayloadDocument = "document"
	PayloadMetadata = "metadata"
)

// ErrCollectionNotFound is returned by CollectionInfo for a missing collection.
var ErrCollectionNotFound = errors.New("collection not found")

// Entry is a stored document with its metadata.
type Entry struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// VectorStore stores entries under named vectors and searches them.
// Implementations are safe for concurrent use.
type VectorStore interface {
	// EnsureCollection creates the collection if it does not exist yet
	EnsureCollection(ctx context.Context, name string, vectorSize int, vectorName string) error

	// Upsert stores entry with the given point ID, replacing any previous point
	Upsert(ctx context.Context, collection, id, vectorName string, vector []float32, entry Entry) error

	// Search returns up to limit entries closest to the query vector.
	// A missing collection yields no entries.
	Search(ctx context.Context, collection string, query []float32, vectorName string, limit int) ([]Entry, error)

	// SearchByMetadata returns up to limit entries whose metadata matches every
	// key of filter. A missing collection yields no entries.
	SearchByMetadata(ctx context.Context, collection string, filter map[string]any, limit int) ([]Entry, error)

	// ListCollections returns the collection names
	ListCollections(ctx context.Context) ([]string, error)

	// CollectionInfo describes a collection, or returns ErrCollectionNotFound
	CollectionInfo(ctx context.Context, name string) (map[string]any, error)

	// Close releases the store's resources
	Close() error
}

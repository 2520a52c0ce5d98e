package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

type memoryPoint struct {
	id     string
	vector []float32
	entry  Entry
}

type memoryCollection struct {
	vectorName string
	vectorSize int
	points     []*memoryPoint
	index      map[string]int // point ID -> position in points
}

// InMemoryVectorStore keeps collections in process memory. Used for ":memory:".
type InMemoryVectorStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
	logger      *slog.Logger
}

// NewInMemoryVectorStore creates a new in-memory vector store
func NewInMemoryVectorStore(logger *slog.Logger) *InMemoryVectorStore {
	return &InMemoryVectorStore{
		collections: make(map[string]*memoryCollection),
		logger:      logger,
	}
}

// EnsureCollection creates the collection if it does not exist yet
func (s *InMemoryVectorStore) EnsureCollection(ctx context.Context, name string, vectorSize int, vectorName string) error {
	if vectorSize <= 0 {
		return fmt.Errorf("vector size must be positive, got %d", vectorSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.collections[name]; exists {
		return nil
	}
	s.collections[name] = &memoryCollection{
		vectorName: vectorName,
		vectorSize: vectorSize,
		index:      make(map[string]int),
	}
	s.logger.Info("Created collection", "collection", name, "vector_name", vectorName, "size", vectorSize)
	return nil
}

// Upsert stores the entry, replacing a point with the same ID
func (s *InMemoryVectorStore) Upsert(ctx context.Context, collection, id, vectorName string, vector []float32, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.collections[collection]
	if !exists {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	if err := checkVector(vector, c.vectorSize, vectorName, c.vectorName); err != nil {
		return err
	}

	point := &memoryPoint{id: id, vector: append([]float32(nil), vector...), entry: entry}
	if pos, ok := c.index[id]; ok {
		c.points[pos] = point
		return nil
	}
	c.index[id] = len(c.points)
	c.points = append(c.points, point)
	return nil
}

// Search finds entries semantically similar to the query
func (s *InMemoryVectorStore) Search(ctx context.Context, collection string, query []float32, vectorName string, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.collections[collection]
	if !exists || len(c.points) == 0 {
		return []Entry{}, nil
	}
	if err := checkVector(query, c.vectorSize, vectorName, c.vectorName); err != nil {
		return nil, err
	}

	scored := make([]scoredEntry, len(c.points))
	for i, p := range c.points {
		scored[i] = scoredEntry{entry: p.entry, score: cosineSimilarity(query, p.vector)}
	}

	results := topK(scored, limit)
	s.logger.Debug("Vector search completed", "collection", collection, "results", len(results))
	return results, nil
}

// SearchByMetadata returns entries whose metadata matches filter, in insertion order
func (s *InMemoryVectorStore) SearchByMetadata(ctx context.Context, collection string, filter map[string]any, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.collections[collection]
	if !exists {
		return []Entry{}, nil
	}

	results := []Entry{}
	for _, p := range c.points {
		if limit > 0 && len(results) == limit {
			break
		}
		if matchesMetadata(p.entry.Metadata, filter) {
			results = append(results, p.entry)
		}
	}
	return results, nil
}

// ListCollections returns the collection names, sorted
func (s *InMemoryVectorStore) ListCollections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// CollectionInfo describes a collection
func (s *InMemoryVectorStore) CollectionInfo(ctx context.Context, name string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.collections[name]
	if !exists {
		return nil, ErrCollectionNotFound
	}
	return describeCollection(c.vectorName, c.vectorSize, len(c.points)), nil
}

// Close is a no-op for the in-memory store
func (s *InMemoryVectorStore) Close() error {
	return nil
}

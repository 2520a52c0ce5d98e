package vectorstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// cosineSimilarity calculates the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float32

	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}

type scoredEntry struct {
	entry Entry
	score float32
}

// topK returns the best limit entries by descending score.
func topK(scored []scoredEntry, limit int) []Entry {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if limit > 0 && limit < len(scored) {
		scored = scored[:limit]
	}

	entries := make([]Entry, len(scored))
	for i, s := range scored {
		entries[i] = s.entry
	}
	return entries
}

// matchesMetadata reports whether metadata has every key of filter with an equal
// value. A list value matches when any element equals the filter value.
func matchesMetadata(metadata, filter map[string]any) bool {
	for key, want := range filter {
		got, ok := metadata[key]
		if !ok {
			return false
		}
		if valuesEqual(got, want) {
			continue
		}
		list, isList := got.([]any)
		if !isList || !containsValue(list, want) {
			return false
		}
	}
	return true
}

func containsValue(list []any, want any) bool {
	for _, item := range list {
		if valuesEqual(item, want) {
			return true
		}
	}
	return false
}

// valuesEqual compares two JSON-like values by their canonical encoding, so 1 and 1.0 match.
func valuesEqual(a, b any) bool {
	ea, errA := json.Marshal(a)
	eb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ea, eb)
}

func checkVector(vector []float32, size int, vectorName, want string) error {
	if vectorName != want {
		return fmt.Errorf("vector %q is not configured, collection uses %q", vectorName, want)
	}
	if len(vector) != size {
		return fmt.Errorf("vector dimension mismatch: expected %d, got %d", size, len(vector))
	}
	return nil
}

// describeCollection renders collection info in the shape Qdrant reports it.
func describeCollection(vectorName string, vectorSize, points int) map[string]any {
	return map[string]any{
		"status":       "green",
		"points_count": points,
		"config": map[string]any{
			"params": map[string]any{
				"vectors_config": map[string]any{
					vectorName: map[string]any{
						"size":     vectorSize,
						"distance": "Cosine",
					},
				},
			},
		},
	}
}

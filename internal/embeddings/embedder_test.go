package embeddings

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type HashEmbedderTestSuite struct {
	suite.Suite
	embedder *HashEmbedder
	ctx      context.Context
}

func TestHashEmbedderTestSuite(t *testing.T) {
	suite.Run(t, new(HashEmbedderTestSuite))
}

func (s *HashEmbedderTestSuite) SetupTest() {
	embedder, err := NewHashEmbedder("", 0)
	require.NoError(s.T(), err)
	s.embedder = embedder
	s.ctx = context.Background()
}

func (s *HashEmbedderTestSuite) TestDefaults() {
	require.Equal(s.T(), DefaultLocalDimension, s.embedder.Dimension())
	require.Equal(s.T(), "local-feature-hash-384", s.embedder.VectorName())
}

func (s *HashEmbedderTestSuite) TestEmbedQuery_Normalized() {
	vec, err := s.embedder.EmbedQuery(s.ctx, "The quick brown fox jumps over the lazy dog")
	require.NoError(s.T(), err)
	require.Len(s.T(), vec, DefaultLocalDimension)

	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	require.InDelta(s.T(), 1.0, math.Sqrt(norm), 1e-5)
}

func (s *HashEmbedderTestSuite) TestEmbedQuery_Deterministic() {
	a, err := s.embedder.EmbedQuery(s.ctx, "remember the milk")
	require.NoError(s.T(), err)
	b, err := s.embedder.EmbedQuery(s.ctx, "remember the milk")
	require.NoError(s.T(), err)
	require.Equal(s.T(), a, b)
}

func (s *HashEmbedderTestSuite) TestEmbedQuery_StopWordsOnly() {
	vec, err := s.embedder.EmbedQuery(s.ctx, "the and of")
	require.NoError(s.T(), err)
	for _, v := range vec {
		require.Zero(s.T(), v)
	}
}

func (s *HashEmbedderTestSuite) TestSimilarity() {
	docs, err := s.embedder.EmbedDocuments(s.ctx, []string{
		"The quick brown fox jumps over the lazy dog",
		"Quarterly revenue grew by twelve percent",
	})
	require.NoError(s.T(), err)
	require.Len(s.T(), docs, 2)

	query, err := s.embedder.EmbedQuery(s.ctx, "fox")
	require.NoError(s.T(), err)

	require.Greater(s.T(), dot(query, docs[0]), dot(query, docs[1]))
}

func (s *HashEmbedderTestSuite) TestCancelled() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	_, err := s.embedder.EmbedQuery(ctx, "anything")
	require.ErrorIs(s.T(), err, context.Canceled)

	_, err = s.embedder.EmbedDocuments(ctx, []string{"anything"})
	require.ErrorIs(s.T(), err, context.Canceled)
}

func (s *HashEmbedderTestSuite) TestInvalidConfig() {
	_, err := NewHashEmbedder("bge-small", 0)
	require.ErrorContains(s.T(), err, "unsupported local embedding model")

	_, err = NewHashEmbedder("", -1)
	require.ErrorContains(s.T(), err, "must be positive")
}

func TestTokenize(t *testing.T) {
	tokens := tokenize("The Quick, brown fox! Is a fox.")
	require.Equal(t, []string{"quick", "brown", "fox", "fox"}, tokens)
}

func TestNew(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	embedder, err := New(context.Background(), Config{}, logger)
	require.NoError(t, err)
	require.IsType(t, &HashEmbedder{}, embedder)

	embedder, err = New(context.Background(), Config{Provider: "local", Dimensions: 64}, logger)
	require.NoError(t, err)
	require.Equal(t, 64, embedder.Dimension())

	embedder, err = New(context.Background(), Config{Provider: "OpenAI", APIKey: "sk-test"}, logger)
	require.NoError(t, err)
	require.Equal(t, "openai-text-embedding-3-small", embedder.VectorName())
	require.Equal(t, 1536, embedder.Dimension())

	_, err = New(context.Background(), Config{Provider: "openai"}, logger)
	require.ErrorContains(t, err, "missing OPENAI_API_KEY")

	_, err = New(context.Background(), Config{Provider: "fastembed"}, logger)
	require.ErrorContains(t, err, "unsupported embedding provider: fastembed")
}

func TestOpenAIEmbedder(t *testing.T) {
	var request map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &request))

		w.Header().Set("Content-Type", "application/json")
		// Out of order on purpose: the index decides the position.
		_, _ = w.Write([]byte(`{
			"object": "list",
			"model": "text-embedding-3-small",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0.0, 1.0, 0.0]},
				{"object": "embedding", "index": 0, "embedding": [1.0, 0.0, 0.0]}
			],
			"usage": {"prompt_tokens": 4, "total_tokens": 4}
		}`))
	}))
	defer server.Close()

	embedder, err := NewOpenAIEmbedder(OpenAIOptions{
		APIKey:     "sk-test",
		BaseURL:    server.URL,
		Dimensions: 3,
	})
	require.NoError(t, err)
	require.Equal(t, 3, embedder.Dimension())

	vectors, err := embedder.EmbedDocuments(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Equal(t, [][]float32{{1, 0, 0}, {0, 1, 0}}, vectors)

	require.Equal(t, "text-embedding-3-small", request["model"])
	require.Equal(t, []any{"first", "second"}, request["input"])
	require.Equal(t, 3.0, request["dimensions"])

	empty, err := embedder.EmbedDocuments(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

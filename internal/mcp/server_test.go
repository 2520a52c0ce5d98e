package mcp

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/radutopala/mcp-server-qdrant/internal/embeddings"
	"github.com/radutopala/mcp-server-qdrant/internal/tools"
	"github.com/radutopala/mcp-server-qdrant/internal/vectorstore"
)

const testCollection = "memories"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Quiet during tests
	}))
}

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	embedder, err := embeddings.NewHashEmbedder("", 0)
	require.NoError(t, err)
	return Deps{
		Store:       vectorstore.NewInMemoryVectorStore(testLogger()),
		Embedder:    embedder,
		SearchLimit: 10,
		Logger:      testLogger(),
	}
}

// failingEmbedder fails every request
type failingEmbedder struct{}

func (failingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("embedding backend unavailable")
}

func (failingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("embedding backend unavailable")
}

func (failingEmbedder) VectorName() string { return "failing" }

func (failingEmbedder) Dimension() int { return 0 }

type recordingObserver struct {
	mu    sync.Mutex
	calls []tools.CallObservation
}

func (o *recordingObserver) ObserveCall(ctx context.Context, obs tools.CallObservation) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, obs)
}

// ServerTestSuite is the test suite for Server
type ServerTestSuite struct {
	suite.Suite
	deps     Deps
	observer *recordingObserver
	server   *Server
	ctx      context.Context
}

// SetupTest runs before each test
func (s *ServerTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.deps = newTestDeps(s.T())
	s.observer = &recordingObserver{}
	s.server = s.newServer(GateSettings{CollectionName: testCollection})
}

func (s *ServerTestSuite) newServer(gate GateSettings) *Server {
	server, err := NewServer("test-server", "1.0.0", gate, s.deps, testLogger(), WithObserver(s.observer))
	require.NoError(s.T(), err, "Failed to create test server")
	return server
}

func (s *ServerTestSuite) call(name string, args map[string]any) *tools.CallResult {
	result, err := s.server.CallTool(s.ctx, name, args)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), result)
	return result
}

func (s *ServerTestSuite) remember(information string, metadata map[string]any) {
	args := map[string]any{"information": information}
	if metadata != nil {
		args["metadata"] = metadata
	}
	result := s.call(ToolStore, args)
	require.False(s.T(), result.IsError, result.Texts())
}

// TestListTools tests the listed tools and their order
func (s *ServerTestSuite) TestListTools() {
	listed := s.server.ListTools(s.ctx)

	var got []string
	for _, info := range listed {
		got = append(got, info.Name)
		require.NotEmpty(s.T(), info.Description)
		require.NotNil(s.T(), info.InputSchema)
		require.Equal(s.T(), "object", info.InputSchema.Type)
	}
	require.Equal(s.T(), []string{ToolFind, ToolStore, ToolListCollections, ToolCollectionInfo, ToolMatch}, got)
}

// TestFindMemories_Fox tests a search through the legacy find name
func (s *ServerTestSuite) TestFindMemories_Fox() {
	s.remember("The quick brown fox jumps over the lazy dog", nil)

	result := s.call(ToolFindMemories, map[string]any{"query": "fox"})

	texts := result.Texts()
	require.Len(s.T(), texts, 2)
	require.Equal(s.T(), "Results for the query 'fox'", texts[0])
	require.Contains(s.T(), texts[1], "The quick brown fox")
	require.Contains(s.T(), texts[1], "<metadata></metadata>")
}

// TestFind_EmptyCollection tests that an empty result is still one item
func (s *ServerTestSuite) TestFind_EmptyCollection() {
	result := s.call(ToolFindMemories, map[string]any{"query": "anything"})

	require.False(s.T(), result.IsError)
	require.Equal(s.T(), []string{"No information found for the query 'anything'"}, result.Texts())
}

// TestFind_Truncates tests that long entries are cut in search results
func (s *ServerTestSuite) TestFind_Truncates() {
	long := strings.Repeat("ő", 250)
	s.remember(long, nil)

	texts := s.call(ToolFind, map[string]any{"query": long}).Texts()
	require.Len(s.T(), texts, 2)

	content := strings.TrimSuffix(strings.TrimPrefix(texts[1], "<entry><content>"), "</content><metadata></metadata></entry>")
	require.True(s.T(), strings.HasSuffix(content, "..."))
	require.Equal(s.T(), truncateLength, utf8.RuneCountInString(strings.TrimSuffix(content, "...")))
}

// TestFind_Limit tests the configured search limit
func (s *ServerTestSuite) TestFind_Limit() {
	s.deps.SearchLimit = 2
	s.server = s.newServer(GateSettings{CollectionName: testCollection})

	for _, note := range []string{"red apples", "green apples", "apples in a basket"} {
		s.remember(note, nil)
	}

	texts := s.call(ToolFind, map[string]any{"query": "apples"}).Texts()
	require.Len(s.T(), texts, 3)
}

// TestCallTool_UnknownTool tests that unknown tools are rejected, not reported as content
func (s *ServerTestSuite) TestCallTool_UnknownTool() {
	result, err := s.server.CallTool(s.ctx, "nonexistent-tool", map[string]any{})
	require.Nil(s.T(), result)
	require.ErrorIs(s.T(), err, tools.ErrUnknownTool)
}

// TestCallTool_MissingArgument tests that missing required fields are rejected
func (s *ServerTestSuite) TestCallTool_MissingArgument() {
	result, err := s.server.CallTool(s.ctx, ToolStore, map[string]any{})
	require.Nil(s.T(), result)
	require.ErrorIs(s.T(), err, tools.ErrMissingArgument)
	require.ErrorContains(s.T(), err, "information")
}

// TestStore tests storing with metadata in both accepted shapes
func (s *ServerTestSuite) TestStore() {
	result := s.call(ToolStoreMemory, map[string]any{
		"information": "Paris is the capital of France",
		"metadata":    `{"topic": "geography"}`,
	})
	require.Equal(s.T(), []string{"Remembered: Paris is the capital of France in collection memories"}, result.Texts())

	s.remember("Berlin is the capital of Germany", map[string]any{"topic": "geography", "year": 1990})

	texts := s.call(ToolMatch, map[string]any{"metadata": map[string]any{"topic": "geography"}}).Texts()
	require.Len(s.T(), texts, 3)
	require.Equal(s.T(), `Results for the metadata match '{"topic":"geography"}'`, texts[0])
	require.Equal(s.T(), `<entry><content>Paris is the capital of France</content><metadata>{"topic":"geography"}</metadata></entry>`, texts[1])
	require.Contains(s.T(), texts[2], `"year":1990`)
}

// TestStore_InvalidMetadata tests that malformed metadata is reported as content
func (s *ServerTestSuite) TestStore_InvalidMetadata() {
	result := s.call(ToolStore, map[string]any{"information": "x", "metadata": "not json"})
	require.True(s.T(), result.IsError)
	require.Contains(s.T(), result.Texts()[0], "metadata")
}

// TestMatch_NoResults tests the empty match message
func (s *ServerTestSuite) TestMatch_NoResults() {
	s.remember("note", map[string]any{"topic": "cooking"})

	texts := s.call(ToolMatch, map[string]any{"metadata": `{"topic":"sports"}`}).Texts()
	require.Equal(s.T(), []string{`No information found for the metadata '{"topic":"sports"}'`}, texts)
}

// TestMatch_EmptyFilter tests that an empty filter is refused
func (s *ServerTestSuite) TestMatch_EmptyFilter() {
	result := s.call(ToolMatch, map[string]any{"metadata": map[string]any{}})
	require.True(s.T(), result.IsError)
}

// TestListCollections tests both list messages
func (s *ServerTestSuite) TestListCollections() {
	require.Equal(s.T(), []string{"No collections found in Qdrant server."}, s.call(ToolListCollections, nil).Texts())

	s.remember("note", nil)

	require.Equal(s.T(), []string{"Available collections: memories"}, s.call(ToolListCollections, nil).Texts())
}

// TestCollectionInfo tests info for present and missing collections
func (s *ServerTestSuite) TestCollectionInfo() {
	result := s.call(ToolCollectionInfo, map[string]any{"collection_name": "missing"})
	require.False(s.T(), result.IsError)
	require.Equal(s.T(), map[string]any{"error": "Collection 'missing' not found."}, result.Structured)

	s.remember("note", nil)

	result = s.call(ToolCollectionInfo, map[string]any{"collection_name": testCollection})
	require.Equal(s.T(), "green", result.Structured["status"])
	require.Equal(s.T(), 1, result.Structured["points_count"])
	require.Contains(s.T(), result.Texts()[0], s.deps.Embedder.VectorName())
}

// TestReadOnly tests that mutating tools and their aliases are absent
func (s *ServerTestSuite) TestReadOnly() {
	s.server = s.newServer(GateSettings{CollectionName: testCollection, ReadOnly: true})

	for _, info := range s.server.ListTools(s.ctx) {
		require.NotEqual(s.T(), ToolStore, info.Name)
	}
	for _, name := range []string{ToolStore, ToolStoreMemory} {
		_, err := s.server.CallTool(s.ctx, name, map[string]any{"information": "x"})
		require.ErrorIs(s.T(), err, tools.ErrUnknownTool)
	}

	// Find still resolves through its alias
	require.NotEmpty(s.T(), s.call(ToolFindMemories, map[string]any{"query": "x"}).Texts())
}

// TestParameterized tests tools that take the collection from the caller
func (s *ServerTestSuite) TestParameterized() {
	s.server = s.newServer(GateSettings{})

	_, err := s.server.CallTool(s.ctx, ToolFind, map[string]any{"query": "fox"})
	require.ErrorIs(s.T(), err, tools.ErrMissingArgument)
	require.ErrorContains(s.T(), err, "collection_name")

	s.call(ToolStore, map[string]any{"information": "a fox", "collection_name": "animals"})
	s.call(ToolStore, map[string]any{"information": "a spoon", "collection_name": "kitchen"})

	texts := s.call(ToolFind, map[string]any{"query": "fox", "collection_name": "animals"}).Texts()
	require.Len(s.T(), texts, 2)
	require.Contains(s.T(), texts[1], "a fox")

	require.Equal(s.T(), []string{"Available collections: animals, kitchen"}, s.call(ToolListCollections, nil).Texts())
}

// TestCollaboratorFailure tests that backend errors are reported as content
func (s *ServerTestSuite) TestCollaboratorFailure() {
	s.deps.Embedder = failingEmbedder{}
	s.server = s.newServer(GateSettings{CollectionName: testCollection})

	result := s.call(ToolFind, map[string]any{"query": "fox"})
	require.True(s.T(), result.IsError)
	require.Len(s.T(), result.Content, 1)
	require.Contains(s.T(), result.Texts()[0], "embedding backend unavailable")
}

// TestObserver tests that every call is observed
func (s *ServerTestSuite) TestObserver() {
	s.call(ToolListCollections, nil)
	_, _ = s.server.CallTool(s.ctx, "nonexistent-tool", nil)

	require.Len(s.T(), s.observer.calls, 2)
	require.Equal(s.T(), tools.OutcomeSuccess, s.observer.calls[0].Outcome)
	require.Equal(s.T(), tools.OutcomeRejected, s.observer.calls[1].Outcome)
}

// TestServerTestSuite runs the test suite
func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func TestFormatEntry(t *testing.T) {
	entry := vectorstore.Entry{Content: "hello", Metadata: map[string]any{"a": 1}}
	require.Equal(t, `<entry><content>hello</content><metadata>{"a":1}</metadata></entry>`, formatEntry(entry, true))

	entry = vectorstore.Entry{Content: strings.Repeat("x", truncateLength)}
	require.Equal(t, "<entry><content>"+entry.Content+"</content><metadata></metadata></entry>", formatEntry(entry, true))

	entry = vectorstore.Entry{Content: strings.Repeat("x", truncateLength+1)}
	require.Contains(t, formatEntry(entry, true), "...")
	require.NotContains(t, formatEntry(entry, false), "...")
}

func TestNewServer_BuildError(t *testing.T) {
	_, err := NewServer("test-server", "1.0.0", GateSettings{}, Deps{}, testLogger())
	require.ErrorContains(t, err, "failed to build tool qdrant-find")
}

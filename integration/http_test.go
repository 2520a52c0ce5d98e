//go:build integration
// +build integration

package integration

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/radutopala/mcp-server-qdrant/internal/config"
	"github.com/radutopala/mcp-server-qdrant/internal/embeddings"
	"github.com/radutopala/mcp-server-qdrant/internal/mcp"
	"github.com/radutopala/mcp-server-qdrant/internal/vectorstore"
)

// HTTPIntegrationTestSuite tests the HTTP transports
type HTTPIntegrationTestSuite struct {
	suite.Suite
	server *mcp.Server
	ctx    context.Context
	cancel context.CancelFunc
}

// SetupSuite builds a server over an in-memory store
func (s *HTTPIntegrationTestSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 30*time.Second)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))

	embedder, err := embeddings.NewHashEmbedder("", 0)
	require.NoError(s.T(), err)

	s.server, err = mcp.NewServer("test-http-server", "1.0.0",
		mcp.GateSettings{CollectionName: "memories"},
		mcp.Deps{
			Store:       vectorstore.NewInMemoryVectorStore(logger),
			Embedder:    embedder,
			SearchLimit: 10,
		},
		logger,
	)
	require.NoError(s.T(), err)
}

// TearDownSuite cancels the suite context
func (s *HTTPIntegrationTestSuite) TearDownSuite() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *HTTPIntegrationTestSuite) connect(transport string) *mcpsdk.ClientSession {
	handler, err := s.server.HTTPHandler(transport)
	require.NoError(s.T(), err)

	httpServer := httptest.NewServer(handler)
	s.T().Cleanup(httpServer.Close)
	s.T().Logf("Test HTTP server started at: %s", httpServer.URL)

	var clientTransport mcpsdk.Transport
	if transport == config.TransportSSE {
		clientTransport = &mcpsdk.SSEClientTransport{Endpoint: httpServer.URL}
	} else {
		clientTransport = &mcpsdk.StreamableClientTransport{Endpoint: httpServer.URL}
	}

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(s.ctx, clientTransport, nil)
	require.NoError(s.T(), err, "Failed to connect")
	s.T().Cleanup(func() { _ = session.Close() })
	return session
}

func (s *HTTPIntegrationTestSuite) roundTrip(transport string) {
	session := s.connect(transport)

	tools, err := session.ListTools(s.ctx, &mcpsdk.ListToolsParams{})
	require.NoError(s.T(), err, "Failed to list tools")
	require.Len(s.T(), tools.Tools, 5)

	result, err := session.CallTool(s.ctx, &mcpsdk.CallToolParams{
		Name:      "qdrant-store",
		Arguments: map[string]any{"information": "Remember the milk, via " + transport},
	})
	require.NoError(s.T(), err)
	require.False(s.T(), result.IsError)

	result, err = session.CallTool(s.ctx, &mcpsdk.CallToolParams{
		Name:      "qdrant-find",
		Arguments: map[string]any{"query": "milk " + transport},
	})
	require.NoError(s.T(), err)
	require.GreaterOrEqual(s.T(), len(result.Content), 2)

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(s.T(), ok)
	require.Contains(s.T(), text.Text, "Results for the query")

	_, err = session.CallTool(s.ctx, &mcpsdk.CallToolParams{Name: "nonexistent-tool"})
	require.Error(s.T(), err)
}

// TestStreamableHTTP tests a round trip over streamable HTTP
func (s *HTTPIntegrationTestSuite) TestStreamableHTTP() {
	s.roundTrip(config.TransportStreamableHTTP)
}

// TestSSE tests a round trip over SSE
func (s *HTTPIntegrationTestSuite) TestSSE() {
	s.roundTrip(config.TransportSSE)
}

// TestStdioHasNoHandler tests that stdio is not served over HTTP
func (s *HTTPIntegrationTestSuite) TestStdioHasNoHandler() {
	_, err := s.server.HTTPHandler(config.TransportStdio)
	require.Error(s.T(), err)
}

// TestHTTPIntegrationSuite runs the test suite
func TestHTTPIntegrationSuite(t *testing.T) {
	suite.Run(t, new(HTTPIntegrationTestSuite))
}

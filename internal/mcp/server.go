package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/radutopala/mcp-server-qdrant/internal/config"
	"github.com/radutopala/mcp-server-qdrant/internal/tools"
)

// ToolInfo is what callers see of a tool. The handler never leaves the server.
type ToolInfo struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// ProtocolHandler is the surface the protocol runtime drives.
type ProtocolHandler interface {
	ListTools(ctx context.Context) []ToolInfo
	CallTool(ctx context.Context, name string, arguments map[string]any) (*tools.CallResult, error)
}

var _ ProtocolHandler = (*Server)(nil)

// Option configures a Server.
type Option func(*serverOptions)

type serverOptions struct {
	observer tools.Observer
}

// WithObserver reports every tool call to o.
func WithObserver(o tools.Observer) Option {
	return func(opts *serverOptions) {
		opts.observer = o
	}
}

// Server exposes the gated Qdrant tools over MCP
type Server struct {
	server     *mcp.Server
	logger     *slog.Logger
	registry   *tools.Registry
	dispatcher *tools.Dispatcher
}

// NewServer registers the tools selected by the gate and binds them to a
// protocol server. The tool set does not change afterwards.
func NewServer(name, version string, gate GateSettings, deps Deps, logger *slog.Logger, opts ...Option) (*Server, error) {
	var options serverOptions
	for _, opt := range opts {
		opt(&options)
	}
	if deps.Logger == nil {
		deps.Logger = logger
	}

	registry := tools.NewRegistry(logger)
	for _, reg := range SelectTools(gate) {
		tool, err := reg.Build(deps)
		if err != nil {
			return nil, fmt.Errorf("failed to build tool %s: %w", reg.Name, err)
		}
		if err := registry.Register(tool); err != nil {
			return nil, fmt.Errorf("failed to register tool %s: %w", reg.Name, err)
		}
		for _, alias := range reg.Aliases {
			if err := registry.Alias(alias, reg.Name); err != nil {
				return nil, fmt.Errorf("failed to register alias %s: %w", alias, err)
			}
		}
	}

	var dispatcherOpts []tools.DispatcherOption
	if options.observer != nil {
		dispatcherOpts = append(dispatcherOpts, tools.WithObserver(options.observer))
	}

	s := &Server{
		logger:     logger,
		registry:   registry,
		dispatcher: tools.NewDispatcher(registry, logger, dispatcherOpts...),
	}

	s.server = mcp.NewServer(
		&mcp.Implementation{
			Name:    name,
			Version: version,
		},
		&mcp.ServerOptions{
			Logger: logger,
		},
	)
	for _, tool := range registry.List() {
		s.server.AddTool(&mcp.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		}, s.handleToolCall)
	}
	// Aliases are not listed, so the SDK would reject them before any tool
	// handler runs. Route every tools/call through the dispatcher instead.
	s.server.AddReceivingMiddleware(s.routeToolCalls)

	logger.Info("Server ready", "name", name, "tools", registry.Names())
	return s, nil
}

// ListTools returns the registered tools in registration order.
func (s *Server) ListTools(ctx context.Context) []ToolInfo {
	registered := s.registry.List()
	infos := make([]ToolInfo, len(registered))
	for i, tool := range registered {
		infos[i] = ToolInfo{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		}
	}
	return infos
}

// CallTool dispatches one call. Unknown tools and missing arguments are
// returned as errors; every other failure is reported in the result.
func (s *Server) CallTool(ctx context.Context, name string, arguments map[string]any) (*tools.CallResult, error) {
	return s.dispatcher.Call(ctx, name, arguments)
}

// Run serves the protocol over transport until ctx is done or the peer hangs up.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}

// HTTPHandler returns the handler for an HTTP based transport.
func (s *Server) HTTPHandler(transport string) (http.Handler, error) {
	getServer := func(*http.Request) *mcp.Server {
		return s.server
	}
	switch transport {
	case config.TransportSSE:
		return mcp.NewSSEHandler(getServer, nil), nil
	case config.TransportStreamableHTTP:
		return mcp.NewStreamableHTTPHandler(getServer, nil), nil
	default:
		return nil, fmt.Errorf("transport %q is not served over HTTP", transport)
	}
}

func (s *Server) routeToolCalls(next mcp.MethodHandler) mcp.MethodHandler {
	return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
		call, ok := req.(*mcp.CallToolRequest)
		if method != "tools/call" || !ok {
			return next(ctx, method, req)
		}
		result, err := s.handleToolCall(ctx, call)
		if err != nil {
			return nil, err
		}
		return result, nil
	}
}

func (s *Server) handleToolCall(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	arguments, err := decodeArguments(req.Params.Arguments)
	if err != nil {
		return nil, rejectedCall{err}
	}
	result, err := s.CallTool(ctx, req.Params.Name, arguments)
	if err != nil {
		if tools.IsContractViolation(err) {
			return nil, rejectedCall{err}
		}
		return nil, err
	}
	return toProtocolResult(result), nil
}

// errInvalidParams is the JSON-RPC invalid params error (-32602). The SDK
// does not export its wire error type, so it is decoded from a response.
var errInvalidParams = func() error {
	msg, err := jsonrpc.DecodeMessage([]byte(`{"jsonrpc":"2.0","id":0,"error":{"code":-32602,"message":"invalid params"}}`))
	if err != nil {
		panic(err)
	}
	return msg.(*jsonrpc.Response).Error
}()

// rejectedCall is sent with the invalid params code and the message of err.
type rejectedCall struct {
	err error
}

func (r rejectedCall) Error() string {
	return r.err.Error()
}

func (r rejectedCall) Unwrap() []error {
	return []error{r.err, errInvalidParams}
}

// decodeArguments accepts a JSON object or null.
func decodeArguments(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var arguments map[string]any
	if err := json.Unmarshal(raw, &arguments); err != nil {
		return nil, tools.InvalidArgument("arguments", "must be a JSON object: %v", err)
	}
	return arguments, nil
}

func toProtocolResult(result *tools.CallResult) *mcp.CallToolResult {
	content := make([]mcp.Content, 0, len(result.Content))
	for _, c := range result.Content {
		switch c.Type {
		case tools.ContentImage:
			content = append(content, &mcp.ImageContent{Data: c.Data, MIMEType: c.MIMEType})
		case tools.ContentResource:
			content = append(content, &mcp.EmbeddedResource{
				Resource: &mcp.ResourceContents{URI: c.URI, MIMEType: c.MIMEType, Text: c.Text},
			})
		default:
			content = append(content, &mcp.TextContent{Text: c.Text})
		}
	}

	out := &mcp.CallToolResult{
		Content: content,
		IsError: result.IsError,
	}
	if result.Structured != nil {
		out.StructuredContent = result.Structured
	}
	return out
}

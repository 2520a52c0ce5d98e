package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/radutopala/mcp-server-qdrant/internal/config"
	"github.com/radutopala/mcp-server-qdrant/internal/embeddings"
	"github.com/radutopala/mcp-server-qdrant/internal/mcp"
	"github.com/radutopala/mcp-server-qdrant/internal/telemetry"
	"github.com/radutopala/mcp-server-qdrant/internal/vectorstore"
)

// Set via ldflags at build time.
var version = "dev"

// HTTP endpoints per transport
const (
	ssePath            = "/sse"
	streamableHTTPPath = "/mcp"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server-qdrant",
		Short: "MCP server that stores and retrieves memories in Qdrant",
		Args:  cobra.NoArgs,
		// SilenceUsage prevents printing usage on runtime errors
		SilenceUsage: true,
		RunE:         run,
	}

	cmd.Flags().String("transport", config.TransportStdio, "Transport: stdio, sse or streamable-http")
	cmd.Flags().String("addr", "", "Listen address for HTTP transports (default 127.0.0.1:8000)")
	cmd.Flags().String("config", "", "Path to a YAML config file")
	cmd.Flags().Bool("read-only", false, "Do not register tools that write to Qdrant")
	cmd.Flags().String("collection-name", "", "Bind the memory tools to this collection")

	cmd.Version = version
	cmd.SetVersionTemplate(fmt.Sprintf("mcp-server-qdrant version %s\n", version))
	return cmd
}

// loadSettings reads the configuration and applies the flags the user set.
func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	configPath, _ := cmd.Flags().GetString("config")
	settings, err := config.Load(config.LoadOptions{
		ConfigFile: configPath,
		EnvFile:    ".env",
	})
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("transport") {
		settings.Server.Transport, _ = flags.GetString("transport")
	}
	if flags.Changed("addr") {
		settings.Server.Addr, _ = flags.GetString("addr")
	}
	if flags.Changed("read-only") {
		settings.Qdrant.ReadOnly, _ = flags.GetBool("read-only")
	}
	if flags.Changed("collection-name") {
		settings.Qdrant.CollectionName, _ = flags.GetString("collection-name")
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

func run(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	logger, closeLog := newLogger(settings.Logging)
	defer closeLog()

	embedder, err := embeddings.New(cmd.Context(), embeddings.Config{
		Provider:   settings.Embedding.Provider,
		Model:      settings.Embedding.Model,
		Dimensions: settings.Embedding.Dimensions,
		APIKey:     settings.Embedding.APIKey,
		BaseURL:    settings.Embedding.BaseURL,
		CacheDir:   settings.Embedding.CacheDir,
	}, logger)
	if err != nil {
		logger.Error("Failed to create embedder", "error", err)
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	store, err := vectorstore.Open(vectorstore.Config{
		URL:       settings.Qdrant.URL,
		APIKey:    settings.Qdrant.APIKey,
		LocalPath: settings.Qdrant.LocalPath,
	}, logger)
	if err != nil {
		logger.Error("Failed to open vector store", "error", err)
		return fmt.Errorf("failed to open vector store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Error closing vector store", "error", err)
		}
	}()

	observer, err := telemetry.NewGlobalObserver()
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	server, err := mcp.NewServer(settings.Server.Name, version,
		mcp.GateSettings{
			CollectionName:   settings.Qdrant.CollectionName,
			ReadOnly:         settings.Qdrant.ReadOnly,
			ToolDescriptions: settings.Tools.Descriptions,
		},
		mcp.Deps{
			Store:       store,
			Embedder:    embedder,
			SearchLimit: settings.Qdrant.SearchLimit,
			Logger:      logger,
		},
		logger,
		mcp.WithObserver(observer),
	)
	if err != nil {
		logger.Error("Failed to create server", "error", err)
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if settings.Server.Transport == config.TransportStdio {
		logger.Info("Starting server over stdio", "name", settings.Server.Name, "version", version)
		if err := server.Run(ctx, &mcpsdk.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Server failed", "error", err)
			return err
		}
		logger.Info("Server finished")
		return nil
	}

	return serveHTTP(ctx, server, settings.Server, logger)
}

// serveHTTP serves an HTTP transport until ctx is done.
func serveHTTP(ctx context.Context, server *mcp.Server, settings config.ServerSettings, logger *slog.Logger) error {
	handler, err := server.HTTPHandler(settings.Transport)
	if err != nil {
		return err
	}

	path := streamableHTTPPath
	if settings.Transport == config.TransportSSE {
		path = ssePath
	}
	mux := http.NewServeMux()
	mux.Handle(path, handler)

	httpServer := &http.Server{
		Addr:              settings.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server over HTTP", "transport", settings.Transport, "addr", settings.Addr, "path", path, "version", version)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}

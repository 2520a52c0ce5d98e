package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read from the working directory when no path is given.
const DefaultConfigFile = ".qdrant-mcp.yaml"

// ErrConfiguration matches every *Error.
var ErrConfiguration = errors.New("configuration error")

// Error reports invalid settings found at boot.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Is matches ErrConfiguration.
func (e *Error) Is(target error) bool {
	return target == ErrConfiguration
}

// Settings is the complete server configuration.
type Settings struct {
	Qdrant    QdrantSettings    `yaml:"qdrant"`
	Embedding EmbeddingSettings `yaml:"embedding"`
	Tools     ToolSettings      `yaml:"tools"`
	Logging   LogSettings       `yaml:"logging"`
	Server    ServerSettings    `yaml:"server"`
}

// QdrantSettings locates the vector store and binds the tools to it.
type QdrantSettings struct {
	URL            string `yaml:"url"`
	APIKey         string `yaml:"api_key"`
	LocalPath      string `yaml:"local_path"`
	CollectionName string `yaml:"collection_name"`
	ReadOnly       bool   `yaml:"read_only"`
	SearchLimit    int    `yaml:"search_limit"`
}

// EmbeddingSettings selects the embedding provider.
type EmbeddingSettings struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	CacheDir   string `yaml:"cache_dir"`
}

// ToolSettings overrides tool descriptions, keyed by tool name.
type ToolSettings struct {
	Descriptions map[string]string `yaml:"descriptions"`
}

// LogSettings configures the process logger.
type LogSettings struct {
	Level  string `yaml:"level"`
	File   string `yaml:"file"`
	Format string `yaml:"format"`
}

// ServerSettings configures the protocol server.
type ServerSettings struct {
	Name      string `yaml:"name"`
	Transport string `yaml:"transport"`
	Addr      string `yaml:"addr"`
}

// Transports
const (
	TransportStdio          = "stdio"
	TransportSSE            = "sse"
	TransportStreamableHTTP = "streamable-http"
)

// Default returns the built-in settings.
func Default() *Settings {
	return &Settings{
		Qdrant: QdrantSettings{
			SearchLimit: 10,
		},
		Embedding: EmbeddingSettings{
			Provider: "local",
		},
		Tools: ToolSettings{
			Descriptions: map[string]string{},
		},
		Logging: LogSettings{
			Level:  "info",
			Format: "text",
		},
		Server: ServerSettings{
			Name:      "mcp-server-qdrant",
			Transport: TransportStdio,
			Addr:      "127.0.0.1:8000",
		},
	}
}

// LoadOptions controls where Load reads from.
type LoadOptions struct {
	// ConfigFile is an explicit YAML file; it must exist when set.
	ConfigFile string
	// EnvFile is a dotenv file loaded into the environment if present.
	// Variables already set are never overridden.
	EnvFile string
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Load merges defaults, the YAML file, the dotenv file and the environment,
// in that order of precedence. It does not validate.
func Load(opts LoadOptions) (*Settings, error) {
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading env file %q: %w", opts.EnvFile, err)
		}
	}

	settings := Default()

	path := opts.ConfigFile
	if path == "" {
		path, _ = lookup("QDRANT_MCP_CONFIG")
	}
	if path != "" {
		if err := settings.LoadFile(path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat(DefaultConfigFile); err == nil {
		if err := settings.LoadFile(DefaultConfigFile); err != nil {
			return nil, err
		}
	}

	if err := settings.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	return settings, nil
}

// LoadFile overlays the YAML file at path onto s.
func (s *Settings) LoadFile(path string) error {
	// #nosec G304 -- path comes from the operator.
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("parsing config %q: %w", path, err)
	}
	if s.Tools.Descriptions == nil {
		s.Tools.Descriptions = map[string]string{}
	}
	return nil
}

// descriptionEnv maps description override variables to tool names.
var descriptionEnv = map[string]string{
	"TOOL_FIND_DESCRIPTION":             "qdrant-find",
	"TOOL_STORE_DESCRIPTION":            "qdrant-store",
	"TOOL_MATCH_DESCRIPTION":            "qdrant-match",
	"TOOL_LIST_COLLECTIONS_DESCRIPTION": "qdrant-list-collections",
	"TOOL_COLLECTION_INFO_DESCRIPTION":  "qdrant-collection-info",
}

// ApplyEnv overlays environment variables onto s.
func (s *Settings) ApplyEnv(lookup func(string) (string, bool)) error {
	// Empty values are treated as unset.
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, &Error{Field: key, Reason: fmt.Sprintf("not an integer: %q", v)})
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, &Error{Field: key, Reason: fmt.Sprintf("not a boolean: %q", v)})
				return
			}
			*dst = b
		}
	}

	str("QDRANT_URL", &s.Qdrant.URL)
	str("QDRANT_API_KEY", &s.Qdrant.APIKey)
	str("QDRANT_LOCAL_PATH", &s.Qdrant.LocalPath)
	str("COLLECTION_NAME", &s.Qdrant.CollectionName)
	boolean("QDRANT_READ_ONLY", &s.Qdrant.ReadOnly)
	integer("QDRANT_SEARCH_LIMIT", &s.Qdrant.SearchLimit)

	str("EMBEDDING_PROVIDER", &s.Embedding.Provider)
	str("EMBEDDING_MODEL", &s.Embedding.Model)
	integer("EMBEDDING_DIMENSIONS", &s.Embedding.Dimensions)
	str("OPENAI_API_KEY", &s.Embedding.APIKey)
	str("OPENAI_BASE_URL", &s.Embedding.BaseURL)
	str("EMBEDDING_CACHE_DIR", &s.Embedding.CacheDir)

	for key, tool := range descriptionEnv {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			s.Tools.Descriptions[tool] = v
		}
	}

	str("MCP_LOG_LEVEL", &s.Logging.Level)
	str("MCP_LOG_FILE", &s.Logging.File)
	str("MCP_LOG_FORMAT", &s.Logging.Format)
	str("MCP_SERVER_NAME", &s.Server.Name)

	return errors.Join(errs...)
}

// Validate checks the settings before anything is started.
func (s *Settings) Validate() error {
	var errs []error
	add := func(field, reason string) {
		errs = append(errs, &Error{Field: field, Reason: reason})
	}

	switch {
	case s.Qdrant.URL != "" && s.Qdrant.LocalPath != "":
		add("QDRANT_URL", "cannot be combined with QDRANT_LOCAL_PATH")
	case s.Qdrant.URL == "" && s.Qdrant.LocalPath == "":
		add("QDRANT_URL", "either QDRANT_URL or QDRANT_LOCAL_PATH must be set")
	}
	if s.Qdrant.SearchLimit <= 0 {
		add("QDRANT_SEARCH_LIMIT", "must be positive")
	}

	switch strings.ToLower(s.Embedding.Provider) {
	case "local", "glove":
	case "openai":
		if s.Embedding.APIKey == "" {
			add("OPENAI_API_KEY", "required by the openai embedding provider")
		}
	default:
		add("EMBEDDING_PROVIDER", fmt.Sprintf("unsupported provider %q", s.Embedding.Provider))
	}
	if s.Embedding.Dimensions < 0 {
		add("EMBEDDING_DIMENSIONS", "must not be negative")
	}

	switch strings.ToLower(s.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("MCP_LOG_LEVEL", fmt.Sprintf("unknown level %q", s.Logging.Level))
	}
	switch strings.ToLower(s.Logging.Format) {
	case "text", "json":
	default:
		add("MCP_LOG_FORMAT", fmt.Sprintf("unknown format %q", s.Logging.Format))
	}

	switch s.Server.Transport {
	case TransportStdio, TransportSSE, TransportStreamableHTTP:
	default:
		add("transport", fmt.Sprintf("unsupported transport %q", s.Server.Transport))
	}

	return errors.Join(errs...)
}

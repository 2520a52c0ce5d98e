package mcp

import (
	"log/slog"

	"github.com/radutopala/mcp-server-qdrant/internal/embeddings"
	"github.com/radutopala/mcp-server-qdrant/internal/tools"
	"github.com/radutopala/mcp-server-qdrant/internal/vectorstore"
)

// Tool names
const (
	ToolFind            = "qdrant-find"
	ToolStore           = "qdrant-store"
	ToolMatch           = "qdrant-match"
	ToolListCollections = "qdrant-list-collections"
	ToolCollectionInfo  = "qdrant-collection-info"

	// Legacy names, resolved but not listed
	ToolFindMemories = "qdrant-find-memories"
	ToolStoreMemory  = "qdrant-store-memory"
)

// DefaultDescriptions are used for tools without an override.
var DefaultDescriptions = map[string]string{
	ToolFind: "Look up memories in Qdrant. Use this tool when you need to: \n" +
		" - Find memories by their content \n" +
		" - Access memories for further analysis \n" +
		" - Get some personal information about the user",
	ToolStore:           "Keep the memory for later use, when you are asked to remember something.",
	ToolMatch:           "Find memories in Qdrant whose metadata exactly matches the provided metadata.",
	ToolListCollections: "List all available collections in the Qdrant server.",
	ToolCollectionInfo:  "Get detailed information about a specific collection, including its configuration and schema.",
}

// GateSettings is the part of the configuration that decides the tool set.
type GateSettings struct {
	CollectionName   string            // Binds find/store/match to one collection when set
	ReadOnly         bool              // Omits mutating tools
	ToolDescriptions map[string]string // Overrides keyed by tool name
}

func (g GateSettings) description(name string) string {
	if d, ok := g.ToolDescriptions[name]; ok && d != "" {
		return d
	}
	return DefaultDescriptions[name]
}

// Deps are the shared collaborators handed to every tool.
type Deps struct {
	Store       vectorstore.VectorStore
	Embedder    embeddings.Embedder
	SearchLimit int
	Logger      *slog.Logger
}

// ToolFactory builds a tool bound to its collaborators.
type ToolFactory func(Deps) (*tools.Tool, error)

// Registration is one tool selected by the gate.
type Registration struct {
	Name     string
	Mutating bool
	Bound    bool     // Collection name comes from configuration
	Aliases  []string // Extra names resolving to the tool
	Build    ToolFactory
}

// SelectTools decides which tools are registered, in registration order.
// It only reads settings.
func SelectTools(settings GateSettings) []Registration {
	collection := settings.CollectionName
	bound := collection != ""

	regs := []Registration{{
		Name:    ToolFind,
		Bound:   bound,
		Aliases: []string{ToolFindMemories},
		Build:   findTool(settings.description(ToolFind), collection),
	}}

	if !settings.ReadOnly {
		regs = append(regs, Registration{
			Name:     ToolStore,
			Mutating: true,
			Bound:    bound,
			Aliases:  []string{ToolStoreMemory},
			Build:    storeTool(settings.description(ToolStore), collection),
		})
	}

	regs = append(regs,
		Registration{
			Name:  ToolListCollections,
			Build: listCollectionsTool(settings.description(ToolListCollections)),
		},
		Registration{
			Name:  ToolCollectionInfo,
			Build: collectionInfoTool(settings.description(ToolCollectionInfo)),
		},
		Registration{
			Name:  ToolMatch,
			Bound: bound,
			Build: matchTool(settings.description(ToolMatch), collection),
		},
	)

	return regs
}

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/radutopala/mcp-server-qdrant/internal/tools"
	"github.com/radutopala/mcp-server-qdrant/internal/vectorstore"
)

const (
	paramQuery          = "query"
	paramInformation    = "information"
	paramMetadata       = "metadata"
	paramCollectionName = "collection_name"

	// Find results are cut to this many characters to save context.
	truncateLength = 200
	// Match is exact, so it returns more than a similarity search.
	matchLimit = 100
)

// memoryTools holds the collaborators of one tool and its bound collection.
type memoryTools struct {
	deps       Deps
	collection string
}

func newMemoryTools(deps Deps, collection string) (*memoryTools, error) {
	if deps.Store == nil {
		return nil, errors.New("vector store is required")
	}
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &memoryTools{deps: deps, collection: collection}, nil
}

// collectionFor returns the bound collection or the one supplied by the caller.
func (m *memoryTools) collectionFor(args tools.Arguments) string {
	if m.collection != "" {
		return m.collection
	}
	return args.String(paramCollectionName)
}

// withCollection declares collection_name unless the tool is bound.
func withCollection(b *tools.Builder, collection, description string) *tools.Builder {
	if collection != "" {
		return b
	}
	return b.Param(paramCollectionName, tools.TypeString, tools.Describe(description))
}

func requireEmbedder(deps Deps) error {
	if deps.Embedder == nil {
		return errors.New("embedder is required")
	}
	return nil
}

func findTool(description, collection string) ToolFactory {
	return func(deps Deps) (*tools.Tool, error) {
		if err := requireEmbedder(deps); err != nil {
			return nil, err
		}
		m, err := newMemoryTools(deps, collection)
		if err != nil {
			return nil, err
		}
		b := tools.NewTool(ToolFind, description).
			Param(paramQuery, tools.TypeString, tools.Describe("The query to use for the search."))
		return withCollection(b, collection, "The name of the collection to search in.").
			Handle(m.find).
			Build()
	}
}

func (m *memoryTools) find(ctx context.Context, args tools.Arguments) (any, error) {
	query := args.String(paramQuery)
	collection := m.collectionFor(args)
	m.deps.Logger.DebugContext(ctx, "Finding results for query", "query", query, "collection", collection)

	vector, err := m.deps.Embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	entries, err := m.deps.Store.Search(ctx, collection, vector, m.deps.Embedder.VectorName(), m.deps.SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to search collection %s: %w", collection, err)
	}
	if len(entries) == 0 {
		return []string{fmt.Sprintf("No information found for the query '%s'", query)}, nil
	}

	content := []string{fmt.Sprintf("Results for the query '%s'", query)}
	for _, entry := range entries {
		content = append(content, formatEntry(entry, true))
	}
	return content, nil
}

func storeTool(description, collection string) ToolFactory {
	return func(deps Deps) (*tools.Tool, error) {
		if err := requireEmbedder(deps); err != nil {
			return nil, err
		}
		m, err := newMemoryTools(deps, collection)
		if err != nil {
			return nil, err
		}
		b := tools.NewTool(ToolStore, description).
			Param(paramInformation, tools.TypeString, tools.Describe("The information to store."))
		b = withCollection(b, collection, "The name of the collection to store the information in.")
		return b.
			Param(paramMetadata, tools.TypeObject,
				tools.Default(nil),
				tools.Describe("Extra metadata stored along with memorised information. Any json is accepted.")).
			Mutating().
			Handle(m.store).
			Build()
	}
}

func (m *memoryTools) store(ctx context.Context, args tools.Arguments) (any, error) {
	information := args.String(paramInformation)
	collection := m.collectionFor(args)

	metadata, err := args.Map(paramMetadata)
	if err != nil {
		return nil, err
	}
	m.deps.Logger.DebugContext(ctx, "Storing information", "collection", collection)

	vectors, err := m.deps.Embedder.EmbedDocuments(ctx, []string{information})
	if err != nil {
		return nil, fmt.Errorf("failed to embed information: %w", err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 document", len(vectors))
	}
	vector := vectors[0]
	vectorName := m.deps.Embedder.VectorName()

	if err := m.deps.Store.EnsureCollection(ctx, collection, len(vector), vectorName); err != nil {
		return nil, fmt.Errorf("failed to prepare collection %s: %w", collection, err)
	}

	entry := vectorstore.Entry{Content: information, Metadata: metadata}
	if err := m.deps.Store.Upsert(ctx, collection, uuid.NewString(), vectorName, vector, entry); err != nil {
		return nil, fmt.Errorf("failed to store information: %w", err)
	}

	return fmt.Sprintf("Remembered: %s in collection %s", information, collection), nil
}

func matchTool(description, collection string) ToolFactory {
	return func(deps Deps) (*tools.Tool, error) {
		m, err := newMemoryTools(deps, collection)
		if err != nil {
			return nil, err
		}
		b := tools.NewTool(ToolMatch, description).
			Param(paramMetadata, tools.TypeObject, tools.Describe("The metadata to match against, as a JSON object."))
		return withCollection(b, collection, "The name of the collection to search in.").
			Handle(m.match).
			Build()
	}
}

func (m *memoryTools) match(ctx context.Context, args tools.Arguments) (any, error) {
	filter, err := args.Map(paramMetadata)
	if err != nil {
		return nil, err
	}
	if len(filter) == 0 {
		return nil, tools.InvalidArgument(paramMetadata, "at least one key is required")
	}
	collection := m.collectionFor(args)

	rendered, err := json.Marshal(filter)
	if err != nil {
		return nil, tools.InvalidArgument(paramMetadata, "%v", err)
	}
	m.deps.Logger.DebugContext(ctx, "Matching results for metadata", "metadata", string(rendered), "collection", collection)

	entries, err := m.deps.Store.SearchByMetadata(ctx, collection, filter, matchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to match metadata in collection %s: %w", collection, err)
	}
	if len(entries) == 0 {
		return []string{fmt.Sprintf("No information found for the metadata '%s'", rendered)}, nil
	}

	content := []string{fmt.Sprintf("Results for the metadata match '%s'", rendered)}
	for _, entry := range entries {
		content = append(content, formatEntry(entry, false))
	}
	return content, nil
}

func listCollectionsTool(description string) ToolFactory {
	return func(deps Deps) (*tools.Tool, error) {
		m, err := newMemoryTools(deps, "")
		if err != nil {
			return nil, err
		}
		return tools.NewTool(ToolListCollections, description).
			Handle(m.listCollections).
			Build()
	}
}

func (m *memoryTools) listCollections(ctx context.Context, args tools.Arguments) (any, error) {
	m.deps.Logger.DebugContext(ctx, "Listing collections")

	names, err := m.deps.Store.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	if len(names) == 0 {
		return "No collections found in Qdrant server.", nil
	}
	return "Available collections: " + strings.Join(names, ", "), nil
}

func collectionInfoTool(description string) ToolFactory {
	return func(deps Deps) (*tools.Tool, error) {
		m, err := newMemoryTools(deps, "")
		if err != nil {
			return nil, err
		}
		return tools.NewTool(ToolCollectionInfo, description).
			Param(paramCollectionName, tools.TypeString, tools.Describe("The name of the collection to get information for.")).
			Handle(m.collectionInfo).
			Build()
	}
}

func (m *memoryTools) collectionInfo(ctx context.Context, args tools.Arguments) (any, error) {
	name := args.String(paramCollectionName)
	m.deps.Logger.DebugContext(ctx, "Getting collection info", "collection", name)

	info, err := m.deps.Store.CollectionInfo(ctx, name)
	if errors.Is(err, vectorstore.ErrCollectionNotFound) {
		return map[string]any{"error": fmt.Sprintf("Collection '%s' not found.", name)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection info: %w", err)
	}
	return info, nil
}

// formatEntry renders an entry for the calling agent. Missing metadata renders
// as an empty metadata element.
func formatEntry(entry vectorstore.Entry, truncate bool) string {
	content := entry.Content
	if truncate && utf8.RuneCountInString(content) > truncateLength {
		content = string([]rune(content)[:truncateLength]) + "..."
	}

	metadata := ""
	if len(entry.Metadata) > 0 {
		if raw, err := json.Marshal(entry.Metadata); err == nil {
			metadata = string(raw)
		}
	}
	return fmt.Sprintf("<entry><content>%s</content><metadata>%s</metadata></entry>", content, metadata)
}

package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
)

const (
	defaultGRPCPort = 6334
	restPort        = 6333
)

// QdrantVectorStore talks to a Qdrant server over gRPC.
type QdrantVectorStore struct {
	client *qdrant.Client
	logger *slog.Logger
}

// NewQdrantVectorStore connects to the Qdrant server at rawURL.
func NewQdrantVectorStore(rawURL, apiKey string, logger *slog.Logger) (*QdrantVectorStore, error) {
	cfg, err := qdrantConfig(rawURL, apiKey)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	logger.Info("Connected to Qdrant", "host", cfg.Host, "port", cfg.Port, "tls", cfg.UseTLS)
	return &QdrantVectorStore{client: client, logger: logger}, nil
}

// qdrantConfig turns a server URL into gRPC client settings. The REST port is
// swapped for the gRPC port, since URLs are usually copied from the REST API.
func qdrantConfig(rawURL, apiKey string) (*qdrant.Config, error) {
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant url %q: %w", rawURL, err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("invalid qdrant url %q: missing host", rawURL)
	}

	port := defaultGRPCPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid qdrant port %q: %w", p, err)
		}
		if port == restPort {
			port = defaultGRPCPort
		}
	}

	return &qdrant.Config{
		Host:   u.Hostname(),
		Port:   port,
		APIKey: apiKey,
		UseTLS: u.Scheme == "https",
	}, nil
}

// EnsureCollection creates the collection if it does not exist yet
func (s *QdrantVectorStore) EnsureCollection(ctx context.Context, name string, vectorSize int, vectorName string) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			vectorName: {
				Size:     uint64(vectorSize),
				Distance: qdrant.Distance_Cosine,
			},
		}),
	})
	// Another call may have created it between the check and the create.
	if status.Code(err) == codes.AlreadyExists {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}

	s.logger.Info("Created collection", "collection", name, "vector_name", vectorName, "size", vectorSize)
	return nil
}

// Upsert stores the entry under the given point ID
func (s *QdrantVectorStore) Upsert(ctx context.Context, collection, id, vectorName string, vector []float32, entry Entry) error {
	payload, err := entryPayload(entry)
	if err != nil {
		return err
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{
			{
				Id: qdrant.NewID(id),
				Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
					vectorName: qdrant.NewVector(vector...),
				}),
				Payload: payload,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point: %w", err)
	}
	return nil
}

// entryPayload encodes an entry as a point payload. Metadata decoded from JSON
// holds float64 numbers, which are stored as doubles.
func entryPayload(entry Entry) (map[string]*qdrant.Value, error) {
	payload, err := qdrant.TryValueMap(map[string]any{
		PayloadDocument: entry.Content,
		PayloadMetadata: entry.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return payload, nil
}

// Search finds entries semantically similar to the query
func (s *QdrantVectorStore) Search(ctx context.Context, collection string, query []float32, vectorName string, limit int) ([]Entry, error) {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection %s: %w", collection, err)
	}
	if !exists {
		return []Entry{}, nil
	}

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(query...),
		Using:          qdrant.PtrOf(vectorName),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}

	entries := make([]Entry, 0, len(points))
	for _, p := range points {
		entries = append(entries, entryFromPayload(p.GetPayload()))
	}
	return entries, nil
}

// SearchByMetadata scrolls points whose metadata matches every key of filter
func (s *QdrantVectorStore) SearchByMetadata(ctx context.Context, collection string, filter map[string]any, limit int) ([]Entry, error) {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection %s: %w", collection, err)
	}
	if !exists {
		return []Entry{}, nil
	}

	conditions, err := metadataConditions(filter)
	if err != nil {
		return nil, err
	}

	req := &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter:         &qdrant.Filter{Must: conditions},
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if limit > 0 {
		req.Limit = qdrant.PtrOf(uint32(limit))
	}

	points, err := s.client.Scroll(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to scroll points: %w", err)
	}

	entries := make([]Entry, 0, len(points))
	for _, p := range points {
		entries = append(entries, entryFromPayload(p.GetPayload()))
	}
	return entries, nil
}

// metadataConditions builds one exact-match condition per filter key, in key order.
// Numbers use a closed range on the value: an integer match never matches a
// payload stored as a double.
func metadataConditions(filter map[string]any) ([]*qdrant.Condition, error) {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conditions := make([]*qdrant.Condition, 0, len(keys))
	for _, k := range keys {
		field := PayloadMetadata + "." + k
		switch v := filter[k].(type) {
		case string:
			conditions = append(conditions, qdrant.NewMatch(field, v))
		case bool:
			conditions = append(conditions, qdrant.NewMatchBool(field, v))
		case int:
			conditions = append(conditions, numberCondition(field, float64(v)))
		case int64:
			conditions = append(conditions, numberCondition(field, float64(v)))
		case float64:
			conditions = append(conditions, numberCondition(field, v))
		default:
			return nil, fmt.Errorf("unsupported filter value for %q: %T", k, v)
		}
	}
	return conditions, nil
}

func numberCondition(field string, v float64) *qdrant.Condition {
	return qdrant.NewRange(field, &qdrant.Range{Gte: qdrant.PtrOf(v), Lte: qdrant.PtrOf(v)})
}

// ListCollections returns the collection names, sorted
func (s *QdrantVectorStore) ListCollections(ctx context.Context) ([]string, error) {
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// CollectionInfo returns the server's collection info as a mapping
func (s *QdrantVectorStore) CollectionInfo(ctx context.Context, name string) (map[string]any, error) {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	if !exists {
		return nil, ErrCollectionNotFound
	}

	info, err := s.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection info: %w", err)
	}

	raw, err := protojson.MarshalOptions{UseProtoNames: true}.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("failed to encode collection info: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode collection info: %w", err)
	}
	return out, nil
}

// Close closes the gRPC connection
func (s *QdrantVectorStore) Close() error {
	return s.client.Close()
}

func entryFromPayload(payload map[string]*qdrant.Value) Entry {
	entry := Entry{Content: payload[PayloadDocument].GetStringValue()}
	if m, ok := valueToAny(payload[PayloadMetadata]).(map[string]any); ok {
		entry.Metadata = m
	}
	return entry
}

// valueToAny converts a payload value into plain Go values.
func valueToAny(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_StructValue:
		fields := kind.StructValue.GetFields()
		out := make(map[string]any, len(fields))
		for k, field := range fields {
			out[k] = valueToAny(field)
		}
		return out
	case *qdrant.Value_ListValue:
		values := kind.ListValue.GetValues()
		out := make([]any, len(values))
		for i, item := range values {
			out[i] = valueToAny(item)
		}
		return out
	default:
		return nil
	}
}

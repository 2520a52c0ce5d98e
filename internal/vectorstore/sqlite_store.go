package vectorstore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

// SQLiteDatabaseFile is the database file created inside the local path.
const SQLiteDatabaseFile = "collections.db"

// SQLiteVectorStore persists collections in a SQLite database under a local
// directory. Search is a brute-force cosine scan over the collection.
type SQLiteVectorStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteVectorStore opens (or creates) the store in the directory at path.
func NewSQLiteVectorStore(path string, logger *slog.Logger) (*SQLiteVectorStore, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("sqlitestore: create directory: %w", err)
	}
	return openSQLite(filepath.Join(path, SQLiteDatabaseFile)+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", logger)
}

func openSQLite(dsn string, logger *slog.Logger) (*SQLiteVectorStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open: %w", err)
	}

	// Enable WAL mode for concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitestore: set WAL mode: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitestore: create schema: %w", err)
	}

	return &SQLiteVectorStore{db: db, logger: logger}, nil
}

// EnsureCollection creates the collection if it does not exist yet
func (s *SQLiteVectorStore) EnsureCollection(ctx context.Context, name string, vectorSize int, vectorName string) error {
	if vectorSize <= 0 {
		return fmt.Errorf("vector size must be positive, got %d", vectorSize)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (name, vector_name, vector_size, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO NOTHING`,
		name, vectorName, vectorSize, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlitestore: create collection: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Info("Created collection", "collection", name, "vector_name", vectorName, "size", vectorSize)
	}
	return nil
}

type collectionRow struct {
	vectorName string
	vectorSize int
}

func (s *SQLiteVectorStore) collection(ctx context.Context, name string) (*collectionRow, error) {
	var row collectionRow
	err := s.db.QueryRowContext(ctx,
		`SELECT vector_name, vector_size FROM collections WHERE name = ?`, name,
	).Scan(&row.vectorName, &row.vectorSize)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCollectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: load collection: %w", err)
	}
	return &row, nil
}

// Upsert stores the entry, replacing a point with the same ID
func (s *SQLiteVectorStore) Upsert(ctx context.Context, collection, id, vectorName string, vector []float32, entry Entry) error {
	c, err := s.collection(ctx, collection)
	if err != nil {
		return err
	}
	if err := checkVector(vector, c.vectorSize, vectorName, c.vectorName); err != nil {
		return err
	}

	var metadata sql.NullString
	if entry.Metadata != nil {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("sqlitestore: marshal metadata: %w", err)
		}
		metadata = sql.NullString{String: string(raw), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO points (collection, id, seq, document, metadata, vector)
		 VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM points WHERE collection = ?), ?, ?, ?)
		 ON CONFLICT(collection, id) DO UPDATE SET document = excluded.document, metadata = excluded.metadata, vector = excluded.vector`,
		collection, id, collection, entry.Content, metadata, encodeVector(vector),
	)
	if err != nil {
		return fmt.Errorf("sqlitestore: upsert: %w", err)
	}
	return nil
}

// Search finds entries semantically similar to the query
func (s *SQLiteVectorStore) Search(ctx context.Context, collection string, query []float32, vectorName string, limit int) ([]Entry, error) {
	c, err := s.collection(ctx, collection)
	if errors.Is(err, ErrCollectionNotFound) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, err
	}
	if err := checkVector(query, c.vectorSize, vectorName, c.vectorName); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT document, metadata, vector FROM points WHERE collection = ? ORDER BY seq`, collection)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: search: %w", err)
	}
	defer rows.Close()

	var scored []scoredEntry
	for rows.Next() {
		entry, blob, err := scanPoint(rows, true)
		if err != nil {
			return nil, err
		}
		scored = append(scored, scoredEntry{entry: entry, score: cosineSimilarity(query, decodeVector(blob))})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitestore: search: %w", err)
	}

	return topK(scored, limit), nil
}

// SearchByMetadata returns entries whose metadata matches filter, in insertion order
func (s *SQLiteVectorStore) SearchByMetadata(ctx context.Context, collection string, filter map[string]any, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document, metadata FROM points WHERE collection = ? AND metadata IS NOT NULL ORDER BY seq`, collection)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: match: %w", err)
	}
	defer rows.Close()

	results := []Entry{}
	for rows.Next() {
		if limit > 0 && len(results) == limit {
			break
		}
		entry, _, err := scanPoint(rows, false)
		if err != nil {
			return nil, err
		}
		if matchesMetadata(entry.Metadata, filter) {
			results = append(results, entry)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitestore: match: %w", err)
	}
	return results, nil
}

func scanPoint(rows *sql.Rows, withVector bool) (Entry, []byte, error) {
	var (
		entry    Entry
		metadata sql.NullString
		blob     []byte
	)
	dest := []any{&entry.Content, &metadata}
	if withVector {
		dest = append(dest, &blob)
	}
	if err := rows.Scan(dest...); err != nil {
		return Entry{}, nil, fmt.Errorf("sqlitestore: scan: %w", err)
	}
	if metadata.Valid {
		if err := json.Unmarshal([]byte(metadata.String), &entry.Metadata); err != nil {
			return Entry{}, nil, fmt.Errorf("sqlitestore: unmarshal metadata: %w", err)
		}
	}
	return entry, blob, nil
}

// ListCollections returns the collection names, sorted
func (s *SQLiteVectorStore) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM collections ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: list collections: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// CollectionInfo describes a collection
func (s *SQLiteVectorStore) CollectionInfo(ctx context.Context, name string) (map[string]any, error) {
	c, err := s.collection(ctx, name)
	if err != nil {
		return nil, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM points WHERE collection = ?`, name).Scan(&count); err != nil {
		return nil, fmt.Errorf("sqlitestore: count points: %w", err)
	}
	return describeCollection(c.vectorName, c.vectorSize, count), nil
}

// Close closes the database
func (s *SQLiteVectorStore) Close() error {
	return s.db.Close()
}

// encodeVector packs a vector as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v
}

package embeddings

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultGloVeModel is used when the glove provider is selected without a model.
const DefaultGloVeModel = "6B.100d"

// GloVeModel describes a downloadable set of pre-trained GloVe vectors
type GloVeModel struct {
	URL      string
	Filename string
	Dim      int
}

var gloveModels = map[string]GloVeModel{
	"6B.50d":  {"https://archive.org/download/glove.6B.50d-300d/glove.6B.50d.txt", "glove.6B.50d.txt", 50},
	"6B.100d": {"https://archive.org/download/glove.6B.50d-300d/glove.6B.100d.txt", "glove.6B.100d.txt", 100},
	"6B.200d": {"https://archive.org/download/glove.6B.50d-300d/glove.6B.200d.txt", "glove.6B.200d.txt", 200},
	"6B.300d": {"https://archive.org/download/glove.6B.50d-300d/glove.6B.300d.txt", "glove.6B.300d.txt", 300},
}

// GloVeEmbedder averages pre-trained GloVe word vectors. The vectors are read
// once and never change, so stored embeddings stay comparable across restarts.
type GloVeEmbedder struct {
	model   string
	vectors map[string][]float32
	dim     int
}

// GloVeOptions configures NewGloVeEmbedder
type GloVeOptions struct {
	Model    string       // One of 6B.50d, 6B.100d, 6B.200d, 6B.300d
	CacheDir string       // Where model files are kept
	Client   *http.Client // Used for the one-time download
	Logger   *slog.Logger
}

// DefaultCacheDir returns the directory GloVe models are cached in when none is configured.
func DefaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "mcp-server-qdrant", "glove")
}

// NewGloVeEmbedder loads the model from the cache directory, downloading it first if needed.
func NewGloVeEmbedder(ctx context.Context, opts GloVeOptions) (*GloVeEmbedder, error) {
	name := opts.Model
	if name == "" {
		name = DefaultGloVeModel
	}
	model, ok := gloveModels[name]
	if !ok {
		return nil, fmt.Errorf("unknown GloVe model: %s (available: 6B.50d, 6B.100d, 6B.200d, 6B.300d)", name)
	}
	cacheDir := opts.CacheDir
	if cacheDir == "" {
		cacheDir = DefaultCacheDir()
	}
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	modelPath := filepath.Join(cacheDir, model.Filename)
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		logger.Info("GloVe model not found, downloading", "model", name, "path", modelPath)
		if err := downloadGloVe(ctx, client, model.URL, modelPath, logger); err != nil {
			return nil, fmt.Errorf("failed to download GloVe model: %w", err)
		}
	} else {
		logger.Info("Using cached GloVe model", "model", name, "path", modelPath)
	}

	// #nosec G304 -- the path is built from the cache dir and a known file name.
	file, err := os.Open(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open GloVe model: %w", err)
	}
	defer file.Close()

	vectors, err := loadGloVeVectors(file, model.Dim)
	if err != nil {
		return nil, fmt.Errorf("failed to load GloVe vectors: %w", err)
	}

	logger.Info("GloVe embedder ready", "model", name, "vocabulary_size", len(vectors), "dimension", model.Dim)

	return &GloVeEmbedder{model: name, vectors: vectors, dim: model.Dim}, nil
}

// downloadGloVe fetches a model file. It is written under a temporary name
// and renamed once complete, so an interrupted download is never loaded.
func downloadGloVe(ctx context.Context, client *http.Client, url, destPath string, logger *slog.Logger) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), filepath.Base(destPath)+".*.part")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), destPath); err != nil {
		return fmt.Errorf("failed to move file: %w", err)
	}

	logger.Info("Download complete", "size_mb", written/(1024*1024))
	return nil
}

// loadGloVeVectors reads "word v1 v2 ..." lines. Lines with the wrong number of
// values or unparsable numbers are skipped.
func loadGloVeVectors(r io.Reader, dim int) (map[string][]float32, error) {
	vectors := make(map[string][]float32)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

lines:
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) != dim+1 {
			continue
		}

		vec := make([]float32, dim)
		for i, s := range parts[1:] {
			val, err := strconv.ParseFloat(s, 32)
			if err != nil {
				continue lines
			}
			vec[i] = float32(val)
		}
		vectors[parts[0]] = vec
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no %d-dimensional vectors found", dim)
	}
	return vectors, nil
}

// EmbedDocuments returns one vector per text
func (e *GloVeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = e.embed(text)
	}
	return vectors, nil
}

// EmbedQuery returns the vector for a search query
func (e *GloVeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.embed(text), nil
}

// VectorName identifies the vector space
func (e *GloVeEmbedder) VectorName() string {
	return "glove-" + e.model
}

// Dimension returns the embedding dimension
func (e *GloVeEmbedder) Dimension() int {
	return e.dim
}

// embed averages the vectors of known words. Unknown words are ignored.
func (e *GloVeEmbedder) embed(text string) []float32 {
	embedding := make([]float32, e.dim)

	count := 0
	for _, word := range tokenize(text) {
		if vec, ok := e.vectors[word]; ok {
			for i := range embedding {
				embedding[i] += vec[i]
			}
			count++
		}
	}
	if count == 0 {
		return embedding
	}

	for i := range embedding {
		embedding[i] /= float32(count)
	}
	return normalize(embedding)
}

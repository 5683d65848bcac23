package memory

import (
	"context"
	"errors"
)

// Domain errors surfaced by the memory system. Infrastructure errors are
// wrapped with these sentinels so callers can branch with errors.Is.
var (
	// ErrEmptyText indicates input text was empty after trimming.
	// Rejected before any backend I/O.
	ErrEmptyText = errors.New("text is empty")

	// ErrInvalidInsights indicates an insight list violates the 1..5
	// non-empty collection invariant. The offending record is skipped,
	// never stored.
	ErrInvalidInsights = errors.New("invalid insights")

	// ErrNotFound indicates no record exists for the requested key.
	ErrNotFound = errors.New("record not found")

	// ErrPersistence indicates the storage engine rejected a write even
	// after the fallback-key retry.
	ErrPersistence = errors.New("persistence failure")

	// ErrExtractorUnavailable indicates no insight extractor is
	// configured. Operations that need one are disabled.
	ErrExtractorUnavailable = errors.New("insight extractor unavailable")

	// ErrEmbedderUnavailable indicates no embedding backend is
	// configured. Search and clustering are disabled without one.
	ErrEmbedderUnavailable = errors.New("embedding backend unavailable")
)

// Store is the keyed, deduplicated record collection.
// Implementations: SQLiteStore (persistent, local SDK).
type Store interface {
	// Put inserts the record if its key is absent and reports whether
	// an insert happened. When the key exists, Put is a no-op except
	// that it backfills the stored embedding if the existing record
	// lacks one and rec supplies one. Concurrent Puts for the same key
	// are serialized.
	Put(ctx context.Context, rec *Record) (inserted bool, err error)

	// Get retrieves a record by key. Returns ErrNotFound when absent.
	Get(ctx context.Context, key string) (*Record, error)

	// GetAll enumerates every record as a point-in-time snapshot.
	GetAll(ctx context.Context) ([]*Record, error)

	// Exists reports whether a record with the given key is stored.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes a record permanently and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)

	// Clear removes every record.
	Clear(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Embedder converts text to a fixed-dimension vector.
// Implementations: OpenAIEmbedder (API), ONNXEmbedder (local, build tag
// onnx), MockEmbedder (deterministic hash, testing and offline use).
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// Extractor distills raw text into a short list of durable insights.
// Implementation: insight.Extractor (LLM-backed).
type Extractor interface {
	Extract(ctx context.Context, text string) ([]string, error)
}

// Index is an optional vector index kept alongside the Store to narrow
// search candidates. The Store remains the source of truth; index
// failures degrade to a full scan, never to an error.
type Index interface {
	// Add registers an embedding under its record key.
	Add(ctx context.Context, key string, embedding []float32) error

	// Remove drops a key from the index.
	Remove(ctx context.Context, key string) error

	// Candidates returns up to limit record keys nearest to the
	// embedding, best first.
	Candidates(ctx context.Context, embedding []float32, limit int) ([]string, error)

	// Clear resets the index.
	Clear(ctx context.Context) error
}

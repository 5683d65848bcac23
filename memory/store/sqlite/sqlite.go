// Package sqlite provides a durable memory.Store backed by SQLite.
//
// Records are keyed by their derived insight key; the embedding is
// stored alongside in serialized form so a restart never re-embeds
// what it already has.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/engramlabs/engram-go/memory"
	"github.com/engramlabs/engram-go/vector"
)

const schema = `
CREATE TABLE IF NOT EXISTS memories (
	key           TEXT PRIMARY KEY,
	insights      TEXT NOT NULL,
	embedding     TEXT,
	created_at    INTEGER NOT NULL,
	original_text TEXT
);
CREATE INDEX IF NOT EXISTS idx_memories_created_at ON memories(created_at);
`

// Store is a SQLite-backed memory.Store.
type Store struct {
	db *sql.DB

	// writeMu serializes Put so concurrent writes of the same key
	// collapse into one row instead of racing the existence check.
	writeMu sync.Mutex
}

// New opens (or creates) the database at path and prepares the schema.
// Use ":memory:" for an ephemeral store.
func New(path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Put stores a record. Returns true when a new row was created, false
// when the key already existed. An existing row missing its embedding
// is backfilled when the incoming record carries one.
//
// If the derived key cannot be written, one retry is made under a
// synthetic key before giving up with memory.ErrPersistence.
func (s *Store) Put(ctx context.Context, rec *memory.Record) (bool, error) {
	if rec == nil || len(rec.Insights) == 0 {
		return false, memory.ErrInvalidInsights
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var existing sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT embedding FROM memories WHERE key = ?", rec.Key,
	).Scan(&existing)
	switch {
	case err == nil:
		// Duplicate. Backfill the embedding if the stored row lacks
		// one and the incoming record has it.
		if !existing.Valid && rec.HasEmbedding() {
			if berr := s.backfillEmbedding(ctx, rec); berr != nil {
				return false, berr
			}
		}
		return false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("%w: %v", memory.ErrPersistence, err)
	}

	if err := s.insert(ctx, rec.Key, rec); err != nil {
		if isUniqueViolation(err) {
			// Another writer (a separate process sharing the file)
			// stored this key after our existence check. Treat it as
			// the duplicate it is.
			if rec.HasEmbedding() {
				if berr := s.backfillEmbedding(ctx, rec); berr != nil {
					return false, berr
				}
			}
			return false, nil
		}
		// Retry once under a synthetic key so the content is not
		// lost to a key-level failure.
		synthetic := fmt.Sprintf("mem-%d-%s", time.Now().UnixMilli(), uuid.New().String())
		log.Printf("[STORE] Insert under derived key failed (%v), retrying as %s", err, synthetic)
		if rerr := s.insert(ctx, synthetic, rec); rerr != nil {
			return false, fmt.Errorf("%w: %v", memory.ErrPersistence, rerr)
		}
		rec.Key = synthetic
	}
	return true, nil
}

// backfillEmbedding fills in the stored embedding for rec.Key when the
// row does not already have one.
func (s *Store) backfillEmbedding(ctx context.Context, rec *memory.Record) error {
	if _, err := s.db.ExecContext(ctx,
		"UPDATE memories SET embedding = ? WHERE key = ? AND embedding IS NULL",
		vector.Serialize(rec.Embedding), rec.Key,
	); err != nil {
		return fmt.Errorf("%w: embedding backfill: %v", memory.ErrPersistence, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *Store) insert(ctx context.Context, key string, rec *memory.Record) error {
	insights, err := json.Marshal(rec.Insights)
	if err != nil {
		return err
	}

	var embedding sql.NullString
	if rec.HasEmbedding() {
		embedding = sql.NullString{String: vector.Serialize(rec.Embedding), Valid: true}
	}
	var original sql.NullString
	if rec.OriginalText != "" {
		original = sql.NullString{String: rec.OriginalText, Valid: true}
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
		rec.CreatedAt = createdAt
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO memories (key, insights, embedding, created_at, original_text) VALUES (?, ?, ?, ?, ?)",
		key, string(insights), embedding, createdAt.UnixMilli(), original,
	)
	return err
}

// Get returns the record for key, or memory.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (*memory.Record, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT key, insights, embedding, created_at, original_text FROM memories WHERE key = ?", key)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, memory.ErrNotFound
	}
	return rec, err
}

// GetAll returns every stored record, oldest first.
func (s *Store) GetAll(ctx context.Context) ([]*memory.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key, insights, embedding, created_at, original_text FROM memories ORDER BY created_at, key")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", memory.ErrPersistence, err)
	}
	defer rows.Close()

	var records []*memory.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Exists reports whether key is stored.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM memories WHERE key = ?", key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", memory.ErrPersistence, err)
	}
	return true, nil
}

// Delete removes key. Returns false when nothing was stored under it.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM memories WHERE key = ?", key)
	if err != nil {
		return false, fmt.Errorf("%w: %v", memory.ErrPersistence, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %v", memory.ErrPersistence, err)
	}
	return n > 0, nil
}

// Clear removes all records.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM memories"); err != nil {
		return fmt.Errorf("%w: %v", memory.ErrPersistence, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*memory.Record, error) {
	var (
		rec       memory.Record
		insights  string
		embedding sql.NullString
		createdAt int64
		original  sql.NullString
	)
	if err := row.Scan(&rec.Key, &insights, &embedding, &createdAt, &original); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(insights), &rec.Insights); err != nil {
		return nil, fmt.Errorf("corrupt insights for %s: %w", rec.Key, err)
	}
	if embedding.Valid && embedding.String != "" {
		vec, err := vector.Deserialize(embedding.String)
		if err != nil {
			// A corrupt embedding is recoverable: surface the record
			// without it so it can be re-embedded.
			log.Printf("[STORE] Dropping corrupt embedding for %s: %v", rec.Key, err)
		} else {
			rec.Embedding = vec
		}
	}
	rec.CreatedAt = time.UnixMilli(createdAt)
	rec.OriginalText = original.String
	return &rec, nil
}

// Package chromem provides an in-process vector index backed by
// chromem-go. It narrows retrieval to a candidate set of keys; the
// authoritative records stay in the store.
package chromem

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

const collectionName = "memories"

// Index is a chromem-go backed candidate index. Safe for concurrent
// use.
type Index struct {
	db  *chromem.DB
	mu  sync.Mutex
	col *chromem.Collection
}

// New creates an empty in-memory index.
func New() (*Index, error) {
	db := chromem.NewDB()
	col, err := db.CreateCollection(
		collectionName,
		nil, // embeddings are always supplied by the caller
		nil, // default cosine distance
	)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &Index{db: db, col: col}, nil
}

// Add indexes an embedding under its record key. Re-adding a key
// replaces the previous entry.
func (x *Index) Add(ctx context.Context, key string, embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("empty embedding for %s", key)
	}
	x.mu.Lock()
	col := x.col
	x.mu.Unlock()

	err := col.AddDocument(ctx, chromem.Document{
		ID:        key,
		Content:   key,
		Embedding: embedding,
	})
	if err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// Remove drops a key from the index. Missing keys are a no-op.
func (x *Index) Remove(ctx context.Context, key string) error {
	x.mu.Lock()
	col := x.col
	x.mu.Unlock()

	if err := col.Delete(ctx, nil, nil, key); err != nil {
		// chromem reports deleting an unknown ID as an error; keys can
		// legitimately be indexed on one run and deleted on another.
		log.Printf("[INDEX] Delete %s: %v", key, err)
	}
	return nil
}

// Candidates returns up to limit record keys nearest to the query
// embedding, best first. An empty index yields no candidates and no
// error.
func (x *Index) Candidates(ctx context.Context, embedding []float32, limit int) ([]string, error) {
	x.mu.Lock()
	col := x.col
	x.mu.Unlock()

	// chromem rejects nResults above the collection size.
	if n := col.Count(); n < limit {
		limit = n
	}
	if limit <= 0 {
		return nil, nil
	}

	results, err := col.QueryEmbedding(ctx, embedding, limit, nil, nil)
	if err != nil {
		if isInsufficientDocsError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	keys := make([]string, 0, len(results))
	for _, r := range results {
		keys = append(keys, r.ID)
	}
	return keys, nil
}

// Clear drops every indexed entry.
func (x *Index) Clear(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.db.DeleteCollection(collectionName); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	col, err := x.db.CreateCollection(collectionName, nil, nil)
	if err != nil {
		return fmt.Errorf("recreate collection: %w", err)
	}
	x.col = col
	return nil
}

func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}

// Package engine orchestrates the memory pipeline: extraction,
// embedding, deduplicated storage, retrieval, and clustering. Hosts
// talk to a Manager; the pieces underneath stay swappable.
package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/engramlabs/engram-go/cluster"
	"github.com/engramlabs/engram-go/memory"
	"github.com/engramlabs/engram-go/memory/embedder"
	"github.com/engramlabs/engram-go/retrieval"
)

// Config tunes the manager. Zero values fall back to defaults.
type Config struct {
	// TopK is the default result count for Search.
	TopK int

	// MinScore is the similarity floor for Search. Results below it
	// are preferred away unless nothing clears it.
	MinScore float64

	// BatchSize groups texts for batch embedding.
	BatchSize int

	// MaxConcurrent bounds in-flight embedding groups.
	MaxConcurrent int

	// CandidateFactor widens index lookups: the index is asked for
	// TopK*CandidateFactor keys before exact scoring.
	CandidateFactor int

	// ClusterThreshold overrides the clustering seed threshold when
	// positive.
	ClusterThreshold float64
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		TopK:            retrieval.DefaultTopK,
		MinScore:        0.3,
		BatchSize:       embedder.DefaultBatchSize,
		MaxConcurrent:   embedder.DefaultMaxConcurrent,
		CandidateFactor: 3,
	}
}

func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.TopK <= 0 {
		c.TopK = def.TopK
	}
	if c.MinScore <= 0 {
		c.MinScore = def.MinScore
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = def.MaxConcurrent
	}
	if c.CandidateFactor <= 0 {
		c.CandidateFactor = def.CandidateFactor
	}
}

// Manager wires a store, an embedder, and optionally an extractor and
// a candidate index into the full memory pipeline.
type Manager struct {
	store     memory.Store
	embedder  memory.Embedder
	extractor memory.Extractor
	index     memory.Index
	config    Config
}

// Option customizes a Manager.
type Option func(*Manager)

// WithExtractor attaches an insight extractor. Without one,
// ExtractAndStore returns memory.ErrExtractorUnavailable.
func WithExtractor(e memory.Extractor) Option {
	return func(m *Manager) { m.extractor = e }
}

// WithIndex attaches a candidate index that narrows Search before
// exact scoring. Searches fall back to a full scan when the index
// fails.
func WithIndex(idx memory.Index) Option {
	return func(m *Manager) { m.index = idx }
}

// NewManager creates a manager over the given store and embedder.
func NewManager(store memory.Store, emb memory.Embedder, config Config, opts ...Option) *Manager {
	config.fillDefaults()
	m := &Manager{
		store:    store,
		embedder: emb,
		config:   config,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ExtractAndStore distills text into insights, embeds them, and stores
// the result keyed by insight content. Returns the stored record and
// whether it was newly created.
//
// Embedding failure is not fatal: the record is stored without a
// vector and picked up by the next clustering pass.
func (m *Manager) ExtractAndStore(ctx context.Context, text string) (*memory.Record, bool, error) {
	if m.extractor == nil {
		return nil, false, memory.ErrExtractorUnavailable
	}

	insights, err := m.extractor.Extract(ctx, text)
	if err != nil {
		return nil, false, fmt.Errorf("extract: %w", err)
	}

	rec, err := memory.NewRecord(insights, nil, text)
	if err != nil {
		return nil, false, err
	}

	vec, err := m.embedder.Embed(ctx, rec.EmbeddingText())
	if err != nil {
		log.Printf("[ENGINE] Embedding failed for %q, storing without vector: %v", truncate(rec.Key, 50), err)
	} else {
		rec.Embedding = vec
	}

	created, err := m.store.Put(ctx, rec)
	if err != nil {
		return nil, false, fmt.Errorf("store: %w", err)
	}
	if !created {
		log.Printf("[ENGINE] Duplicate insights, keeping existing record: %s", truncate(rec.Key, 50))
	}

	if m.index != nil && rec.HasEmbedding() {
		if ierr := m.index.Add(ctx, rec.Key, rec.Embedding); ierr != nil {
			log.Printf("[ENGINE] Index add failed for %s: %v", truncate(rec.Key, 50), ierr)
		}
	}
	return rec, created, nil
}

// Search returns the topK stored records most similar to query,
// best first. topK <= 0 uses the configured default; minScore <= 0
// uses the configured similarity floor.
func (m *Manager) Search(ctx context.Context, query string, topK int, minScore float64) ([]retrieval.Match, error) {
	if topK <= 0 {
		topK = m.config.TopK
	}
	if minScore <= 0 {
		minScore = m.config.MinScore
	}

	queryVec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", memory.ErrEmbedderUnavailable, err)
	}

	records, err := m.searchPool(ctx, queryVec, topK)
	if err != nil {
		return nil, err
	}

	matches := retrieval.Search(queryVec, records, topK, minScore)
	log.Printf("[ENGINE] Search %q: %d matches from %d records", truncate(query, 50), len(matches), len(records))
	return matches, nil
}

// searchPool picks the records to score: index candidates when an
// index is attached and healthy, otherwise everything in the store.
func (m *Manager) searchPool(ctx context.Context, queryVec []float32, topK int) ([]*memory.Record, error) {
	if m.index != nil {
		keys, err := m.index.Candidates(ctx, queryVec, topK*m.config.CandidateFactor)
		if err != nil {
			log.Printf("[ENGINE] Index lookup failed, falling back to full scan: %v", err)
		} else if len(keys) > 0 {
			records := make([]*memory.Record, 0, len(keys))
			for _, key := range keys {
				rec, gerr := m.store.Get(ctx, key)
				if gerr != nil {
					// Index can run ahead of the store; skip strays.
					log.Printf("[ENGINE] Indexed key %s missing from store: %v", truncate(key, 50), gerr)
					continue
				}
				records = append(records, rec)
			}
			if len(records) > 0 {
				return records, nil
			}
		}
	}

	records, err := m.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	return records, nil
}

// ClusterAll groups every stored record into topic clusters. Records
// missing embeddings are embedded first, in batches, and backfilled
// into the store; ones that still fail to embed surface as singletons.
func (m *Manager) ClusterAll(ctx context.Context) (*cluster.Result, error) {
	records, err := m.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}

	if err := m.backfillEmbeddings(ctx, records); err != nil {
		return nil, err
	}

	messages := make([]cluster.Message, 0, len(records))
	for _, rec := range records {
		messages = append(messages, cluster.Message{
			ID:        rec.Key,
			Text:      rec.EmbeddingText(),
			Embedding: rec.Embedding,
		})
	}

	var ccfg *cluster.Config
	if m.config.ClusterThreshold > 0 {
		ccfg = &cluster.Config{SimilarityThreshold: m.config.ClusterThreshold}
	}
	result, err := cluster.NewEngine(ccfg).Run(messages)
	if err != nil {
		return nil, fmt.Errorf("cluster: %w", err)
	}
	log.Printf("[ENGINE] Clustered %d records into %d clusters (%d singletons)",
		len(records), len(result.Clusters), len(result.Singletons))
	return result, nil
}

// backfillEmbeddings embeds records that lack a vector and persists
// the result. Individual failures are logged and left for next time.
func (m *Manager) backfillEmbeddings(ctx context.Context, records []*memory.Record) error {
	var (
		missing []*memory.Record
		texts   []string
	)
	for _, rec := range records {
		if !rec.HasEmbedding() {
			missing = append(missing, rec)
			texts = append(texts, rec.EmbeddingText())
		}
	}
	if len(missing) == 0 {
		return nil
	}

	log.Printf("[ENGINE] Backfilling embeddings for %d records", len(missing))
	vectors := embedder.Batch(ctx, m.embedder, texts, m.config.BatchSize, m.config.MaxConcurrent)
	if err := ctx.Err(); err != nil {
		return err
	}

	for i, rec := range missing {
		if vectors[i] == nil {
			log.Printf("[ENGINE] Still no embedding for %s", truncate(rec.Key, 50))
			continue
		}
		rec.Embedding = vectors[i]
		if _, err := m.store.Put(ctx, rec); err != nil {
			log.Printf("[ENGINE] Backfill persist failed for %s: %v", truncate(rec.Key, 50), err)
		}
		if m.index != nil {
			if err := m.index.Add(ctx, rec.Key, rec.Embedding); err != nil {
				log.Printf("[ENGINE] Backfill index failed for %s: %v", truncate(rec.Key, 50), err)
			}
		}
	}
	return nil
}

// RebuildIndex repopulates the attached index from the store. Call it
// once after opening a persistent store, since the index itself is
// in-memory. A no-op without an index.
func (m *Manager) RebuildIndex(ctx context.Context) error {
	if m.index == nil {
		return nil
	}
	if err := m.index.Clear(ctx); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	records, err := m.store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}
	indexed := 0
	for _, rec := range records {
		if !rec.HasEmbedding() {
			continue
		}
		if err := m.index.Add(ctx, rec.Key, rec.Embedding); err != nil {
			log.Printf("[ENGINE] Index rebuild skipped %s: %v", truncate(rec.Key, 50), err)
			continue
		}
		indexed++
	}
	log.Printf("[ENGINE] Index rebuilt: %d of %d records", indexed, len(records))
	return nil
}

// Delete removes the record stored under key. Returns false when the
// key was not stored.
func (m *Manager) Delete(ctx context.Context, key string) (bool, error) {
	removed, err := m.store.Delete(ctx, key)
	if err != nil {
		return false, err
	}
	if m.index != nil {
		if ierr := m.index.Remove(ctx, key); ierr != nil {
			log.Printf("[ENGINE] Index remove failed for %s: %v", truncate(key, 50), ierr)
		}
	}
	return removed, nil
}

// Get returns the record stored under key.
func (m *Manager) Get(ctx context.Context, key string) (*memory.Record, error) {
	return m.store.Get(ctx, key)
}

// List returns every stored record, oldest first.
func (m *Manager) List(ctx context.Context) ([]*memory.Record, error) {
	return m.store.GetAll(ctx)
}

// Clear removes all records and flushes the index.
func (m *Manager) Clear(ctx context.Context) error {
	if err := m.store.Clear(ctx); err != nil {
		return err
	}
	if m.index != nil {
		if err := m.index.Clear(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the store. The manager must not be used afterwards.
func (m *Manager) Close() error {
	return m.store.Close()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

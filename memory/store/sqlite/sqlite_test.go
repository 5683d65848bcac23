package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/engramlabs/engram-go/memory"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec, err := memory.NewRecord([]string{"x", "y"}, nil, "the original text")
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	rec.Embedding = []float32{0.1, 0.2, 0.3}

	created, err := s.Put(ctx, rec)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !created {
		t.Fatal("expected first put to create a row")
	}

	got, err := s.Get(ctx, "x|y")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Key != "x|y" {
		t.Errorf("expected key x|y, got %q", got.Key)
	}
	if len(got.Insights) != 2 || got.Insights[0] != "x" {
		t.Errorf("unexpected insights: %v", got.Insights)
	}
	if len(got.Embedding) != 3 {
		t.Errorf("expected embedding round-trip, got %v", got.Embedding)
	}
	if got.OriginalText != "the original text" {
		t.Errorf("unexpected original text: %q", got.OriginalText)
	}
}

func TestPutDuplicateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, _ := memory.NewRecord([]string{"x", "y"}, nil, "")
	if created, err := s.Put(ctx, a); err != nil || !created {
		t.Fatalf("first put: created=%v err=%v", created, err)
	}

	b, _ := memory.NewRecord([]string{"x", "y"}, nil, "")
	created, err := s.Put(ctx, b)
	if err != nil {
		t.Fatalf("second put: %v", err)
	}
	if created {
		t.Fatal("expected duplicate put to report existing row")
	}

	all, err := s.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 record, got %d", len(all))
	}
}

func TestPutConcurrentSameKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const writers = 8
	createdCh := make(chan bool, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := memory.NewRecord([]string{"x", "y"}, nil, "")
			if err != nil {
				t.Errorf("NewRecord: %v", err)
				return
			}
			created, err := s.Put(ctx, rec)
			if err != nil {
				t.Errorf("Put: %v", err)
				return
			}
			createdCh <- created
		}()
	}
	wg.Wait()
	close(createdCh)

	var createdCount int
	for created := range createdCh {
		if created {
			createdCount++
		}
	}
	if createdCount != 1 {
		t.Errorf("expected exactly one put to create the row, got %d", createdCount)
	}

	all, err := s.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 record after concurrent puts, got %d", len(all))
	}
	if all[0].Key != "x|y" {
		t.Errorf("expected key x|y, got %q", all[0].Key)
	}
}

func TestPutBackfillsEmbedding(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	bare, _ := memory.NewRecord([]string{"x", "y"}, nil, "")
	if _, err := s.Put(ctx, bare); err != nil {
		t.Fatalf("put without embedding: %v", err)
	}

	withVec, _ := memory.NewRecord([]string{"x", "y"}, nil, "")
	withVec.Embedding = []float32{1, 0}
	if created, err := s.Put(ctx, withVec); err != nil || created {
		t.Fatalf("backfill put: created=%v err=%v", created, err)
	}

	got, err := s.Get(ctx, "x|y")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.HasEmbedding() {
		t.Fatal("expected embedding to be backfilled")
	}
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, memory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec, _ := memory.NewRecord([]string{"gone"}, nil, "")
	if _, err := s.Put(ctx, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	removed, err := s.Delete(ctx, "gone")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !removed {
		t.Fatal("expected delete to remove the row")
	}

	removed, err = s.Delete(ctx, "gone")
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if removed {
		t.Fatal("expected second delete to be a no-op")
	}
}

func TestClearAndExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, insights := range [][]string{{"a"}, {"b"}, {"c"}} {
		rec, _ := memory.NewRecord(insights, nil, "")
		if _, err := s.Put(ctx, rec); err != nil {
			t.Fatalf("Put %v: %v", insights, err)
		}
	}

	ok, err := s.Exists(ctx, "b")
	if err != nil || !ok {
		t.Fatalf("Exists(b): ok=%v err=%v", ok, err)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	ok, err = s.Exists(ctx, "b")
	if err != nil {
		t.Fatalf("Exists after clear: %v", err)
	}
	if ok {
		t.Fatal("expected store to be empty after clear")
	}
}

func TestGetAllOrderedByCreation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, k := range []string{"first", "second", "third"} {
		rec, _ := memory.NewRecord([]string{k}, nil, "")
		if _, err := s.Put(ctx, rec); err != nil {
			t.Fatalf("Put %s: %v", k, err)
		}
	}

	all, err := s.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}
	// Same-millisecond inserts fall back to key order, which is
	// deterministic either way.
	seen := map[string]bool{}
	for _, rec := range all {
		seen[rec.Key] = true
	}
	for _, k := range []string{"first", "second", "third"} {
		if !seen[k] {
			t.Errorf("missing record %s", k)
		}
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	ctx := context.Background()

	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rec, _ := memory.NewRecord([]string{"durable"}, nil, "")
	rec.Embedding = []float32{0.5, 0.5}
	if _, err := s.Put(ctx, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	s.Close()

	s2, err := New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got, err := s2.Get(ctx, "durable")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if !got.HasEmbedding() {
		t.Fatal("expected embedding to survive reopen")
	}
}

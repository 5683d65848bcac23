package insight

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/engramlabs/engram-go/memory"
)

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestNewDefaults(t *testing.T) {
	e, err := New(Config{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if string(e.model) != DefaultModel {
		t.Errorf("expected default model %q, got %q", DefaultModel, e.model)
	}
	if e.maxTokens != DefaultMaxTokens {
		t.Errorf("expected default max tokens %d, got %d", DefaultMaxTokens, e.maxTokens)
	}
}

func TestParseStructured(t *testing.T) {
	raw := `{"memories": ["prefers dark roast coffee", "lives in Lisbon"]}`
	insights, ok := parseStructured(raw)
	if !ok {
		t.Fatal("expected structured parse to succeed")
	}
	if len(insights) != 2 {
		t.Fatalf("expected 2 insights, got %d", len(insights))
	}
	if insights[1] != "lives in Lisbon" {
		t.Errorf("unexpected insight: %q", insights[1])
	}
}

func TestParseStructuredWithFences(t *testing.T) {
	raw := "Here you go:\n```json\n{\"memories\": [\"works night shifts\"]}\n```"
	insights, ok := parseStructured(raw)
	if !ok {
		t.Fatal("expected structured parse to succeed despite fences")
	}
	if len(insights) != 1 || insights[0] != "works night shifts" {
		t.Fatalf("unexpected insights: %v", insights)
	}
}

func TestParseStructuredEmptyListIsValid(t *testing.T) {
	// An explicit empty list is a negative answer, not a parse
	// failure. The heuristic path must not run.
	insights, ok := parseStructured(`{"memories": []}`)
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if len(insights) != 0 {
		t.Fatalf("expected no insights, got %v", insights)
	}
}

func TestParseStructuredMalformed(t *testing.T) {
	for _, raw := range []string{"", "not json at all", "{broken", `["bare", "list"]`} {
		if _, ok := parseStructured(raw); ok {
			t.Errorf("expected parse failure for %q", raw)
		}
	}
}

func TestParseHeuristicBullets(t *testing.T) {
	raw := "Some preamble.\n- enjoys trail running\n* allergic to peanuts\n2) speaks three languages"
	insights := parseHeuristic(raw)
	if len(insights) != 3 {
		t.Fatalf("expected 3 insights, got %d: %v", len(insights), insights)
	}
	if insights[0] != "enjoys trail running" {
		t.Errorf("bullet prefix not stripped: %q", insights[0])
	}
}

func TestParseHeuristicSubstantialLines(t *testing.T) {
	raw := "ok\nThe user recently moved to Berlin for a new job.\nshort\nThey are learning German at an evening school."
	insights := parseHeuristic(raw)
	if len(insights) != 2 {
		t.Fatalf("expected 2 insights, got %d: %v", len(insights), insights)
	}
}

func TestSanitizeCapsAndTrims(t *testing.T) {
	in := []string{" a ", "", "b", "c", "d", "e", "f", "g"}
	out := sanitize(in)
	if len(out) != MaxInsights {
		t.Fatalf("expected cap at %d, got %d", MaxInsights, len(out))
	}
	if out[0] != "a" {
		t.Errorf("expected trimmed first insight, got %q", out[0])
	}
}

func TestClassifyBackendErrorQuotaByMessage(t *testing.T) {
	err := classifyBackendError(errors.New("your credit balance is too low"))
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
}

func TestClassifyBackendErrorWrapsUnknown(t *testing.T) {
	cause := errors.New("connection reset")
	err := classifyBackendError(cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be wrapped")
	}
	if !strings.Contains(err.Error(), "extraction backend") {
		t.Errorf("unexpected message: %v", err)
	}
}

// newStubExtractor points an extractor at a local server whose every
// completion is the given text content.
func newStubExtractor(t *testing.T, responseText string) *Extractor {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal(map[string]any{
			"id":          "msg_stub",
			"type":        "message",
			"role":        "assistant",
			"model":       DefaultModel,
			"content":     []map[string]any{{"type": "text", "text": responseText}},
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 10, "output_tokens": 5},
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
	t.Cleanup(srv.Close)

	e, err := New(Config{
		APIKey:         "test-key",
		MinInterval:    time.Millisecond,
		RequestOptions: []option.RequestOption{option.WithBaseURL(srv.URL)},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestExtractReturnsInsights(t *testing.T) {
	e := newStubExtractor(t, `{"memories": ["prefers dark roast coffee", "lives in Lisbon"]}`)

	insights, err := e.Extract(context.Background(), "I really love dark roast, especially since moving to Lisbon.")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(insights) != 2 {
		t.Fatalf("expected 2 insights, got %d", len(insights))
	}
	if insights[1] != "lives in Lisbon" {
		t.Errorf("unexpected insight: %q", insights[1])
	}
}

func TestExtractEmptyMemoriesIsError(t *testing.T) {
	e := newStubExtractor(t, `{"memories": []}`)

	// The backend parsed fine but found nothing worth keeping. That is
	// an extraction failure, not an empty success.
	_, err := e.Extract(context.Background(), "uh ok")
	if !errors.Is(err, ErrNoInsights) {
		t.Fatalf("expected ErrNoInsights, got %v", err)
	}
}

func TestExtractRejectsEmptyInput(t *testing.T) {
	e := newStubExtractor(t, `{"memories": ["never reached"]}`)

	if _, err := e.Extract(context.Background(), "   "); !errors.Is(err, memory.ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
}

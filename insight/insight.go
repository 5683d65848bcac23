// Package insight distills raw text into short durable insights using
// an external text-completion backend.
//
// The backend is asked for structured JSON; when that fails to parse, a
// heuristic line-based extractor salvages what it can. Outbound calls
// are paced by a cooperative minimum inter-request interval.
package insight

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"

	"github.com/engramlabs/engram-go/memory"
)

// Errors surfaced to callers. Backend failures are classified so a host
// can distinguish a bad key from a transient limit.
var (
	// ErrNotInitialized indicates the extractor has no backend
	// credentials.
	ErrNotInitialized = errors.New("extractor not initialized")

	// ErrNoInsights indicates the backend produced nothing usable.
	// Distinct from a successful empty response: extraction that
	// yields zero insights is a failure.
	ErrNoInsights = errors.New("no insights extracted")

	// ErrAuthentication indicates the backend rejected the credentials.
	ErrAuthentication = errors.New("extraction backend authentication failed")

	// ErrRateLimited indicates the backend reported too many requests.
	ErrRateLimited = errors.New("extraction backend rate limited")

	// ErrQuotaExceeded indicates the account is out of credit.
	ErrQuotaExceeded = errors.New("extraction backend quota exceeded")
)

// MaxInsights bounds one extraction. The directive and the cap agree on
// five; memory.MaxInsights enforces the same bound at storage time.
const MaxInsights = memory.MaxInsights

// Defaults.
const (
	DefaultModel       = "claude-sonnet-4-20250514"
	DefaultMaxTokens   = 1024
	DefaultMinInterval = time.Second
	DefaultBatchSize   = 3
	DefaultBatchDelay  = 500 * time.Millisecond
)

// extractionDirective is the fixed system text sent with every request.
const extractionDirective = `You distill text into durable memories.

From the user's text, extract 1-5 insights worth remembering long-term.
Each insight must be:
- Concise: at most 18 words
- Self-contained: understandable without the original text
- Durable: still true and useful weeks later
- Non-redundant: no insight restates another
- In the same language as the input

Respond with JSON only, no prose:
{"memories": ["insight one", "insight two"]}

If the text contains nothing worth remembering, respond with:
{"memories": []}`

// Config configures the extractor.
type Config struct {
	// APIKey is the completion backend key (required).
	APIKey string

	// Model overrides the default completion model.
	Model string

	// MaxTokens caps the completion length. Default: 1024.
	MaxTokens int64

	// MinInterval is the minimum spacing between outbound requests.
	// Default: 1s. This is a cooperative delay, not a hard scheduler.
	MinInterval time.Duration

	// BatchDelay is the pause between batches in ExtractBatch.
	// Default: 500ms.
	BatchDelay time.Duration

	// RequestOptions are extra client options, e.g. a custom base URL
	// or HTTP client.
	RequestOptions []option.RequestOption
}

// Extractor turns raw text into validated insight lists.
type Extractor struct {
	client     anthropic.Client
	model      anthropic.Model
	maxTokens  int64
	limiter    *rate.Limiter
	batchDelay time.Duration
}

// New creates an extractor. Returns ErrNotInitialized when no API key
// is supplied.
func New(cfg Config) (*Extractor, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotInitialized
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = DefaultMinInterval
	}
	if cfg.BatchDelay <= 0 {
		cfg.BatchDelay = DefaultBatchDelay
	}

	opts := append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, cfg.RequestOptions...)
	return &Extractor{
		client:     anthropic.NewClient(opts...),
		model:      anthropic.Model(cfg.Model),
		maxTokens:  cfg.MaxTokens,
		limiter:    rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		batchDelay: cfg.BatchDelay,
	}, nil
}

// Extract distills text into 1..MaxInsights validated insights.
// Empty input is rejected before any backend I/O.
func (e *Extractor) Extract(ctx context.Context, text string) ([]string, error) {
	if e == nil {
		return nil, ErrNotInitialized
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, memory.ErrEmptyText
	}

	// Pace outbound calls: wait until the minimum interval since the
	// previous request has elapsed.
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     e.model,
		MaxTokens: e.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: extractionDirective},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		return nil, classifyBackendError(err)
	}

	var raw strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			raw.WriteString(block.Text)
		}
	}

	insights, ok := parseStructured(raw.String())
	if !ok {
		log.Printf("[INSIGHT] Structured response unparsable, using heuristic extraction")
		insights = parseHeuristic(raw.String())
	}

	insights = sanitize(insights)
	if len(insights) == 0 {
		return nil, ErrNoInsights
	}
	return insights, nil
}

// sanitize trims entries, drops empty ones, and caps the list at
// MaxInsights.
func sanitize(insights []string) []string {
	out := insights[:0:0]
	for _, ins := range insights {
		ins = strings.TrimSpace(ins)
		if ins == "" {
			continue
		}
		out = append(out, ins)
		if len(out) == MaxInsights {
			break
		}
	}
	return out
}

// classifyBackendError maps a completion API failure onto the package's
// error taxonomy.
func classifyBackendError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrAuthentication, err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		case http.StatusPaymentRequired:
			return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		}
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "credit") || strings.Contains(msg, "quota") || strings.Contains(msg, "billing") {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return fmt.Errorf("extraction backend: %w", err)
}

package memory

import (
	"fmt"
	"strings"
	"time"
)

// KeySeparator joins a record's insight list into its deduplication key.
const KeySeparator = "|"

// MaxInsights caps the insight list of a single record. The extraction
// directive requests up to five insights and storage enforces the same
// bound, so the two never disagree.
const MaxInsights = 5

// Record is a single stored memory: an ordered list of short durable
// insights, an optional embedding, and bookkeeping fields.
//
// Records are owned exclusively by a Store. Callers always receive
// copies; mutating a returned Record never affects stored state.
type Record struct {
	// Key deduplicates records. Two records with identical insight
	// lists are the same record.
	Key string

	// Insights holds 1 to MaxInsights non-empty strings.
	Insights []string

	// Embedding is the insight text's vector, or nil when the record
	// was stored before an embedding was available. A nil embedding is
	// backfilled by the next Put that supplies one.
	Embedding []float32

	// CreatedAt is when the record was first inserted.
	CreatedAt time.Time

	// OriginalText optionally preserves the source text the insights
	// were distilled from.
	OriginalText string
}

// DeriveKey computes the deterministic deduplication key for an insight
// list by joining the entries with KeySeparator.
func DeriveKey(insights []string) string {
	return strings.Join(insights, KeySeparator)
}

// ValidateInsights trims every entry, drops the empty ones, and enforces
// the 1..MaxInsights collection invariant. Returns the cleaned list.
func ValidateInsights(insights []string) ([]string, error) {
	cleaned := make([]string, 0, len(insights))
	for _, ins := range insights {
		ins = strings.TrimSpace(ins)
		if ins == "" {
			continue
		}
		cleaned = append(cleaned, ins)
	}

	if len(cleaned) == 0 {
		return nil, fmt.Errorf("%w: no non-empty insights", ErrInvalidInsights)
	}
	if len(cleaned) > MaxInsights {
		cleaned = cleaned[:MaxInsights]
	}

	return cleaned, nil
}

// NewRecord validates the insight list and builds a Record with its
// derived key. The embedding may be nil.
func NewRecord(insights []string, embedding []float32, originalText string) (*Record, error) {
	cleaned, err := ValidateInsights(insights)
	if err != nil {
		return nil, err
	}

	return &Record{
		Key:          DeriveKey(cleaned),
		Insights:     cleaned,
		Embedding:    embedding,
		CreatedAt:    time.Now(),
		OriginalText: originalText,
	}, nil
}

// HasEmbedding reports whether the record carries an embedding vector.
func (r *Record) HasEmbedding() bool {
	return len(r.Embedding) > 0
}

// EmbeddingText returns the text representation used when embedding
// this record: the insight list joined line by line.
func (r *Record) EmbeddingText() string {
	return strings.Join(r.Insights, "\n")
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	cp := *r
	cp.Insights = append([]string(nil), r.Insights...)
	if r.Embedding != nil {
		cp.Embedding = append([]float32(nil), r.Embedding...)
	}
	return &cp
}

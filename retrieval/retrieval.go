// Package retrieval ranks stored memory records against a query vector.
//
// Selection is two-stage: records clearing the similarity floor win, but
// when nothing clears it the best available records are returned anyway.
// A search over a non-empty scorable record set never comes back empty;
// interpreting a low-confidence fallback is the caller's job.
package retrieval

import (
	"log"
	"sort"

	"github.com/engramlabs/engram-go/memory"
	"github.com/engramlabs/engram-go/vector"
)

// DefaultTopK is the result cap used when the caller passes topK <= 0.
const DefaultTopK = 10

// Match pairs a record with its similarity score for one query.
type Match struct {
	Record *memory.Record
	Score  float64
}

// Search scores query against every record that carries an embedding and
// returns the top matches, best first. Records without an embedding are
// excluded, not scored as zero; records whose embedding dimension does
// not match the query are skipped with a warning.
//
// Ordering is a stable descending sort, so ties keep the records'
// enumeration order.
func Search(query []float32, records []*memory.Record, topK int, minScore float64) []Match {
	if topK <= 0 {
		topK = DefaultTopK
	}

	scored := make([]Match, 0, len(records))
	for i, rec := range records {
		if !rec.HasEmbedding() {
			continue
		}
		score, err := vector.Cosine(query, rec.Embedding)
		if err != nil {
			log.Printf("[RETRIEVAL] Skipping record #%d (%s): %v", i+1, rec.Key, err)
			continue
		}
		scored = append(scored, Match{Record: rec, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	// Prefer matches clearing the floor; fall back to the unfiltered
	// ranking when none do.
	above := scored[:0:0]
	for _, m := range scored {
		if m.Score >= minScore {
			above = append(above, m)
		}
	}
	if len(above) > 0 {
		return top(above, topK)
	}
	return top(scored, topK)
}

func top(matches []Match, k int) []Match {
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

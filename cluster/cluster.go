// Package cluster groups a message corpus into a two-level hierarchy of
// named semantic clusters.
//
// Clustering runs as three passes with no state kept between runs:
// greedy seeding from pairwise similarity, iterative merging of similar
// clusters, then hierarchical grouping of loosely related clusters.
package cluster

import (
	"log"

	"github.com/google/uuid"

	"github.com/engramlabs/engram-go/vector"
)

// Kind identifies which pass produced a cluster.
type Kind string

const (
	KindSeed         Kind = "seed"
	KindMerged       Kind = "merged"
	KindHierarchical Kind = "hierarchical"
)

// Similarity thresholds. Merging and grouping relax the seed threshold
// by fixed factors so clusters that almost touch still combine.
const (
	DefaultSimilarityThreshold = 0.75
	mergeFactor                = 0.8
	groupFactor                = 0.6
)

// Message is one clustering input: an identified text with its embedding.
type Message struct {
	ID        string
	Text      string
	Embedding []float32
}

// Cluster is a group of messages, possibly wrapping smaller clusters
// from an earlier pass.
type Cluster struct {
	ID         string     `json:"id"`
	Kind       Kind       `json:"kind"`
	Name       string     `json:"name"`
	MemberIDs  []string   `json:"member_ids"`
	Keywords   []string   `json:"keywords"`
	Similarity float64    `json:"similarity"`
	Level      int        `json:"level"`
	Children   []*Cluster `json:"children,omitempty"`
}

// Size returns the number of member messages.
func (c *Cluster) Size() int {
	return len(c.MemberIDs)
}

// Result is the outcome of one clustering run. Every input message
// appears either in exactly one top-level cluster or in Singletons.
type Result struct {
	// Clusters holds the final top-level clusters.
	Clusters []*Cluster `json:"clusters"`

	// Singletons lists messages whose seed cluster had size 1 and was
	// discarded, plus messages that could not be scored.
	Singletons []string `json:"singletons"`
}

// Config configures the clustering engine.
type Config struct {
	// SimilarityThreshold is the minimum pairwise similarity for two
	// messages to share a seed cluster. Default: 0.75.
	SimilarityThreshold float64
}

// Engine runs the three clustering passes.
type Engine struct {
	threshold float64

	// per-run scratch state, reset by Run
	sims  [][]float64
	index map[string]int
	texts map[string]string
}

// NewEngine creates a clustering engine.
func NewEngine(cfg *Config) *Engine {
	threshold := DefaultSimilarityThreshold
	if cfg != nil && cfg.SimilarityThreshold > 0 {
		threshold = cfg.SimilarityThreshold
	}
	return &Engine{threshold: threshold}
}

// Run clusters the messages. Messages without a usable embedding are
// reported as singletons rather than failing the whole run.
func (e *Engine) Run(msgs []Message) (*Result, error) {
	result := &Result{}

	scorable := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if len(m.Embedding) == 0 {
			log.Printf("[CLUSTER] Message %s has no embedding, treating as singleton", m.ID)
			result.Singletons = append(result.Singletons, m.ID)
			continue
		}
		scorable = append(scorable, m)
	}

	e.buildSimilarityMatrix(scorable)

	seeds := e.seedPass(scorable, result)
	merged := e.mergePass(seeds)
	result.Clusters = e.hierarchicalPass(merged)

	log.Printf("[CLUSTER] %d messages -> %d clusters, %d singletons",
		len(msgs), len(result.Clusters), len(result.Singletons))
	return result, nil
}

// buildSimilarityMatrix computes pairwise cosine similarity from the
// message embeddings. Similarity is always recomputed from embeddings;
// no pass reuses a stale or partial matrix.
func (e *Engine) buildSimilarityMatrix(msgs []Message) {
	n := len(msgs)
	e.index = make(map[string]int, n)
	e.texts = make(map[string]string, n)
	e.sims = make([][]float64, n)

	for i, m := range msgs {
		e.index[m.ID] = i
		e.texts[m.ID] = m.Text
		e.sims[i] = make([]float64, n)
		e.sims[i][i] = 1
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			s, err := vector.Cosine(msgs[i].Embedding, msgs[j].Embedding)
			if err != nil {
				log.Printf("[CLUSTER] Similarity %s/%s failed: %v", msgs[i].ID, msgs[j].ID, err)
				s = 0
			}
			e.sims[i][j] = s
			e.sims[j][i] = s
		}
	}
}

// seedPass grows disjoint seed clusters: each unclaimed message claims
// every other unclaimed message within the similarity threshold.
// Size-1 seeds express no grouping and are discarded as singletons.
func (e *Engine) seedPass(msgs []Message, result *Result) []*Cluster {
	claimed := make([]bool, len(msgs))
	var seeds []*Cluster

	for i := range msgs {
		if claimed[i] {
			continue
		}
		claimed[i] = true
		members := []string{msgs[i].ID}

		for j := range msgs {
			if claimed[j] || j == i {
				continue
			}
			if e.sims[i][j] >= e.threshold {
				claimed[j] = true
				members = append(members, msgs[j].ID)
			}
		}

		if len(members) == 1 {
			result.Singletons = append(result.Singletons, msgs[i].ID)
			continue
		}

		seeds = append(seeds, e.newCluster(KindSeed, members, 0, e.cohesion(members)))
	}

	return seeds
}

// mergePass repeatedly scans cluster pairs in index order and merges the
// first pair whose mean cross-member similarity clears the relaxed
// threshold, then rescans. Each merge strictly reduces the cluster
// count, so the pass terminates.
func (e *Engine) mergePass(clusters []*Cluster) []*Cluster {
	threshold := e.threshold * mergeFactor

	for {
		merged := false

	scan:
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				if e.pairSimilarity(clusters[i], clusters[j]) < threshold {
					continue
				}

				union := append(append([]string{}, clusters[i].MemberIDs...), clusters[j].MemberIDs...)
				level := clusters[i].Level
				if clusters[j].Level > level {
					level = clusters[j].Level
				}

				combined := e.newCluster(KindMerged, union, level+1,
					(clusters[i].Similarity+clusters[j].Similarity)/2)
				combined.Children = []*Cluster{clusters[i], clusters[j]}

				clusters[i] = combined
				clusters = append(clusters[:j], clusters[j+1:]...)
				merged = true
				break scan
			}
		}

		if !merged {
			return clusters
		}
	}
}

// hierarchicalPass wraps loosely related clusters from the merge pass
// into level-1 groups. A cluster with no relatives passes through
// unchanged rather than failing the run.
func (e *Engine) hierarchicalPass(clusters []*Cluster) []*Cluster {
	threshold := e.threshold * groupFactor
	grouped := make([]bool, len(clusters))
	var out []*Cluster

	for i := range clusters {
		if grouped[i] {
			continue
		}
		grouped[i] = true

		children := []*Cluster{clusters[i]}
		for j := range clusters {
			if grouped[j] || j == i {
				continue
			}
			if e.pairSimilarity(clusters[i], clusters[j]) >= threshold {
				grouped[j] = true
				children = append(children, clusters[j])
			}
		}

		if len(children) == 1 {
			out = append(out, clusters[i])
			continue
		}

		var union []string
		var simSum float64
		for _, c := range children {
			union = append(union, c.MemberIDs...)
			simSum += c.Similarity
		}

		wrapper := e.newCluster(KindHierarchical, union, 1, simSum/float64(len(children)))
		wrapper.Children = children
		out = append(out, wrapper)
	}

	return out
}

// newCluster builds a cluster with keywords and a name derived from its
// members' text.
func (e *Engine) newCluster(kind Kind, members []string, level int, similarity float64) *Cluster {
	texts := make([]string, 0, len(members))
	for _, id := range members {
		texts = append(texts, e.texts[id])
	}

	return &Cluster{
		ID:         uuid.New().String(),
		Kind:       kind,
		Name:       clusterName(texts, kind),
		MemberIDs:  members,
		Keywords:   extractKeywords(texts, maxStoredKeywords),
		Similarity: similarity,
		Level:      level,
	}
}

// pairSimilarity is the mean of all pairwise message similarities
// between two clusters' members.
func (e *Engine) pairSimilarity(a, b *Cluster) float64 {
	var sum float64
	var count int
	for _, ida := range a.MemberIDs {
		for _, idb := range b.MemberIDs {
			sum += e.sims[e.index[ida]][e.index[idb]]
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// cohesion is the mean pairwise similarity among a member set, used as
// a seed cluster's similarity score.
func (e *Engine) cohesion(members []string) float64 {
	var sum float64
	var count int
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			sum += e.sims[e.index[members[i]]][e.index[members[j]]]
			count++
		}
	}
	if count == 0 {
		return 1
	}
	return sum / float64(count)
}

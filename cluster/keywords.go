package cluster

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxStoredKeywords = 10
	maxNameTerms      = 3
	minTermLength     = 4
)

// stopWords is the fixed short list filtered out of keyword extraction.
// Only terms longer than three characters reach this check.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "had": true,
	"this": true, "that": true, "with": true, "from": true, "have": true,
	"will": true, "your": true, "about": true, "they": true, "them": true,
	"what": true, "when": true, "were": true, "been": true, "their": true,
	"would": true, "there": true, "which": true, "some": true, "just": true,
	"like": true, "also": true, "into": true, "than": true, "then": true,
	"more": true, "very": true, "really": true, "because": true,
}

// extractKeywords returns the highest-frequency terms across texts,
// capped at max. Terms must be longer than three characters after
// punctuation stripping and must not be stop words. Frequency ties
// break by first-seen order.
func extractKeywords(texts []string, max int) []string {
	freq := make(map[string]int)
	firstSeen := make(map[string]int)

	for _, text := range texts {
		for _, word := range strings.Fields(strings.ToLower(text)) {
			word = strings.Trim(word, ".,!?;:\"'()[]{}<>-_*#@&")
			if len(word) < minTermLength || stopWords[word] {
				continue
			}
			if _, seen := freq[word]; !seen {
				firstSeen[word] = len(firstSeen)
			}
			freq[word]++
		}
	}

	terms := make([]string, 0, len(freq))
	for term := range freq {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		return firstSeen[terms[i]] < firstSeen[terms[j]]
	})

	if len(terms) > max {
		terms = terms[:max]
	}
	return terms
}

// clusterName derives a human-readable name from the top terms of the
// members' concatenated text, falling back to a generic label per pass.
func clusterName(texts []string, kind Kind) string {
	terms := extractKeywords(texts, maxNameTerms)
	if len(terms) == 0 {
		switch kind {
		case KindMerged:
			return "Merged Discussion"
		case KindHierarchical:
			return "Related Discussions"
		default:
			return "General Discussion"
		}
	}

	for i, t := range terms {
		r, size := utf8.DecodeRuneInString(t)
		terms[i] = string(unicode.ToUpper(r)) + t[size:]
	}
	return strings.Join(terms, " ")
}

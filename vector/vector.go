// Package vector provides fixed-dimension vector operations for the
// memory system: cosine similarity, normalization, and a text
// serialization format used by storage backends.
package vector

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrDimensionMismatch indicates two vectors of different lengths
	// were compared.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrMalformedVector indicates a serialized vector could not be parsed.
	ErrMalformedVector = errors.New("malformed vector")
)

// Cosine computes the cosine similarity between a and b.
// Returns ErrDimensionMismatch when the vectors differ in length.
// A zero-magnitude vector yields a similarity of 0; this is a defined
// edge case, not an error.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Normalize converts vec to a unit vector. The zero vector is returned
// unchanged. The input slice is not modified.
func Normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}

	if norm == 0 {
		return vec
	}

	norm = float32(math.Sqrt(float64(norm)))
	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = v / norm
	}

	return normalized
}

// Serialize encodes vec as comma-joined decimal components.
// Deserialize(Serialize(v)) round-trips exactly.
func Serialize(vec []float32) string {
	if len(vec) == 0 {
		return ""
	}

	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}
	return strings.Join(parts, ",")
}

// Deserialize parses a comma-joined decimal vector produced by Serialize.
// Returns ErrMalformedVector when any component fails to parse.
func Deserialize(s string) ([]float32, error) {
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	vec := make([]float32, len(parts))
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, fmt.Errorf("%w: component %d: %q", ErrMalformedVector, i, part)
		}
		vec[i] = float32(f)
	}

	return vec, nil
}

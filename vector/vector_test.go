package vector

import (
	"errors"
	"math"
	"testing"
)

func TestCosine_SelfSimilarity(t *testing.T) {
	a := []float32{0.3, -1.2, 0.8, 2.5}

	got, err := Cosine(a, a)
	if err != nil {
		t.Fatalf("Cosine failed: %v", err)
	}
	if math.Abs(got-1.0) > 1e-6 {
		t.Errorf("Cosine(a,a) = %f, want 1.0", got)
	}
}

func TestCosine_Symmetry(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{-4, 0.5, 7}

	ab, err := Cosine(a, b)
	if err != nil {
		t.Fatalf("Cosine(a,b) failed: %v", err)
	}
	ba, err := Cosine(b, a)
	if err != nil {
		t.Fatalf("Cosine(b,a) failed: %v", err)
	}

	if ab != ba {
		t.Errorf("Cosine not symmetric: %f vs %f", ab, ba)
	}
	if ab < -1 || ab > 1 {
		t.Errorf("Cosine out of range: %f", ab)
	}
}

func TestCosine_DimensionMismatch(t *testing.T) {
	_, err := Cosine([]float32{1, 2}, []float32{1, 2, 3})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestCosine_ZeroVector(t *testing.T) {
	got, err := Cosine([]float32{0, 0, 0}, []float32{1, 2, 3})
	if err != nil {
		t.Fatalf("zero vector must not error: %v", err)
	}
	if got != 0 {
		t.Errorf("Cosine with zero vector = %f, want 0", got)
	}
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if math.Abs(math.Sqrt(norm)-1.0) > 1e-6 {
		t.Errorf("normalized magnitude = %f, want 1.0", math.Sqrt(norm))
	}

	// Zero vector passes through.
	zero := Normalize([]float32{0, 0})
	if zero[0] != 0 || zero[1] != 0 {
		t.Error("zero vector should be unchanged")
	}
}

func TestSerialize_RoundTrip(t *testing.T) {
	cases := [][]float32{
		{0.1, -0.5, 3.25},
		{0},
		{1e-8, -1e8, 0.333333},
		{},
	}

	for _, vec := range cases {
		got, err := Deserialize(Serialize(vec))
		if err != nil {
			t.Fatalf("Deserialize(Serialize(%v)) failed: %v", vec, err)
		}
		if len(got) != len(vec) {
			t.Fatalf("round-trip length %d, want %d", len(got), len(vec))
		}
		for i := range vec {
			if got[i] != vec[i] {
				t.Errorf("component %d: %v != %v", i, got[i], vec[i])
			}
		}
	}
}

func TestDeserialize_Malformed(t *testing.T) {
	for _, s := range []string{"1.0,abc", "1.0,,2.0", "nope"} {
		if _, err := Deserialize(s); !errors.Is(err, ErrMalformedVector) {
			t.Errorf("Deserialize(%q): expected ErrMalformedVector, got %v", s, err)
		}
	}
}

package vectormath

import (
	"math/rand"
	"testing"
)

func randomVector(rng *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = rng.Float32()*2 - 1
	}
	return v
}

// BenchmarkCosineSimilarity benchmarks a single 768-dim comparison.
func BenchmarkCosineSimilarity(b *testing.B) {
	rng := rand.New(rand.NewSource(42))
	x := randomVector(rng, 768)
	y := randomVector(rng, 768)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := CosineSimilarity(x, y); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkTopK benchmarks batched scoring of a realistic candidate page.
func BenchmarkTopK(b *testing.B) {
	rng := rand.New(rand.NewSource(42))
	query := randomVector(rng, 768)

	candidates := make([]Candidate, 500)
	for i := range candidates {
		candidates[i] = Candidate{
			ID:     "candidate",
			Vector: randomVector(rng, 768),
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		TopK(query, candidates, 50)
	}
}

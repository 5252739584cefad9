// Package vectormath provides the numeric kernel for embedding similarity:
// cosine similarity and batched top-k selection over an in-memory candidate
// set. All functions are pure and allocation-light so independent ranking
// requests can run them concurrently without coordination.
package vectormath

import (
	"errors"
	"math"
	"sort"
)

// ErrDimensionMismatch is returned when two vectors of different lengths are
// compared. Callers ranking a batch should drop the offending candidate
// rather than abort the whole pass.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Candidate pairs a content identifier with its embedding vector.
type Candidate struct {
	ID     string
	Vector []float32
}

// Scored is a candidate identifier with its similarity score.
type Scored struct {
	ID    string
	Score float64
}

// CosineSimilarity computes the cosine similarity between two equal-length
// vectors. Accumulation is done in float64 to keep the result stable for
// high-dimensional embeddings.
//
// Returns a value in [-1, 1]. A zero-norm input scores 0.0 by convention
// rather than producing NaN, so downstream blending stays well-defined.
// Returns ErrDimensionMismatch if the lengths differ.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}

	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))

	// Guard against float drift pushing the result out of range.
	if score > 1 {
		score = 1
	} else if score < -1 {
		score = -1
	}

	return score, nil
}

// TopK scores every candidate against the query and returns the k highest by
// similarity, descending. Ties keep candidate insertion order (stable sort).
//
// k <= 0 returns an empty result. k >= len(candidates) returns all candidates
// fully sorted. Candidates whose vectors do not match the query's dimension
// are skipped; their IDs are returned in dropped so the caller can emit a
// diagnostic instead of silently mis-scoring them.
func TopK(query []float32, candidates []Candidate, k int) (scored []Scored, dropped []string) {
	if k <= 0 || len(candidates) == 0 {
		return nil, nil
	}

	scored = make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		score, err := CosineSimilarity(query, c.Vector)
		if err != nil {
			dropped = append(dropped, c.ID)
			continue
		}
		scored = append(scored, Scored{ID: c.ID, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k < len(scored) {
		scored = scored[:k]
	}

	return scored, dropped
}

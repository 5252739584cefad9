package ranking

import (
	"math"
	"time"
)

// popularitySaturation is the interaction count at which the popularity
// component reaches 1.0. The log curve below makes the early interactions
// count far more than the millionth.
const popularitySaturation = 10_000

// RecencyScore computes a time-based freshness score normalized to [0, 1].
// Newer content scores higher, decaying exponentially with the given
// half-life (a 24h half-life scores a day-old post 0.5, a two-day-old post
// 0.25, and so on).
//
// Content dated in the future (clock skew between writers) scores 1.0.
// A non-positive half-life disables the component and scores everything 1.0.
func RecencyScore(createdAt, now time.Time, halfLife time.Duration) float64 {
	if halfLife <= 0 {
		return 1.0
	}

	age := now.Sub(createdAt)
	if age <= 0 {
		return 1.0
	}

	return math.Exp2(-float64(age) / float64(halfLife))
}

// PopularityScore computes an engagement-volume score normalized to [0, 1]
// using a log curve that saturates at popularitySaturation interactions.
// Negative counts (which should not occur) score 0.
func PopularityScore(totalInteractions int64) float64 {
	if totalInteractions <= 0 {
		return 0.0
	}

	score := math.Log1p(float64(totalInteractions)) / math.Log1p(popularitySaturation)
	if score > 1 {
		return 1.0
	}
	return score
}

// BlendParams holds the component scores for one candidate's blended score.
type BlendParams struct {
	Similarity float64 // Embedding similarity [-1, 1]
	Recency    float64 // Freshness score [0, 1]
	Popularity float64 // Engagement-volume score [0, 1]
}

// BlendedScore combines the component scores under the calibrated weights.
//
// Default formula: blended = (similarity * 0.6) + (recency * 0.25) + (popularity * 0.15)
//
// Similarity may be negative for content pointing away from the user's taste
// vector, so the blended score lives in [-w_similarity, 1].
func BlendedScore(params BlendParams, weights *Weights) float64 {
	if weights == nil {
		weights = DefaultWeights()
	}

	return params.Similarity*weights.Similarity +
		params.Recency*weights.Recency +
		params.Popularity*weights.Popularity
}

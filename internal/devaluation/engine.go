// Package devaluation computes retention multipliers for content a user has
// already seen. A retention multiplier in [MinimumRetention, 1.0] scales a
// candidate's blended ranking score: 1.0 means no suppression, the floor
// means maximum suppression. Suppression decays back toward 1.0 over time.
package devaluation

import (
	"math"
	"time"
)

// ViewRecord is a single seen-history entry for a candidate, written by the
// external interaction tracker and read here.
type ViewRecord struct {
	CandidateID string      `json:"candidate_id"`
	LastSeenAt  time.Time   `json:"last_seen_at"`
	Quality     ViewQuality `json:"view_quality"`
}

// EngagementStats is the per-content engagement aggregate maintained by the
// external write path. The zero value (no interactions, empty category) is
// the documented fallback when stats are missing.
type EngagementStats struct {
	TotalInteractions   int64           `json:"total_interactions"`
	InteractionsPerHour float64         `json:"interactions_per_hour"`
	Category            ContentCategory `json:"category"`
}

// Input carries the per-candidate signals for one retention computation.
type Input struct {
	// View is the seen-history record for the candidate. Candidates with
	// no record must skip the engine entirely (multiplier 1.0).
	View ViewRecord

	// Stats are the candidate's engagement aggregates. The zero value is
	// a valid missing-stats fallback.
	Stats EngagementStats

	// NewSession is true when the requesting user just started a fresh
	// viewing session.
	NewSession bool

	// Now is the evaluation time, injected for testability.
	Now time.Time
}

// Engine computes retention multipliers from an immutable Config. An Engine
// is safe for concurrent use; reconfiguration means constructing a new one.
type Engine struct {
	cfg Config
}

// NewEngine validates cfg and constructs an Engine. An invalid config is a
// startup-time fatal condition: no engine is returned.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine's configuration value.
func (e *Engine) Config() Config {
	return e.cfg
}

// RetentionMultiplier computes the score multiplier for a previously seen
// candidate. The result is always in [MinimumRetention, 1.0].
//
// The devaluation strength starts at the base multiplier scaled by view
// quality and content type, shrinks with high engagement, and decays toward
// zero as time since the last view grows. Viral content and fresh sessions
// floor the retention before recovery is applied. Missing stats and unknown
// categories degrade to documented fallbacks, never to an error.
func (e *Engine) RetentionMultiplier(in Input) float64 {
	cfg := e.cfg

	strength := cfg.BaseDevaluationMultiplier * e.viewQualityMultiplier(in.View.Quality)
	strength *= e.contentTypeMultiplier(in.Stats.Category)
	strength *= 1 - e.engagementReduction(in.Stats.TotalInteractions)

	retention := 1 - strength

	if in.Stats.InteractionsPerHour >= cfg.ViralVelocityThreshold && retention < cfg.ViralMinimumRetention {
		retention = cfg.ViralMinimumRetention
	}

	if in.NewSession && retention < cfg.NewSessionMinimumRetention {
		retention = cfg.NewSessionMinimumRetention
	}

	retention = e.recover(retention, in.View.LastSeenAt, in.Now)

	return clamp(retention, cfg.MinimumRetention, 1)
}

// viewQualityMultiplier returns the devaluation scale for a view quality.
// Unknown qualities devalue at full strength.
func (e *Engine) viewQualityMultiplier(q ViewQuality) float64 {
	if m, ok := e.cfg.ViewQualityMultipliers[q]; ok {
		return m
	}
	return 1
}

// contentTypeMultiplier returns the devaluation scale for a content category,
// falling back to CategoryGeneral for unknown or empty categories.
func (e *Engine) contentTypeMultiplier(c ContentCategory) float64 {
	if m, ok := e.cfg.ContentTypeMultipliers[c]; ok {
		return m
	}
	if m, ok := e.cfg.ContentTypeMultipliers[CategoryGeneral]; ok {
		return m
	}
	return 1
}

// engagementReduction returns the fraction of devaluation strength removed by
// high engagement: a linear ramp from zero at HighEngagementThreshold to
// MaxEngagementReduction at four times the threshold, capped there. The ramp
// is monotone non-decreasing in the interaction count.
func (e *Engine) engagementReduction(interactions int64) float64 {
	threshold := e.cfg.HighEngagementThreshold
	if interactions < threshold {
		return 0
	}

	saturation := 4 * threshold
	if interactions >= saturation {
		return e.cfg.MaxEngagementReduction
	}

	progress := float64(interactions-threshold) / float64(saturation-threshold)
	return e.cfg.MaxEngagementReduction * progress
}

// recover decays the remaining devaluation strength by DailyRecoveryRate
// compounded per fractional day since lastSeen. At or beyond the recovery
// horizon the multiplier snaps to exactly 1.0. Monotone non-decreasing in
// elapsed time.
func (e *Engine) recover(retention float64, lastSeen, now time.Time) float64 {
	elapsedDays := now.Sub(lastSeen).Hours() / 24
	if elapsedDays < 0 {
		elapsedDays = 0
	}

	if elapsedDays >= e.cfg.RecoveryTimelineDays {
		return 1
	}

	remaining := math.Pow(1-e.cfg.DailyRecoveryRate, elapsedDays)
	return 1 - (1-retention)*remaining
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

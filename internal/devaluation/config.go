package devaluation

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// ViewQuality classifies how a user consumed a piece of content the last time
// they saw it. Richer views devalue harder than a quick scroll past.
type ViewQuality string

// Recognized view qualities.
const (
	QuickScroll        ViewQuality = "quick_scroll"
	EngagedView        ViewQuality = "engaged_view"
	PartialInteraction ViewQuality = "partial_interaction"
)

// ContentCategory tags a candidate with its content type. Unrecognized
// categories fall back to CategoryGeneral rather than erroring.
type ContentCategory string

// Recognized content categories.
const (
	CategoryGeneral       ContentCategory = "general"
	CategoryNews          ContentCategory = "news"
	CategoryEntertainment ContentCategory = "entertainment"
	CategoryEducational   ContentCategory = "educational"
	CategoryMusic         ContentCategory = "music"
)

// Config holds every tunable of the devaluation engine. It is an immutable
// value: reconfiguration produces a new Config rather than mutating one shared
// across concurrent requests.
//
// All multipliers and retention floors live in (0, 1]. Time parameters are
// expressed in milliseconds (session timeout) and days (recovery horizon) to
// match the external configuration surface.
type Config struct {
	// BaseDevaluationMultiplier is the devaluation strength applied to a
	// fully engaged view before any adjustment (0.4 = seen content starts
	// at 60% of its original score).
	BaseDevaluationMultiplier float64 `json:"base_devaluation_multiplier"`

	// MinimumRetention is the hard floor for the retention multiplier.
	MinimumRetention float64 `json:"minimum_retention"`

	// HighEngagementThreshold is the interaction count at which the
	// engagement reduction starts ramping in.
	HighEngagementThreshold int64 `json:"high_engagement_threshold"`

	// MaxEngagementReduction caps how much of the devaluation strength
	// high engagement can remove (0.5 = at most half).
	MaxEngagementReduction float64 `json:"max_engagement_reduction"`

	// ViralVelocityThreshold is the interactions-per-hour rate above which
	// content is considered viral.
	ViralVelocityThreshold float64 `json:"viral_velocity_threshold"`

	// ViralMinimumRetention floors retention for viral content regardless
	// of the other adjustments.
	ViralMinimumRetention float64 `json:"viral_minimum_retention"`

	// NewSessionMinimumRetention floors retention when the requesting user
	// is in a fresh session, easing re-engagement after an absence.
	NewSessionMinimumRetention float64 `json:"new_session_minimum_retention"`

	// SessionTimeoutMs is the inactivity gap after which a session expires.
	SessionTimeoutMs int64 `json:"session_timeout_ms"`

	// DailyRecoveryRate is the fraction of remaining devaluation strength
	// recovered per day since the content was last seen.
	DailyRecoveryRate float64 `json:"daily_recovery_rate"`

	// RecoveryTimelineDays is the horizon at which devaluation is fully
	// recovered and the multiplier returns to exactly 1.0.
	RecoveryTimelineDays float64 `json:"recovery_timeline_days"`

	// ViewQualityMultipliers scale the base devaluation strength per view
	// quality. Unknown qualities use full strength.
	ViewQualityMultipliers map[ViewQuality]float64 `json:"view_quality_multipliers"`

	// ContentTypeMultipliers scale the devaluation strength per content
	// category. Unknown categories use CategoryGeneral.
	ContentTypeMultipliers map[ContentCategory]float64 `json:"content_type_multipliers"`
}

// SessionTimeout returns the session timeout as a time.Duration.
func (c Config) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutMs) * time.Millisecond
}

// DefaultConfig returns the default devaluation tuning.
//
// The defaults suppress an engaged view to roughly 60% of its score, let
// suppression fade over a week, and keep viral and fresh-session content
// visible enough to remain discoverable.
func DefaultConfig() Config {
	return Config{
		BaseDevaluationMultiplier:  0.4,
		MinimumRetention:           0.15,
		HighEngagementThreshold:    100,
		MaxEngagementReduction:     0.5,
		ViralVelocityThreshold:     50,
		ViralMinimumRetention:      0.7,
		NewSessionMinimumRetention: 0.5,
		SessionTimeoutMs:           (30 * time.Minute).Milliseconds(),
		DailyRecoveryRate:          0.25,
		RecoveryTimelineDays:       7,
		ViewQualityMultipliers: map[ViewQuality]float64{
			QuickScroll:        0.45,
			PartialInteraction: 0.8,
			EngagedView:        1.0,
		},
		ContentTypeMultipliers: map[ContentCategory]float64{
			CategoryGeneral:       1.0,
			CategoryNews:          0.9,
			CategoryEntertainment: 1.0,
			CategoryEducational:   0.7,
			CategoryMusic:         0.85,
		},
	}
}

// Named preset identifiers for Preset.
const (
	PresetDefault    = "default"
	PresetGentle     = "gentle"
	PresetAggressive = "aggressive"
)

// Preset returns a named configuration variant. The closed set of presets
// replaces ad hoc per-experiment overrides: "gentle" suppresses seen content
// lightly and recovers fast, "aggressive" suppresses hard and recovers slowly.
// Unknown names return the default preset and false.
func Preset(name string) (Config, bool) {
	switch name {
	case PresetDefault, "":
		return DefaultConfig(), true
	case PresetGentle:
		cfg := DefaultConfig()
		cfg.BaseDevaluationMultiplier = 0.25
		cfg.MinimumRetention = 0.25
		cfg.DailyRecoveryRate = 0.4
		cfg.RecoveryTimelineDays = 3
		return cfg, true
	case PresetAggressive:
		cfg := DefaultConfig()
		cfg.BaseDevaluationMultiplier = 0.6
		cfg.MinimumRetention = 0.1
		cfg.DailyRecoveryRate = 0.12
		cfg.RecoveryTimelineDays = 14
		return cfg, true
	default:
		return DefaultConfig(), false
	}
}

// Validate checks the configuration ranges. It returns a descriptive error
// for the first violation found; a Config that fails validation must not be
// used to construct an Engine.
func (c Config) Validate() error {
	if c.BaseDevaluationMultiplier <= 0 || c.BaseDevaluationMultiplier > 1 {
		return fmt.Errorf("base_devaluation_multiplier must be in (0, 1], got %v", c.BaseDevaluationMultiplier)
	}
	if c.MinimumRetention <= 0 || c.MinimumRetention > 1 {
		return fmt.Errorf("minimum_retention must be in (0, 1], got %v", c.MinimumRetention)
	}
	if c.MinimumRetention > c.BaseDevaluationMultiplier {
		return fmt.Errorf("minimum_retention (%v) must not exceed base_devaluation_multiplier (%v)",
			c.MinimumRetention, c.BaseDevaluationMultiplier)
	}
	if c.HighEngagementThreshold <= 0 {
		return fmt.Errorf("high_engagement_threshold must be positive, got %d", c.HighEngagementThreshold)
	}
	if c.MaxEngagementReduction <= 0 || c.MaxEngagementReduction > 1 {
		return fmt.Errorf("max_engagement_reduction must be in (0, 1], got %v", c.MaxEngagementReduction)
	}
	if c.ViralVelocityThreshold <= 0 {
		return fmt.Errorf("viral_velocity_threshold must be positive, got %v", c.ViralVelocityThreshold)
	}
	if c.ViralMinimumRetention <= 0 || c.ViralMinimumRetention > 1 {
		return fmt.Errorf("viral_minimum_retention must be in (0, 1], got %v", c.ViralMinimumRetention)
	}
	if c.NewSessionMinimumRetention <= 0 || c.NewSessionMinimumRetention > 1 {
		return fmt.Errorf("new_session_minimum_retention must be in (0, 1], got %v", c.NewSessionMinimumRetention)
	}
	if c.SessionTimeoutMs <= 0 {
		return fmt.Errorf("session_timeout_ms must be positive, got %d", c.SessionTimeoutMs)
	}
	if c.DailyRecoveryRate <= 0 || c.DailyRecoveryRate > 0.5 {
		return fmt.Errorf("daily_recovery_rate must be in (0, 0.5], got %v", c.DailyRecoveryRate)
	}
	if c.RecoveryTimelineDays <= 0 || c.RecoveryTimelineDays > 30 {
		return fmt.Errorf("recovery_timeline_days must be in (0, 30], got %v", c.RecoveryTimelineDays)
	}
	for quality, m := range c.ViewQualityMultipliers {
		if m <= 0 || m > 1 {
			return fmt.Errorf("view_quality_multipliers[%s] must be in (0, 1], got %v", quality, m)
		}
	}
	for category, m := range c.ContentTypeMultipliers {
		if m <= 0 || m > 1 {
			return fmt.Errorf("content_type_multipliers[%s] must be in (0, 1], got %v", category, m)
		}
	}
	if _, ok := c.ContentTypeMultipliers[CategoryGeneral]; !ok {
		return fmt.Errorf("content_type_multipliers must include the %q fallback category", CategoryGeneral)
	}
	return nil
}

// LoadConfig loads devaluation tuning from a JSON file, merging a partial
// override over the defaults. An unreadable, unparsable, or invalid override
// is rejected: the defaults are returned alongside the error so the caller
// can warn and continue.
func LoadConfig(filePath string) (Config, error) {
	if filePath == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read devaluation config, using defaults",
			"path", filePath,
			"error", err)
		return DefaultConfig(), fmt.Errorf("failed to read devaluation config: %w", err)
	}

	cfg, err := MergeJSON(DefaultConfig(), data)
	if err != nil {
		slog.Warn("invalid devaluation config override, using defaults",
			"path", filePath,
			"error", err)
		return DefaultConfig(), err
	}

	return cfg, nil
}

// MergeJSON applies a JSON-shaped partial override on top of base and
// validates the result. Unset fields keep their base values; map overrides
// are merged per key. The base is returned unchanged on any error.
func MergeJSON(base Config, override []byte) (Config, error) {
	var patch struct {
		BaseDevaluationMultiplier  *float64                    `json:"base_devaluation_multiplier"`
		MinimumRetention           *float64                    `json:"minimum_retention"`
		HighEngagementThreshold    *int64                      `json:"high_engagement_threshold"`
		MaxEngagementReduction     *float64                    `json:"max_engagement_reduction"`
		ViralVelocityThreshold     *float64                    `json:"viral_velocity_threshold"`
		ViralMinimumRetention      *float64                    `json:"viral_minimum_retention"`
		NewSessionMinimumRetention *float64                    `json:"new_session_minimum_retention"`
		SessionTimeoutMs           *int64                      `json:"session_timeout_ms"`
		DailyRecoveryRate          *float64                    `json:"daily_recovery_rate"`
		RecoveryTimelineDays       *float64                    `json:"recovery_timeline_days"`
		ViewQualityMultipliers     map[ViewQuality]float64     `json:"view_quality_multipliers"`
		ContentTypeMultipliers     map[ContentCategory]float64 `json:"content_type_multipliers"`
	}

	if err := json.Unmarshal(override, &patch); err != nil {
		return base, fmt.Errorf("failed to parse devaluation config: %w", err)
	}

	merged := base
	// Copy the maps so the base value stays immutable.
	merged.ViewQualityMultipliers = make(map[ViewQuality]float64, len(base.ViewQualityMultipliers))
	for k, v := range base.ViewQualityMultipliers {
		merged.ViewQualityMultipliers[k] = v
	}
	merged.ContentTypeMultipliers = make(map[ContentCategory]float64, len(base.ContentTypeMultipliers))
	for k, v := range base.ContentTypeMultipliers {
		merged.ContentTypeMultipliers[k] = v
	}

	var overrides []string
	if patch.BaseDevaluationMultiplier != nil {
		merged.BaseDevaluationMultiplier = *patch.BaseDevaluationMultiplier
		overrides = append(overrides, "base_devaluation_multiplier")
	}
	if patch.MinimumRetention != nil {
		merged.MinimumRetention = *patch.MinimumRetention
		overrides = append(overrides, "minimum_retention")
	}
	if patch.HighEngagementThreshold != nil {
		merged.HighEngagementThreshold = *patch.HighEngagementThreshold
		overrides = append(overrides, "high_engagement_threshold")
	}
	if patch.MaxEngagementReduction != nil {
		merged.MaxEngagementReduction = *patch.MaxEngagementReduction
		overrides = append(overrides, "max_engagement_reduction")
	}
	if patch.ViralVelocityThreshold != nil {
		merged.ViralVelocityThreshold = *patch.ViralVelocityThreshold
		overrides = append(overrides, "viral_velocity_threshold")
	}
	if patch.ViralMinimumRetention != nil {
		merged.ViralMinimumRetention = *patch.ViralMinimumRetention
		overrides = append(overrides, "viral_minimum_retention")
	}
	if patch.NewSessionMinimumRetention != nil {
		merged.NewSessionMinimumRetention = *patch.NewSessionMinimumRetention
		overrides = append(overrides, "new_session_minimum_retention")
	}
	if patch.SessionTimeoutMs != nil {
		merged.SessionTimeoutMs = *patch.SessionTimeoutMs
		overrides = append(overrides, "session_timeout_ms")
	}
	if patch.DailyRecoveryRate != nil {
		merged.DailyRecoveryRate = *patch.DailyRecoveryRate
		overrides = append(overrides, "daily_recovery_rate")
	}
	if patch.RecoveryTimelineDays != nil {
		merged.RecoveryTimelineDays = *patch.RecoveryTimelineDays
		overrides = append(overrides, "recovery_timeline_days")
	}
	for quality, m := range patch.ViewQualityMultipliers {
		merged.ViewQualityMultipliers[quality] = m
		overrides = append(overrides, fmt.Sprintf("view_quality_multipliers.%s", quality))
	}
	for category, m := range patch.ContentTypeMultipliers {
		merged.ContentTypeMultipliers[category] = m
		overrides = append(overrides, fmt.Sprintf("content_type_multipliers.%s", category))
	}

	if err := merged.Validate(); err != nil {
		return base, fmt.Errorf("invalid devaluation config override: %w", err)
	}

	if len(overrides) > 0 {
		slog.Info("loaded devaluation config with overrides", "overrides", overrides)
	}

	return merged, nil
}

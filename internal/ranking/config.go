package ranking

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
)

// weightSumTolerance bounds float drift when checking that weights sum to 1.
const weightSumTolerance = 1e-9

// Weights defines the blend weights for the feed ranking score. The three
// weights must sum to 1.0 so final scores stay comparable across requests
// and calibrations.
type Weights struct {
	Similarity float64 `json:"similarity"` // Weight for embedding similarity (default: 0.6)
	Recency    float64 `json:"recency"`    // Weight for content age (default: 0.25)
	Popularity float64 `json:"popularity"` // Weight for engagement volume (default: 0.15)
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"` // Config version for future compatibility
	Weights Weights `json:"weights"` // Weight configuration
}

// DefaultWeights returns the default blend weight configuration.
//
// Formula: blended = (similarity * 0.6) + (recency * 0.25) + (popularity * 0.15)
// - Similarity dominates so the feed stays personalized
// - Recency keeps the feed from fossilizing around old high-scoring content
// - Popularity is a mild global signal, deliberately the smallest weight
func DefaultWeights() *Weights {
	return &Weights{
		Similarity: 0.6,
		Recency:    0.25,
		Popularity: 0.15,
	}
}

// Validate checks that every weight is in [0, 1] and that the weights sum to
// 1.0 within floating tolerance.
func (w *Weights) Validate() error {
	for _, part := range []struct {
		name  string
		value float64
	}{
		{"similarity", w.Similarity},
		{"recency", w.Recency},
		{"popularity", w.Popularity},
	} {
		if part.value < 0 || part.value > 1 {
			return fmt.Errorf("weight %s must be in [0, 1], got %v", part.name, part.value)
		}
	}

	sum := w.Similarity + w.Recency + w.Popularity
	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("weights must sum to 1.0, got %v", sum)
	}
	return nil
}

// LoadCalibration loads blend weights from a JSON calibration file.
// Partial configurations are merged with defaults; a file that cannot be
// read, parsed, or validated yields the default weights alongside the error
// so callers can warn and continue.
func LoadCalibration(filePath string) (*Weights, error) {
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	defaults := DefaultWeights()
	merged := MergeCalibration(defaults, &config.Weights)
	if err := merged.Validate(); err != nil {
		slog.Warn("invalid calibration, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("invalid calibration: %w", err)
	}

	logCalibrationOverrides(defaults, merged)
	return merged, nil
}

// MergeCalibration merges override weights with base weights. Only non-zero
// override values are applied, which allows partial calibration files.
func MergeCalibration(base *Weights, override *Weights) *Weights {
	if base == nil {
		return DefaultWeights()
	}
	if override == nil {
		result := *base
		return &result
	}

	result := *base

	if override.Similarity != 0 {
		result.Similarity = override.Similarity
	}
	if override.Recency != 0 {
		result.Recency = override.Recency
	}
	if override.Popularity != 0 {
		result.Popularity = override.Popularity
	}

	return &result
}

// logCalibrationOverrides logs which weights were overridden from defaults.
func logCalibrationOverrides(defaults *Weights, loaded *Weights) {
	var overrides []string

	if loaded.Similarity != defaults.Similarity {
		overrides = append(overrides, fmt.Sprintf("similarity: %.2f -> %.2f",
			defaults.Similarity, loaded.Similarity))
	}
	if loaded.Recency != defaults.Recency {
		overrides = append(overrides, fmt.Sprintf("recency: %.2f -> %.2f",
			defaults.Recency, loaded.Recency))
	}
	if loaded.Popularity != defaults.Popularity {
		overrides = append(overrides, fmt.Sprintf("popularity: %.2f -> %.2f",
			defaults.Popularity, loaded.Popularity))
	}

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded ranking calibration (using all defaults)")
	}
}

package ranking

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

// TestDefaultWeightsSumToOne verifies the shipped calibration is valid.
func TestDefaultWeightsSumToOne(t *testing.T) {
	w := DefaultWeights()
	if err := w.Validate(); err != nil {
		t.Fatalf("default weights failed validation: %v", err)
	}
	sum := w.Similarity + w.Recency + w.Popularity
	if math.Abs(sum-1.0) > weightSumTolerance {
		t.Errorf("default weights sum to %v, want 1.0", sum)
	}
}

// TestWeightsValidate tests blend-weight validation.
func TestWeightsValidate(t *testing.T) {
	tests := []struct {
		name    string
		weights Weights
		wantErr bool
	}{
		{
			name:    "valid custom split",
			weights: Weights{Similarity: 0.5, Recency: 0.3, Popularity: 0.2},
		},
		{
			name:    "single weight carries everything",
			weights: Weights{Similarity: 1.0},
		},
		{
			name:    "sum below one",
			weights: Weights{Similarity: 0.5, Recency: 0.3, Popularity: 0.1},
			wantErr: true,
		},
		{
			name:    "sum above one",
			weights: Weights{Similarity: 0.6, Recency: 0.3, Popularity: 0.2},
			wantErr: true,
		},
		{
			name:    "negative weight",
			weights: Weights{Similarity: 1.2, Recency: -0.2, Popularity: 0},
			wantErr: true,
		},
		{
			name:    "weight above one",
			weights: Weights{Similarity: 1.5, Recency: 0, Popularity: -0.5},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.weights.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

// TestMergeCalibration tests partial override merging.
func TestMergeCalibration(t *testing.T) {
	t.Run("nil base falls back to defaults", func(t *testing.T) {
		merged := MergeCalibration(nil, &Weights{Similarity: 0.9})
		if merged == nil {
			t.Fatal("expected non-nil result")
		}
		if *merged != *DefaultWeights() {
			t.Errorf("expected defaults, got %+v", merged)
		}
	})

	t.Run("nil override copies base", func(t *testing.T) {
		base := DefaultWeights()
		merged := MergeCalibration(base, nil)
		if merged == base {
			t.Error("expected a copy, got the same pointer")
		}
		if *merged != *base {
			t.Errorf("expected %+v, got %+v", base, merged)
		}
	})

	t.Run("only non-zero overrides apply", func(t *testing.T) {
		merged := MergeCalibration(DefaultWeights(), &Weights{Recency: 0.4})
		if merged.Recency != 0.4 {
			t.Errorf("expected recency 0.4, got %v", merged.Recency)
		}
		if merged.Similarity != DefaultWeights().Similarity {
			t.Errorf("similarity changed unexpectedly: %v", merged.Similarity)
		}
	})
}

// TestLoadCalibration tests file loading with graceful fallback.
func TestLoadCalibration(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		w, err := LoadCalibration("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if *w != *DefaultWeights() {
			t.Errorf("expected defaults, got %+v", w)
		}
	})

	t.Run("missing file returns defaults with error", func(t *testing.T) {
		w, err := LoadCalibration(filepath.Join(t.TempDir(), "nope.json"))
		if err == nil {
			t.Fatal("expected error")
		}
		if *w != *DefaultWeights() {
			t.Errorf("expected defaults on failure, got %+v", w)
		}
	})

	t.Run("valid full calibration applies", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "calibration.json")
		payload := `{"version":"1","weights":{"similarity":0.5,"recency":0.3,"popularity":0.2}}`
		if err := os.WriteFile(path, []byte(payload), 0o600); err != nil {
			t.Fatal(err)
		}

		w, err := LoadCalibration(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if w.Similarity != 0.5 || w.Recency != 0.3 || w.Popularity != 0.2 {
			t.Errorf("calibration not applied: %+v", w)
		}
	})

	t.Run("calibration breaking the weight sum is rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "calibration.json")
		payload := `{"version":"1","weights":{"similarity":0.9}}`
		if err := os.WriteFile(path, []byte(payload), 0o600); err != nil {
			t.Fatal(err)
		}

		w, err := LoadCalibration(path)
		if err == nil {
			t.Fatal("expected validation error")
		}
		if *w != *DefaultWeights() {
			t.Errorf("expected defaults on invalid calibration, got %+v", w)
		}
	})

	t.Run("malformed json returns defaults with error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "calibration.json")
		if err := os.WriteFile(path, []byte("{broken"), 0o600); err != nil {
			t.Fatal(err)
		}

		w, err := LoadCalibration(path)
		if err == nil {
			t.Fatal("expected parse error")
		}
		if *w != *DefaultWeights() {
			t.Errorf("expected defaults on parse failure, got %+v", w)
		}
	})
}

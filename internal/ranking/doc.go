// Package ranking turns candidate embeddings and engagement signals into an
// ordered, personalized feed page.
//
// Basic Usage:
//
//	// Load calibration (typically at startup)
//	weights, err := ranking.LoadCalibration("configs/ranking.calibration.json")
//	if err != nil {
//		log.Warn("using default weights", "error", err)
//	}
//
//	engine, err := devaluation.NewEngine(devaluation.DefaultConfig())
//	if err != nil {
//		log.Fatal("invalid devaluation config", "error", err)
//	}
//
//	pipeline, err := ranking.NewPipeline(ranking.PipelineConfig{
//		Weights: weights,
//		Engine:  engine,
//	})
//	result, err := pipeline.Rank(ctx, ranking.Request{
//		UserID:     "user-1",
//		UserVector: userEmbedding,
//		Candidates: candidates,
//		Seen:       seenHistory,
//		Session:    sessionInfo,
//		Limit:      20,
//	})
//
// Scoring:
//
// Each candidate's blended score combines embedding similarity, recency, and
// popularity under calibrated weights that sum to 1.0. Candidates the user
// has already seen are then scaled by a retention multiplier from the
// devaluation engine; never-seen candidates keep their blended score
// unchanged. The final ordering is stable: equal scores keep candidate
// insertion order.
//
// Calibration:
//
// The calibration system allows deploy-time tuning of the blend weights via
// JSON configuration files loaded at startup. Partial files merge over the
// defaults, and a file that fails validation falls back to the defaults with
// a warning, so a bad deploy never takes ranking down.
package ranking

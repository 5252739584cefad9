// Package feed assembles ranking inputs from data sources and runs the
// pipeline for a user. It owns session resolution and seen-history bookkeeping
// so the ranking package can stay pure.
package feed

import (
	"context"
	"time"

	"github.com/lucentfeed/lucent/internal/devaluation"
	"github.com/lucentfeed/lucent/internal/ranking"
)

// VectorSource supplies user taste vectors.
type VectorSource interface {
	// UserVector returns the user's embedding, or nil when the user has no
	// profile yet (cold start).
	UserVector(ctx context.Context, userID string) ([]float32, error)
}

// CandidateSource supplies the candidate pool for one ranking pass.
type CandidateSource interface {
	Candidates(ctx context.Context, userID string) ([]ranking.Candidate, error)
}

// HistorySource supplies the user's seen-content history.
type HistorySource interface {
	// SeenRecords returns view records keyed by candidate ID. Candidates not
	// in the map have never been seen by this user.
	SeenRecords(ctx context.Context, userID string) (map[string]devaluation.ViewRecord, error)

	// RecordView upserts a view record. LastSeenAt always moves forward:
	// a replay of an older event must not rewind the record.
	RecordView(ctx context.Context, userID string, record devaluation.ViewRecord) error
}

// StatsSource supplies engagement stats for candidates.
type StatsSource interface {
	// Stats returns engagement stats keyed by candidate ID. Missing entries
	// fall back to zero stats (no engagement adjustment).
	Stats(ctx context.Context, candidateIDs []string) (map[string]devaluation.EngagementStats, error)
}

// View is one consumption event reported by a client.
type View struct {
	CandidateID string                  `json:"candidate_id"`
	Quality     devaluation.ViewQuality `json:"quality"`
	ViewedAt    time.Time               `json:"viewed_at"`
}

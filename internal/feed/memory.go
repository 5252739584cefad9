package feed

import (
	"context"
	"sync"

	"github.com/lucentfeed/lucent/internal/devaluation"
	"github.com/lucentfeed/lucent/internal/ranking"
)

// InMemoryVectorSource is a thread-safe in-memory VectorSource for tests and
// single-process deployments.
type InMemoryVectorSource struct {
	mu      sync.RWMutex
	vectors map[string][]float32
}

// NewInMemoryVectorSource creates an empty in-memory vector source.
func NewInMemoryVectorSource() *InMemoryVectorSource {
	return &InMemoryVectorSource{vectors: make(map[string][]float32)}
}

// SetVector stores a user's embedding.
func (s *InMemoryVectorSource) SetVector(userID string, vector []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]float32, len(vector))
	copy(copied, vector)
	s.vectors[userID] = copied
}

// UserVector returns the user's embedding, or nil when absent.
func (s *InMemoryVectorSource) UserVector(_ context.Context, userID string) ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vector, ok := s.vectors[userID]
	if !ok {
		return nil, nil
	}
	copied := make([]float32, len(vector))
	copy(copied, vector)
	return copied, nil
}

// InMemoryCandidateSource is a thread-safe in-memory CandidateSource.
// It serves the same pool to every user.
type InMemoryCandidateSource struct {
	mu         sync.RWMutex
	candidates []ranking.Candidate
}

// NewInMemoryCandidateSource creates an empty in-memory candidate source.
func NewInMemoryCandidateSource() *InMemoryCandidateSource {
	return &InMemoryCandidateSource{}
}

// Add appends candidates to the pool.
func (s *InMemoryCandidateSource) Add(candidates ...ranking.Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.candidates = append(s.candidates, candidates...)
}

// Candidates returns a copy of the current pool.
func (s *InMemoryCandidateSource) Candidates(_ context.Context, _ string) ([]ranking.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make([]ranking.Candidate, len(s.candidates))
	copy(copied, s.candidates)
	return copied, nil
}

// InMemoryHistorySource is a thread-safe in-memory HistorySource.
type InMemoryHistorySource struct {
	mu      sync.RWMutex
	records map[string]map[string]devaluation.ViewRecord
}

// NewInMemoryHistorySource creates an empty in-memory history source.
func NewInMemoryHistorySource() *InMemoryHistorySource {
	return &InMemoryHistorySource{records: make(map[string]map[string]devaluation.ViewRecord)}
}

// SeenRecords returns a copy of the user's view records.
func (s *InMemoryHistorySource) SeenRecords(_ context.Context, userID string) (map[string]devaluation.ViewRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.records[userID]
	if !ok {
		return map[string]devaluation.ViewRecord{}, nil
	}
	copied := make(map[string]devaluation.ViewRecord, len(user))
	for id, record := range user {
		copied[id] = record
	}
	return copied, nil
}

// RecordView upserts a view record, keeping the newest LastSeenAt.
func (s *InMemoryHistorySource) RecordView(_ context.Context, userID string, record devaluation.ViewRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.records[userID]
	if !ok {
		user = make(map[string]devaluation.ViewRecord)
		s.records[userID] = user
	}

	existing, ok := user[record.CandidateID]
	if ok && existing.LastSeenAt.After(record.LastSeenAt) {
		// Out-of-order replay; keep the newer record.
		return nil
	}
	user[record.CandidateID] = record
	return nil
}

// InMemoryStatsSource is a thread-safe in-memory StatsSource.
type InMemoryStatsSource struct {
	mu    sync.RWMutex
	stats map[string]devaluation.EngagementStats
}

// NewInMemoryStatsSource creates an empty in-memory stats source.
func NewInMemoryStatsSource() *InMemoryStatsSource {
	return &InMemoryStatsSource{stats: make(map[string]devaluation.EngagementStats)}
}

// SetStats stores engagement stats for a candidate.
func (s *InMemoryStatsSource) SetStats(candidateID string, stats devaluation.EngagementStats) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats[candidateID] = stats
}

// Stats returns stats for the requested candidates. Missing IDs are omitted.
func (s *InMemoryStatsSource) Stats(_ context.Context, candidateIDs []string) (map[string]devaluation.EngagementStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]devaluation.EngagementStats, len(candidateIDs))
	for _, id := range candidateIDs {
		if stats, ok := s.stats[id]; ok {
			out[id] = stats
		}
	}
	return out, nil
}

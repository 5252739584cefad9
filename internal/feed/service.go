package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lucentfeed/lucent/internal/devaluation"
	"github.com/lucentfeed/lucent/internal/metrics"
	"github.com/lucentfeed/lucent/internal/ranking"
	"github.com/lucentfeed/lucent/internal/session"
	"github.com/lucentfeed/lucent/internal/tracing"
)

// ErrMissingUserID is returned when a request has no user ID.
var ErrMissingUserID = errors.New("user_id is required")

// ErrInvalidView wraps validation failures for reported view events.
var ErrInvalidView = errors.New("invalid view")

// ServiceConfig wires the feed service's dependencies.
type ServiceConfig struct {
	Pipeline   *ranking.Pipeline
	Vectors    VectorSource
	Candidates CandidateSource
	History    HistorySource
	Stats      StatsSource
	Sessions   session.Store

	// SessionTimeout is the inactivity gap that starts a new session.
	// Defaults to session.DefaultTimeout when zero.
	SessionTimeout time.Duration

	Metrics *metrics.Metrics
	Logger  *slog.Logger

	// Now is injectable for tests. Defaults to time.Now.
	Now func() time.Time
}

// Service materializes ranking inputs from its sources, resolves the user's
// session, and runs the pipeline.
type Service struct {
	pipeline       *ranking.Pipeline
	vectors        VectorSource
	candidates     CandidateSource
	history        HistorySource
	stats          StatsSource
	sessions       session.Store
	sessionTimeout time.Duration
	metrics        *metrics.Metrics
	logger         *slog.Logger
	now            func() time.Time
}

// NewService constructs a feed service. Pipeline, Vectors, Candidates,
// History, Stats, and Sessions are all required.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Pipeline == nil {
		return nil, errors.New("pipeline is required")
	}
	if cfg.Vectors == nil || cfg.Candidates == nil || cfg.History == nil || cfg.Stats == nil {
		return nil, errors.New("all data sources are required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session store is required")
	}

	timeout := cfg.SessionTimeout
	if timeout <= 0 {
		timeout = session.DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		pipeline:       cfg.Pipeline,
		vectors:        cfg.Vectors,
		candidates:     cfg.Candidates,
		history:        cfg.History,
		stats:          cfg.Stats,
		sessions:       cfg.Sessions,
		sessionTimeout: timeout,
		metrics:        cfg.Metrics,
		logger:         logger,
		now:            now,
	}, nil
}

// RankParams identifies one feed request.
type RankParams struct {
	UserID string
	Limit  int
	Cursor string
}

// RankResponse is one ranked feed page plus the session it was ranked under.
type RankResponse struct {
	Candidates      []ranking.ScoredCandidate `json:"candidates"`
	NextCursor      string                    `json:"next_cursor,omitempty"`
	Dropped         []string                  `json:"dropped,omitempty"`
	ServedFromCache bool                      `json:"served_from_cache"`
	Session         session.Info              `json:"session"`
}

// Rank fetches the user's vector, candidate pool, engagement stats, and seen
// history, resolves the session, and runs one pipeline pass.
func (s *Service) Rank(ctx context.Context, params RankParams) (*RankResponse, error) {
	if params.UserID == "" {
		return nil, ErrMissingUserID
	}
	now := s.now()

	sess, err := s.resolveSession(ctx, params.UserID, now)
	if err != nil {
		return nil, err
	}

	userVector, err := s.fetchVector(ctx, params.UserID)
	if err != nil {
		return nil, err
	}

	// Cold start: without a taste vector there is nothing to rank against.
	if len(userVector) == 0 {
		s.logger.Info("no user vector, returning empty feed", "user_id", params.UserID)
		return &RankResponse{Session: sess}, nil
	}

	candidates, err := s.fetchCandidates(ctx, params.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.attachStats(ctx, candidates); err != nil {
		return nil, err
	}

	seen, err := s.fetchHistory(ctx, params.UserID)
	if err != nil {
		return nil, err
	}

	result, err := s.pipeline.Rank(ctx, ranking.Request{
		UserID:     params.UserID,
		UserVector: userVector,
		Candidates: candidates,
		Seen:       seen,
		Session:    sess,
		Limit:      params.Limit,
		Cursor:     params.Cursor,
		Now:        now,
	})
	if err != nil {
		return nil, err
	}

	return &RankResponse{
		Candidates:      result.Candidates,
		NextCursor:      result.NextCursor,
		Dropped:         result.Dropped,
		ServedFromCache: result.ServedFromCache,
		Session:         sess,
	}, nil
}

// RecordView records one consumption event for devaluation on later passes.
// A zero ViewedAt defaults to the current time.
func (s *Service) RecordView(ctx context.Context, userID string, view View) error {
	if userID == "" {
		return ErrMissingUserID
	}
	if err := validateView(view); err != nil {
		return err
	}
	return s.recordView(ctx, userID, view)
}

// RecordViews records a batch of consumption events. The whole batch is
// validated up front: a single bad event rejects the batch before anything
// is written, so callers never end up with a silently recorded prefix.
func (s *Service) RecordViews(ctx context.Context, userID string, views []View) error {
	if userID == "" {
		return ErrMissingUserID
	}
	for i, view := range views {
		if err := validateView(view); err != nil {
			return fmt.Errorf("view %d: %w", i, err)
		}
	}
	for _, view := range views {
		if err := s.recordView(ctx, userID, view); err != nil {
			return err
		}
	}
	return nil
}

func validateView(view View) error {
	if view.CandidateID == "" {
		return fmt.Errorf("%w: candidate_id is required", ErrInvalidView)
	}
	switch view.Quality {
	case devaluation.QuickScroll, devaluation.PartialInteraction, devaluation.EngagedView:
	default:
		return fmt.Errorf("%w: unknown view quality %q", ErrInvalidView, view.Quality)
	}
	return nil
}

func (s *Service) recordView(ctx context.Context, userID string, view View) error {
	viewedAt := view.ViewedAt
	if viewedAt.IsZero() {
		viewedAt = s.now()
	}

	return s.history.RecordView(ctx, userID, devaluation.ViewRecord{
		CandidateID: view.CandidateID,
		LastSeenAt:  viewedAt,
		Quality:     view.Quality,
	})
}

// resolveSession runs the session state machine and persists the outcome.
func (s *Service) resolveSession(ctx context.Context, userID string, now time.Time) (session.Info, error) {
	prior, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return session.Info{}, fmt.Errorf("failed to read session: %w", err)
	}

	sess := session.Resolve(prior, now, s.sessionTimeout)
	if err := s.sessions.Put(ctx, userID, sess); err != nil {
		return session.Info{}, fmt.Errorf("failed to store session: %w", err)
	}

	if s.metrics != nil {
		outcome := "continuing"
		if sess.IsNewSession {
			outcome = "new"
		}
		s.metrics.IncSessionResolved(outcome)
	}
	return sess, nil
}

func (s *Service) fetchVector(ctx context.Context, userID string) ([]float32, error) {
	ctx, endSpan := tracing.StartSourceSpan(ctx, "user_vector")
	vector, err := s.vectors.UserVector(ctx, userID)
	endSpan(err)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user vector: %w", err)
	}
	return vector, nil
}

func (s *Service) fetchCandidates(ctx context.Context, userID string) ([]ranking.Candidate, error) {
	ctx, endSpan := tracing.StartSourceSpan(ctx, "candidates")
	candidates, err := s.candidates.Candidates(ctx, userID)
	endSpan(err)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidates: %w", err)
	}
	return candidates, nil
}

// attachStats fills each candidate's engagement stats in place. Candidates
// without stats keep the zero value, which the engine treats as no engagement.
func (s *Service) attachStats(ctx context.Context, candidates []ranking.Candidate) error {
	if len(candidates) == 0 {
		return nil
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}

	ctx, endSpan := tracing.StartSourceSpan(ctx, "engagement_stats")
	stats, err := s.stats.Stats(ctx, ids)
	endSpan(err)
	if err != nil {
		return fmt.Errorf("failed to fetch engagement stats: %w", err)
	}

	for i := range candidates {
		if st, ok := stats[candidates[i].ID]; ok {
			candidates[i].Stats = st
		}
	}
	return nil
}

func (s *Service) fetchHistory(ctx context.Context, userID string) (map[string]devaluation.ViewRecord, error) {
	ctx, endSpan := tracing.StartSourceSpan(ctx, "seen_history")
	seen, err := s.history.SeenRecords(ctx, userID)
	endSpan(err)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch seen history: %w", err)
	}
	return seen, nil
}

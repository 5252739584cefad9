package ranking

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/lucentfeed/lucent/internal/cache"
	"github.com/lucentfeed/lucent/internal/devaluation"
	"github.com/lucentfeed/lucent/internal/metrics"
	"github.com/lucentfeed/lucent/internal/session"
	"github.com/lucentfeed/lucent/internal/tracing"
	"github.com/lucentfeed/lucent/internal/vectormath"
)

// Pagination defaults.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Default tuning for optional pipeline knobs.
const (
	DefaultRecencyHalfLife = 24 * time.Hour
	DefaultCacheTTL        = time.Minute
)

// Candidate is one rankable content item with its borrowed embedding and
// engagement aggregates, materialized by the caller before ranking begins.
type Candidate struct {
	ID        string
	Vector    []float32
	CreatedAt time.Time
	Stats     devaluation.EngagementStats
}

// Request carries every input for one ranking pass. The pipeline performs no
// I/O of its own: vectors, stats, and seen-history arrive already fetched.
type Request struct {
	// UserID namespaces cache entries; it is not used for scoring.
	UserID string

	// UserVector is the requesting user's taste embedding.
	UserVector []float32

	// Candidates is the eligible content set, in vector-index order.
	// That order is the stable tie-break for equal final scores.
	Candidates []Candidate

	// Seen maps candidate IDs to the user's seen-history records.
	// Candidates absent from the map are never devalued.
	Seen map[string]devaluation.ViewRecord

	// Session is the resolved viewing session for this request.
	Session session.Info

	// Limit is the page size; 0 means DefaultPageSize, and values above
	// MaxPageSize are capped.
	Limit int

	// Cursor continues a previous ranking pass. An empty, malformed, or
	// stale cursor starts from the top.
	Cursor string

	// Now is the evaluation time; the zero value means time.Now().
	Now time.Time
}

// ScoredCandidate is one ranked entry, ephemeral to a single request.
type ScoredCandidate struct {
	CandidateID         string  `json:"candidate_id" cbor:"1,keyasint"`
	RawSimilarity       float64 `json:"raw_similarity" cbor:"2,keyasint"`
	BlendedScore        float64 `json:"blended_score" cbor:"3,keyasint"`
	RetentionMultiplier float64 `json:"retention_multiplier" cbor:"4,keyasint"`
	FinalScore          float64 `json:"final_score" cbor:"5,keyasint"`
}

// Result is one page of a ranked feed.
type Result struct {
	// Candidates is the page, ordered by final score descending.
	Candidates []ScoredCandidate

	// NextCursor continues to the following page; empty when exhausted.
	NextCursor string

	// Dropped lists candidate IDs excluded from this pass (currently only
	// dimension mismatches). Empty on cache hits, which reuse a pass that
	// already excluded them.
	Dropped []string

	// ServedFromCache is true when the ranked list was reused from the
	// score cache rather than recomputed.
	ServedFromCache bool
}

// PipelineConfig assembles a Pipeline. Weights and Engine are required;
// everything else has a working default.
type PipelineConfig struct {
	Weights *Weights
	Engine  *devaluation.Engine

	// Cache holds ranked lists between pages of one logical request.
	// Nil disables caching; every page then recomputes the ranking.
	Cache cache.Cache

	// Metrics receives pipeline observability. Nil disables it.
	Metrics *metrics.Metrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// RecencyHalfLife tunes the freshness decay (default 24h).
	RecencyHalfLife time.Duration

	// CacheTTL bounds how long a ranked list may serve pages (default 1m).
	CacheTTL time.Duration
}

// Pipeline orchestrates one ranking pass: similarity, blending, devaluation,
// stable sort, pagination. A Pipeline is immutable after construction and
// safe for concurrent use; independent requests share no mutable state.
type Pipeline struct {
	weights         *Weights
	engine          *devaluation.Engine
	cache           cache.Cache
	metrics         *metrics.Metrics
	logger          *slog.Logger
	recencyHalfLife time.Duration
	cacheTTL        time.Duration
}

// NewPipeline validates the configuration and constructs a Pipeline.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("devaluation engine is required")
	}
	if cfg.Weights == nil {
		cfg.Weights = DefaultWeights()
	}
	if err := cfg.Weights.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ranking weights: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RecencyHalfLife <= 0 {
		cfg.RecencyHalfLife = DefaultRecencyHalfLife
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}

	return &Pipeline{
		weights:         cfg.Weights,
		engine:          cfg.Engine,
		cache:           cfg.Cache,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
		recencyHalfLife: cfg.RecencyHalfLife,
		cacheTTL:        cfg.CacheTTL,
	}, nil
}

// Rank produces one page of the ranked feed for the request. An empty
// candidate set is not an error and yields an empty page. Candidates whose
// vectors do not match the user vector's dimension are dropped from the pass
// with a diagnostic; everything else degrades to documented fallbacks, so
// Rank itself only fails on a nil receiver misuse, never on partial data.
//
// Pages come from a ranked list frozen when it was first computed: views
// recorded after that point do not reorder results until the cached list
// expires (CacheTTL, default one minute).
func (p *Pipeline) Rank(ctx context.Context, req Request) (*Result, error) {
	ctx, endSpan := tracing.StartRankSpan(ctx, len(req.Candidates))
	defer endSpan(nil)

	if len(req.Candidates) == 0 {
		return &Result{}, nil
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	} else if limit > MaxPageSize {
		limit = MaxPageSize
	}

	start := time.Now()
	fp := fingerprint(req, p.weights)

	var (
		ranked          []ScoredCandidate
		dropped         []string
		servedFromCache bool
	)

	cacheKey := cache.Key(req.UserID, "feed", fp)
	if p.cache == nil {
		ranked, dropped = p.score(req, now)
	} else {
		// The loader never fails; cache backend errors degrade to a
		// recompute inside GetOrLoad.
		ranked, servedFromCache, _ = cache.GetOrLoad(ctx, p.cache, cacheKey, p.cacheTTL,
			func() ([]ScoredCandidate, error) {
				var scored []ScoredCandidate
				scored, dropped = p.score(req, now)
				return scored, nil
			})
	}

	if len(dropped) > 0 {
		p.logger.Warn("dropped candidates with mismatched vector dimensions",
			"user_id", req.UserID,
			"count", len(dropped),
			"candidate_ids", dropped)
	}
	if p.metrics != nil {
		p.metrics.ObserveRank(len(req.Candidates), time.Since(start).Seconds())
		p.metrics.IncCandidatesDropped("dimension_mismatch", len(dropped))
	}

	offset := 0
	if req.Cursor != "" {
		cur, err := decodeCursor(req.Cursor)
		switch {
		case err != nil:
			p.logger.Warn("ignoring malformed feed cursor",
				"user_id", req.UserID,
				"error", err)
		case cur.Fingerprint != fp:
			// Stale cursor from a previous pass; restart from the top.
			p.logger.Debug("feed cursor fingerprint mismatch, restarting",
				"user_id", req.UserID)
		default:
			offset = cur.Offset
		}
	}

	if offset > len(ranked) {
		offset = len(ranked)
	}
	end := offset + limit
	if end > len(ranked) {
		end = len(ranked)
	}

	result := &Result{
		Candidates:      ranked[offset:end],
		Dropped:         dropped,
		ServedFromCache: servedFromCache,
	}
	if end < len(ranked) {
		result.NextCursor = encodeCursor(pageCursor{Fingerprint: fp, Offset: end})
	}

	return result, nil
}

// score runs the full scoring pass: similarity for every candidate, blend,
// devaluation, stable sort.
func (p *Pipeline) score(req Request, now time.Time) ([]ScoredCandidate, []string) {
	// The batched kernel scores everything in one pass and reports
	// dimension mismatches for us.
	vmCandidates := make([]vectormath.Candidate, len(req.Candidates))
	for i, c := range req.Candidates {
		vmCandidates[i] = vectormath.Candidate{ID: c.ID, Vector: c.Vector}
	}
	similar, droppedIDs := vectormath.TopK(req.UserVector, vmCandidates, len(vmCandidates))

	similarity := make(map[string]float64, len(similar))
	for _, s := range similar {
		similarity[s.ID] = s.Score
	}
	droppedSet := make(map[string]struct{}, len(droppedIDs))
	for _, id := range droppedIDs {
		droppedSet[id] = struct{}{}
	}

	// Iterate the original candidate order so the stable sort below breaks
	// score ties by insertion order.
	ranked := make([]ScoredCandidate, 0, len(req.Candidates))
	for _, c := range req.Candidates {
		if _, isDropped := droppedSet[c.ID]; isDropped {
			continue
		}
		sim, ok := similarity[c.ID]
		if !ok {
			continue
		}

		blended := BlendedScore(BlendParams{
			Similarity: sim,
			Recency:    RecencyScore(c.CreatedAt, now, p.recencyHalfLife),
			Popularity: PopularityScore(c.Stats.TotalInteractions),
		}, p.weights)

		retention := 1.0
		if view, seen := req.Seen[c.ID]; seen {
			retention = p.engine.RetentionMultiplier(devaluation.Input{
				View:       view,
				Stats:      c.Stats,
				NewSession: req.Session.IsNewSession,
				Now:        now,
			})
		}

		ranked = append(ranked, ScoredCandidate{
			CandidateID:         c.ID,
			RawSimilarity:       sim,
			BlendedScore:        blended,
			RetentionMultiplier: retention,
			FinalScore:          blended * retention,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].FinalScore > ranked[j].FinalScore
	})

	return ranked, droppedIDs
}

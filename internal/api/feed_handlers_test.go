package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lucentfeed/lucent/internal/devaluation"
	"github.com/lucentfeed/lucent/internal/feed"
	"github.com/lucentfeed/lucent/internal/ranking"
	"github.com/lucentfeed/lucent/internal/session"
)

var apiNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*feed.Service, *feed.InMemoryVectorSource, *feed.InMemoryCandidateSource, *feed.InMemoryHistorySource) {
	t.Helper()

	engine, err := devaluation.NewEngine(devaluation.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	pipeline, err := ranking.NewPipeline(ranking.PipelineConfig{Engine: engine})
	if err != nil {
		t.Fatal(err)
	}

	vectors := feed.NewInMemoryVectorSource()
	candidates := feed.NewInMemoryCandidateSource()
	history := feed.NewInMemoryHistorySource()

	service, err := feed.NewService(feed.ServiceConfig{
		Pipeline:   pipeline,
		Vectors:    vectors,
		Candidates: candidates,
		History:    history,
		Stats:      feed.NewInMemoryStatsSource(),
		Sessions:   session.NewMemoryStore(),
		Now:        func() time.Time { return apiNow },
	})
	if err != nil {
		t.Fatal(err)
	}
	return service, vectors, candidates, history
}

func TestRankHandler(t *testing.T) {
	service, vectors, candidates, _ := newTestService(t)
	vectors.SetVector("u", []float32{1, 0})
	candidates.Add(
		ranking.Candidate{ID: "aligned", Vector: []float32{1, 0}, CreatedAt: apiNow},
		ranking.Candidate{ID: "orthogonal", Vector: []float32{0, 1}, CreatedAt: apiNow},
	)
	handlers := NewFeedHandlers(service, nil)

	t.Run("method not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/feed/rank", nil)
		rr := httptest.NewRecorder()
		handlers.Rank(rr, req)

		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rr.Code)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/feed/rank", strings.NewReader("{broken"))
		rr := httptest.NewRecorder()
		handlers.Rank(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
		var errResp ErrorResponse
		if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
			t.Fatalf("error body is not JSON: %v", err)
		}
		if errResp.Error.Code != ErrCodeBadRequest {
			t.Errorf("expected %s, got %s", ErrCodeBadRequest, errResp.Error.Code)
		}
	})

	t.Run("missing user_id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/feed/rank", strings.NewReader(`{"limit":10}`))
		rr := httptest.NewRecorder()
		handlers.Rank(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("negative limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/feed/rank", strings.NewReader(`{"user_id":"u","limit":-1}`))
		rr := httptest.NewRecorder()
		handlers.Rank(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("ranked page", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/feed/rank", strings.NewReader(`{"user_id":"u"}`))
		rr := httptest.NewRecorder()
		handlers.Rank(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp feed.RankResponse
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(resp.Candidates) != 2 {
			t.Fatalf("expected 2 candidates, got %d", len(resp.Candidates))
		}
		if resp.Candidates[0].CandidateID != "aligned" {
			t.Errorf("expected aligned first, got %s", resp.Candidates[0].CandidateID)
		}
		if resp.Session.SessionID == "" {
			t.Error("expected a session in the response")
		}
	})
}

func TestViewsHandler(t *testing.T) {
	service, _, _, history := newTestService(t)
	handlers := NewFeedHandlers(service, nil)

	t.Run("records batch", func(t *testing.T) {
		body := `{"user_id":"u","views":[
			{"candidate_id":"a","quality":"engaged_view"},
			{"candidate_id":"b","quality":"quick_scroll"}
		]}`
		req := httptest.NewRequest(http.MethodPost, "/v1/feed/views", strings.NewReader(body))
		rr := httptest.NewRecorder()
		handlers.Views(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp ViewsResponse
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if resp.Recorded != 2 {
			t.Errorf("expected 2 recorded, got %d", resp.Recorded)
		}
	})

	t.Run("rejects unknown quality", func(t *testing.T) {
		body := `{"user_id":"u","views":[{"candidate_id":"a","quality":"binge"}]}`
		req := httptest.NewRequest(http.MethodPost, "/v1/feed/views", strings.NewReader(body))
		rr := httptest.NewRecorder()
		handlers.Views(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("invalid event rejects whole batch", func(t *testing.T) {
		body := `{"user_id":"u2","views":[
			{"candidate_id":"a","quality":"engaged_view"},
			{"candidate_id":"b","quality":"binge"}
		]}`
		req := httptest.NewRequest(http.MethodPost, "/v1/feed/views", strings.NewReader(body))
		rr := httptest.NewRecorder()
		handlers.Views(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}

		// The valid first event must not have been recorded.
		records, err := history.SeenRecords(context.Background(), "u2")
		if err != nil {
			t.Fatal(err)
		}
		if len(records) != 0 {
			t.Errorf("rejected batch must record nothing, got %d records", len(records))
		}
	})

	t.Run("rejects empty batch", func(t *testing.T) {
		body := `{"user_id":"u","views":[]}`
		req := httptest.NewRequest(http.MethodPost, "/v1/feed/views", strings.NewReader(body))
		rr := httptest.NewRecorder()
		handlers.Views(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})
}

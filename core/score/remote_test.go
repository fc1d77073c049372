package score

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/feaslabs/feasly/core/model"
	"github.com/feaslabs/feasly/infra/logger"
)

func TestRemoteStrategy_Success(t *testing.T) {
	var gotParam string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p struct {
			Parameter string `json:"parameter"`
		}
		_ = json.NewDecoder(r.Body).Decode(&p)
		gotParam = p.Parameter
		_ = json.NewEncoder(w).Encode(map[string]any{
			"score": 120.0, "confidence": 0.9, "rationale": "strong pull",
		})
	}))
	defer srv.Close()

	rs := NewRemoteStrategy(RemoteConfig{URL: srv.URL, TimeoutSeconds: 2}, MarketStrategy{}, logger.NopLogger{})
	res := rs.Score(context.Background(), "t", plausibleSummary)
	if gotParam != "market" {
		t.Errorf("remote parameter = %q, want market", gotParam)
	}
	if res.Score != 100 {
		t.Errorf("score = %v, want clamp to 100", res.Score)
	}
	if res.Confidence != 0.9 || res.Rationale != "strong pull" {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.Dimension != model.DimMarket {
		t.Errorf("dimension = %s, want market", res.Dimension)
	}
}

func TestRemoteStrategy_FallbackOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	rs := NewRemoteStrategy(RemoteConfig{URL: srv.URL, TimeoutSeconds: 2}, TechStrategy{}, logger.NopLogger{})
	res := rs.Score(context.Background(), "t", plausibleSummary)
	if want := QuickScore(plausibleSummary, 5); res.Score != want {
		t.Errorf("fallback score = %v, want heuristic %v", res.Score, want)
	}
}

func TestRemoteStrategy_KeywordGateSkipsRemote(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		_ = json.NewEncoder(w).Encode(map[string]any{"score": 99.0, "confidence": 1.0})
	}))
	defer srv.Close()

	rs := NewRemoteStrategy(RemoteConfig{URL: srv.URL, TimeoutSeconds: 2}, TechStrategy{}, logger.NopLogger{})
	res := rs.Score(context.Background(), "t", gatedSummary())
	if called {
		t.Error("remote endpoint must not be consulted for gated summaries")
	}
	if res.Score != 5 {
		t.Errorf("score = %v, want gated constant 5", res.Score)
	}
}

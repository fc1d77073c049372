// Package feasibility exposes the synchronous HTTP boundary: POST
// /feasibility blocks on the gateway until an aggregate or a timeout, GET
// /health reports readiness. Only two failure modes are user-visible:
// rejected invalid input and a gateway timeout.
package feasibility

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/feaslabs/feasly/core/logger"
	"github.com/feaslabs/feasly/core/model"
	"github.com/feaslabs/feasly/gateway"
)

// Options configures the HTTP handler.
type Options struct {
	Threshold           float64
	MaxBodyBytes        int64
	AllowOrigins        string
	OrchestratorTimeout time.Duration
	SpecialistBudget    time.Duration
}

// Handler serves the feasibility API.
type Handler struct {
	gw   *gateway.Gateway
	opts Options
	log  logger.Logger
}

// New creates the handler.
func New(gw *gateway.Gateway, opts Options, log logger.Logger) *Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 65536
	}
	if opts.AllowOrigins == "" {
		opts.AllowOrigins = "*"
	}
	return &Handler{gw: gw, opts: opts, log: log}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("/feasibility", h.cors(http.HandlerFunc(h.handleScore)))
	mux.Handle("/health", h.cors(http.HandlerFunc(h.handleHealth)))
}

func (h *Handler) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", h.opts.AllowOrigins)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type scoreRequest struct {
	Title   string                      `json:"title"`
	Summary string                      `json:"summary"`
	Weights map[model.Dimension]float64 `json:"weights,omitempty"`
}

type breakdownEntry struct {
	Parameter  string  `json:"parameter"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

type scoreResponse struct {
	RequestID string `json:"request_id"`
	Aggregate struct {
		Overall         float64 `json:"overall"`
		Threshold       float64 `json:"threshold"`
		PassesThreshold bool    `json:"passes_threshold"`
		Partial         bool    `json:"partial"`
	} `json:"aggregate"`
	Breakdown []breakdownEntry `json:"breakdown"`
	Input     struct {
		Title   string `json:"title"`
		Summary string `json:"summary"`
	} `json:"input"`
}

func (h *Handler) handleScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	if !h.gw.Ready() {
		writeError(w, http.StatusServiceUnavailable, "scoring loop not ready, try again in a moment", requestID)
		return
	}
	if r.ContentLength > h.opts.MaxBodyBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large", requestID)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes)

	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large", requestID)
			return
		}
		writeError(w, http.StatusBadRequest, "expected application/json body", requestID)
		return
	}
	// Empty title/summary is also rejected by the orchestrator; checking here
	// gives the caller a 400 instead of a zero-score aggregate.
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Summary) == "" {
		writeError(w, http.StatusBadRequest, "both 'title' and 'summary' are required", requestID)
		return
	}

	agg, err := h.gw.Score(r.Context(), requestID, req.Title, req.Summary, req.Weights)
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrNotReady):
			writeError(w, http.StatusServiceUnavailable, "scoring loop not ready, try again in a moment", requestID)
		case errors.Is(err, gateway.ErrTimeout):
			writeError(w, http.StatusGatewayTimeout, "timed out waiting for scoring result", requestID)
		default:
			writeError(w, http.StatusGatewayTimeout, err.Error(), requestID)
		}
		return
	}

	var resp scoreResponse
	resp.RequestID = requestID
	resp.Aggregate.Overall = round1(agg.Overall)
	resp.Aggregate.Threshold = h.opts.Threshold
	// Pass/fail uses the raw score; rounding is display-only.
	resp.Aggregate.PassesThreshold = agg.Overall >= h.opts.Threshold
	resp.Aggregate.Partial = agg.Partial
	resp.Breakdown = make([]breakdownEntry, 0, len(agg.Breakdown))
	for _, b := range agg.Breakdown {
		resp.Breakdown = append(resp.Breakdown, breakdownEntry{
			Parameter:  b.Dimension.String(),
			Score:      round1(b.Score),
			Confidence: b.Confidence,
			Rationale:  b.Rationale,
		})
	}
	resp.Input.Title = req.Title
	resp.Input.Summary = req.Summary
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"agents_ready": h.gw.Ready(),
		"threshold":    h.opts.Threshold,
		"timeouts": map[string]any{
			"orchestrator_timeout_s": h.opts.OrchestratorTimeout.Seconds(),
			"specialist_budget_s":    h.opts.SpecialistBudget.Seconds(),
			"gateway_wait_s":         h.gw.Wait().Seconds(),
		},
	})
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, requestID string) {
	body := map[string]any{"error": msg}
	if requestID != "" {
		body["request_id"] = requestID
	}
	writeJSON(w, status, body)
}

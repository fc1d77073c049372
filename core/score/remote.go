package score

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/feaslabs/feasly/core/logger"
	"github.com/feaslabs/feasly/core/model"
)

// RemoteConfig defines the external prediction endpoint for a remote strategy.
type RemoteConfig struct {
	URL            string `json:"url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// RemoteStrategy delegates scoring to an external prediction service and falls
// back to a wrapped local strategy on any failure: transport error, non-200
// status, unusable payload, or deadline overrun. The contract promises
// termination, so the fallback path is unconditional.
type RemoteStrategy struct {
	fallback Strategy
	client   *http.Client
	url      string
	timeout  time.Duration
	log      logger.Logger
}

// NewRemoteStrategy wraps fallback with remote delegation.
func NewRemoteStrategy(cfg RemoteConfig, fallback Strategy, log logger.Logger) *RemoteStrategy {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RemoteStrategy{
		fallback: fallback,
		client:   &http.Client{Timeout: timeout},
		url:      cfg.URL,
		timeout:  timeout,
		log:      log,
	}
}

func (r *RemoteStrategy) Dimension() model.Dimension { return r.fallback.Dimension() }

// Score asks the remote service first. The request deadline is the smaller of
// the remote timeout and whatever budget remains on ctx. Keyword-gated
// summaries skip the remote call entirely: the gate is a deliberate override
// the model must not be able to argue with.
func (r *RemoteStrategy) Score(ctx context.Context, title, summary string) model.DimensionResult {
	if ContainsImplausible(summary) {
		return r.fallback.Score(ctx, title, summary)
	}
	res, err := r.remoteScore(ctx, title, summary)
	if err != nil {
		r.log.Warnf("remote %s scoring failed, using heuristic: %v", r.Dimension(), err)
		return r.fallback.Score(ctx, title, summary)
	}
	r.log.Infof("remote %s scoring succeeded (score=%.1f, conf=%.2f)", r.Dimension(), res.Score, res.Confidence)
	return res
}

type remotePayload struct {
	Title     string `json:"title"`
	Summary   string `json:"summary"`
	Parameter string `json:"parameter"`
}

type remoteAnswer struct {
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

func (r *RemoteStrategy) remoteScore(ctx context.Context, title, summary string) (model.DimensionResult, error) {
	var zero model.DimensionResult
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	body, err := json.Marshal(remotePayload{Title: title, Summary: summary, Parameter: r.Dimension().String()})
	if err != nil {
		return zero, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return zero, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return zero, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return zero, fmt.Errorf("remote scorer status %d", resp.StatusCode)
	}
	var ans remoteAnswer
	if err := json.NewDecoder(resp.Body).Decode(&ans); err != nil {
		return zero, fmt.Errorf("decode remote answer: %w", err)
	}
	rationale := ans.Rationale
	if rationale == "" {
		rationale = "Model-based " + r.Dimension().String() + " appraisal"
	}
	return model.DimensionResult{
		Dimension:  r.Dimension(),
		Score:      model.Clamp(ans.Score, 0, 100),
		Confidence: model.Clamp(ans.Confidence, 0, 1),
		Rationale:  rationale,
	}, nil
}

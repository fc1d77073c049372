// Package orchestrator implements the fan-out/fan-in coordination core: one
// loop dispatches scoring jobs to the five specialists, collects their
// answers keyed by job id, and produces exactly one aggregate per job, either
// on full completion or on the periodic timeout sweep.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/feaslabs/feasly/core/logger"
	"github.com/feaslabs/feasly/core/metrics"
	"github.com/feaslabs/feasly/core/model"
	"github.com/feaslabs/feasly/core/transport"
)

// Config defines orchestration timing and the default weight set.
type Config struct {
	// TimeoutSeconds is the job TTL; jobs older than this are resolved by the
	// sweep into partial aggregates.
	TimeoutSeconds int `json:"timeout_seconds"`
	// SweepIntervalSeconds is the period of the timeout sweep.
	SweepIntervalSeconds int `json:"sweep_interval_seconds"`
	// DefaultWeights replaces absent or non-positive weight mappings. Empty
	// means the built-in default distribution.
	DefaultWeights map[model.Dimension]float64 `json:"default_weights,omitempty"`
}

// SetDefaults applies reference timing: 10s TTL, 2s sweep.
func (c *Config) SetDefaults() {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 10
	}
	if c.SweepIntervalSeconds <= 0 {
		c.SweepIntervalSeconds = 2
	}
}

// Timeout returns the job TTL as a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Orchestrator owns the request tracker and processes all scoring traffic on
// a single goroutine, so no handler ever observes a half-mutated job.
type Orchestrator struct {
	cfg     Config
	bus     transport.Bus
	tracker *Tracker
	sink    metrics.Sink
	log     logger.Logger
	now     func() time.Time
}

// New creates an Orchestrator. A nil sink disables result recording.
func New(cfg Config, bus transport.Bus, sink metrics.Sink, log logger.Logger) (*Orchestrator, error) {
	if bus == nil {
		return nil, fmt.Errorf("orchestrator: nil bus")
	}
	cfg.SetDefaults()
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Orchestrator{
		cfg:     cfg,
		bus:     bus,
		tracker: NewTracker(),
		sink:    sink,
		log:     log,
		now:     time.Now,
	}, nil
}

// Tracker exposes the job table, primarily for tests and health reporting.
func (o *Orchestrator) Tracker() *Tracker { return o.tracker }

// Run consumes scoring requests and dimension results until the context is
// cancelled. The timeout sweep ticks on the same loop.
func (o *Orchestrator) Run(ctx context.Context) error {
	reqs, err := o.bus.Subscribe(transport.TopicRequests)
	if err != nil {
		return fmt.Errorf("subscribe requests: %w", err)
	}
	defer reqs.Cancel()
	results, err := o.bus.Subscribe(transport.TopicResults)
	if err != nil {
		return fmt.Errorf("subscribe results: %w", err)
	}
	defer results.Cancel()

	ticker := time.NewTicker(time.Duration(o.cfg.SweepIntervalSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-reqs.C():
			if !ok {
				return nil
			}
			if req, ok := msg.(model.ScoringRequest); ok {
				o.OnRequest(req)
			}
		case msg, ok := <-results.C():
			if !ok {
				return nil
			}
			if res, ok := msg.(model.DimensionResult); ok {
				o.OnDimensionResult(res)
			}
		case now := <-ticker.C:
			o.SweepTimeouts(now)
		}
	}
}

// OnRequest validates and fans out one scoring job. Empty title or summary is
// rejected synchronously with a zero aggregate carrying the sentinel job id;
// no job enters the tracker.
func (o *Orchestrator) OnRequest(req model.ScoringRequest) {
	title := strings.TrimSpace(req.Title)
	summary := strings.TrimSpace(req.Summary)
	replyTo := req.ReplyTo
	if replyTo == "" {
		replyTo = transport.TopicAggregate
	}
	if title == "" || summary == "" {
		o.log.Warnf("rejected scoring request with empty title/summary (corr_id=%s)", req.CorrID)
		o.emit(replyTo, model.AggregateResult{
			JobID:     model.InvalidJobID,
			Overall:   0,
			Breakdown: []model.DimensionResult{},
			CorrID:    req.CorrID,
		}, metrics.OutcomeRejected, 0)
		return
	}

	jobID := uuid.NewString()
	weights := o.normalizeWeights(req.Weights)
	job := newJob(jobID, weights, req.CorrID, replyTo, o.now())
	if !o.tracker.Create(job) {
		o.log.Errorf("duplicate job id %s, dropping request", jobID)
		return
	}
	pendingJobs.Set(float64(o.tracker.Len()))

	for _, d := range model.Dimensions {
		sub := model.DimensionRequest{JobID: jobID, Title: title, Summary: summary, Dimension: d}
		if err := o.bus.Publish(transport.DimensionTopic(d.String()), sub); err != nil {
			// The missing answer is resolved by the timeout sweep.
			o.log.Errorf("fan-out %s for %s failed: %v", d, jobID, err)
		}
	}
	jobsDispatched.Inc()
	o.log.Infof("dispatched %s to specialists for %q", jobID, title)
}

// OnDimensionResult records one specialist answer and completes the job when
// the last expected dimension arrives. Duplicate and stale results are
// dropped silently; under racing timeouts they are expected traffic.
func (o *Orchestrator) OnDimensionResult(res model.DimensionResult) {
	recorded, complete := o.tracker.RecordResponse(res.JobID, res)
	if !recorded {
		staleResults.Inc()
		return
	}
	o.log.Debugw("collected dimension", map[string]any{
		"job_id":    res.JobID,
		"dimension": res.Dimension.String(),
	})
	if !complete {
		return
	}
	job, ok := o.tracker.Pop(res.JobID)
	if !ok {
		return
	}
	pendingJobs.Set(float64(o.tracker.Len()))

	overall := weightedOverall(job.Received, job.Weights)
	o.emit(job.ReplyTo, model.AggregateResult{
		JobID:     job.ID,
		Overall:   overall,
		Breakdown: job.Received,
		CorrID:    job.CorrID,
	}, metrics.OutcomeComplete, o.now().Sub(job.CreatedAt))
	o.log.Infof("sent aggregate score %.1f for %s", overall, job.ID)
}

// SweepTimeouts resolves every job older than the TTL into a partial
// aggregate. Weights are renormalized over the received dimensions so a job
// missing low-value answers is not crushed by them; zero received means an
// overall of exactly 0.
func (o *Orchestrator) SweepTimeouts(now time.Time) {
	expired := o.tracker.SweepExpired(now, o.cfg.Timeout())
	if len(expired) == 0 {
		return
	}
	pendingJobs.Set(float64(o.tracker.Len()))
	for _, job := range expired {
		overall := weightedOverall(job.Received, job.Weights)
		breakdown := job.Received
		if breakdown == nil {
			breakdown = []model.DimensionResult{}
		}
		o.emit(job.ReplyTo, model.AggregateResult{
			JobID:     job.ID,
			Overall:   overall,
			Breakdown: breakdown,
			Partial:   true,
			CorrID:    job.CorrID,
		}, metrics.OutcomePartial, now.Sub(job.CreatedAt))
		o.log.Warnf("timed out %s; sent partial %.1f (%d/%d dimensions)",
			job.ID, overall, len(job.Received), len(model.Dimensions))
	}
}

// emit publishes the aggregate and records it on the sink.
func (o *Orchestrator) emit(replyTo string, agg model.AggregateResult, outcome metrics.Outcome, fanIn time.Duration) {
	if err := o.bus.Publish(replyTo, agg); err != nil {
		o.log.Errorf("publish aggregate for %s: %v", agg.JobID, err)
	}
	aggregatesEmitted.WithLabelValues(string(outcome)).Inc()
	fanInLatency.WithLabelValues(string(outcome)).Observe(fanIn.Seconds())
	rec := metrics.AggregateRecord{
		JobID:      agg.JobID,
		Overall:    agg.Overall,
		Outcome:    outcome,
		Dimensions: len(agg.Breakdown),
		FanIn:      fanIn,
		EmittedAt:  o.now(),
	}
	if err := o.sink.RecordAggregate([]metrics.AggregateRecord{rec}); err != nil {
		o.log.Errorf("metrics error: %v", err)
	}
	if dr, ok := o.sink.(metrics.DimensionRecorder); ok {
		recs := make([]metrics.DimensionRecord, 0, len(agg.Breakdown))
		for _, b := range agg.Breakdown {
			recs = append(recs, metrics.DimensionRecord{
				JobID:      b.JobID,
				Dimension:  b.Dimension,
				Score:      b.Score,
				Confidence: b.Confidence,
				ReceivedAt: rec.EmittedAt,
			})
		}
		if err := dr.RecordDimension(recs); err != nil {
			o.log.Errorf("dimension metrics error: %v", err)
		}
	}
}

// normalizeWeights scales the supplied mapping to sum to 1.0, substituting
// the configured (or built-in) default set when the input is absent or its
// values do not sum to a positive number.
func (o *Orchestrator) normalizeWeights(w map[model.Dimension]float64) map[model.Dimension]float64 {
	if len(o.cfg.DefaultWeights) == 0 {
		return model.NormalizeWeights(w)
	}
	var sum float64
	for _, d := range model.Dimensions {
		sum += w[d]
	}
	if sum <= 0 {
		w = o.cfg.DefaultWeights
	}
	return model.NormalizeWeights(w)
}

// weightedOverall computes the weighted blend of the received scores. For a
// fully-collected job the weights already sum to 1.0, so the weighted mean
// equals the plain weighted sum; for partials the mean's divisor is exactly
// the renormalization over received dimensions.
func weightedOverall(received []model.DimensionResult, weights map[model.Dimension]float64) float64 {
	if len(received) == 0 {
		return 0
	}
	scores := make([]float64, len(received))
	ws := make([]float64, len(received))
	var used float64
	for i, r := range received {
		scores[i] = r.Score
		ws[i] = weights[r.Dimension]
		used += ws[i]
	}
	if used == 0 {
		// Every received dimension carries zero weight; the weighted sum is
		// zero and renormalizing would divide by zero.
		return 0
	}
	return stat.Mean(scores, ws)
}

// Package gateway bridges blocking callers into the asynchronous scoring
// exchange. Each call registers a one-shot wait slot keyed by correlation
// token, sends a scoring request into the orchestration loop, and blocks
// until the matching aggregate arrives or the gateway's own deadline passes.
// That deadline sits above the orchestrator's TTL, so hitting it means the
// orchestration loop itself failed to respond.
package gateway

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/feaslabs/feasly/core/logger"
	"github.com/feaslabs/feasly/core/model"
	"github.com/feaslabs/feasly/core/transport"
)

var (
	// ErrNotReady is returned while the gateway's aggregate subscription is
	// not yet established.
	ErrNotReady = errors.New("gateway: scoring loop not ready")
	// ErrTimeout is returned when no aggregate arrived within the gateway
	// deadline.
	ErrTimeout = errors.New("gateway: timed out waiting for aggregate result")
)

// Config defines how long the gateway waits beyond the orchestrator TTL.
type Config struct {
	// ExtraWaitSeconds is added to the orchestrator timeout to form the
	// blocking deadline. Reference: 3 seconds.
	ExtraWaitSeconds int `json:"extra_wait_seconds"`
}

// SetDefaults applies the reference extra wait.
func (c *Config) SetDefaults() {
	if c.ExtraWaitSeconds <= 0 {
		c.ExtraWaitSeconds = 3
	}
}

// Gateway is the synchronous front door to the scoring loop.
type Gateway struct {
	bus   transport.Bus
	wait  time.Duration
	log   logger.Logger
	ready atomic.Bool
	mu    sync.Mutex
	slots map[string]chan model.AggregateResult
}

// New creates a Gateway that waits orchestratorTimeout + cfg.ExtraWaitSeconds
// for each result.
func New(cfg Config, bus transport.Bus, orchestratorTimeout time.Duration, log logger.Logger) *Gateway {
	cfg.SetDefaults()
	return &Gateway{
		bus:   bus,
		wait:  orchestratorTimeout + time.Duration(cfg.ExtraWaitSeconds)*time.Second,
		log:   log,
		slots: make(map[string]chan model.AggregateResult),
	}
}

// Ready reports whether the gateway is consuming aggregates.
func (g *Gateway) Ready() bool { return g.ready.Load() }

// Run consumes aggregate results and hands each to its wait slot. It blocks
// until the context is cancelled or the bus closes.
func (g *Gateway) Run(ctx context.Context) error {
	sub, err := g.bus.Subscribe(transport.TopicAggregate)
	if err != nil {
		return err
	}
	defer sub.Cancel()
	g.ready.Store(true)
	defer g.ready.Store(false)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.C():
			if !ok {
				return nil
			}
			agg, ok := msg.(model.AggregateResult)
			if !ok {
				continue
			}
			g.deliver(agg)
		}
	}
}

func (g *Gateway) deliver(agg model.AggregateResult) {
	g.mu.Lock()
	slot, ok := g.slots[agg.CorrID]
	if ok {
		delete(g.slots, agg.CorrID)
	}
	g.mu.Unlock()
	if !ok {
		// Expected when the caller already gave up on its own deadline.
		g.log.Warnf("received aggregate for unknown corr_id=%s", agg.CorrID)
		return
	}
	slot <- agg
	g.log.Infof("completed corr_id=%s", agg.CorrID)
}

// Score submits one idea for evaluation and blocks for the aggregate.
// corrID may be empty, in which case a token is generated. The supplied
// weights pass through untouched; the orchestrator normalizes them.
func (g *Gateway) Score(ctx context.Context, corrID, title, summary string, weights map[model.Dimension]float64) (model.AggregateResult, error) {
	var zero model.AggregateResult
	if !g.ready.Load() {
		return zero, ErrNotReady
	}
	if corrID == "" {
		corrID = uuid.NewString()
	}

	// Buffered so a racing delivery never blocks the gateway loop.
	slot := make(chan model.AggregateResult, 1)
	g.mu.Lock()
	g.slots[corrID] = slot
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		delete(g.slots, corrID)
		g.mu.Unlock()
	}()

	req := model.ScoringRequest{
		Title:   title,
		Summary: summary,
		Weights: weights,
		CorrID:  corrID,
		ReplyTo: transport.TopicAggregate,
	}
	if err := g.bus.Publish(transport.TopicRequests, req); err != nil {
		return zero, err
	}
	g.log.Infof("sent scoring request corr_id=%s", corrID)

	timer := time.NewTimer(g.wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-timer.C:
		return zero, ErrTimeout
	case agg := <-slot:
		return agg, nil
	}
}

// Wait returns the configured blocking deadline.
func (g *Gateway) Wait() time.Duration { return g.wait }

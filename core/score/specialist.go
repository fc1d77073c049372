package score

import (
	"context"
	"time"

	"github.com/feaslabs/feasly/core/logger"
	"github.com/feaslabs/feasly/core/model"
	"github.com/feaslabs/feasly/core/transport"
)

// Specialist is a stateless worker that answers scoring requests for a single
// dimension. It subscribes to its dimension topic and publishes every result
// to the shared results topic. A specialist never reports an error upstream:
// when its strategy cannot answer within the budget, the strategy's fallback
// produces a low-confidence result instead.
type Specialist struct {
	strategy Strategy
	bus      transport.Bus
	budget   time.Duration
	log      logger.Logger
}

// NewSpecialist creates a worker for the strategy's dimension.
// budget bounds each evaluation; if zero, a default of eight seconds is used.
func NewSpecialist(strategy Strategy, bus transport.Bus, budget time.Duration, log logger.Logger) *Specialist {
	if budget <= 0 {
		budget = 8 * time.Second
	}
	return &Specialist{strategy: strategy, bus: bus, budget: budget, log: log}
}

// Dimension returns the axis this worker answers for.
func (s *Specialist) Dimension() model.Dimension { return s.strategy.Dimension() }

// Run consumes requests until the context is cancelled or the bus closes.
func (s *Specialist) Run(ctx context.Context) error {
	sub, err := s.bus.Subscribe(transport.DimensionTopic(s.Dimension().String()))
	if err != nil {
		return err
	}
	defer sub.Cancel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.C():
			if !ok {
				return nil
			}
			req, ok := msg.(model.DimensionRequest)
			if !ok {
				continue
			}
			s.handle(ctx, req)
		}
	}
}

func (s *Specialist) handle(ctx context.Context, req model.DimensionRequest) {
	if req.Dimension != s.Dimension() {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.budget)
	defer cancel()
	res := s.strategy.Score(ctx, req.Title, req.Summary)
	res.JobID = req.JobID
	if err := s.bus.Publish(transport.TopicResults, res); err != nil {
		s.log.Errorf("%s: publish result for %s: %v", s.Dimension(), req.JobID, err)
		return
	}
	s.log.Debugw("scored dimension", map[string]any{
		"job_id":    req.JobID,
		"dimension": s.Dimension().String(),
		"score":     res.Score,
	})
}

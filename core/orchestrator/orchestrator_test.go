package orchestrator

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/feaslabs/feasly/core/metrics"
	"github.com/feaslabs/feasly/core/model"
	"github.com/feaslabs/feasly/core/transport"
	"github.com/feaslabs/feasly/infra/bus"
	"github.com/feaslabs/feasly/infra/logger"
)

// recordingSink captures aggregate records for assertions.
type recordingSink struct {
	mu   sync.Mutex
	recs []metrics.AggregateRecord
}

func (s *recordingSink) RecordAggregate(recs []metrics.AggregateRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, recs...)
	return nil
}

func (s *recordingSink) records() []metrics.AggregateRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]metrics.AggregateRecord(nil), s.recs...)
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *bus.InProc, *recordingSink) {
	t.Helper()
	b := bus.New()
	t.Cleanup(func() { _ = b.Close() })
	sink := &recordingSink{}
	o, err := New(Config{}, b, sink, logger.NopLogger{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o, b, sink
}

// drainOne reads the next aggregate off the subscription.
func drainOne(t *testing.T, sub transport.Subscription) model.AggregateResult {
	t.Helper()
	select {
	case msg := <-sub.C():
		agg, ok := msg.(model.AggregateResult)
		if !ok {
			t.Fatalf("unexpected message type %T", msg)
		}
		return agg
	case <-time.After(time.Second):
		t.Fatal("no aggregate emitted")
		return model.AggregateResult{}
	}
}

func TestOrchestrator_FullCompletion(t *testing.T) {
	o, b, sink := newTestOrchestrator(t)

	aggs, _ := b.Subscribe(transport.TopicAggregate)
	dimSubs := make(map[model.Dimension]transport.Subscription)
	for _, d := range model.Dimensions {
		sub, _ := b.Subscribe(transport.DimensionTopic(d.String()))
		dimSubs[d] = sub
	}

	o.OnRequest(model.ScoringRequest{Title: "Solar kiosks", Summary: "rural solar charging kiosks", CorrID: "c1"})
	if o.tracker.Len() != 1 {
		t.Fatalf("tracker len = %d, want 1", o.tracker.Len())
	}

	// Every specialist topic sees exactly one request with a shared job id.
	var jobID string
	for d, sub := range dimSubs {
		select {
		case msg := <-sub.C():
			req := msg.(model.DimensionRequest)
			if req.Dimension != d {
				t.Errorf("topic %s got dimension %s", d, req.Dimension)
			}
			if jobID == "" {
				jobID = req.JobID
			} else if req.JobID != jobID {
				t.Errorf("job id mismatch: %s vs %s", req.JobID, jobID)
			}
		case <-time.After(time.Second):
			t.Fatalf("no fan-out for %s", d)
		}
	}

	scores := map[model.Dimension]float64{
		model.DimCost: 80, model.DimEthics: 85, model.DimMarket: 70,
		model.DimTech: 60, model.DimTiming: 75,
	}
	for _, d := range model.Dimensions {
		o.OnDimensionResult(model.DimensionResult{JobID: jobID, Dimension: d, Score: scores[d]})
	}

	agg := drainOne(t, aggs)
	if agg.JobID != jobID || agg.CorrID != "c1" || agg.Partial {
		t.Errorf("unexpected aggregate: %+v", agg)
	}
	// Default weights: .2 .2 .25 .2 .15 over cost ethics market tech timing.
	want := 80*.2 + 85*.2 + 70*.25 + 60*.2 + 75*.15
	if math.Abs(agg.Overall-want) > 1e-9 {
		t.Errorf("overall = %v, want %v", agg.Overall, want)
	}
	if len(agg.Breakdown) != 5 {
		t.Errorf("breakdown len = %d, want 5", len(agg.Breakdown))
	}
	if o.tracker.Len() != 0 {
		t.Errorf("tracker not drained after completion")
	}

	recs := sink.records()
	if len(recs) != 1 || recs[0].Outcome != metrics.OutcomeComplete {
		t.Errorf("sink records = %+v", recs)
	}
}

func TestOrchestrator_RejectsBlankInput(t *testing.T) {
	o, b, sink := newTestOrchestrator(t)
	aggs, _ := b.Subscribe(transport.TopicAggregate)

	o.OnRequest(model.ScoringRequest{Title: "   ", Summary: "something", CorrID: "c2"})

	agg := drainOne(t, aggs)
	if agg.JobID != model.InvalidJobID {
		t.Errorf("job id = %q, want %q", agg.JobID, model.InvalidJobID)
	}
	if agg.Overall != 0 || len(agg.Breakdown) != 0 || agg.CorrID != "c2" {
		t.Errorf("unexpected rejection aggregate: %+v", agg)
	}
	if o.tracker.Len() != 0 {
		t.Error("rejected request entered the tracker")
	}
	recs := sink.records()
	if len(recs) != 1 || recs[0].Outcome != metrics.OutcomeRejected {
		t.Errorf("sink records = %+v", recs)
	}
}

func TestOrchestrator_PartialOnTimeout(t *testing.T) {
	o, b, sink := newTestOrchestrator(t)
	base := time.Unix(1000, 0)
	o.now = func() time.Time { return base }

	aggs, _ := b.Subscribe(transport.TopicAggregate)
	fanout, _ := b.Subscribe(transport.DimensionTopic("cost"))

	o.OnRequest(model.ScoringRequest{Title: "t", Summary: "s", CorrID: "c3"})
	jobID := fanOutOne(t, fanout).JobID

	// Four of five answer; timing never does.
	for _, d := range []model.Dimension{model.DimCost, model.DimEthics, model.DimMarket, model.DimTech} {
		o.OnDimensionResult(model.DimensionResult{JobID: jobID, Dimension: d, Score: 60})
	}

	// Before the TTL nothing is swept.
	o.SweepTimeouts(base.Add(5 * time.Second))
	if o.tracker.Len() != 1 {
		t.Fatal("job swept before its TTL")
	}

	o.SweepTimeouts(base.Add(11 * time.Second))
	agg := drainOne(t, aggs)
	if !agg.Partial || agg.JobID != jobID {
		t.Fatalf("unexpected aggregate: %+v", agg)
	}
	// Identical scores make the renormalized blend exactly that score.
	if math.Abs(agg.Overall-60) > 1e-9 {
		t.Errorf("overall = %v, want 60", agg.Overall)
	}
	if len(agg.Breakdown) != 4 {
		t.Errorf("breakdown len = %d, want 4", len(agg.Breakdown))
	}
	recs := sink.records()
	if len(recs) != 1 || recs[0].Outcome != metrics.OutcomePartial {
		t.Errorf("sink records = %+v", recs)
	}

	// The straggler arriving after the sweep is dropped, not re-emitted.
	o.OnDimensionResult(model.DimensionResult{JobID: jobID, Dimension: model.DimTiming, Score: 90})
	select {
	case msg := <-aggs.C():
		t.Fatalf("second aggregate emitted: %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestOrchestrator_ZeroResultsTimeout(t *testing.T) {
	o, b, _ := newTestOrchestrator(t)
	base := time.Unix(2000, 0)
	o.now = func() time.Time { return base }

	aggs, _ := b.Subscribe(transport.TopicAggregate)
	o.OnRequest(model.ScoringRequest{Title: "t", Summary: "s"})

	o.SweepTimeouts(base.Add(time.Minute))
	agg := drainOne(t, aggs)
	if !agg.Partial || agg.Overall != 0 {
		t.Errorf("unexpected aggregate: %+v", agg)
	}
	if agg.Breakdown == nil || len(agg.Breakdown) != 0 {
		t.Errorf("breakdown = %#v, want empty non-nil slice", agg.Breakdown)
	}
}

func TestOrchestrator_DuplicateResultIgnored(t *testing.T) {
	o, b, _ := newTestOrchestrator(t)
	aggs, _ := b.Subscribe(transport.TopicAggregate)
	fanout, _ := b.Subscribe(transport.DimensionTopic("cost"))

	o.OnRequest(model.ScoringRequest{Title: "t", Summary: "s"})
	jobID := fanOutOne(t, fanout).JobID

	o.OnDimensionResult(model.DimensionResult{JobID: jobID, Dimension: model.DimCost, Score: 40})
	o.OnDimensionResult(model.DimensionResult{JobID: jobID, Dimension: model.DimCost, Score: 99})
	for _, d := range []model.Dimension{model.DimEthics, model.DimMarket, model.DimTech, model.DimTiming} {
		o.OnDimensionResult(model.DimensionResult{JobID: jobID, Dimension: d, Score: 40})
	}

	agg := drainOne(t, aggs)
	if math.Abs(agg.Overall-40) > 1e-9 {
		t.Errorf("overall = %v, want 40 (first cost answer kept)", agg.Overall)
	}
}

func TestOrchestrator_CustomWeights(t *testing.T) {
	o, b, _ := newTestOrchestrator(t)
	aggs, _ := b.Subscribe(transport.TopicAggregate)
	fanout, _ := b.Subscribe(transport.DimensionTopic("cost"))

	// Unnormalized weights: only tech counts after scaling.
	o.OnRequest(model.ScoringRequest{
		Title: "t", Summary: "s",
		Weights: map[model.Dimension]float64{model.DimTech: 4},
	})
	jobID := fanOutOne(t, fanout).JobID

	scores := map[model.Dimension]float64{
		model.DimCost: 10, model.DimEthics: 20, model.DimMarket: 30,
		model.DimTech: 88, model.DimTiming: 50,
	}
	for _, d := range model.Dimensions {
		o.OnDimensionResult(model.DimensionResult{JobID: jobID, Dimension: d, Score: scores[d]})
	}
	agg := drainOne(t, aggs)
	if math.Abs(agg.Overall-88) > 1e-9 {
		t.Errorf("overall = %v, want 88", agg.Overall)
	}
}

func TestWeightedOverall_AllZeroWeightReceived(t *testing.T) {
	got := weightedOverall(
		[]model.DimensionResult{{Dimension: model.DimCost, Score: 90}},
		map[model.Dimension]float64{model.DimCost: 0, model.DimTech: 1},
	)
	if got != 0 {
		t.Errorf("overall = %v, want 0", got)
	}
}

func fanOutOne(t *testing.T, sub transport.Subscription) model.DimensionRequest {
	t.Helper()
	select {
	case msg := <-sub.C():
		return msg.(model.DimensionRequest)
	case <-time.After(time.Second):
		t.Fatal("no fan-out observed")
		return model.DimensionRequest{}
	}
}

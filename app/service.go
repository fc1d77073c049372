// Package app wires configuration into a running feasibility service.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/feaslabs/feasly/api/feasibility"
	"github.com/feaslabs/feasly/config"
	coremetrics "github.com/feaslabs/feasly/core/metrics"
	"github.com/feaslabs/feasly/core/model"
	"github.com/feaslabs/feasly/core/orchestrator"
	"github.com/feaslabs/feasly/core/score"
	"github.com/feaslabs/feasly/core/transport"
	"github.com/feaslabs/feasly/gateway"
	"github.com/feaslabs/feasly/infra/bus"
	"github.com/feaslabs/feasly/infra/logger"
	"github.com/feaslabs/feasly/infra/metrics"
	"github.com/feaslabs/feasly/infra/mqtt"
)

// Service owns every long-running component of the scoring pipeline.
type Service struct {
	cfg          *config.Config
	bus          transport.Bus
	orchestrator *orchestrator.Orchestrator
	gateway      *gateway.Gateway
	specialists  []*score.Specialist
	handler      *feasibility.Handler
	log          logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	var b transport.Bus
	switch cfg.Transport.Mode {
	case "mqtt":
		client, err := mqtt.NewClient(cfg.Transport.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt transport: %w", err)
		}
		b = client
	default:
		b = bus.New()
	}

	var sinks []coremetrics.Sink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(nil)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.Influx.Enabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics.Influx))
	}
	var sink coremetrics.Sink = coremetrics.NopSink{}
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	orch, err := orchestrator.New(cfg.Orchestrator, b, sink, logger.New("orchestrator"))
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	strategies, err := buildStrategies(cfg.Scoring)
	if err != nil {
		return nil, err
	}
	budget := time.Duration(cfg.Scoring.SpecialistBudgetSeconds) * time.Second
	specialists := make([]*score.Specialist, 0, len(strategies))
	for _, s := range strategies {
		specialists = append(specialists, score.NewSpecialist(s, b, budget, logger.New("specialist")))
	}

	gw := gateway.New(cfg.Gateway, b, cfg.Orchestrator.Timeout(), logger.New("gateway"))
	handler := feasibility.New(gw, feasibility.Options{
		Threshold:           cfg.Scoring.Threshold,
		MaxBodyBytes:        cfg.Server.MaxBodyBytes,
		AllowOrigins:        cfg.Server.AllowOrigins,
		OrchestratorTimeout: cfg.Orchestrator.Timeout(),
		SpecialistBudget:    budget,
	}, logger.New("api"))

	return &Service{
		cfg:          cfg,
		bus:          b,
		orchestrator: orch,
		gateway:      gw,
		specialists:  specialists,
		handler:      handler,
		log:          logg,
	}, nil
}

// buildStrategies assembles the per-dimension strategy set, wrapping the
// configured dimensions with remote delegation.
func buildStrategies(cfg config.ScoringConfig) (score.StrategySet, error) {
	set := score.DefaultStrategies()
	if !cfg.Remote.Enabled {
		return set, nil
	}
	remote := score.RemoteConfig{URL: cfg.Remote.URL, TimeoutSeconds: cfg.Remote.TimeoutSeconds}
	for _, name := range cfg.Remote.Dimensions {
		d, err := model.ParseDimension(name)
		if err != nil {
			return nil, fmt.Errorf("remote scoring: %w", err)
		}
		set[d] = score.NewRemoteStrategy(remote, set[d], logger.New("remote-scorer"))
	}
	return set, nil
}

// Gateway exposes the synchronous scoring entry point.
func (s *Service) Gateway() *gateway.Gateway { return s.gateway }

// Run starts every component and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	go func() {
		if err := s.orchestrator.Run(ctx); err != nil {
			s.log.Errorf("orchestrator: %v", err)
		}
	}()
	for _, sp := range s.specialists {
		go func(sp *score.Specialist) {
			if err := sp.Run(ctx); err != nil {
				s.log.Errorf("specialist %s: %v", sp.Dimension(), err)
			}
		}(sp)
	}
	go func() {
		if err := s.gateway.Run(ctx); err != nil {
			s.log.Errorf("gateway: %v", err)
		}
	}()
	if s.cfg.Metrics.PrometheusEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	mux := http.NewServeMux()
	s.handler.Register(mux)
	srv := &http.Server{Addr: s.cfg.Server.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("http shutdown: %v", err)
		}
	}()
	s.log.Infof("serving feasibility API on %s", s.cfg.Server.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error { return s.bus.Close() }

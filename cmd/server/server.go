package main

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"amm-stats/internal/api"
	"amm-stats/internal/app"
	"amm-stats/internal/config"
	"amm-stats/internal/notify"
	"amm-stats/internal/orchestrator"
)

// EventStatsAggregated is the websocket message type sent after a run.
const EventStatsAggregated = "stats.aggregated"

// Server holds the components of the long-running service.
type Server struct {
	cfg      *config.Config
	networks []string
	orchs    map[string]*orchestrator.Orchestrator

	cache  *api.StatsCache
	hub    *api.Hub
	router http.Handler

	nats *notify.Client
	sub  *nats.Subscription
	cron *cron.Cron

	running atomic.Bool
	logger  *zap.Logger
}

func newServer(cfg *config.Config, stores *app.Stores, useCache bool, logger *zap.Logger) (*Server, error) {
	networks, err := app.Networks(cfg, nil)
	if err != nil {
		return nil, err
	}

	publisher, client, err := app.NewPublisher(cfg, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		networks: networks,
		orchs:    make(map[string]*orchestrator.Orchestrator, len(networks)),
		cache:    api.NewStatsCache(stores.Stats),
		hub:      api.NewHub(logger),
		nats:     client,
		logger:   logger,
	}

	for _, name := range networks {
		orch, err := app.NewOrchestrator(cfg, name, stores, app.RunOptions{
			UseCachedAccounts: useCache,
			Publisher:         publisher,
		}, logger)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.orchs[name] = orch
	}

	s.router = api.NewRouter(api.New(api.Options{
		Stats:     s.cache,
		Intervals: stores.Intervals,
		Hub:       s.hub,
		Networks:  networks,
		Logger:    logger,
	}))
	return s, nil
}

// Handler returns the API handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start subscribes to aggregation events and schedules runs.
func (s *Server) Start(ctx context.Context, runOnStart bool) error {
	if s.nats != nil {
		sub, err := s.nats.Subscribe(s.onAggregated)
		if err != nil {
			return fmt.Errorf("subscribe aggregation events: %w", err)
		}
		s.sub = sub
	}

	if spec := s.cfg.Server.Schedule; spec != "" {
		logger := cronLogger{s.logger.Sugar()}
		s.cron = cron.New(
			cron.WithSeconds(),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		)
		if _, err := s.cron.AddFunc(spec, func() { s.runAll(ctx) }); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", spec, err)
		}
		s.cron.Start()
		s.logger.Info("aggregation scheduled", zap.String("schedule", spec))
	}

	if runOnStart {
		go s.runAll(ctx)
	}
	return nil
}

// runAll aggregates every network in turn. Overlapping calls are dropped.
func (s *Server) runAll(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("aggregation already running, skipping")
		return
	}
	defer s.running.Store(false)

	for _, name := range s.networks {
		if ctx.Err() != nil {
			return
		}
		result, err := s.orchs[name].Run(ctx)
		if err != nil {
			continue
		}
		// Without NATS the local run is the only event source.
		if s.nats == nil {
			s.onAggregated(notify.Event{
				Network:     name,
				GeneratedAt: time.UnixMilli(result.Stats.GeneratedAt),
				Pools:       result.PoolsAggregated,
			})
		}
	}
}

func (s *Server) onAggregated(event notify.Event) {
	s.cache.Invalidate(event.Network)
	s.hub.Broadcast(EventStatsAggregated, event)
	s.logger.Debug("stats refreshed", zap.String("network", event.Network))
}

// Stop waits up to timeout for a running aggregation to finish.
func (s *Server) Stop(timeout time.Duration) {
	if s.cron == nil {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-time.After(timeout):
		s.logger.Warn("aggregation still running at shutdown")
	}
}

// Close releases the subscription, NATS connection and websocket clients.
func (s *Server) Close() {
	if s.sub != nil {
		_ = s.sub.Unsubscribe()
	}
	if s.nats != nil {
		_ = s.nats.Close()
	}
	s.hub.Close()
}

func shutdown(srv *http.Server, timeout time.Duration, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown", zap.String("addr", srv.Addr), zap.Error(err))
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}

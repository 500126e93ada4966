package core

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/encodeous/nyroute/state"
	"github.com/robfig/cron/v3"
)

// Monitor probes the peers on a schedule, persists every store and logs the resulting routes.
// With Receive set it also accepts transfers for as long as it runs.
type Monitor struct {
	Cfg     state.LocalCfg
	Log     *slog.Logger
	Receive bool
	// Prober overrides the prober derived from Cfg.Probe
	Prober Prober
	// Stored, if set, receives the plan computed for each saved store
	Stored func(*Plan)
}

type cronLogger struct {
	log *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.log.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.log.Error(msg, append(keysAndValues, "error", err)...)
}

// Run blocks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	log := m.Log.With("module", "monitor")
	prober := m.Prober
	if prober == nil {
		prober = NewProber(m.Cfg.Probe)
	}
	svc := NewProbeService(m.Cfg.Peers, prober, m.Cfg.Probe, m.Log)

	var rx <-chan TransferResult
	if m.Receive {
		recv := NewReceiver(m.Cfg.Transfer, m.Log)
		if err := recv.Listen(); err != nil {
			return fmt.Errorf("failed to start receiver: %w", err)
		}
		if addr, err := DetectOverlayAddr(m.Cfg.OverlayPrefixes); err == nil {
			log.Info("peers can send files to this node", "addr", addr)
		} else {
			log.Debug("no overlay address found", "error", err)
		}
		go func() {
			if err := recv.Serve(ctx); err != nil {
				log.Error("receiver stopped", "error", err)
			}
		}()
		defer recv.Close()
		rx = recv.Results()
	}

	sched := m.Cfg.Probe.Schedule
	if sched == "" {
		sched = "@every 10m"
	}
	cl := cronLogger{log}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl)))
	if _, err := c.AddFunc(sched, svc.Trigger); err != nil {
		return fmt.Errorf("invalid probe schedule %q: %w", sched, err)
	}

	svc.Start(ctx)
	c.Start()
	defer func() {
		<-c.Stop().Done()
		svc.Wait()
	}()

	log.Info("monitoring peers", "peers", len(m.Cfg.Peers), "schedule", sched, "kind", prober.Kind())
	svc.Trigger()
	for {
		select {
		case <-ctx.Done():
			log.Info("monitor stopped", "reason", context.Cause(ctx))
			return nil
		case store := <-svc.Results():
			m.handleStore(log, store)
		case res, ok := <-rx:
			if !ok {
				rx = nil
				continue
			}
			log.Info("transfer finished", "result", res.String())
		}
	}
}

func (m *Monitor) handleStore(log *slog.Logger, store *state.MetricStore) {
	if err := state.SaveMetricStore(m.Cfg.MetricsPath, store); err != nil {
		log.Error("failed to save metrics", "path", m.Cfg.MetricsPath, "error", err)
	} else {
		log.Debug("metrics saved", "path", m.Cfg.MetricsPath)
	}
	plan, err := NewPlan(store, m.Cfg.Graph, log)
	if err != nil {
		log.Error("failed to plan routes", "error", err)
		return
	}
	plan.Log(log)
	if m.Stored != nil {
		m.Stored(plan)
	}
}

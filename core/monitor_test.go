package core

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/encodeous/nyroute/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMonitor(t *testing.T) {
	defer goleak.VerifyNone(t)
	withMinPacing(t, 10*time.Millisecond)

	cfg := state.SampleConfig("node1", []state.NodeId{"a", "b"})
	cfg.Probe = fastProbeCfg()
	cfg.Probe.Schedule = "@every 1h"
	cfg.MetricsPath = filepath.Join(t.TempDir(), "resultados", "out.json")
	cfg.Transfer = testTransferCfg(t)

	plans := make(chan *Plan, 1)
	m := &Monitor{
		Cfg:     cfg,
		Log:     slog.New(slog.DiscardHandler),
		Receive: true,
		Prober: &scriptedProber{
			kind:    state.Bandwidth,
			results: map[state.NodeId]float64{"a": 10, "b": 30},
		},
		Stored: func(p *Plan) {
			plans <- p
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Run(ctx)
	}()

	var plan *Plan
	select {
	case plan = <-plans:
	case <-time.After(10 * time.Second):
		t.Fatal("monitor did not produce a plan")
	}
	best, ok := plan.Best()
	require.True(t, ok)
	assert.Equal(t, state.NodeId("b"), best.Destination())

	saved, err := state.LoadMetricStore(cfg.MetricsPath)
	require.NoError(t, err)
	assert.Equal(t, []state.NodeId{"a", "b"}, saved.Peers())

	cancel()
	require.NoError(t, <-done)
}

func TestMonitor_BadSchedule(t *testing.T) {
	cfg := state.SampleConfig("node1", []state.NodeId{"a"})
	cfg.Probe.Schedule = "whenever"
	m := &Monitor{
		Cfg:    cfg,
		Log:    slog.New(slog.DiscardHandler),
		Prober: &scriptedProber{kind: state.Bandwidth},
	}
	err := m.Run(context.Background())
	assert.ErrorContains(t, err, "invalid probe schedule")
}

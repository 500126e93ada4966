package core

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/encodeous/nyroute/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func payloadServer(t *testing.T, size int, status int) (*httptest.Server, *BandwidthProber) {
	t.Helper()
	payload := bytes.Repeat([]byte("x"), size)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/10MB.bin" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write(payload)
	}))
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return srv, &BandwidthProber{
		Client:      srv.Client(),
		Port:        port,
		Path:        "/10MB.bin",
		PayloadSize: 1 << 20,
	}
}

func TestBandwidthProber(t *testing.T) {
	_, p := payloadServer(t, 1<<20, http.StatusOK)
	v, err := p.Probe(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	assert.Greater(t, v, 0.0)
	assert.Equal(t, state.Bandwidth, p.Kind())
}

func TestBandwidthProber_BadStatus(t *testing.T) {
	_, p := payloadServer(t, 1<<20, http.StatusInternalServerError)
	_, err := p.Probe(context.Background(), "127.0.0.1")
	assert.ErrorContains(t, err, "500")
}

func TestBandwidthProber_ShortPayload(t *testing.T) {
	_, p := payloadServer(t, 1000, http.StatusOK)
	_, err := p.Probe(context.Background(), "127.0.0.1")
	assert.ErrorContains(t, err, "1,000 of 1,048,576")
}

func TestBandwidthProber_URL(t *testing.T) {
	p := &BandwidthProber{Port: 8080, Path: "/10MB.bin"}
	assert.Equal(t, "http://25.0.0.1:8080/10MB.bin", p.URL("25.0.0.1"))
	assert.Equal(t, "http://[fd00::1]:8080/10MB.bin", p.URL("fd00::1"))
}

func TestMbps(t *testing.T) {
	assert.Equal(t, 80.0, Mbps(10*1024*1024, time.Second))
	assert.Greater(t, Mbps(1, 0), 0.0)
}

type fakePinger struct {
	rtt time.Duration
	err error
}

func (f fakePinger) PingAttempts(remote *net.IPAddr, timeout time.Duration, attempts int) (time.Duration, error) {
	return f.rtt, f.err
}

func TestLatencyProber(t *testing.T) {
	var bound4 string
	p := &LatencyProber{
		Attempts: 2,
		Timeout:  time.Second,
		openPinger: func(bind4, bind6 string) (pinger, func(), error) {
			bound4 = bind4
			return fakePinger{rtt: 1500 * time.Microsecond}, func() {}, nil
		},
	}
	v, err := p.Probe(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)
	assert.Equal(t, "0.0.0.0", bound4)
}

func TestLatencyProber_Error(t *testing.T) {
	p := &LatencyProber{
		Timeout: time.Second,
		openPinger: func(bind4, bind6 string) (pinger, func(), error) {
			return fakePinger{err: errors.New("timeout")}, func() {}, nil
		},
	}
	_, err := p.Probe(context.Background(), "127.0.0.1")
	assert.Error(t, err)
}

// scriptedProber returns fixed results per peer and records when each peer was probed.
type scriptedProber struct {
	kind    state.MetricKind
	results map[state.NodeId]float64
	errs    map[state.NodeId]error
	block   map[state.NodeId]bool

	mu    sync.Mutex
	calls []state.NodeId
	times []time.Time
}

func (s *scriptedProber) Kind() state.MetricKind {
	return s.kind
}

func (s *scriptedProber) Probe(ctx context.Context, peer state.NodeId) (float64, error) {
	s.mu.Lock()
	s.calls = append(s.calls, peer)
	s.times = append(s.times, time.Now())
	s.mu.Unlock()
	if s.block[peer] {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if err := s.errs[peer]; err != nil {
		return 0, err
	}
	return s.results[peer], nil
}

func fastProbeCfg() state.ProbeCfg {
	return state.ProbeCfg{Timeout: 100 * time.Millisecond, Pacing: 20 * time.Millisecond}
}

func withMinPacing(t *testing.T, d time.Duration) {
	old := state.MinProbePacing
	state.MinProbePacing = d
	t.Cleanup(func() {
		state.MinProbePacing = old
	})
}

func TestProbeService_Run(t *testing.T) {
	withMinPacing(t, 10*time.Millisecond)
	prober := &scriptedProber{
		kind:    state.Bandwidth,
		results: map[state.NodeId]float64{"a": 5.2, "c": 9},
		errs:    map[state.NodeId]error{"b": errors.New("connection refused")},
		block:   map[state.NodeId]bool{"d": true},
	}
	peers := []state.NodeId{"a", "b", "c", "d"}
	svc := NewProbeService(peers, prober, fastProbeCfg(), slog.New(slog.DiscardHandler))

	store, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, peers, prober.calls)
	assert.Equal(t, peers, store.Peers())
	assert.Equal(t, map[state.NodeId]float64{"a": 5.2, "b": 0, "c": 9, "d": 0}, store.Values())
	assert.Equal(t, 2, store.Successful())
	assert.NotEmpty(t, store.RunId())

	for i := 1; i < len(prober.times); i++ {
		assert.GreaterOrEqual(t, prober.times[i].Sub(prober.times[i-1]), 20*time.Millisecond)
	}
}

func TestProbeService_LatencySentinel(t *testing.T) {
	withMinPacing(t, 10*time.Millisecond)
	prober := &scriptedProber{
		kind:    state.Latency,
		results: map[state.NodeId]float64{"a": 3},
		errs:    map[state.NodeId]error{"b": errors.New("unreachable")},
	}
	svc := NewProbeService([]state.NodeId{"a", "b"}, prober, fastProbeCfg(), slog.New(slog.DiscardHandler))
	store, err := svc.Run(context.Background())
	require.NoError(t, err)
	v, _ := store.Value("b")
	assert.True(t, state.Latency.IsFailure(v))
}

func TestProbeService_RunCancelled(t *testing.T) {
	prober := &scriptedProber{kind: state.Bandwidth, results: map[state.NodeId]float64{"a": 1, "b": 1}}
	svc := NewProbeService([]state.NodeId{"a", "b"}, prober, state.ProbeCfg{Timeout: time.Second, Pacing: time.Hour},
		slog.New(slog.DiscardHandler))
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	_, err := svc.Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, svc.History().Len())
}

func TestProbeService_Worker(t *testing.T) {
	defer goleak.VerifyNone(t)
	withMinPacing(t, 10*time.Millisecond)
	prober := &scriptedProber{kind: state.Bandwidth, results: map[state.NodeId]float64{"a": 1}}
	svc := NewProbeService([]state.NodeId{"a"}, prober, fastProbeCfg(), slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	svc.Trigger()
	select {
	case store := <-svc.Results():
		v, _ := store.Value("a")
		assert.Equal(t, 1.0, v)
	case <-time.After(5 * time.Second):
		t.Fatal("no result published")
	}
	assert.Equal(t, 1, svc.History().Len())
	assert.NotNil(t, svc.History().Latest())

	cancel()
	svc.Wait()
}

func TestClassifyProbeError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	<-ctx.Done()
	var te *state.ProbeTimeoutError
	assert.True(t, errors.As(classifyProbeError(ctx, "a", time.Second, ctx.Err()), &te))

	var ce *state.ProbeConnectionError
	err := classifyProbeError(context.Background(), "a", time.Second, errors.New("refused"))
	assert.True(t, errors.As(err, &ce))
}

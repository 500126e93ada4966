package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/digineo/go-ping"
	"github.com/encodeous/nyroute/perf"
	"github.com/encodeous/nyroute/state"
	"github.com/google/uuid"
)

// Prober measures a single peer. Probe returns the raw metric, errors are turned into sentinels by the ProbeService.
type Prober interface {
	Kind() state.MetricKind
	Probe(ctx context.Context, peer state.NodeId) (float64, error)
}

func NewProber(cfg state.ProbeCfg) Prober {
	if cfg.Mode == state.Latency {
		return &LatencyProber{
			Attempts: cfg.Attempts,
			Timeout:  cfg.Timeout,
			BindIf:   cfg.BindIf,
		}
	}
	return &BandwidthProber{
		Port:        cfg.Port,
		Path:        cfg.Path,
		PayloadSize: cfg.PayloadSize,
	}
}

// BandwidthProber downloads a payload of known size from the peer's payload server.
type BandwidthProber struct {
	Client      *http.Client
	Port        int
	Path        string
	PayloadSize int64
}

func (b *BandwidthProber) Kind() state.MetricKind {
	return state.Bandwidth
}

func (b *BandwidthProber) URL(peer state.NodeId) string {
	return fmt.Sprintf("http://%s%s", net.JoinHostPort(string(peer), strconv.Itoa(b.Port)), b.Path)
}

func (b *BandwidthProber) Probe(ctx context.Context, peer state.NodeId) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.URL(peer), nil)
	if err != nil {
		return 0, err
	}
	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("payload server responded %s", resp.Status)
	}
	n, err := io.Copy(io.Discard, io.LimitReader(resp.Body, b.PayloadSize))
	elapsed := time.Since(start)
	if err != nil {
		return 0, err
	}
	if n < b.PayloadSize {
		return 0, fmt.Errorf("payload ended after %s of %s bytes: %w", state.FormatBytes(n), state.FormatBytes(b.PayloadSize), io.ErrUnexpectedEOF)
	}
	return Mbps(n, elapsed), nil
}

// Mbps converts a transfer of n bytes over elapsed into megabits per second (1 MB = 2^20 bytes).
func Mbps(n int64, elapsed time.Duration) float64 {
	secs := elapsed.Seconds()
	// sometimes our system clock is not fast enough, so elapsed is 0
	if secs <= 0 {
		secs = time.Microsecond.Seconds()
	}
	return float64(n) / (1024 * 1024) * 8 / secs
}

type pinger interface {
	PingAttempts(remote *net.IPAddr, timeout time.Duration, attempts int) (time.Duration, error)
}

// LatencyProber sends ICMP echo requests to the peer. Raw sockets usually need elevated privileges.
type LatencyProber struct {
	Attempts int
	Timeout  time.Duration
	BindIf   string // local interface to bind to

	// openPinger is replaced in tests
	openPinger func(bind4, bind6 string) (pinger, func(), error)
}

func (l *LatencyProber) Kind() state.MetricKind {
	return state.Latency
}

func openICMP(bind4, bind6 string) (pinger, func(), error) {
	p, err := ping.New(bind4, bind6)
	if err != nil {
		return nil, nil, err
	}
	return p, func() { p.Close() }, nil
}

func (l *LatencyProber) Probe(ctx context.Context, peer state.NodeId) (float64, error) {
	addr, err := net.DefaultResolver.LookupIPAddr(ctx, string(peer))
	if err != nil {
		return 0, err
	}
	if len(addr) == 0 {
		return 0, fmt.Errorf("%s did not resolve to any address", peer)
	}
	remote := &addr[0]
	is6 := remote.IP.To4() == nil

	bind4, bind6 := "", ""
	if is6 {
		bind6 = "::"
	} else {
		bind4 = "0.0.0.0"
	}
	if l.BindIf != "" {
		ip, err := GetIfIP(l.BindIf, is6)
		if err != nil {
			return 0, err
		}
		if is6 {
			bind6 = ip
		} else {
			bind4 = ip
		}
	}

	open := l.openPinger
	if open == nil {
		open = openICMP
	}
	p, closePinger, err := open(bind4, bind6)
	if err != nil {
		return 0, fmt.Errorf("failed to start pinger: %w", err)
	}
	defer closePinger()

	attempts := max(l.Attempts, 1)
	timeout := l.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); timeout <= 0 || until < timeout {
			timeout = until
		}
	}
	if timeout <= 0 {
		return 0, context.DeadlineExceeded
	}
	rtt, err := p.PingAttempts(remote, timeout/time.Duration(attempts), attempts)
	if err != nil {
		return 0, err
	}
	return float64(rtt) / float64(time.Millisecond), nil
}

// ProbeService measures every configured peer, one after the other, on its own worker goroutine.
type ProbeService struct {
	peers   []state.NodeId
	prober  Prober
	timeout time.Duration
	pacing  time.Duration
	history *state.MetricHistory
	log     *slog.Logger

	trigger chan struct{}
	results chan *state.MetricStore
	wg      sync.WaitGroup
}

func NewProbeService(peers []state.NodeId, prober Prober, cfg state.ProbeCfg, log *slog.Logger) *ProbeService {
	return &ProbeService{
		peers:   append([]state.NodeId(nil), peers...),
		prober:  prober,
		timeout: cfg.Timeout,
		pacing:  max(cfg.Pacing, state.MinProbePacing),
		history: &state.MetricHistory{},
		log:     log.With("module", "probe"),
		trigger: make(chan struct{}, 1),
		results: make(chan *state.MetricStore, state.ResultsBufferSize),
	}
}

// History exposes the published stores. Readers must treat them as read-only.
func (p *ProbeService) History() *state.MetricHistory {
	return p.history
}

// Results delivers each published store. If the consumer lags, the oldest undelivered store is dropped; the history keeps all of them.
func (p *ProbeService) Results() <-chan *state.MetricStore {
	return p.results
}

// Start launches the worker. It exits when ctx is cancelled, Wait blocks until then.
func (p *ProbeService) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.worker(ctx)
	}()
}

func (p *ProbeService) Wait() {
	p.wg.Wait()
}

// Trigger requests a run. Requests made while one is already pending are coalesced.
func (p *ProbeService) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

func (p *ProbeService) worker(ctx context.Context) {
	p.log.Debug("probe worker started")
	defer p.log.Debug("probe worker stopped")
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.trigger:
			store, err := p.Run(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				p.log.Error("probe run failed", "error", err)
				continue
			}
			p.publish(store)
		}
	}
}

func (p *ProbeService) publish(store *state.MetricStore) {
	p.history.Append(store)
	for {
		select {
		case p.results <- store:
			return
		default:
			select {
			case old := <-p.results:
				p.log.Warn("dropping undelivered metric store", "run", old.RunId())
			default:
			}
		}
	}
}

// Run probes all peers sequentially in configured order and returns the resulting store without publishing it.
// Individual probe failures are recorded as sentinel values. Only cancellation of ctx aborts the run.
func (p *ProbeService) Run(ctx context.Context) (*state.MetricStore, error) {
	kind := p.prober.Kind()
	runId := uuid.NewString()
	log := p.log.With("run", runId, "kind", kind)
	log.Info("probe run started", "peers", len(p.peers))
	perf.ProbeRuns.Add(1)

	timestamp := time.Now()
	values := make(map[state.NodeId]float64, len(p.peers))
	for i, peer := range p.peers {
		if i > 0 {
			if err := sleepCtx(ctx, p.pacing); err != nil {
				return nil, err
			}
		}
		values[peer] = p.probeOne(ctx, log, peer)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	store, err := state.NewMetricStore(kind, timestamp, runId, p.peers, values)
	if err != nil {
		return nil, err
	}
	log.Info("probe run complete", "successful", store.Successful(), "peers", store.Len())
	return store, nil
}

func (p *ProbeService) probeOne(ctx context.Context, log *slog.Logger, peer state.NodeId) float64 {
	kind := p.prober.Kind()
	pctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	v, err := p.prober.Probe(pctx, peer)
	elapsed := time.Since(start)
	perf.ProbeDuration.Add(float64(elapsed.Milliseconds()))
	if err == nil && kind.IsFailure(v) {
		err = fmt.Errorf("unusable %s value %v", kind, v)
	}
	if err != nil {
		perf.ProbeFailures.Add(1)
		log.Warn("probe failed", "peer", peer, "error", classifyProbeError(pctx, peer, p.timeout, err))
		return kind.Sentinel()
	}
	log.Info("probe complete", "peer", peer, "value", v, "unit", kind.Unit(), "elapsed", elapsed)
	return v
}

func classifyProbeError(pctx context.Context, peer state.NodeId, timeout time.Duration, err error) error {
	var ne net.Error
	if errors.Is(pctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &ne) && ne.Timeout()) {
		return &state.ProbeTimeoutError{Peer: peer, Timeout: timeout}
	}
	return &state.ProbeConnectionError{Peer: peer, Err: err}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

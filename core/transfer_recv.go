package core

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/encodeous/nyroute/perf"
	"github.com/encodeous/nyroute/state"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/net/netutil"
)

type ReceiverState int32

const (
	Listening ReceiverState = iota
	Accepted
	ReceivingHeader
	ReceivingBody
	Complete
	Incomplete
	Closed
)

func (s ReceiverState) String() string {
	switch s {
	case Listening:
		return "listening"
	case Accepted:
		return "accepted"
	case ReceivingHeader:
		return "receiving-header"
	case ReceivingBody:
		return "receiving-body"
	case Complete:
		return "complete"
	case Incomplete:
		return "incomplete"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Receiver accepts one transfer at a time and writes the files into the receive directory.
type Receiver struct {
	cfg     state.TransferCfg
	log     *slog.Logger
	state   atomic.Int32
	results chan TransferResult
	recent  *ttlcache.Cache[string, TransferResult]
	done    chan struct{}

	mu        sync.Mutex
	ln        net.Listener
	conn      net.Conn
	closed    bool
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewReceiver(cfg state.TransferCfg, log *slog.Logger) *Receiver {
	if cfg.RecentTTL <= 0 {
		cfg.RecentTTL = state.RecentTransferTTL
	}
	return &Receiver{
		cfg:     cfg,
		log:     log.With("module", "receiver"),
		results: make(chan TransferResult, state.ResultsBufferSize),
		recent: ttlcache.New[string, TransferResult](
			ttlcache.WithTTL[string, TransferResult](cfg.RecentTTL),
			ttlcache.WithDisableTouchOnHit[string, TransferResult](),
		),
		done: make(chan struct{}),
	}
}

// Listen binds the configured port. Port 0 picks a free port, see Addr.
func (r *Receiver) Listen() error {
	ln, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(r.cfg.Port)))
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		ln.Close()
		return net.ErrClosed
	}
	r.ln = netutil.LimitListener(ln, 1)
	r.state.Store(int32(Listening))
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.evictExpired()
	}()
	r.log.Info("listening for transfers", "addr", ln.Addr(), "dir", r.cfg.ReceiveDir)
	return nil
}

func (r *Receiver) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ln == nil {
		return nil
	}
	return r.ln.Addr()
}

func (r *Receiver) State() ReceiverState {
	return ReceiverState(r.state.Load())
}

// Results delivers every finished transfer. It is closed once the receiver is closed.
func (r *Receiver) Results() <-chan TransferResult {
	return r.results
}

// Recent returns the transfers finished within the last RecentTTL, oldest first.
func (r *Receiver) Recent() []TransferResult {
	out := make([]TransferResult, 0)
	for _, item := range r.recent.Items() {
		if item.IsExpired() {
			continue
		}
		out = append(out, item.Value())
	}
	slices.SortFunc(out, func(a, b TransferResult) int {
		return a.Finished.Compare(b.Finished)
	})
	return out
}

// Serve accepts connections until ctx is cancelled or the receiver is closed.
func (r *Receiver) Serve(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	ln := r.ln
	if ln == nil {
		r.mu.Unlock()
		return errors.New("receiver is not listening")
	}
	r.wg.Add(1)
	r.mu.Unlock()
	defer r.wg.Done()

	stop := context.AfterFunc(ctx, func() {
		r.Close()
	})
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if r.isClosed() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			conn.Close()
			return nil
		}
		r.conn = conn
		r.wg.Add(1)
		r.mu.Unlock()
		go func() {
			defer r.wg.Done()
			r.handle(conn)
		}()
	}
}

// evictExpired drops expired results from the recent cache until the receiver is closed.
func (r *Receiver) evictExpired() {
	t := time.NewTicker(max(r.cfg.RecentTTL/2, time.Millisecond))
	defer t.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-t.C:
			r.recent.DeleteExpired()
		}
	}
}

func (r *Receiver) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Close stops accepting, aborts the transfer in flight and waits for all goroutines to exit.
func (r *Receiver) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.done)
		if r.ln != nil {
			err = r.ln.Close()
		}
		if r.conn != nil {
			r.conn.Close()
		}
		r.mu.Unlock()

		r.wg.Wait()
		r.state.Store(int32(Closed))
		close(r.results)
		r.recent.DeleteAll()
	})
	return err
}

func (r *Receiver) handle(conn net.Conn) {
	defer func() {
		conn.Close()
		r.mu.Lock()
		if r.conn == conn {
			r.conn = nil
		}
		closed := r.closed
		r.mu.Unlock()
		if !closed {
			r.state.Store(int32(Listening))
		}
	}()

	res := TransferResult{
		Id:   uuid.NewString(),
		Peer: conn.RemoteAddr().String(),
	}
	log := r.log.With("transfer", res.Id, "peer", res.Peer)
	log.Debug("connection accepted")
	r.state.Store(int32(Accepted))
	start := time.Now()

	r.state.Store(int32(ReceivingHeader))
	r.setReadDeadline(conn)
	hdr, err := ReadHeader(conn, state.MaxHeaderSize, state.HeaderSettle)
	if err != nil {
		if isTimeout(err) {
			err = &state.TransferTimeoutError{Addr: res.Peer, Op: "read", Timeout: r.cfg.IOTimeout}
		}
		res.Err = err
		r.finish(log, res, start)
		return
	}
	res.File = hdr.Name
	res.Expected = hdr.Size
	log = log.With("file", hdr.Name)
	log.Info("receiving file", "size", state.FormatBytes(hdr.Size))

	r.state.Store(int32(ReceivingBody))
	res.Bytes, res.Err = r.receiveBody(conn, hdr)
	r.finish(log, res, start)
}

func (r *Receiver) setReadDeadline(conn net.Conn) {
	var deadline time.Time
	if r.cfg.IOTimeout > 0 {
		deadline = time.Now().Add(r.cfg.IOTimeout)
	}
	_ = conn.SetReadDeadline(deadline)
}

// receiveBody writes exactly hdr.Size bytes to the receive directory. On any failure the partial file is removed
// and a previous file of the same name is left untouched.
func (r *Receiver) receiveBody(conn net.Conn, hdr *TransferHeader) (int64, error) {
	if err := os.MkdirAll(r.cfg.ReceiveDir, 0700); err != nil {
		return 0, err
	}
	dst := filepath.Join(r.cfg.ReceiveDir, hdr.Name)
	// an existing file of the same name is only replaced once the new one is complete
	f, err := os.CreateTemp(r.cfg.ReceiveDir, "."+hdr.Name+".*.part")
	if err != nil {
		return 0, err
	}

	var received int64
	var rerr error
	if len(hdr.Rest) > 0 {
		head := hdr.Rest[:min(int64(len(hdr.Rest)), hdr.Size)]
		if _, err := f.Write(head); err != nil {
			rerr = err
		}
		received += int64(len(head))
	}

	buf := make([]byte, max(r.cfg.ChunkSize, 1))
	for rerr == nil && received < hdr.Size {
		want := min(int64(len(buf)), hdr.Size-received)
		r.setReadDeadline(conn)
		n, err := conn.Read(buf[:want])
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				rerr = werr
				break
			}
			received += int64(n)
			perf.RecvBytesPerSecond.Add(float64(n))
		}
		if err != nil {
			rerr = err
		}
	}

	cerr := f.Close()
	if received == hdr.Size && cerr == nil {
		cerr = os.Rename(f.Name(), dst)
		if cerr == nil {
			return received, nil
		}
	}
	if err := os.Remove(f.Name()); err != nil {
		r.log.Warn("failed to remove partial file", "path", f.Name(), "error", err)
	}
	if cerr != nil && rerr == nil {
		return received, cerr
	}
	incomplete := &state.TransferIncompleteError{File: hdr.Name, Received: received, Expected: hdr.Size}
	if isTimeout(rerr) {
		return received, errors.Join(incomplete, &state.TransferTimeoutError{Addr: conn.RemoteAddr().String(), Op: "read", Timeout: r.cfg.IOTimeout})
	}
	return received, incomplete
}

func (r *Receiver) finish(log *slog.Logger, res TransferResult, start time.Time) {
	res.Duration = time.Since(start)
	res.Finished = time.Now()
	if res.Err != nil {
		perf.TransfersFailed.Add(1)
		r.state.Store(int32(Incomplete))
		log.Warn("transfer failed", "error", res.Err)
	} else {
		perf.TransfersComplete.Add(1)
		r.state.Store(int32(Complete))
		log.Info("file received", "bytes", state.FormatBytes(res.Bytes), "elapsed", res.Duration,
			"mbps", Mbps(res.Bytes, res.Duration))
	}
	r.recent.Set(res.Id, res, ttlcache.DefaultTTL)
	select {
	case r.results <- res:
	default:
		log.Warn("results channel full, dropping transfer result")
	}
}

package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/encodeous/nyroute/perf"
	"github.com/encodeous/nyroute/state"
	"github.com/google/uuid"
)

// TransferResult describes one finished file transfer, sent or received.
type TransferResult struct {
	Id       string
	File     string
	Peer     string
	Bytes    int64
	Expected int64
	Duration time.Duration
	Finished time.Time
	Err      error
}

func (r TransferResult) Complete() bool {
	return r.Err == nil && r.Bytes == r.Expected
}

func (r TransferResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s from %s: %v", r.File, r.Peer, r.Err)
	}
	return fmt.Sprintf("%s from %s: %s bytes in %s", r.File, r.Peer, state.FormatBytes(r.Bytes), r.Duration)
}

// Sender streams files to a receiver over TCP.
type Sender struct {
	ConnectTimeout time.Duration
	IOTimeout      time.Duration
	ChunkSize      int
	Log            *slog.Logger

	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

func NewSender(cfg state.TransferCfg, log *slog.Logger) *Sender {
	return &Sender{
		ConnectTimeout: cfg.ConnectTimeout,
		IOTimeout:      cfg.IOTimeout,
		ChunkSize:      cfg.ChunkSize,
		Log:            log.With("module", "sender"),
	}
}

func (s *Sender) connect(ctx context.Context, addr string) (net.Conn, error) {
	if s.dial != nil {
		return s.dial(ctx, "tcp", addr)
	}
	d := net.Dialer{Timeout: s.ConnectTimeout}
	return d.DialContext(ctx, "tcp", addr)
}

// Send transfers the file at path to addr, connecting directly.
func (s *Sender) Send(ctx context.Context, addr, path string) (*TransferResult, error) {
	name := filepath.Base(path)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}
	header, err := EncodeHeader(name, info.Size())
	if err != nil {
		return nil, err
	}

	res := &TransferResult{
		Id:       uuid.NewString(),
		File:     name,
		Peer:     addr,
		Expected: info.Size(),
	}
	log := s.Log.With("transfer", res.Id, "peer", addr, "file", name)

	conn, err := s.connect(ctx, addr)
	if err != nil {
		if isTimeout(err) {
			return nil, &state.TransferTimeoutError{Addr: addr, Op: "connect", Timeout: s.ConnectTimeout}
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	closed := false
	defer func() {
		if !closed {
			_ = conn.Close()
		}
	}()
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	log.Info("sending file", "size", state.FormatBytes(info.Size()))
	start := time.Now()
	buf := make([]byte, max(s.ChunkSize, 1))
	n, rerr := f.Read(buf)
	if err := s.write(conn, header); err != nil {
		perf.TransfersFailed.Add(1)
		return nil, s.writeErr(ctx, addr, err)
	}
	if n > 0 && isDigit(buf[0]) {
		// the receiver only tells leading digits apart from the size when they arrive after a gap
		log.Debug("body starts with a digit, pausing after header", "pause", state.HeaderPause)
		select {
		case <-ctx.Done():
			perf.TransfersFailed.Add(1)
			return nil, fmt.Errorf("transfer to %s aborted: %w", addr, ctx.Err())
		case <-time.After(state.HeaderPause):
		}
	}

	for {
		if n > 0 {
			if err := s.write(conn, buf[:n]); err != nil {
				perf.TransfersFailed.Add(1)
				return nil, s.writeErr(ctx, addr, err)
			}
			res.Bytes += int64(n)
			perf.SentBytesPerSecond.Add(float64(n))
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			perf.TransfersFailed.Add(1)
			return nil, rerr
		}
		n, rerr = f.Read(buf)
	}
	res.Duration = time.Since(start)
	res.Finished = time.Now()

	if res.Bytes != res.Expected {
		perf.TransfersFailed.Add(1)
		return nil, &state.TransferIncompleteError{File: name, Received: res.Bytes, Expected: res.Expected}
	}
	closed = true
	if err := conn.Close(); err != nil {
		perf.TransfersFailed.Add(1)
		return nil, fmt.Errorf("failed to close connection to %s: %w", addr, err)
	}
	perf.TransfersComplete.Add(1)
	log.Info("file sent", "bytes", state.FormatBytes(res.Bytes), "elapsed", res.Duration,
		"mbps", Mbps(res.Bytes, res.Duration))
	return res, nil
}

func (s *Sender) write(conn net.Conn, b []byte) error {
	if s.IOTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(s.IOTimeout)); err != nil {
			return err
		}
	}
	_, err := conn.Write(b)
	return err
}

func (s *Sender) writeErr(ctx context.Context, addr string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("transfer to %s aborted: %w", addr, ctx.Err())
	}
	if isTimeout(err) {
		return &state.TransferTimeoutError{Addr: addr, Op: "write", Timeout: s.IOTimeout}
	}
	return fmt.Errorf("failed to write to %s: %w", addr, err)
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout())
}

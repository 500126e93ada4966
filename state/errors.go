package state

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	ErrEmptyMetricStore = errors.New("metric store has no peers")
	ErrUnknownNode      = errors.New("node is not part of the graph")
	// ErrPipeInFilename is returned for filenames containing '|'. The transfer header has no escaping, so such names cannot be sent.
	ErrPipeInFilename = errors.New("filename contains '|', which the transfer header cannot carry")
)

var printer = message.NewPrinter(language.English)

// FormatBytes renders a byte count with thousands separators, e.g. 10,485,760
func FormatBytes(n int64) string {
	return printer.Sprintf("%d", n)
}

type ProbeTimeoutError struct {
	Peer    NodeId
	Timeout time.Duration
}

func (e *ProbeTimeoutError) Error() string {
	return fmt.Sprintf("probe to %s timed out after %s", e.Peer, e.Timeout)
}

type ProbeConnectionError struct {
	Peer NodeId
	Err  error
}

func (e *ProbeConnectionError) Error() string {
	return fmt.Sprintf("probe to %s failed: %v", e.Peer, e.Err)
}

func (e *ProbeConnectionError) Unwrap() error {
	return e.Err
}

type RouteNotFoundError struct {
	Source      NodeId
	Destination NodeId
}

func (e *RouteNotFoundError) Error() string {
	return fmt.Sprintf("no route from %s to %s", e.Source, e.Destination)
}

type MalformedHeaderError struct {
	Header string
	Reason string
}

func (e *MalformedHeaderError) Error() string {
	return fmt.Sprintf("malformed transfer header %q: %s", e.Header, e.Reason)
}

type TransferIncompleteError struct {
	File     string
	Received int64
	Expected int64
}

func (e *TransferIncompleteError) Error() string {
	return fmt.Sprintf("transfer of %s incomplete: received %s of %s bytes", e.File, FormatBytes(e.Received), FormatBytes(e.Expected))
}

type TransferTimeoutError struct {
	Addr    string
	Op      string // connect, read or write
	Timeout time.Duration
}

func (e *TransferTimeoutError) Error() string {
	return fmt.Sprintf("transfer %s with %s exceeded %s", e.Op, e.Addr, e.Timeout)
}

// Timeout implements the net.Error convention.
func (e *TransferTimeoutError) Timeout() bool {
	return true
}

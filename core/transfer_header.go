package core

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/encodeous/nyroute/state"
)

// EncodeHeader builds the transfer header "<name>|<size>". The header has no terminator or escaping.
func EncodeHeader(name string, size int64) ([]byte, error) {
	if strings.Contains(name, "|") {
		return nil, fmt.Errorf("%s: %w", name, state.ErrPipeInFilename)
	}
	if size < 0 {
		return nil, fmt.Errorf("negative size %d for %s", size, name)
	}
	return []byte(name + "|" + strconv.FormatInt(size, 10)), nil
}

// SanitizeFilename reduces a received name to its last path element. Names that would escape
// the receive directory are rejected.
func SanitizeFilename(name string) (string, error) {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	switch base {
	case "", ".", "..", "/":
		return "", fmt.Errorf("unusable filename %q", name)
	}
	return base, nil
}

// TransferHeader is a decoded header. Rest holds body bytes that arrived in the same reads as the header.
type TransferHeader struct {
	Name string
	Size int64
	Rest []byte
}

type deadlineReader interface {
	io.Reader
	SetReadDeadline(t time.Time) error
}

// ReadHeader reads from r until the separator and the whole size have arrived. The size ends at the first
// non-digit byte or at EOF. When r supports read deadlines, it also ends once no byte has arrived for settle
// after a digit, so senders must pause for longer than settle before a body that starts with a digit.
// The read deadline of r is left expired in that case.
func ReadHeader(r io.Reader, maxSize int, settle time.Duration) (*TransferHeader, error) {
	dr, canSettle := r.(deadlineReader)
	canSettle = canSettle && settle > 0
	buf := make([]byte, 0, maxSize)
	for {
		idx := bytes.IndexByte(buf, '|')
		sized := idx >= 0 && idx+1 < len(buf)
		if sized && !allDigits(buf[idx+1:]) {
			return parseHeader(buf, idx)
		}
		if len(buf) == maxSize {
			if sized {
				return parseHeader(buf, idx)
			}
			return nil, &state.MalformedHeaderError{Header: string(buf), Reason: fmt.Sprintf("no size within %d bytes", maxSize)}
		}
		settling := canSettle && sized
		if settling {
			if err := dr.SetReadDeadline(time.Now().Add(settle)); err != nil {
				return nil, err
			}
		}
		n, err := r.Read(buf[len(buf):maxSize])
		buf = buf[:len(buf)+n]

		if err == nil {
			continue
		}
		if settling && isTimeout(err) {
			return parseHeader(buf, idx)
		}
		if !errors.Is(err, io.EOF) {
			return nil, err
		}
		if len(buf) == 0 {
			return nil, fmt.Errorf("connection closed before header: %w", io.ErrUnexpectedEOF)
		}
		idx = bytes.IndexByte(buf, '|')
		if idx < 0 {
			return nil, &state.MalformedHeaderError{Header: string(buf), Reason: "missing '|' separator"}
		}
		if idx+1 == len(buf) {
			return nil, &state.MalformedHeaderError{Header: string(buf), Reason: "missing size"}
		}
		return parseHeader(buf, idx)
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func allDigits(b []byte) bool {
	for _, c := range b {
		if !isDigit(c) {
			return false
		}
	}
	return true
}

func parseHeader(buf []byte, idx int) (*TransferHeader, error) {
	after := buf[idx+1:]
	digits := 0
	for digits < len(after) && isDigit(after[digits]) {
		digits++
	}
	raw := string(buf[:idx+1+digits])
	if digits == 0 {
		return nil, &state.MalformedHeaderError{Header: string(buf), Reason: "size is not a decimal number"}
	}
	size, err := strconv.ParseInt(string(after[:digits]), 10, 64)
	if err != nil {
		return nil, &state.MalformedHeaderError{Header: raw, Reason: "size out of range"}
	}
	if idx == 0 {
		return nil, &state.MalformedHeaderError{Header: raw, Reason: "empty filename"}
	}
	name, err := SanitizeFilename(string(buf[:idx]))
	if err != nil {
		return nil, &state.MalformedHeaderError{Header: raw, Reason: err.Error()}
	}
	return &TransferHeader{
		Name: name,
		Size: size,
		Rest: bytes.Clone(after[digits:]),
	}, nil
}

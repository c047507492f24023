package scl

import (
	"errors"
	"io"
	"net"
	"os"
	"time"
)

var ErrResponseTimeout = errors.New("scl: response timeout")

// TimedReader is the minimal read surface a transport must offer for
// terminator-bounded reads.
type TimedReader interface {
	io.Reader
	SetReadDeadline(t time.Time) error
}

// IsTerminator reports whether b ends a drive response: CR, '%' (ack) or '?' (nack).
func IsTerminator(b byte) bool {
	return b == '\r' || b == '%' || b == '?'
}

// IsLineTerminator extends IsTerminator with LF for newline-framed links.
func IsLineTerminator(b byte) bool {
	return b == '\n' || IsTerminator(b)
}

// ReadUntilTerminator accumulates bytes until a terminator arrives or the
// timeout elapses. On timeout it returns whatever was collected together with
// ErrResponseTimeout. It never blocks past the deadline.
func ReadUntilTerminator(r TimedReader, timeout time.Duration) (string, error) {
	return readUntil(r, timeout, IsTerminator)
}

// ReadFramed is ReadUntilTerminator with the terminator set matching f.
func ReadFramed(r TimedReader, f Framing, timeout time.Duration) (string, error) {
	if f == FramingLine {
		return readUntil(r, timeout, IsLineTerminator)
	}
	return readUntil(r, timeout, IsTerminator)
}

func readUntil(r TimedReader, timeout time.Duration, isTerm func(byte) bool) (string, error) {
	deadline := time.Now().Add(timeout)
	if err := r.SetReadDeadline(deadline); err != nil {
		return "", err
	}
	var buf []byte
	chunk := make([]byte, 256)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if containsAny(chunk[:n], isTerm) {
				return DecodeResponse(buf), nil
			}
		}
		if err != nil {
			if IsTimeout(err) {
				return DecodeResponse(buf), ErrResponseTimeout
			}
			return DecodeResponse(buf), err
		}
		if !time.Now().Before(deadline) {
			return DecodeResponse(buf), ErrResponseTimeout
		}
	}
}

// IsTimeout reports whether err is a read/write deadline expiry.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrResponseTimeout) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func containsAny(b []byte, isTerm func(byte) bool) bool {
	for _, c := range b {
		if isTerm(c) {
			return true
		}
	}
	return false
}

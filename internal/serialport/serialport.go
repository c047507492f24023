// Package serialport opens serial devices and adapts them to the deadline
// read surface the line codecs expect.
package serialport

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"
)

var (
	ErrNoDevice = errors.New("serialport: device path required")
	ErrBadBaud  = errors.New("serialport: unsupported baud rate")
	ErrClosed   = errors.New("serialport: port closed")
)

// SupportedBauds lists the rates offered to operators.
var SupportedBauds = []int{9600, 19200, 38400, 57600, 115200, 230400}

const (
	DefaultBaud        = 115200
	DefaultReadTimeout = 100 * time.Millisecond
)

type Config struct {
	Device      string
	Baud        int
	ReadTimeout time.Duration
}

func (c Config) WithDefaults() Config {
	if c.Baud <= 0 {
		c.Baud = DefaultBaud
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	return c
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Device) == "" {
		return ErrNoDevice
	}
	for _, b := range SupportedBauds {
		if b == c.Baud {
			return nil
		}
	}
	return fmt.Errorf("%w: %d", ErrBadBaud, c.Baud)
}

// Port is the raw device surface. A read that returns (0, io.EOF) or (0, nil)
// means the per-read timeout elapsed with nothing buffered.
type Port interface {
	io.ReadWriteCloser
	Flush() error
}

// Open opens the device with tarm/serial using the per-read timeout in cfg.
func Open(cfg Config) (*Conn, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("serialport: open %s: %w", cfg.Device, err)
	}
	return Wrap(port), nil
}

// Conn layers read deadlines over a Port.
type Conn struct {
	port Port

	mu       sync.Mutex
	deadline time.Time
	closed   bool
}

func Wrap(p Port) *Conn {
	return &Conn{port: p}
}

func (c *Conn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadline = t
	return nil
}

// Read blocks until data arrives, the deadline passes or the port fails.
// Deadline expiry is reported as os.ErrDeadlineExceeded.
func (c *Conn) Read(b []byte) (int, error) {
	for {
		c.mu.Lock()
		closed, deadline := c.closed, c.deadline
		c.mu.Unlock()
		if closed {
			return 0, ErrClosed
		}

		n, err := c.port.Read(b)
		if n > 0 {
			return n, nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return 0, os.ErrDeadlineExceeded
		}
		if deadline.IsZero() && err == nil {
			// no timeout armed and nothing read; yield rather than spin
			time.Sleep(time.Millisecond)
		}
	}
}

func (c *Conn) Write(b []byte) (int, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return 0, ErrClosed
	}
	return c.port.Write(b)
}

// Discard drops any unread input.
func (c *Conn) Discard() error {
	return c.port.Flush()
}

func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.port.Close()
}

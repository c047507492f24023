package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/drivectl/internal/protocol/scl"
)

// DefaultDriveAddr is the drive's factory eSCL endpoint.
const DefaultDriveAddr = "192.168.1.40:7776"

// TCPChannel speaks eSCL over a TCP socket.
type TCPChannel struct {
	addr string
	cfg  Config

	mu   sync.Mutex
	conn net.Conn
}

func NewTCPChannel(addr string, cfg Config) *TCPChannel {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		addr = DefaultDriveAddr
	}
	return &TCPChannel{addr: addr, cfg: cfg.WithDefaults()}
}

func (c *TCPChannel) Connect(ctx context.Context) error {
	dialer := net.Dialer{Timeout: c.cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrConnect, c.addr, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	c.mu.Lock()
	prev := c.conn
	c.conn = conn
	c.mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
	return nil
}

func (c *TCPChannel) current() (net.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}

func (c *TCPChannel) Send(text string) error {
	conn, err := c.current()
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.ConnectTimeout))
	_, err = conn.Write(scl.Encode(scl.FramingESCL, text))
	return err
}

func (c *TCPChannel) ReadResponse(timeout time.Duration) (string, error) {
	conn, err := c.current()
	if err != nil {
		return "", err
	}
	return scl.ReadFramed(conn, scl.FramingESCL, timeout)
}

// Discard reads and drops whatever arrives within the drain window.
func (c *TCPChannel) Discard() error {
	conn, err := c.current()
	if err != nil {
		return err
	}
	buf := make([]byte, 256)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.DrainWindow))
		n, err := conn.Read(buf)
		if err != nil {
			if scl.IsTimeout(err) {
				return nil
			}
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

func (c *TCPChannel) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (c *TCPChannel) Framing() scl.Framing { return scl.FramingESCL }

func (c *TCPChannel) Target() string { return "tcp://" + c.addr }

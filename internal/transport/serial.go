package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/danmuck/drivectl/internal/protocol/scl"
	"github.com/danmuck/drivectl/internal/serialport"
)

// OpenFunc opens a serial device. Tests substitute an in-memory port.
type OpenFunc func(serialport.Config) (*serialport.Conn, error)

// SerialChannel speaks newline-framed commands over a serial device.
type SerialChannel struct {
	cfg  serialport.Config
	open OpenFunc

	mu   sync.Mutex
	conn *serialport.Conn
}

func NewSerialChannel(cfg serialport.Config, open OpenFunc) *SerialChannel {
	if open == nil {
		open = serialport.Open
	}
	return &SerialChannel{cfg: cfg.WithDefaults(), open: open}
}

func (c *SerialChannel) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := c.open(c.cfg)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrConnect, c.cfg.Device, err)
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

func (c *SerialChannel) current() (*serialport.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}

func (c *SerialChannel) Send(text string) error {
	conn, err := c.current()
	if err != nil {
		return err
	}
	_, err = conn.Write(scl.Encode(scl.FramingLine, text))
	return err
}

func (c *SerialChannel) ReadResponse(timeout time.Duration) (string, error) {
	conn, err := c.current()
	if err != nil {
		return "", err
	}
	return scl.ReadFramed(conn, scl.FramingLine, timeout)
}

func (c *SerialChannel) Discard() error {
	conn, err := c.current()
	if err != nil {
		return err
	}
	return conn.Discard()
}

func (c *SerialChannel) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (c *SerialChannel) Framing() scl.Framing { return scl.FramingLine }

func (c *SerialChannel) Target() string {
	return fmt.Sprintf("serial://%s@%d", c.cfg.Device, c.cfg.Baud)
}

package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/danmuck/drivectl/internal/drive"
	logs "github.com/danmuck/drivectl/internal/logging"
)

const (
	DefaultAddr        = ":8081"
	DefaultIdleTimeout = 5 * time.Minute
	// MaxLineBytes bounds one command line; longer input closes the client.
	MaxLineBytes = 256
)

var ErrListen = errors.New("bridge: listen failed")

// Controller is the motion surface the bridge drives. *drive.Client
// satisfies it.
type Controller interface {
	Status() drive.Status
	Jogging() bool
	JogStart(direction int) bool
	JogStop() bool
	MoveRelative(steps int64) bool
	MoveToPosition(target int64) bool
	Stop() bool
	StopKill() bool
	SaveHome() bool
	SaveWell() bool
	GoHome() bool
	GoWell() bool
	SetJogVelocity(v float64) bool
	SetMoveVelocity(v float64) bool
	AlarmReset() bool
	MotorEnable() bool
	MotorDisable() bool
	ZeroEncoder() bool
}

type Config struct {
	Addr string
	// IdleTimeout closes a client that sends nothing for this long.
	IdleTimeout time.Duration
}

func (c Config) WithDefaults() Config {
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = DefaultAddr
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	return c
}

type Server struct {
	cfg     Config
	ctl     Controller
	clients atomic.Int64
}

func New(cfg Config, ctl Controller) *Server {
	return &Server{cfg: cfg.WithDefaults(), ctl: ctl}
}

func (s *Server) Clients() int64 { return s.clients.Load() }

// Serve listens on Config.Addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", strings.TrimSpace(s.cfg.Addr))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrListen, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener accepts on ln until ctx is cancelled, then closes it.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	logs.Infof("bridge.Server listening addr=%q", ln.Addr().String())

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	id := uuid.NewString()
	remote := conn.RemoteAddr().String()
	active := s.clients.Add(1)
	logs.Infof("bridge.Server client connected id=%s remote=%q active_clients=%d", id, remote, active)
	defer func() {
		remaining := s.clients.Add(-1)
		logs.Infof("bridge.Server client disconnected id=%s remote=%q active_clients=%d", id, remote, remaining)
	}()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64), MaxLineBytes)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil && ctx.Err() == nil {
				logs.Warnf("bridge.Server read id=%s err=%v", id, err)
			}
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		reply := s.Handle(line)
		logs.Debugf("bridge.Server id=%s rx=%q tx=%q", id, line, reply)
		if _, err := io.WriteString(conn, reply+"\n"); err != nil {
			logs.Warnf("bridge.Server write id=%s err=%v", id, err)
			return
		}
	}
}

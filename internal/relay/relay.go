// Package relay owns a secondary serial controller link. One goroutine owns
// the port; every other caller goes through the command queue.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	logs "github.com/danmuck/drivectl/internal/logging"
	"github.com/danmuck/drivectl/internal/observability"
	"github.com/danmuck/drivectl/internal/protocol/scl"
	"github.com/danmuck/drivectl/internal/serialport"
)

var (
	ErrNotConnected = errors.New("relay: not connected")
	ErrQueueFull    = errors.New("relay: command queue full")
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
)

// Link is the port surface the owner goroutine needs.
type Link interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
	Discard() error
}

type OpenFunc func(serialport.Config) (Link, error)

// OpenSerial is the default OpenFunc.
func OpenSerial(cfg serialport.Config) (Link, error) {
	return serialport.Open(cfg)
}

// Parser turns one complete line into a status record, or nil.
type Parser[S any] func(line string) *S

type Config struct {
	// Name labels logs and metrics ("winch", "cylinder").
	Name           string
	Serial         serialport.Config
	StatusInterval time.Duration
	StatusCommand  string
	QueueSize      int
	// ResetDelay covers boards that reboot when the port opens.
	ResetDelay  time.Duration
	StopTimeout time.Duration
}

func (c Config) WithDefaults() Config {
	if strings.TrimSpace(c.Name) == "" {
		c.Name = "relay"
	}
	c.Serial = c.Serial.WithDefaults()
	if c.StatusInterval <= 0 {
		c.StatusInterval = 150 * time.Millisecond
	}
	if c.StatusCommand == "" {
		c.StatusCommand = "?"
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.ResetDelay < 0 {
		c.ResetDelay = 0
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = time.Second
	}
	return c
}

type session struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
	link   Link
}

// Relay runs the queue-draining owner loop and the fixed-interval status
// requester for one serial device.
type Relay[S any] struct {
	cfg   Config
	parse Parser[S]
	open  OpenFunc

	queue chan string
	state atomic.Value // State

	mu       sync.Mutex
	sess     *session
	last     *S
	lastSeen time.Time

	cbMu         sync.RWMutex
	onStatus     []func(*S)
	onRawLine    []func(string)
	onSent       []func(string)
	onConnection []func(State, string)
	onError      []func(string)
}

func New[S any](cfg Config, parse Parser[S], open OpenFunc) *Relay[S] {
	cfg = cfg.WithDefaults()
	if open == nil {
		open = OpenSerial
	}
	r := &Relay[S]{
		cfg:   cfg,
		parse: parse,
		open:  open,
		queue: make(chan string, cfg.QueueSize),
	}
	r.state.Store(StateDisconnected)
	return r
}

func (r *Relay[S]) OnStatus(fn func(*S)) {
	r.cbMu.Lock()
	r.onStatus = append(r.onStatus, fn)
	r.cbMu.Unlock()
}

func (r *Relay[S]) OnRawLine(fn func(string)) {
	r.cbMu.Lock()
	r.onRawLine = append(r.onRawLine, fn)
	r.cbMu.Unlock()
}

func (r *Relay[S]) OnCommandSent(fn func(string)) {
	r.cbMu.Lock()
	r.onSent = append(r.onSent, fn)
	r.cbMu.Unlock()
}

func (r *Relay[S]) OnConnection(fn func(State, string)) {
	r.cbMu.Lock()
	r.onConnection = append(r.onConnection, fn)
	r.cbMu.Unlock()
}

func (r *Relay[S]) OnError(fn func(string)) {
	r.cbMu.Lock()
	r.onError = append(r.onError, fn)
	r.cbMu.Unlock()
}

func (r *Relay[S]) State() State { return r.state.Load().(State) }

func (r *Relay[S]) Connected() bool { return r.State() == StateConnected }

func (r *Relay[S]) Name() string { return r.cfg.Name }

// LastStatus returns the most recent parsed record and when it arrived.
func (r *Relay[S]) LastStatus() (*S, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.lastSeen
}

func (r *Relay[S]) setState(s State, msg string) {
	r.state.Store(s)
	logs.Infof("relay.%s state=%s msg=%q", r.cfg.Name, s, msg)
	r.cbMu.RLock()
	fns := append([]func(State, string){}, r.onConnection...)
	r.cbMu.RUnlock()
	for _, fn := range fns {
		fn(s, msg)
	}
}

func (r *Relay[S]) emitError(msg string) {
	logs.Warnf("relay.%s error msg=%q", r.cfg.Name, msg)
	r.cbMu.RLock()
	fns := append([]func(string){}, r.onError...)
	r.cbMu.RUnlock()
	for _, fn := range fns {
		fn(msg)
	}
}

// Connect opens the port and starts the owner and status goroutines.
func (r *Relay[S]) Connect(ctx context.Context) bool {
	if r.Connected() {
		r.Disconnect()
	} else if r.teardown() {
		logs.Infof("relay.%s released stale session state=%s", r.cfg.Name, r.State())
	}
	dev := r.cfg.Serial.Device
	r.setState(StateConnecting, fmt.Sprintf("connecting to %s", dev))

	link, err := r.open(r.cfg.Serial)
	if err != nil {
		r.setState(StateError, err.Error())
		r.emitError(fmt.Sprintf("connection failed: %v", err))
		return false
	}
	_ = link.Discard()
	if r.cfg.ResetDelay > 0 {
		select {
		case <-time.After(r.cfg.ResetDelay):
		case <-ctx.Done():
			_ = link.Close()
			r.setState(StateDisconnected, "cancelled")
			return false
		}
	}
	r.drainQueue()

	runCtx, cancel := context.WithCancel(context.Background())
	s := &session{cancel: cancel, link: link}
	r.mu.Lock()
	r.sess = s
	r.mu.Unlock()

	r.setState(StateConnected, fmt.Sprintf("connected to %s", dev))
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		r.ownerLoop(runCtx, link)
	}()
	go func() {
		defer s.wg.Done()
		r.statusLoop(runCtx)
	}()
	return true
}

// Disconnect stops both goroutines, waits up to StopTimeout and closes the port.
func (r *Relay[S]) Disconnect() {
	r.teardown()
	r.setState(StateDisconnected, "disconnected")
}

// teardown releases the current session, if any, and reports whether one
// existed. A session left behind by a link error is released the same way.
func (r *Relay[S]) teardown() bool {
	r.mu.Lock()
	s := r.sess
	r.sess = nil
	r.last = nil
	r.mu.Unlock()
	if s == nil {
		return false
	}
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(r.cfg.StopTimeout):
		logs.Warnf("relay.%s workers did not exit within %s", r.cfg.Name, r.cfg.StopTimeout)
	}
	_ = s.link.Close()
	return true
}

// Send queues a command for the owner goroutine.
func (r *Relay[S]) Send(cmd string) error {
	if !r.Connected() {
		return ErrNotConnected
	}
	cmd = strings.TrimSpace(cmd)
	select {
	case r.queue <- cmd:
		return nil
	default:
		return ErrQueueFull
	}
}

// Enqueue is Send reporting only success.
func (r *Relay[S]) Enqueue(cmd string) bool {
	return r.Send(cmd) == nil
}

func (r *Relay[S]) drainQueue() {
	for {
		select {
		case <-r.queue:
		default:
			return
		}
	}
}

func (r *Relay[S]) statusLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.StatusInterval)
	defer ticker.Stop()
	for {
		if r.Connected() {
			if err := r.Send(r.cfg.StatusCommand); err != nil {
				logs.Debugf("relay.%s status request skipped err=%v", r.cfg.Name, err)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ownerLoop is the only writer and reader of link.
func (r *Relay[S]) ownerLoop(ctx context.Context, link Link) {
	var pending strings.Builder
	chunk := make([]byte, 256)
	for {
		if ctx.Err() != nil {
			return
		}
		if !r.flushQueue(link) {
			return
		}
		_ = link.SetReadDeadline(time.Now().Add(r.cfg.Serial.ReadTimeout))
		n, err := link.Read(chunk)
		if n > 0 {
			pending.Write(chunk[:n])
			lines, rest := splitLines(pending.String())
			pending.Reset()
			pending.WriteString(rest)
			for _, line := range lines {
				r.dispatch(line)
			}
		}
		if err != nil && !scl.IsTimeout(err) && !errors.Is(err, io.EOF) {
			if ctx.Err() != nil {
				return
			}
			r.emitError(fmt.Sprintf("read error: %v", err))
			r.setState(StateError, "connection lost")
			return
		}
	}
}

func (r *Relay[S]) flushQueue(link Link) bool {
	for {
		select {
		case cmd := <-r.queue:
			if _, err := link.Write(scl.Encode(scl.FramingLine, cmd)); err != nil {
				r.emitError(fmt.Sprintf("send failed: %v", err))
				r.setState(StateError, "connection lost")
				return false
			}
			observability.RecordRelayLine(r.cfg.Name, "tx", true)
			r.cbMu.RLock()
			fns := append([]func(string){}, r.onSent...)
			r.cbMu.RUnlock()
			for _, fn := range fns {
				fn(cmd)
			}
		default:
			return true
		}
	}
}

func (r *Relay[S]) dispatch(line string) {
	r.cbMu.RLock()
	raw := append([]func(string){}, r.onRawLine...)
	status := append([]func(*S){}, r.onStatus...)
	r.cbMu.RUnlock()
	for _, fn := range raw {
		fn(line)
	}
	st := r.parse(line)
	observability.RecordRelayLine(r.cfg.Name, "rx", st != nil)
	if st == nil {
		return
	}
	r.mu.Lock()
	r.last = st
	r.lastSeen = time.Now()
	r.mu.Unlock()
	for _, fn := range status {
		fn(st)
	}
}

// splitLines returns complete, non-empty trimmed lines and the unterminated
// remainder. CRLF, LF and bare CR all end a line.
func splitLines(buf string) ([]string, string) {
	var lines []string
	start := 0
	for i := 0; i < len(buf); i++ {
		if buf[i] != '\n' && buf[i] != '\r' {
			continue
		}
		if line := strings.TrimSpace(buf[start:i]); line != "" {
			lines = append(lines, line)
		}
		start = i + 1
	}
	return lines, buf[start:]
}

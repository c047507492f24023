package drive

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	logs "github.com/danmuck/drivectl/internal/logging"
	"github.com/danmuck/drivectl/internal/observability"
	"github.com/danmuck/drivectl/internal/protocol/scl"
	"github.com/danmuck/drivectl/internal/transport"
)

// Client owns one transport channel to one drive.
type Client struct {
	ch    transport.Channel
	cfg   Config
	tr    Translator
	clock Clock

	mu     sync.Mutex
	status Status

	cbMu         sync.RWMutex
	onStatus     []func(Status)
	onConnection []func(ConnectionState, string)
	onError      []func(string)
	onFault      []func(Fault)

	jogging     atomic.Bool
	lastJogStop atomic.Pointer[time.Time]
	lastMoveCmd atomic.Pointer[time.Time]
	lastMotion  atomic.Pointer[time.Time]

	pollMu sync.Mutex
	poller *poller
}

func NewClient(ch transport.Channel, cfg Config) *Client {
	cfg = cfg.WithDefaults()
	return &Client{
		ch:     ch,
		cfg:    cfg,
		tr:     Translator{Ratio: cfg.GearRatio},
		clock:  systemClock{},
		status: defaultStatus(cfg),
	}
}

func (c *Client) Config() Config { return c.cfg }

func (c *Client) Target() string { return c.ch.Target() }

// OnStatus registers a snapshot observer. Observers run on poller goroutines.
func (c *Client) OnStatus(fn func(Status)) {
	c.cbMu.Lock()
	c.onStatus = append(c.onStatus, fn)
	c.cbMu.Unlock()
}

func (c *Client) OnConnection(fn func(ConnectionState, string)) {
	c.cbMu.Lock()
	c.onConnection = append(c.onConnection, fn)
	c.cbMu.Unlock()
}

func (c *Client) OnError(fn func(string)) {
	c.cbMu.Lock()
	c.onError = append(c.onError, fn)
	c.cbMu.Unlock()
}

// OnFault registers a structured observer for the same edges reported via OnError.
func (c *Client) OnFault(fn func(Fault)) {
	c.cbMu.Lock()
	c.onFault = append(c.onFault, fn)
	c.cbMu.Unlock()
}

func (c *Client) emitStatus(s Status) {
	c.cbMu.RLock()
	fns := append([]func(Status){}, c.onStatus...)
	c.cbMu.RUnlock()
	for _, fn := range fns {
		fn(s.clone())
	}
}

func (c *Client) emitConnection(state ConnectionState, msg string) {
	c.cbMu.RLock()
	fns := append([]func(ConnectionState, string){}, c.onConnection...)
	c.cbMu.RUnlock()
	for _, fn := range fns {
		fn(state, msg)
	}
}

func (c *Client) emitError(msg string) {
	logs.Warnf("drive.Client error target=%q msg=%q", c.ch.Target(), msg)
	c.cbMu.RLock()
	fns := append([]func(string){}, c.onError...)
	c.cbMu.RUnlock()
	for _, fn := range fns {
		fn(msg)
	}
}

func (c *Client) emitFault(f Fault) {
	observability.RecordFault(f.Code)
	c.cbMu.RLock()
	fns := append([]func(Fault){}, c.onFault...)
	c.cbMu.RUnlock()
	for _, fn := range fns {
		fn(f)
	}
	c.emitError(f.Text())
}

// Status returns a copy of the current snapshot.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status.clone()
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status.Connected
}

func (c *Client) updateStatus(fn func(*Status)) {
	c.mu.Lock()
	fn(&c.status)
	c.mu.Unlock()
}

// Connect opens the channel, runs the init sequence (AC, DE, ME) and syncs the
// drive's step set-point to the encoder. A prior session is torn down first.
func (c *Client) Connect(ctx context.Context) bool {
	if c.Connected() {
		logs.Infof("drive.Client.Connect replacing live session target=%q", c.ch.Target())
		c.Disconnect()
	}
	target := c.ch.Target()
	c.emitConnection(StateConnecting, target)

	if err := c.ch.Connect(ctx); err != nil {
		msg := fmt.Sprintf("connection failed: %v", err)
		c.emitError(msg)
		c.emitConnection(StateError, msg)
		return false
	}
	c.updateStatus(func(s *Status) { s.Connected = true })
	logs.Infof("drive.Client.Connect link up target=%q framing=%s", target, c.ch.Framing())

	if err := c.initDrive(); err != nil {
		c.closeLink()
		if errors.Is(err, ErrLinkLost) {
			// SendCommand already reported the fault.
			return false
		}
		msg := fmt.Sprintf("drive init failed: %v", err)
		c.emitError(msg)
		c.emitConnection(StateError, msg)
		return false
	}
	c.emitConnection(StateConnected, target)
	return true
}

func (c *Client) initDrive() error {
	for _, cmd := range []scl.Command{
		scl.Fixed(scl.CmdAccel, c.cfg.Accel),
		scl.Fixed(scl.CmdDecel, c.cfg.Decel),
		scl.Bare(scl.CmdMotorEnable),
	} {
		c.SendCommand(cmd, c.cfg.CommandTimeout)
		if !c.Connected() {
			return fmt.Errorf("%w during %s", ErrLinkLost, cmd.Mnemonic)
		}
	}
	c.updateStatus(func(s *Status) { s.MotorEnabled = true })

	if _, ok := c.syncPosition(); !ok {
		return ErrSyncFailed
	}
	return nil
}

// syncPosition reads EP and writes it back as SP in step space.
func (c *Client) syncPosition() (int64, bool) {
	ep, ok := c.EncoderPosition()
	if !ok {
		return 0, false
	}
	return ep, c.syncFrom(ep)
}

func (c *Client) syncFrom(ep int64) bool {
	steps := c.tr.EncoderToSteps(ep)
	if _, ok := c.SendCommand(scl.Int(scl.CmdSetPosition, steps), c.cfg.CommandTimeout); !ok {
		return false
	}
	logs.Debugf("drive.Client.sync encoder=%d steps=%d", ep, steps)
	return true
}

// Disconnect stops polling, closes the link and resets status. Velocity
// settings survive the reset.
func (c *Client) Disconnect() {
	c.StopPolling()
	c.closeLink()
	c.emitConnection(StateDisconnected, "")
	logs.Infof("drive.Client.Disconnect target=%q", c.ch.Target())
}

func (c *Client) closeLink() {
	c.mu.Lock()
	c.dropLinkLocked()
	c.mu.Unlock()
	c.jogging.Store(false)
}

// dropLinkLocked closes the channel and resets status to defaults, keeping the
// configured velocities. Callers hold c.mu.
func (c *Client) dropLinkLocked() {
	if err := c.ch.Close(); err != nil {
		logs.Debugf("drive.Client.close err=%v", err)
	}
	jog, move := c.status.JogVelocity, c.status.MoveVelocity
	c.status = defaultStatus(c.cfg)
	c.status.JogVelocity, c.status.MoveVelocity = jog, move
}

// SendCommand runs one exchange under the client lock: drain stale input,
// write, settle, read until terminator. A link fault marks the client
// disconnected, resets status and fires the error callback; a silent drive
// yields ("", false) without tearing the link down.
func (c *Client) SendCommand(cmd scl.Command, timeout time.Duration) (string, bool) {
	if timeout <= 0 {
		timeout = c.cfg.CommandTimeout
	}
	text := cmd.String()

	c.mu.Lock()
	if !c.status.Connected {
		c.mu.Unlock()
		observability.RecordDriveCommand(cmd.Mnemonic, observability.ResultOffline, 0)
		return "", false
	}
	start := time.Now()
	resp, err := c.exchangeLocked(text, timeout)
	linkErr := err != nil && !transport.IsTimeout(err)
	if linkErr {
		c.dropLinkLocked()
	}
	c.mu.Unlock()
	elapsed := time.Since(start)
	if linkErr {
		c.jogging.Store(false)
	}

	switch {
	case linkErr:
		observability.RecordDriveCommand(cmd.Mnemonic, observability.ResultLinkError, elapsed)
		msg := fmt.Sprintf("command %s failed: %v", text, err)
		c.emitError(msg)
		c.emitConnection(StateError, msg)
		return "", false
	case resp == "":
		observability.RecordDriveCommand(cmd.Mnemonic, observability.ResultNoReply, elapsed)
		logs.Debugf("drive.Client.send cmd=%s rx=<none>", text)
		return "", false
	default:
		observability.RecordDriveCommand(cmd.Mnemonic, observability.ResultOK, elapsed)
		logs.Debugf("drive.Client.send cmd=%s rx=%q", text, resp)
		return resp, true
	}
}

func (c *Client) exchangeLocked(text string, timeout time.Duration) (string, error) {
	if err := c.ch.Discard(); err != nil {
		return "", fmt.Errorf("discard: %w", err)
	}
	if err := c.ch.Send(text); err != nil {
		return "", fmt.Errorf("write: %w", err)
	}
	c.clock.Sleep(c.cfg.SettleDelay)
	return c.ch.ReadResponse(timeout)
}

func (c *Client) query(mnemonic string) (string, bool) {
	return c.SendCommand(scl.Bare(mnemonic), c.cfg.CommandTimeout)
}

// EncoderPosition reads EP (idle-safe).
func (c *Client) EncoderPosition() (int64, bool) {
	resp, ok := c.query(scl.CmdEncoderPosition)
	if !ok {
		return 0, false
	}
	return scl.ParseNumericField(resp, scl.CmdEncoderPosition)
}

// ImmediateEncoder reads IE, valid while the drive is busy.
func (c *Client) ImmediateEncoder() (int64, bool) {
	resp, ok := c.query(scl.CmdImmediateEncoder)
	if !ok {
		return 0, false
	}
	return scl.ParseNumericField(resp, scl.CmdImmediateEncoder)
}

func (c *Client) StatusCode() (string, bool) {
	resp, ok := c.query(scl.CmdStatusCode)
	if !ok {
		return "", false
	}
	return scl.ParseCodeField(resp, scl.CmdStatusCode)
}

func (c *Client) AlarmCode() (string, bool) {
	resp, ok := c.query(scl.CmdAlarmCode)
	if !ok {
		return "", false
	}
	return scl.ParseCodeField(resp, scl.CmdAlarmCode)
}

// ImmediateVelocity reads IV in rev/s.
func (c *Client) ImmediateVelocity() (float64, bool) {
	resp, ok := c.query(scl.CmdImmediateVelocity)
	if !ok {
		return 0, false
	}
	return scl.ParseFloatField(resp, scl.CmdImmediateVelocity)
}

func (c *Client) MotorEnable() bool {
	if _, ok := c.query(scl.CmdMotorEnable); !ok {
		return false
	}
	c.updateStatus(func(s *Status) { s.MotorEnabled = true })
	return true
}

func (c *Client) MotorDisable() bool {
	if _, ok := c.query(scl.CmdMotorDisable); !ok {
		return false
	}
	c.updateStatus(func(s *Status) { s.MotorEnabled = false })
	return true
}

// AlarmReset sends AR and optimistically clears the alarm code; the next
// full refresh confirms it.
func (c *Client) AlarmReset() bool {
	prev := c.Status().AlarmCode
	if _, ok := c.query(scl.CmdAlarmReset); !ok {
		return false
	}
	c.updateStatus(func(s *Status) { s.AlarmCode = scl.AlarmClear })
	logs.Infof("drive.Client.AlarmReset previous=%s", prev)
	return true
}

// ZeroEncoder sends EP0.
func (c *Client) ZeroEncoder() bool {
	if _, ok := c.SendCommand(scl.Int(scl.CmdEncoderPosition, 0), c.cfg.CommandTimeout); !ok {
		return false
	}
	c.updateStatus(func(s *Status) { s.EncoderPosition = 0 })
	return true
}

// PollOnce refreshes EP, SC and AL synchronously and returns the snapshot.
// It does not run fault edge detection.
func (c *Client) PollOnce() Status {
	if pos, ok := c.EncoderPosition(); ok {
		c.updateStatus(func(s *Status) { s.EncoderPosition = pos })
	}
	if sc, ok := c.StatusCode(); ok {
		c.applyStatusCode(sc)
	}
	if al, ok := c.AlarmCode(); ok {
		c.updateStatus(func(s *Status) { s.AlarmCode = al })
	}
	return c.Status()
}

func (c *Client) applyStatusCode(sc string) {
	enabled, moving, ok := scl.DecodeStatusCode(sc)
	c.updateStatus(func(s *Status) {
		s.StatusCode = sc
		if ok {
			s.MotorEnabled = enabled
			s.IsMoving = moving
		}
	})
}

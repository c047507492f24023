package drive

import (
	"context"
	"time"

	logs "github.com/danmuck/drivectl/internal/logging"
	"github.com/danmuck/drivectl/internal/observability"
	"github.com/danmuck/drivectl/internal/protocol/scl"
)

// Poll cadence modes.
const (
	PollModeMotion = "motion"
	PollModeIdle   = "idle"
)

type poller struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// pollState is owned by the poll goroutine.
type pollState struct {
	cycle     int
	lastAlarm string
}

func newPollState() *pollState {
	return &pollState{lastAlarm: scl.AlarmClear}
}

// StartPolling launches the background poller, replacing any running one.
// The idle interval falls back to Config.IdlePollInterval when <= 0.
func (c *Client) StartPolling(idleInterval time.Duration) {
	c.StopPolling()
	if idleInterval <= 0 {
		idleInterval = c.cfg.IdlePollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &poller{cancel: cancel, done: make(chan struct{})}

	c.pollMu.Lock()
	c.poller = p
	c.pollMu.Unlock()

	go c.pollLoop(ctx, p, idleInterval)
	logs.Infof("drive.Client.StartPolling idle_interval=%s fast_interval=%s", idleInterval, c.cfg.FastPollInterval)
}

// StopPolling cancels the poller and waits up to PollStopWait for it to exit.
// A poller stuck in a read is logged and abandoned.
func (c *Client) StopPolling() {
	c.pollMu.Lock()
	p := c.poller
	c.poller = nil
	c.pollMu.Unlock()
	if p == nil {
		return
	}
	p.cancel()
	timer := time.NewTimer(c.cfg.PollStopWait)
	defer timer.Stop()
	select {
	case <-p.done:
		logs.Debugf("drive.Client.StopPolling stopped")
	case <-timer.C:
		logs.Warnf("drive.Client.StopPolling poller did not exit within %s", c.cfg.PollStopWait)
	}
}

// clearPoller uninstalls p unless a newer poller has replaced it.
func (c *Client) clearPoller(p *poller) {
	c.pollMu.Lock()
	if c.poller == p {
		c.poller = nil
	}
	c.pollMu.Unlock()
}

// Polling reports whether a live poller is installed.
func (c *Client) Polling() bool {
	c.pollMu.Lock()
	defer c.pollMu.Unlock()
	return c.poller != nil
}

func (c *Client) pollLoop(ctx context.Context, p *poller, idleInterval time.Duration) {
	defer close(p.done)
	defer c.clearPoller(p)
	st := newPollState()
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			logs.Debugf("drive.Client.pollLoop exit reason=stopped")
			return
		case <-timer.C:
		}
		if !c.Connected() {
			logs.Infof("drive.Client.pollLoop exit reason=disconnected")
			return
		}
		next := c.pollCycle(st, idleInterval)
		timer.Reset(next)
	}
}

// inMotionMode is true while the drive reports motion or a jog/move was
// issued within the motion window.
func (c *Client) inMotionMode(now time.Time) bool {
	if c.Status().IsMoving {
		return true
	}
	since, ok := elapsedSince(c.lastMotion.Load(), now)
	return ok && since < c.cfg.MotionWindow
}

// pollCycle runs one poll pass and returns the delay before the next.
func (c *Client) pollCycle(st *pollState, idleInterval time.Duration) time.Duration {
	motion := c.inMotionMode(c.clock.Now())

	var (
		pos int64
		ok  bool
	)
	if motion {
		pos, ok = c.ImmediateEncoder()
	} else {
		pos, ok = c.EncoderPosition()
	}
	if ok {
		c.updateStatus(func(s *Status) { s.EncoderPosition = pos })
	}

	st.cycle++
	if !motion || st.cycle >= c.cfg.FullRefreshEvery {
		st.cycle = 0
		c.refreshCodes(st)
	}

	c.emitStatus(c.Status())

	if motion {
		observability.RecordPollCycle(PollModeMotion)
		return c.cfg.FastPollInterval
	}
	observability.RecordPollCycle(PollModeIdle)
	return idleInterval
}

func (c *Client) refreshCodes(st *pollState) {
	if sc, ok := c.StatusCode(); ok {
		c.applyStatusCode(sc)
	}
	al, ok := c.AlarmCode()
	if !ok {
		return
	}
	c.updateStatus(func(s *Status) { s.AlarmCode = al })
	if !scl.IsAlarmClear(al) && al != st.lastAlarm {
		f := Fault{Code: al, Message: scl.DecodeAlarm(al), At: c.clock.Now()}
		logs.Warnf("drive.Client.poll fault code=%s msg=%q", f.Code, f.Message)
		c.emitFault(f)
	}
	st.lastAlarm = al
}

package drive

import (
	"time"

	logs "github.com/danmuck/drivectl/internal/logging"
	"github.com/danmuck/drivectl/internal/protocol/scl"
)

// The motion state machine has two explicit states, idle and jogging. A move
// in progress is the IsMoving flag plus the last-motion timestamp; the poller
// confirms completion asynchronously.

func stamp(p interface{ Store(*time.Time) }, t time.Time) {
	p.Store(&t)
}

// elapsedSince returns now-*t, or ok=false when t was never set.
func elapsedSince(t *time.Time, now time.Time) (time.Duration, bool) {
	if t == nil {
		return 0, false
	}
	return now.Sub(*t), true
}

func (c *Client) Jogging() bool { return c.jogging.Load() }

// JogStart begins a continuous jog. It is rejected without I/O while a jog is
// active or inside the lockout window after the last jog stop.
func (c *Client) JogStart(direction int) bool {
	if c.jogging.Load() {
		logs.Debugf("drive.Client.JogStart rejected reason=already_jogging")
		return false
	}
	now := c.clock.Now()
	if since, ok := elapsedSince(c.lastJogStop.Load(), now); ok && since < c.cfg.JogLockout {
		logs.Debugf("drive.Client.JogStart rejected reason=lockout since_stop=%s", since)
		return false
	}
	if !c.jogging.CompareAndSwap(false, true) {
		return false
	}

	velocity := c.Status().JogVelocity
	c.SendCommand(scl.Direction(direction), 0)
	c.SendCommand(scl.Fixed(scl.CmdJogSpeed, velocity), 0)
	if _, ok := c.SendCommand(scl.Bare(scl.CmdCommenceJog), 0); !ok {
		c.jogging.Store(false)
		logs.Warnf("drive.Client.JogStart commence failed direction=%d", direction)
		return false
	}
	c.updateStatus(func(s *Status) { s.IsMoving = true })
	stamp(&c.lastMotion, c.clock.Now())
	logs.Infof("drive.Client.JogStart direction=%d velocity=%.1f", direction, velocity)
	return true
}

// JogStop is always accepted. State is cleared before I/O so a duplicate
// call cannot interleave a second deceleration.
func (c *Client) JogStop() bool {
	c.jogging.Store(false)
	stamp(&c.lastJogStop, c.clock.Now())
	c.updateStatus(func(s *Status) { s.IsMoving = false })
	c.SendCommand(scl.Bare(scl.CmdStopJog), 0)
	return true
}

// allowMove applies the move rate limit and claims the slot on success.
func (c *Client) allowMove() bool {
	now := c.clock.Now()
	if since, ok := elapsedSince(c.lastMoveCmd.Load(), now); ok && since < c.cfg.MoveInterval {
		logs.Debugf("drive.Client.move rejected reason=rate_limited since_last=%s", since)
		return false
	}
	stamp(&c.lastMoveCmd, now)
	return true
}

func (c *Client) markMoving() {
	c.updateStatus(func(s *Status) { s.IsMoving = true })
	stamp(&c.lastMotion, c.clock.Now())
}

// MoveRelative feeds a signed step distance: VE, DI, FL.
func (c *Client) MoveRelative(steps int64) bool {
	if !c.allowMove() {
		return false
	}
	velocity := c.Status().MoveVelocity
	c.SendCommand(scl.Fixed(scl.CmdVelocity, velocity), 0)
	c.SendCommand(scl.Int(scl.CmdDistance, steps), 0)
	if _, ok := c.SendCommand(scl.Bare(scl.CmdFeedToLength), 0); !ok {
		return false
	}
	c.markMoving()
	logs.Infof("drive.Client.MoveRelative steps=%d velocity=%.1f", steps, velocity)
	return true
}

// MoveToPosition drives to an absolute encoder position. Motion in progress is
// stopped first. Exactly reaching target already is a successful no-op.
func (c *Client) MoveToPosition(target int64) bool {
	if !c.allowMove() {
		return false
	}
	if c.Status().IsMoving {
		c.SendCommand(scl.Bare(scl.CmdStop), 0)
		c.clock.Sleep(c.cfg.StopSettle)
	}

	current, ok := c.EncoderPosition()
	if !ok {
		logs.Warnf("drive.Client.MoveToPosition aborted reason=position_unreadable target=%d", target)
		return false
	}
	c.updateStatus(func(s *Status) { s.EncoderPosition = current })
	if current == target {
		logs.Debugf("drive.Client.MoveToPosition at_target=%d", target)
		return true
	}
	if !c.syncFrom(current) {
		logs.Warnf("drive.Client.MoveToPosition aborted reason=sync_failed target=%d", target)
		return false
	}

	velocity := c.Status().MoveVelocity
	steps := c.tr.EncoderToSteps(target)
	c.SendCommand(scl.Fixed(scl.CmdVelocity, velocity), 0)
	if _, ok := c.SendCommand(scl.Int(scl.CmdFeedToPosition, steps), 0); !ok {
		return false
	}
	c.markMoving()
	logs.Infof("drive.Client.MoveToPosition target=%d steps=%d from=%d", target, steps, current)
	return true
}

func (c *Client) haltLocal() {
	c.jogging.Store(false)
	stamp(&c.lastJogStop, c.clock.Now())
	c.updateStatus(func(s *Status) { s.IsMoving = false })
}

// Stop requests a controlled deceleration (ST).
func (c *Client) Stop() bool {
	c.haltLocal()
	_, ok := c.SendCommand(scl.Bare(scl.CmdStop), 0)
	return ok
}

// StopKill requests an immediate halt (SK).
func (c *Client) StopKill() bool {
	c.haltLocal()
	_, ok := c.SendCommand(scl.Bare(scl.CmdStopKill), 0)
	return ok
}

func (c *Client) SaveHome() bool {
	return c.savePosition(func(s *Status, v *int64) { s.HomePosition = v }, "home")
}

func (c *Client) SaveWell() bool {
	return c.savePosition(func(s *Status, v *int64) { s.WellPosition = v }, "well")
}

func (c *Client) savePosition(set func(*Status, *int64), slot string) bool {
	pos, ok := c.EncoderPosition()
	if !ok {
		return false
	}
	c.updateStatus(func(s *Status) {
		s.EncoderPosition = pos
		set(s, &pos)
	})
	logs.Infof("drive.Client.save slot=%s position=%d", slot, pos)
	return true
}

// GoHome fails fast when no home has been saved.
func (c *Client) GoHome() bool {
	home := c.Status().HomePosition
	if home == nil {
		return false
	}
	return c.MoveToPosition(*home)
}

func (c *Client) GoWell() bool {
	well := c.Status().WellPosition
	if well == nil {
		return false
	}
	return c.MoveToPosition(*well)
}

func (c *Client) velocityInBand(v float64) bool {
	return v >= c.cfg.MinVelocity && v <= c.cfg.MaxVelocity
}

func (c *Client) SetJogVelocity(v float64) bool {
	if !c.velocityInBand(v) {
		return false
	}
	c.updateStatus(func(s *Status) { s.JogVelocity = v })
	return true
}

func (c *Client) SetMoveVelocity(v float64) bool {
	if !c.velocityInBand(v) {
		return false
	}
	c.updateStatus(func(s *Status) { s.MoveVelocity = v })
	return true
}

package relay

import (
	"time"

	"github.com/danmuck/drivectl/internal/protocol/winch"
)

// Winch relays the serial winch controller.
type Winch struct {
	*Relay[winch.Status]
}

func NewWinch(cfg Config, open OpenFunc) *Winch {
	if cfg.Name == "" {
		cfg.Name = "winch"
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = 150 * time.Millisecond
	}
	cfg.StatusCommand = winch.CmdStatus
	return &Winch{Relay: New[winch.Status](cfg, winch.ParseStatusLine, open)}
}

func (w *Winch) JogLeft() bool      { return w.Enqueue(winch.CmdJogLeft) }
func (w *Winch) JogRight() bool     { return w.Enqueue(winch.CmdJogRight) }
func (w *Winch) JogStop() bool      { return w.Enqueue(winch.CmdJogStop) }
func (w *Winch) GoHome() bool       { return w.Enqueue(winch.CmdGoHome) }
func (w *Winch) GoWell() bool       { return w.Enqueue(winch.CmdGoWell) }
func (w *Winch) Stop() bool         { return w.Enqueue(winch.CmdStop) }
func (w *Winch) SaveHome() bool     { return w.Enqueue(winch.CmdSaveHome) }
func (w *Winch) SaveWell() bool     { return w.Enqueue(winch.CmdSaveWell) }
func (w *Winch) ZeroPosition() bool { return w.Enqueue(winch.CmdZeroPosition) }
func (w *Winch) RequestStatus() bool {
	return w.Enqueue(winch.CmdStatus)
}

func (w *Winch) GoTo(steps int64) bool         { return w.Enqueue(winch.GoTo(steps)) }
func (w *Winch) MoveRelative(steps int64) bool { return w.Enqueue(winch.MoveRelative(steps)) }
func (w *Winch) SetJogSpeed(rps float64) bool  { return w.Enqueue(winch.SetJogSpeed(rps)) }
func (w *Winch) SetMoveSpeed(rps float64) bool { return w.Enqueue(winch.SetMoveSpeed(rps)) }

// DropCylinder relays the servo drop cylinder controller.
type DropCylinder struct {
	*Relay[winch.CylinderStatus]
}

func NewDropCylinder(cfg Config, open OpenFunc) *DropCylinder {
	if cfg.Name == "" {
		cfg.Name = "cylinder"
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = 200 * time.Millisecond
	}
	cfg.StatusCommand = winch.CylStatus
	return &DropCylinder{Relay: New[winch.CylinderStatus](cfg, winch.ParseCylinderLine, open)}
}

func (d *DropCylinder) JogDown() bool   { return d.Enqueue(winch.CylJogDown) }
func (d *DropCylinder) JogUp() bool     { return d.Enqueue(winch.CylJogUp) }
func (d *DropCylinder) JogStop() bool   { return d.Enqueue(winch.CylJogStop) }
func (d *DropCylinder) GoStart() bool   { return d.Enqueue(winch.CylGoStart) }
func (d *DropCylinder) GoStop() bool    { return d.Enqueue(winch.CylGoStop) }
func (d *DropCylinder) Stop() bool      { return d.Enqueue(winch.CylStop) }
func (d *DropCylinder) SaveStart() bool { return d.Enqueue(winch.CylSaveStart) }
func (d *DropCylinder) SaveStop() bool  { return d.Enqueue(winch.CylSaveStop) }
func (d *DropCylinder) Zero() bool      { return d.Enqueue(winch.CylZero) }

func (d *DropCylinder) SetTrim(micros int) bool   { return d.Enqueue(winch.SetTrim(micros)) }
func (d *DropCylinder) SetSpeed(percent int) bool { return d.Enqueue(winch.SetServoSpeed(percent)) }

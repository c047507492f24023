package drive

import (
	"time"

	"github.com/danmuck/drivectl/internal/protocol/scl"
)

// Status is the shared drive snapshot. Positions are encoder counts.
type Status struct {
	Connected       bool    `json:"connected"`
	EncoderPosition int64   `json:"encoder_position"`
	AlarmCode       string  `json:"alarm_code"`
	StatusCode      string  `json:"status_code"`
	IsMoving        bool    `json:"is_moving"`
	MotorEnabled    bool    `json:"motor_enabled"`
	HomePosition    *int64  `json:"home_position,omitempty"`
	WellPosition    *int64  `json:"well_position,omitempty"`
	JogVelocity     float64 `json:"jog_velocity"`
	MoveVelocity    float64 `json:"move_velocity"`
}

func defaultStatus(cfg Config) Status {
	return Status{
		AlarmCode:    scl.AlarmClear,
		StatusCode:   "0000",
		JogVelocity:  cfg.JogVelocity,
		MoveVelocity: cfg.MoveVelocity,
	}
}

// clone copies s so callers never alias the saved-position pointers.
func (s Status) clone() Status {
	out := s
	if s.HomePosition != nil {
		v := *s.HomePosition
		out.HomePosition = &v
	}
	if s.WellPosition != nil {
		v := *s.WellPosition
		out.WellPosition = &v
	}
	return out
}

// Alarmed reports a non-clear alarm code.
func (s Status) Alarmed() bool {
	return !scl.IsAlarmClear(s.AlarmCode)
}

// ConnectionState is the link lifecycle reported to observers.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateError        ConnectionState = "error"
)

// Fault is one edge-triggered alarm notification.
type Fault struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Text renders the operator-facing notification.
func (f Fault) Text() string {
	return "FAULT " + f.Code + ": " + f.Message
}

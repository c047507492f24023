package bridge

import (
	"strconv"
	"strings"

	"github.com/danmuck/drivectl/internal/drive"
	"github.com/danmuck/drivectl/internal/protocol/winch"
)

// Replies.
const (
	ReplyOK           = "OK"
	ErrRejected       = "ERR:REJECTED"
	ErrNoHome         = "ERR:NO_HOME"
	ErrNoWell         = "ERR:NO_WELL"
	ErrSaveFailed     = "ERR:SAVE_FAILED"
	ErrInvalidPos     = "ERR:INVALID_POS"
	ErrInvalidSteps   = "ERR:INVALID_STEPS"
	ErrInvalidVel     = "ERR:INVALID_VEL"
	ErrUnknownCommand = "ERR:UNKNOWN_CMD"
)

// Handle executes one command line and returns the reply line.
func (s *Server) Handle(line string) string {
	cmd := strings.ToUpper(strings.TrimSpace(line))
	switch cmd {
	case winch.CmdStatus:
		return StatusLine(s.ctl)
	case winch.CmdJogLeft:
		return reply(s.ctl.JogStart(-1), ErrRejected)
	case winch.CmdJogRight:
		return reply(s.ctl.JogStart(1), ErrRejected)
	case winch.CmdJogStop:
		return reply(s.ctl.JogStop(), ErrRejected)
	case winch.CmdStop:
		return reply(s.ctl.Stop(), ErrRejected)
	case winch.CmdStopKill:
		return reply(s.ctl.StopKill(), ErrRejected)
	case winch.CmdGoHome:
		if s.ctl.Status().HomePosition == nil {
			return ErrNoHome
		}
		return reply(s.ctl.GoHome(), ErrRejected)
	case winch.CmdGoWell:
		if s.ctl.Status().WellPosition == nil {
			return ErrNoWell
		}
		return reply(s.ctl.GoWell(), ErrRejected)
	case winch.CmdSaveHome:
		return reply(s.ctl.SaveHome(), ErrSaveFailed)
	case winch.CmdSaveWell:
		return reply(s.ctl.SaveWell(), ErrSaveFailed)
	case winch.CmdZeroPosition:
		return reply(s.ctl.ZeroEncoder(), ErrRejected)
	case winch.CmdAlarmReset:
		return reply(s.ctl.AlarmReset(), ErrRejected)
	case winch.CmdMotorEnable:
		return reply(s.ctl.MotorEnable(), ErrRejected)
	case winch.CmdMotorDisable:
		return reply(s.ctl.MotorDisable(), ErrRejected)
	}

	switch {
	case strings.HasPrefix(cmd, winch.PrefixGoTo):
		target, ok := winch.ValidateSteps(cmd[len(winch.PrefixGoTo):])
		if !ok {
			return ErrInvalidPos
		}
		return reply(s.ctl.MoveToPosition(target), ErrRejected)
	case strings.HasPrefix(cmd, winch.PrefixMoveRelative):
		steps, ok := winch.ValidateSteps(cmd[len(winch.PrefixMoveRelative):])
		if !ok {
			return ErrInvalidSteps
		}
		return reply(s.ctl.MoveRelative(steps), ErrRejected)
	case strings.HasPrefix(cmd, winch.PrefixJogSpeed):
		return s.setVelocity(cmd[len(winch.PrefixJogSpeed):], s.ctl.SetJogVelocity)
	case strings.HasPrefix(cmd, winch.PrefixMoveSpeed):
		return s.setVelocity(cmd[len(winch.PrefixMoveSpeed):], s.ctl.SetMoveVelocity)
	}
	return ErrUnknownCommand
}

func (s *Server) setVelocity(raw string, set func(float64) bool) string {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || !set(v) {
		return ErrInvalidVel
	}
	return ReplyOK
}

func reply(ok bool, failure string) string {
	if ok {
		return ReplyOK
	}
	return failure
}

// StatusLine renders the controller state as a winch status line with a
// trailing CONN token.
func StatusLine(ctl Controller) string {
	st := ctl.Status()
	ws := winch.Status{
		Position:     st.EncoderPosition,
		Mode:         winch.ModeIdle,
		HomePosition: st.HomePosition,
		WellPosition: st.WellPosition,
		EStop:        st.Alarmed(),
		JogRPS:       st.JogVelocity,
		MoveRPS:      st.MoveVelocity,
	}
	switch {
	case ctl.Jogging():
		ws.Mode = winch.ModeJog
		ws.SpeedRPS = st.JogVelocity
	case st.IsMoving:
		ws.Mode = winch.ModeMove
		ws.SpeedRPS = st.MoveVelocity
	}
	return winch.FormatStatusLine(ws) + " CONN:" + connFlag(st)
}

func connFlag(st drive.Status) string {
	if st.Connected {
		return "1"
	}
	return "0"
}

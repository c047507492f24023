package winch

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Defaults applied when a status line omits the trailing velocity tokens.
const (
	DefaultJogRPS  = 10.0
	DefaultMoveRPS = 7.5

	StepsPerRevolution = 4000
)

// Mode is the reported motion mode.
type Mode string

const (
	ModeIdle    Mode = "IDLE"
	ModeJog     Mode = "JOG"
	ModeMove    Mode = "MOVE"
	ModeUnknown Mode = "UNKNOWN"
)

func parseMode(raw string) Mode {
	switch Mode(raw) {
	case ModeIdle, ModeJog, ModeMove:
		return Mode(raw)
	default:
		return ModeUnknown
	}
}

// Status is one parsed winch status line.
type Status struct {
	Position     int64
	Mode         Mode
	SpeedRPS     float64
	HomePosition *int64
	WellPosition *int64
	EStop        bool
	JogRPS       float64
	MoveRPS      float64
	Raw          string
}

func (s Status) HomeSaved() bool { return s.HomePosition != nil }

func (s Status) WellSaved() bool { return s.WellPosition != nil }

func (s Status) PositionRevolutions() float64 {
	return float64(s.Position) / StepsPerRevolution
}

var statusPattern = regexp.MustCompile(
	`POS:(-?\d+)\s+` +
		`MODE:(\w+)\s+` +
		`SPD:([\d.]+)\s+` +
		`HOME:(Y@(-?\d+)|N)\s+` +
		`WELL:(Y@(-?\d+)|N)\s+` +
		`ESTOP:([01])` +
		`(?:\s+VJOG:([\d.]+))?` +
		`(?:\s+VMOVE:([\d.]+))?`,
)

// ParseStatusLine parses
//
//	POS:<n> MODE:<m> SPD:<x> HOME:<Y@n|N> WELL:<Y@n|N> ESTOP:<0|1> [VJOG:<x>] [VMOVE:<x>]
//
// and returns nil for an empty line or one missing a required token.
func ParseStatusLine(line string) *Status {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	m := statusPattern.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	pos, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return nil
	}
	speed, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return nil
	}
	st := &Status{
		Position: pos,
		Mode:     parseMode(m[2]),
		SpeedRPS: speed,
		EStop:    m[8] == "1",
		JogRPS:   DefaultJogRPS,
		MoveRPS:  DefaultMoveRPS,
		Raw:      line,
	}
	if st.HomePosition, err = savedSlot(m[5]); err != nil {
		return nil
	}
	if st.WellPosition, err = savedSlot(m[7]); err != nil {
		return nil
	}
	if m[9] != "" {
		if st.JogRPS, err = strconv.ParseFloat(m[9], 64); err != nil {
			return nil
		}
	}
	if m[10] != "" {
		if st.MoveRPS, err = strconv.ParseFloat(m[10], 64); err != nil {
			return nil
		}
	}
	return st
}

func savedSlot(raw string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// FormatStatusLine renders s in the form ParseStatusLine accepts. Speed is
// written as a magnitude since the schema carries no sign.
func FormatStatusLine(s Status) string {
	estop := 0
	if s.EStop {
		estop = 1
	}
	speed := s.SpeedRPS
	if speed < 0 {
		speed = -speed
	}
	mode := s.Mode
	if mode == "" {
		mode = ModeIdle
	}
	return fmt.Sprintf(
		"POS:%d MODE:%s SPD:%.2f HOME:%s WELL:%s ESTOP:%d VJOG:%.2f VMOVE:%.2f",
		s.Position, mode, speed, formatSlot(s.HomePosition), formatSlot(s.WellPosition),
		estop, s.JogRPS, s.MoveRPS,
	)
}

func formatSlot(p *int64) string {
	if p == nil {
		return "N"
	}
	return "Y@" + strconv.FormatInt(*p, 10)
}

package winch

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	TrimMinMicros       = -50
	TrimMaxMicros       = 50
	DefaultServoPercent = 50
)

// Drop cylinder line commands.
const (
	CylJogDown   = "JD"
	CylJogUp     = "JU"
	CylJogStop   = "JS"
	CylGoStart   = "GS"
	CylGoStop    = "GP"
	CylStop      = "ST"
	CylSaveStart = "SS"
	CylSaveStop  = "SP"
	CylZero      = "ZERO"
	CylStatus    = "?"
)

// CylinderMode values reported in MODE.
const (
	CylModeIdle      = "IDLE"
	CylModeJogDown   = "JOG_DOWN"
	CylModeJogUp     = "JOG_UP"
	CylModeMoveStart = "MOVE_START"
	CylModeMoveStop  = "MOVE_STOP"
)

// CylinderStatus is one parsed drop cylinder status line. Positions are
// servo run time in milliseconds.
type CylinderStatus struct {
	PositionMS      int64
	Mode            string
	StartPositionMS *int64
	StopPositionMS  *int64
	TrimMicros      int
	WifiMode        string
	IPAddress       string
	SpeedPercent    int
	Raw             string
}

func (s CylinderStatus) Moving() bool {
	switch s.Mode {
	case CylModeJogDown, CylModeJogUp, CylModeMoveStart, CylModeMoveStop:
		return true
	default:
		return false
	}
}

var cylinderPattern = regexp.MustCompile(
	`POS:(-?\d+)\s+` +
		`MODE:(\w+)\s+` +
		`START:(Y@(-?\d+)|N)\s+` +
		`STOP:(Y@(-?\d+)|N)\s+` +
		`TRIM:(-?\d+)\s+` +
		`WIFI:(\w+)\s+` +
		`IP:(\S+)` +
		`(?:\s+SPEED:(\d+))?`,
)

// ParseCylinderLine parses
//
//	POS:<ms> MODE:<m> START:<Y@ms|N> STOP:<Y@ms|N> TRIM:<us> WIFI:<AP|STA> IP:<addr> [SPEED:<pct>]
//
// The line must begin with POS:.
func ParseCylinderLine(line string) *CylinderStatus {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "POS:") {
		return nil
	}
	m := cylinderPattern.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	pos, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return nil
	}
	trim, err := strconv.Atoi(m[7])
	if err != nil {
		return nil
	}
	st := &CylinderStatus{
		PositionMS:   pos,
		Mode:         m[2],
		TrimMicros:   trim,
		WifiMode:     m[8],
		IPAddress:    m[9],
		SpeedPercent: DefaultServoPercent,
		Raw:          line,
	}
	if st.StartPositionMS, err = savedSlot(m[4]); err != nil {
		return nil
	}
	if st.StopPositionMS, err = savedSlot(m[6]); err != nil {
		return nil
	}
	if m[10] != "" {
		if st.SpeedPercent, err = strconv.Atoi(m[10]); err != nil {
			return nil
		}
	}
	return st
}

// SetTrim builds TR<us>, clamped to the servo trim band.
func SetTrim(micros int) string {
	return "TR" + strconv.Itoa(clamp(micros, TrimMinMicros, TrimMaxMicros))
}

// SetServoSpeed builds VS<pct>, clamped to 0..100.
func SetServoSpeed(percent int) string {
	return "VS" + strconv.Itoa(clamp(percent, 0, 100))
}

// ValidateTrim rejects out-of-band input rather than clamping it.
func ValidateTrim(raw string) (int, bool) {
	return parseBounded(raw, TrimMinMicros, TrimMaxMicros)
}

func ValidateServoSpeed(raw string) (int, bool) {
	return parseBounded(raw, 0, 100)
}

func parseBounded(raw string, lo, hi int) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v < lo || v > hi {
		return 0, false
	}
	return v, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

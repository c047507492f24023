package scl

import (
	"fmt"
	"strconv"
	"strings"
)

// AlarmClear is the code the drive reports with no active alarm.
const AlarmClear = "0000"

// Status code bits read from SC.
const (
	StatusMotorEnabled uint32 = 0x0001
	StatusMoving       uint32 = 0x0010
)

type alarmBit struct {
	bit  uint32
	name string
}

var alarmTable = []alarmBit{
	{0x0001, "Position Limit"},
	{0x0002, "CCW Limit"},
	{0x0004, "CW Limit"},
	{0x0008, "Over Temp"},
	{0x0010, "Internal Voltage"},
	{0x0020, "Over Voltage"},
	{0x0040, "Under Voltage"},
	{0x0080, "Over Current"},
	{0x0100, "Open Motor Winding"},
	{0x0200, "Bad Encoder"},
	{0x0400, "Comm Error"},
	{0x0800, "Bad Flash"},
	{0x1000, "No Move"},
	{0x2000, "Blank Q Segment"},
	{0x4000, "No Motor Connected"},
	{0x8000, "Motor Disabled"},
}

// ParseHexCode parses a hex status or alarm code.
func ParseHexCode(code string) (uint32, bool) {
	v, err := strconv.ParseUint(strings.TrimSpace(code), 16, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

// IsAlarmClear reports whether code decodes to zero. Unparsable codes are not clear.
func IsAlarmClear(code string) bool {
	v, ok := ParseHexCode(code)
	return ok && v == 0
}

// DecodeAlarm renders an alarm bitmask as names joined with ", ". Bits outside
// the table are reported as one trailing "Unknown bits" entry so a composite
// code never loses information.
func DecodeAlarm(code string) string {
	v, ok := ParseHexCode(code)
	if !ok {
		return fmt.Sprintf("Unknown (%s)", code)
	}
	if v == 0 {
		return "No Alarm"
	}
	names := make([]string, 0, 2)
	var known uint32
	for _, a := range alarmTable {
		if v&a.bit != 0 {
			names = append(names, a.name)
			known |= a.bit
		}
	}
	if rest := v &^ known; rest != 0 {
		names = append(names, fmt.Sprintf("Unknown bits (0x%04X)", rest))
	}
	return strings.Join(names, ", ")
}

// DecodeStatusCode extracts the motor-enabled and moving bits from SC.
func DecodeStatusCode(code string) (enabled, moving, ok bool) {
	v, ok := ParseHexCode(code)
	if !ok {
		return false, false, false
	}
	return v&StatusMotorEnabled != 0, v&StatusMoving != 0, true
}

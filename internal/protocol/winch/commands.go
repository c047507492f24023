package winch

import (
	"fmt"
	"strconv"
	"strings"
)

// Winch line commands.
const (
	CmdJogLeft      = "JL"
	CmdJogRight     = "JR"
	CmdJogStop      = "JS"
	CmdGoHome       = "GH"
	CmdGoWell       = "GW"
	CmdStop         = "ST"
	CmdStopKill     = "SK"
	CmdSaveHome     = "SH"
	CmdSaveWell     = "SW"
	CmdZeroPosition = "ZP"
	CmdAlarmReset   = "AR"
	CmdMotorEnable  = "ME"
	CmdMotorDisable = "MD"
	CmdStatus       = "?"

	PrefixGoTo         = "GT"
	PrefixMoveRelative = "MR"
	PrefixJogSpeed     = "VJ"
	PrefixMoveSpeed    = "VM"
)

func GoTo(steps int64) string { return PrefixGoTo + strconv.FormatInt(steps, 10) }

func MoveRelative(steps int64) string { return PrefixMoveRelative + strconv.FormatInt(steps, 10) }

func SetJogSpeed(rps float64) string { return fmt.Sprintf("%s%.2f", PrefixJogSpeed, rps) }

func SetMoveSpeed(rps float64) string { return fmt.Sprintf("%s%.2f", PrefixMoveSpeed, rps) }

// ValidateSteps parses operator step input, tolerating surrounding space and
// thousands separators ("12,000").
func ValidateSteps(raw string) (int64, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

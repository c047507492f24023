package scl

import (
	"strconv"
	"strings"
)

// Drive command mnemonics.
const (
	CmdAccel             = "AC"
	CmdDecel             = "DE"
	CmdMotorEnable       = "ME"
	CmdMotorDisable      = "MD"
	CmdAlarmReset        = "AR"
	CmdStop              = "ST"
	CmdStopKill          = "SK"
	CmdDistance          = "DI"
	CmdJogSpeed          = "JS"
	CmdCommenceJog       = "CJ"
	CmdStopJog           = "SJ"
	CmdVelocity          = "VE"
	CmdFeedToLength      = "FL"
	CmdFeedToPosition    = "FP"
	CmdSetPosition       = "SP"
	CmdEncoderPosition   = "EP"
	CmdImmediateEncoder  = "IE"
	CmdImmediateVelocity = "IV"
	CmdStatusCode        = "SC"
	CmdAlarmCode         = "AL"
)

// Command is one mnemonic plus an optional pre-formatted numeric argument.
type Command struct {
	Mnemonic string
	Arg      string
}

// Bare builds an argument-less command.
func Bare(mnemonic string) Command {
	return Command{Mnemonic: mnemonic}
}

// Int builds a command with a signed integer argument, e.g. DI-1 or FP20000.
func Int(mnemonic string, v int64) Command {
	return Command{Mnemonic: mnemonic, Arg: strconv.FormatInt(v, 10)}
}

// Fixed builds a command with a one-decimal argument, e.g. VE1.5 or AC10.0.
// The drive rejects velocity arguments without a decimal point.
func Fixed(mnemonic string, v float64) Command {
	return Command{Mnemonic: mnemonic, Arg: strconv.FormatFloat(v, 'f', 1, 64)}
}

func (c Command) String() string {
	return strings.TrimSpace(c.Mnemonic) + c.Arg
}

// Direction returns the DI argument used to select jog direction.
func Direction(dir int) Command {
	if dir >= 0 {
		return Int(CmdDistance, 1)
	}
	return Int(CmdDistance, -1)
}

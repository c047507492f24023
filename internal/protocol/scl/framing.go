package scl

import "strings"

// Framing selects how a command is wrapped on the wire. It belongs to the
// transport channel, never to the caller issuing the command.
type Framing int

const (
	// FramingESCL is the networked framing: 0x00 0x07 marker, ASCII, CR.
	FramingESCL Framing = iota
	// FramingLine is the serial framing: ASCII, LF.
	FramingLine
)

var esclHeader = [2]byte{0x00, 0x07}

func (f Framing) String() string {
	switch f {
	case FramingESCL:
		return "escl"
	case FramingLine:
		return "line"
	default:
		return "unknown"
	}
}

// Encode wraps command text for the given framing.
func Encode(f Framing, text string) []byte {
	text = strings.TrimSpace(text)
	switch f {
	case FramingLine:
		out := make([]byte, 0, len(text)+1)
		out = append(out, text...)
		return append(out, '\n')
	default:
		out := make([]byte, 0, len(text)+3)
		out = append(out, esclHeader[:]...)
		out = append(out, text...)
		return append(out, '\r')
	}
}

// EncodeCommand is Encode for a structured command.
func EncodeCommand(f Framing, cmd Command) []byte {
	return Encode(f, cmd.String())
}

// DecodeResponse strips an optional eSCL marker plus surrounding whitespace
// and control noise from a raw response.
func DecodeResponse(raw []byte) string {
	if len(raw) >= 2 && raw[0] == esclHeader[0] && raw[1] == esclHeader[1] {
		raw = raw[2:]
	}
	out := make([]byte, 0, len(raw))
	for _, b := range raw {
		if b == 0 || b >= 0x7f {
			continue
		}
		out = append(out, b)
	}
	return strings.TrimSpace(string(out))
}

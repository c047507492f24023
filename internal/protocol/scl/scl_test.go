package scl

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/danmuck/drivectl/internal/testutil/testlog"
)

func TestEncodeFramings(t *testing.T) {
	testlog.Start(t)

	got := EncodeCommand(FramingESCL, Int(CmdFeedToPosition, 20000))
	want := []byte{0x00, 0x07, 'F', 'P', '2', '0', '0', '0', '0', '\r'}
	if !bytes.Equal(got, want) {
		t.Fatalf("escl frame mismatch: got=%v want=%v", got, want)
	}

	got = Encode(FramingLine, " GT-1000 ")
	if string(got) != "GT-1000\n" {
		t.Fatalf("line frame mismatch: %q", got)
	}
}

func TestCommandFormatting(t *testing.T) {
	testlog.Start(t)

	cases := []struct {
		cmd  Command
		want string
	}{
		{Bare(CmdMotorEnable), "ME"},
		{Int(CmdDistance, -500), "DI-500"},
		{Fixed(CmdVelocity, 1.5), "VE1.5"},
		{Fixed(CmdAccel, 10), "AC10.0"},
		{Direction(1), "DI1"},
		{Direction(-3), "DI-1"},
		{Int(CmdEncoderPosition, 0), "EP0"},
	}
	for _, tc := range cases {
		if got := tc.cmd.String(); got != tc.want {
			t.Fatalf("command format: got=%q want=%q", got, tc.want)
		}
	}
}

func TestDecodeResponseStripsMarker(t *testing.T) {
	testlog.Start(t)

	raw := []byte{0x00, 0x07, 'E', 'P', '=', '4', '2', '\r'}
	if got := DecodeResponse(raw); got != "EP=42" {
		t.Fatalf("unexpected decoded response: %q", got)
	}
	if got := DecodeResponse([]byte("%\r")); got != "%" {
		t.Fatalf("unexpected ack decode: %q", got)
	}
	if got := DecodeResponse(nil); got != "" {
		t.Fatalf("expected empty decode, got %q", got)
	}
}

func TestReadUntilTerminatorStopsAtTerminator(t *testing.T) {
	testlog.Start(t)

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		_, _ = server.Write([]byte{0x00, 0x07})
		_, _ = server.Write([]byte("IE=-1"))
		_, _ = server.Write([]byte("20\r"))
	}()

	resp, err := ReadUntilTerminator(client, time.Second)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp != "IE=-120" {
		t.Fatalf("unexpected response: %q", resp)
	}
}

func TestReadUntilTerminatorAcceptsAckAndNack(t *testing.T) {
	testlog.Start(t)

	for _, payload := range []string{"%", "?4"} {
		client, server := net.Pipe()
		go func(p string) {
			_, _ = server.Write([]byte(p))
		}(payload)
		resp, err := ReadUntilTerminator(client, time.Second)
		if err != nil {
			t.Fatalf("read %q: %v", payload, err)
		}
		if resp == "" {
			t.Fatalf("expected non-empty response for %q", payload)
		}
		_ = client.Close()
		_ = server.Close()
	}
}

func TestReadUntilTerminatorTimesOut(t *testing.T) {
	testlog.Start(t)

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		_, _ = server.Write([]byte("EP=12"))
	}()

	start := time.Now()
	resp, err := ReadUntilTerminator(client, 80*time.Millisecond)
	if !errors.Is(err, ErrResponseTimeout) {
		t.Fatalf("expected ErrResponseTimeout, got %v", err)
	}
	if resp != "EP=12" {
		t.Fatalf("expected partial response, got %q", resp)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("read blocked too long: %v", elapsed)
	}
}

func TestParseNumericField(t *testing.T) {
	testlog.Start(t)

	cases := []struct {
		resp string
		key  string
		want int64
		ok   bool
	}{
		{"EP=12345", "EP", 12345, true},
		{"EP=12345 EP=12345", "EP", 12345, true},
		{"EP=-500", "EP", -500, true},
		{"IE=77%", "IE", 77, true},
		{"*EP 314", "EP", 314, true},
		{"  9001  ", "EP", 9001, true},
		{"EP=-", "EP", 0, false},
		{"%", "EP", 0, false},
		{"", "EP", 0, false},
		{"EP=abc", "EP", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseNumericField(tc.resp, tc.key)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParseNumericField(%q,%q) = (%d,%v) want (%d,%v)", tc.resp, tc.key, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseCodeAndFloatFields(t *testing.T) {
	testlog.Start(t)

	if code, ok := ParseCodeField("SC=0019", "SC"); !ok || code != "0019" {
		t.Fatalf("unexpected SC parse: %q %v", code, ok)
	}
	if code, ok := ParseCodeField("AL=0004 AL=0004", "AL"); !ok || code != "0004" {
		t.Fatalf("unexpected AL parse: %q %v", code, ok)
	}
	if code, ok := ParseCodeField("0200%", "AL"); !ok || code != "0200" {
		t.Fatalf("unexpected fallback AL parse: %q %v", code, ok)
	}
	if _, ok := ParseCodeField("%", "AL"); ok {
		t.Fatalf("expected missing code")
	}
	if v, ok := ParseFloatField("IV=1.25", "IV"); !ok || v != 1.25 {
		t.Fatalf("unexpected IV parse: %v %v", v, ok)
	}
	if _, ok := ParseFloatField("IV=?", "IV"); ok {
		t.Fatalf("expected IV parse failure")
	}
}

func TestDecodeAlarm(t *testing.T) {
	testlog.Start(t)

	cases := map[string]string{
		"0000":  "No Alarm",
		"0004":  "CW Limit",
		"0084":  "CW Limit, Over Current",
		"8001":  "Position Limit, Motor Disabled",
		"10004": "CW Limit, Unknown bits (0x10000)",
		"zz":    "Unknown (zz)",
	}
	for code, want := range cases {
		if got := DecodeAlarm(code); got != want {
			t.Fatalf("DecodeAlarm(%q) = %q want %q", code, got, want)
		}
	}
	if !IsAlarmClear("0000") || IsAlarmClear("0004") || IsAlarmClear("") {
		t.Fatalf("unexpected IsAlarmClear results")
	}
}

func TestDecodeStatusCode(t *testing.T) {
	testlog.Start(t)

	enabled, moving, ok := DecodeStatusCode("0011")
	if !ok || !enabled || !moving {
		t.Fatalf("unexpected decode: enabled=%v moving=%v ok=%v", enabled, moving, ok)
	}
	enabled, moving, ok = DecodeStatusCode("0001")
	if !ok || !enabled || moving {
		t.Fatalf("unexpected idle decode: enabled=%v moving=%v ok=%v", enabled, moving, ok)
	}
	if _, _, ok := DecodeStatusCode("??"); ok {
		t.Fatalf("expected decode failure")
	}
}

func TestReadFramedLineAcceptsNewline(t *testing.T) {
	testlog.Start(t)

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		_, _ = server.Write([]byte("EP=88\n"))
	}()

	resp, err := ReadFramed(client, FramingLine, time.Second)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp != "EP=88" {
		t.Fatalf("unexpected response: %q", resp)
	}
}

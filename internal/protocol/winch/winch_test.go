package winch

import (
	"testing"

	"github.com/danmuck/drivectl/internal/testutil/testlog"
)

func TestParseStatusLineIdleExample(t *testing.T) {
	testlog.Start(t)

	st := ParseStatusLine("POS:12345 MODE:IDLE SPD:0.00 HOME:Y@0 WELL:Y@8000 ESTOP:0")
	if st == nil {
		t.Fatalf("expected parsed status")
	}
	if st.Position != 12345 || st.Mode != ModeIdle {
		t.Fatalf("unexpected position/mode: %+v", st)
	}
	if st.HomePosition == nil || *st.HomePosition != 0 {
		t.Fatalf("expected home=0, got %v", st.HomePosition)
	}
	if st.WellPosition == nil || *st.WellPosition != 8000 {
		t.Fatalf("expected well=8000, got %v", st.WellPosition)
	}
	if st.EStop {
		t.Fatalf("expected estop=false")
	}
	if st.JogRPS != DefaultJogRPS || st.MoveRPS != DefaultMoveRPS {
		t.Fatalf("expected default velocities, got jog=%v move=%v", st.JogRPS, st.MoveRPS)
	}
}

func TestParseStatusLineOptionalTokens(t *testing.T) {
	testlog.Start(t)

	st := ParseStatusLine("POS:-40 MODE:JOG SPD:2.50 HOME:N WELL:N ESTOP:1 VJOG:3.25 VMOVE:1.50\r\n")
	if st == nil {
		t.Fatalf("expected parsed status")
	}
	if st.Position != -40 || st.Mode != ModeJog || st.SpeedRPS != 2.5 {
		t.Fatalf("unexpected fields: %+v", st)
	}
	if st.HomeSaved() || st.WellSaved() {
		t.Fatalf("expected unsaved slots")
	}
	if !st.EStop || st.JogRPS != 3.25 || st.MoveRPS != 1.5 {
		t.Fatalf("unexpected trailing fields: %+v", st)
	}

	st = ParseStatusLine("POS:1 MODE:HOMING SPD:0 HOME:N WELL:N ESTOP:0")
	if st == nil || st.Mode != ModeUnknown {
		t.Fatalf("expected unknown mode, got %+v", st)
	}
}

func TestParseStatusLineRejectsIncompleteLines(t *testing.T) {
	testlog.Start(t)

	lines := []string{
		"",
		"   ",
		"POS:12345 MODE:IDLE SPD:0.00 HOME:Y@0 WELL:Y@8000",
		"POS:12345 MODE:IDLE HOME:Y@0 WELL:Y@8000 ESTOP:0",
		"MODE:IDLE SPD:0.00 HOME:Y@0 WELL:Y@8000 ESTOP:0",
		"POS:12345 MODE:IDLE SPD:0.00 HOME:Y@ WELL:N ESTOP:0",
		"OK",
	}
	for _, line := range lines {
		if st := ParseStatusLine(line); st != nil {
			t.Fatalf("expected nil for %q, got %+v", line, st)
		}
	}
}

func TestFormatStatusLineParses(t *testing.T) {
	testlog.Start(t)

	home := int64(-200)
	in := Status{
		Position:     777,
		Mode:         ModeMove,
		SpeedRPS:     -1.5,
		HomePosition: &home,
		EStop:        true,
		JogRPS:       2,
		MoveRPS:      1.5,
	}
	line := FormatStatusLine(in)
	want := "POS:777 MODE:MOVE SPD:1.50 HOME:Y@-200 WELL:N ESTOP:1 VJOG:2.00 VMOVE:1.50"
	if line != want {
		t.Fatalf("format mismatch:\n got=%q\nwant=%q", line, want)
	}
	out := ParseStatusLine(line + " CONN:1")
	if out == nil || out.Position != 777 || *out.HomePosition != -200 || out.WellPosition != nil {
		t.Fatalf("formatted line did not parse back: %+v", out)
	}
}

func TestCommandBuilders(t *testing.T) {
	testlog.Start(t)

	if got := GoTo(-1200); got != "GT-1200" {
		t.Fatalf("GoTo: %q", got)
	}
	if got := MoveRelative(400); got != "MR400" {
		t.Fatalf("MoveRelative: %q", got)
	}
	if got := SetJogSpeed(2); got != "VJ2.00" {
		t.Fatalf("SetJogSpeed: %q", got)
	}
	if got := SetMoveSpeed(1.255); got != "VM1.25" && got != "VM1.26" {
		t.Fatalf("SetMoveSpeed: %q", got)
	}
}

func TestValidateSteps(t *testing.T) {
	testlog.Start(t)

	cases := []struct {
		raw  string
		want int64
		ok   bool
	}{
		{"12,000", 12000, true},
		{"  -450 ", -450, true},
		{"", 0, false},
		{"1.5", 0, false},
		{"abc", 0, false},
	}
	for _, tc := range cases {
		got, ok := ValidateSteps(tc.raw)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ValidateSteps(%q) = (%d,%v) want (%d,%v)", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseCylinderLine(t *testing.T) {
	testlog.Start(t)

	st := ParseCylinderLine("POS:1500 MODE:JOG_DOWN START:Y@0 STOP:N TRIM:-12 WIFI:STA IP:10.0.0.7 SPEED:80")
	if st == nil {
		t.Fatalf("expected parsed cylinder status")
	}
	if st.PositionMS != 1500 || !st.Moving() || st.TrimMicros != -12 {
		t.Fatalf("unexpected fields: %+v", st)
	}
	if st.StartPositionMS == nil || *st.StartPositionMS != 0 || st.StopPositionMS != nil {
		t.Fatalf("unexpected slots: %+v", st)
	}
	if st.WifiMode != "STA" || st.IPAddress != "10.0.0.7" || st.SpeedPercent != 80 {
		t.Fatalf("unexpected network fields: %+v", st)
	}

	st = ParseCylinderLine("POS:0 MODE:IDLE START:N STOP:N TRIM:0 WIFI:AP IP:192.168.4.1")
	if st == nil || st.SpeedPercent != DefaultServoPercent || st.Moving() {
		t.Fatalf("expected default speed idle status, got %+v", st)
	}

	for _, line := range []string{"", "OK POS:0 MODE:IDLE START:N STOP:N TRIM:0 WIFI:AP IP:x", "POS:0 MODE:IDLE START:N STOP:N TRIM:0"} {
		if st := ParseCylinderLine(line); st != nil {
			t.Fatalf("expected nil for %q", line)
		}
	}
}

func TestCylinderCommandClamping(t *testing.T) {
	testlog.Start(t)

	if got := SetTrim(90); got != "TR50" {
		t.Fatalf("SetTrim high: %q", got)
	}
	if got := SetTrim(-90); got != "TR-50" {
		t.Fatalf("SetTrim low: %q", got)
	}
	if got := SetServoSpeed(130); got != "VS100" {
		t.Fatalf("SetServoSpeed: %q", got)
	}
	if got := SetServoSpeed(-1); got != "VS0" {
		t.Fatalf("SetServoSpeed low: %q", got)
	}
	if _, ok := ValidateTrim("51"); ok {
		t.Fatalf("expected trim rejection")
	}
	if v, ok := ValidateServoSpeed(" 40 "); !ok || v != 40 {
		t.Fatalf("ValidateServoSpeed: %d %v", v, ok)
	}
}

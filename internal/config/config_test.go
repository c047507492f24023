package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/drivectl/internal/testutil/testlog"
)

func TestTemplatesLoadAndValidate(t *testing.T) {
	testlog.Start(t)

	for _, kind := range Kinds {
		path := filepath.Join(t.TempDir(), kind+".toml")
		if err := WriteTemplate(path, kind, false); err != nil {
			t.Fatalf("write %s: %v", kind, err)
		}
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("load %s: %v", kind, err)
		}
		if cfg.Drive.Transport != kind {
			t.Fatalf("unexpected transport %q for %s", cfg.Drive.Transport, kind)
		}
		if cfg.Drive.GearRatio != 2.5 || cfg.Drive.Poll == nil || !*cfg.Drive.Poll {
			t.Fatalf("unexpected drive section: %+v", cfg.Drive)
		}
		if cfg.Bridge.Addr != ":8081" || cfg.Relay.Cylinder.StatusInterval != "200ms" {
			t.Fatalf("unexpected shared sections: %+v", cfg)
		}
	}
}

func TestWriteTemplateRefusesOverwrite(t *testing.T) {
	testlog.Start(t)

	path := filepath.Join(t.TempDir(), "drivectl.toml")
	if err := WriteTemplate(path, "tcp", false); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteTemplate(path, "tcp", false); err == nil {
		t.Fatalf("expected existing file error")
	}
	if err := WriteTemplate(path, "serial", true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if _, err := Template("carrier"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestValidateRejects(t *testing.T) {
	testlog.Start(t)

	cases := map[string]string{
		"unknown transport": "[drive]\ntransport = \"can\"\n",
		"tcp without addr":  "[drive]\ntransport = \"tcp\"\n",
		"bad baud":          "[drive]\ntransport = \"serial\"\ndevice = \"/dev/ttyUSB0\"\nbaud = 1234\n",
		"bad duration":      "[drive]\naddr = \"h:1\"\njog_lockout = \"soon\"\n",
		"velocity band":     "[drive]\naddr = \"h:1\"\njog_velocity = 50.0\n",
		"relay no device":   "[drive]\naddr = \"h:1\"\n[relay.winch]\nenabled = true\n",
		"bad heartbeat":     "[drive]\naddr = \"h:1\"\n[log]\nheartbeat = \"-1s\"\n",
	}
	for name, doc := range cases {
		path := filepath.Join(t.TempDir(), "c.toml")
		if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := Load(path); !errors.Is(err, ErrInvalid) {
			t.Fatalf("%s: expected ErrInvalid, got %v", name, err)
		}
	}
}

func TestLoadParseError(t *testing.T) {
	testlog.Start(t)

	path := filepath.Join(t.TempDir(), "broken.toml")
	if err := os.WriteFile(path, []byte("[drive\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "config parse failed") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/drivectl/internal/daemon"
)

type fileConfig struct {
	Drive struct {
		Transport        string  `toml:"transport"`
		Addr             string  `toml:"addr"`
		Device           string  `toml:"device"`
		Baud             int     `toml:"baud"`
		ReadTimeout      string  `toml:"read_timeout"`
		ConnectTimeout   string  `toml:"connect_timeout"`
		Poll             bool    `toml:"poll"`
		IdlePollInterval string  `toml:"idle_poll_interval"`
		GearRatio        float64 `toml:"gear_ratio"`
		Accel            float64 `toml:"accel"`
		Decel            float64 `toml:"decel"`
		JogVelocity      float64 `toml:"jog_velocity"`
		MoveVelocity     float64 `toml:"move_velocity"`
		JogLockout       string  `toml:"jog_lockout"`
		MoveInterval     string  `toml:"move_interval"`
	} `toml:"drive"`
	Relay struct {
		Winch    deviceConfig `toml:"winch"`
		Cylinder deviceConfig `toml:"cylinder"`
	} `toml:"relay"`
	Bridge struct {
		Addr string `toml:"addr"`
	} `toml:"bridge"`
	HTTP struct {
		Addr        string   `toml:"addr"`
		CorsOrigins []string `toml:"cors_origins"`
		Token       string   `toml:"token"`
	} `toml:"http"`
	Journal struct {
		Path string `toml:"path"`
	} `toml:"journal"`
	Log struct {
		Level     string `toml:"level"`
		Heartbeat string `toml:"heartbeat"`
	} `toml:"log"`
}

type deviceConfig struct {
	Enabled        bool   `toml:"enabled"`
	Device         string `toml:"device"`
	Baud           int    `toml:"baud"`
	StatusInterval string `toml:"status_interval"`
	ResetDelay     string `toml:"reset_delay"`
}

func loadServiceConfig(path string) (daemon.ServiceConfig, error) {
	cfg := daemon.DefaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return daemon.ServiceConfig{}, fmt.Errorf("load drivectl config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return daemon.ServiceConfig{}, fmt.Errorf("load drivectl config: unknown keys %v", undecoded)
	}

	d := &cfg.Drive
	if meta.IsDefined("drive", "transport") {
		d.Transport = strings.ToLower(strings.TrimSpace(raw.Drive.Transport))
	}
	if meta.IsDefined("drive", "addr") {
		d.Addr = strings.TrimSpace(raw.Drive.Addr)
	}
	if meta.IsDefined("drive", "device") {
		d.Serial.Device = strings.TrimSpace(raw.Drive.Device)
	}
	if meta.IsDefined("drive", "baud") {
		d.Serial.Baud = raw.Drive.Baud
	}
	if meta.IsDefined("drive", "poll") {
		d.Poll = raw.Drive.Poll
	}
	if meta.IsDefined("drive", "gear_ratio") {
		d.Motion.GearRatio = raw.Drive.GearRatio
	}
	if meta.IsDefined("drive", "accel") {
		d.Motion.Accel = raw.Drive.Accel
	}
	if meta.IsDefined("drive", "decel") {
		d.Motion.Decel = raw.Drive.Decel
	}
	if meta.IsDefined("drive", "jog_velocity") {
		d.Motion.JogVelocity = raw.Drive.JogVelocity
	}
	if meta.IsDefined("drive", "move_velocity") {
		d.Motion.MoveVelocity = raw.Drive.MoveVelocity
	}

	durations := []struct {
		key []string
		raw string
		dst *time.Duration
	}{
		{[]string{"drive", "read_timeout"}, raw.Drive.ReadTimeout, &d.Serial.ReadTimeout},
		{[]string{"drive", "connect_timeout"}, raw.Drive.ConnectTimeout, &d.Link.ConnectTimeout},
		{[]string{"drive", "idle_poll_interval"}, raw.Drive.IdlePollInterval, &d.Motion.IdlePollInterval},
		{[]string{"drive", "jog_lockout"}, raw.Drive.JogLockout, &d.Motion.JogLockout},
		{[]string{"drive", "move_interval"}, raw.Drive.MoveInterval, &d.Motion.MoveInterval},
		{[]string{"log", "heartbeat"}, raw.Log.Heartbeat, &cfg.HeartbeatInterval},
	}
	for _, entry := range durations {
		if !meta.IsDefined(entry.key...) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(entry.raw))
		if err != nil {
			return daemon.ServiceConfig{}, fmt.Errorf("parse %s: %w", strings.Join(entry.key, "."), err)
		}
		*entry.dst = v
	}

	if err := overlayDevice(meta, "winch", raw.Relay.Winch, &cfg.Winch); err != nil {
		return daemon.ServiceConfig{}, err
	}
	if err := overlayDevice(meta, "cylinder", raw.Relay.Cylinder, &cfg.Cylinder); err != nil {
		return daemon.ServiceConfig{}, err
	}

	if meta.IsDefined("bridge", "addr") {
		cfg.BridgeAddr = strings.TrimSpace(raw.Bridge.Addr)
	}
	if meta.IsDefined("http", "addr") {
		cfg.HTTPAddr = strings.TrimSpace(raw.HTTP.Addr)
	}
	if meta.IsDefined("http", "cors_origins") {
		cfg.CORSOrigins = normalizeOrigins(raw.HTTP.CorsOrigins)
	}
	if meta.IsDefined("http", "token") {
		cfg.HTTPToken = strings.TrimSpace(raw.HTTP.Token)
	}
	if meta.IsDefined("journal", "path") {
		cfg.JournalPath = strings.TrimSpace(raw.Journal.Path)
	}
	if meta.IsDefined("log", "level") {
		cfg.LogLevel = strings.TrimSpace(raw.Log.Level)
	}
	return cfg, nil
}

func overlayDevice(meta toml.MetaData, name string, raw deviceConfig, slot *daemon.RelaySlot) error {
	if meta.IsDefined("relay", name, "enabled") {
		slot.Enabled = raw.Enabled
	}
	if meta.IsDefined("relay", name, "device") {
		slot.Relay.Serial.Device = strings.TrimSpace(raw.Device)
	}
	if meta.IsDefined("relay", name, "baud") {
		slot.Relay.Serial.Baud = raw.Baud
	}
	for _, entry := range []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"status_interval", raw.StatusInterval, &slot.Relay.StatusInterval},
		{"reset_delay", raw.ResetDelay, &slot.Relay.ResetDelay},
	} {
		if !meta.IsDefined("relay", name, entry.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(entry.raw))
		if err != nil {
			return fmt.Errorf("parse relay.%s.%s: %w", name, entry.key, err)
		}
		*entry.dst = v
	}
	return nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		if v := strings.TrimSpace(origin); v != "" {
			out = append(out, v)
		}
	}
	return out
}

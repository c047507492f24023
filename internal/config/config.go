package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/danmuck/drivectl/internal/drive"
	"github.com/danmuck/drivectl/internal/serialport"
)

var ErrInvalid = errors.New("config: invalid")

// Config is the drivectl file document. Durations are Go duration strings.
type Config struct {
	Drive   DriveSection   `toml:"drive"`
	Relay   RelaySection   `toml:"relay"`
	Bridge  BridgeSection  `toml:"bridge"`
	HTTP    HTTPSection    `toml:"http"`
	Journal JournalSection `toml:"journal"`
	Log     LogSection     `toml:"log"`
}

type DriveSection struct {
	Transport        string  `toml:"transport"`
	Addr             string  `toml:"addr"`
	Device           string  `toml:"device"`
	Baud             int     `toml:"baud"`
	ReadTimeout      string  `toml:"read_timeout"`
	ConnectTimeout   string  `toml:"connect_timeout"`
	Poll             *bool   `toml:"poll"`
	IdlePollInterval string  `toml:"idle_poll_interval"`
	GearRatio        float64 `toml:"gear_ratio"`
	Accel            float64 `toml:"accel"`
	Decel            float64 `toml:"decel"`
	JogVelocity      float64 `toml:"jog_velocity"`
	MoveVelocity     float64 `toml:"move_velocity"`
	JogLockout       string  `toml:"jog_lockout"`
	MoveInterval     string  `toml:"move_interval"`
}

type RelaySection struct {
	Winch    DeviceSection `toml:"winch"`
	Cylinder DeviceSection `toml:"cylinder"`
}

type DeviceSection struct {
	Enabled        bool   `toml:"enabled"`
	Device         string `toml:"device"`
	Baud           int    `toml:"baud"`
	StatusInterval string `toml:"status_interval"`
	ResetDelay     string `toml:"reset_delay"`
}

type BridgeSection struct {
	Addr string `toml:"addr"`
}

type HTTPSection struct {
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
	Token       string   `toml:"token"`
}

type JournalSection struct {
	Path string `toml:"path"`
}

type LogSection struct {
	Level     string `toml:"level"`
	Heartbeat string `toml:"heartbeat"`
}

func Load(path string) (Config, error) {
	var cfg Config
	if err := loadToml(path, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.Drive.Transport == "" {
		cfg.Drive.Transport = "tcp"
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func Validate(cfg Config) error {
	if err := validateDrive(cfg.Drive); err != nil {
		return fmt.Errorf("%w: drive: %v", ErrInvalid, err)
	}
	if err := validateDevice(cfg.Relay.Winch); err != nil {
		return fmt.Errorf("%w: relay.winch: %v", ErrInvalid, err)
	}
	if err := validateDevice(cfg.Relay.Cylinder); err != nil {
		return fmt.Errorf("%w: relay.cylinder: %v", ErrInvalid, err)
	}
	if err := validateDuration("heartbeat", cfg.Log.Heartbeat); err != nil {
		return fmt.Errorf("%w: log: %v", ErrInvalid, err)
	}
	return nil
}

func validateDrive(d DriveSection) error {
	switch strings.ToLower(strings.TrimSpace(d.Transport)) {
	case "tcp":
		if strings.TrimSpace(d.Addr) == "" {
			return fmt.Errorf("addr is required for tcp")
		}
	case "serial":
		sc := serialport.Config{Device: d.Device, Baud: d.Baud}
		if err := sc.WithDefaults().Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown transport %q", d.Transport)
	}
	for name, raw := range map[string]string{
		"read_timeout":       d.ReadTimeout,
		"connect_timeout":    d.ConnectTimeout,
		"idle_poll_interval": d.IdlePollInterval,
		"jog_lockout":        d.JogLockout,
		"move_interval":      d.MoveInterval,
	} {
		if err := validateDuration(name, raw); err != nil {
			return err
		}
	}
	if d.GearRatio < 0 || d.Accel < 0 || d.Decel < 0 {
		return fmt.Errorf("gear_ratio, accel and decel must not be negative")
	}
	band := drive.DefaultConfig()
	for name, v := range map[string]float64{"jog_velocity": d.JogVelocity, "move_velocity": d.MoveVelocity} {
		if v != 0 && (v < band.MinVelocity || v > band.MaxVelocity) {
			return fmt.Errorf("%s %.2f outside %.1f..%.1f", name, v, band.MinVelocity, band.MaxVelocity)
		}
	}
	return nil
}

func validateDevice(d DeviceSection) error {
	if err := validateDuration("status_interval", d.StatusInterval); err != nil {
		return err
	}
	if err := validateDuration("reset_delay", d.ResetDelay); err != nil {
		return err
	}
	if !d.Enabled {
		return nil
	}
	sc := serialport.Config{Device: d.Device, Baud: d.Baud}
	return sc.WithDefaults().Validate()
}

func validateDuration(name, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	if d < 0 {
		return fmt.Errorf("%s must not be negative", name)
	}
	return nil
}

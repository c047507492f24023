package config

import (
	"fmt"
	"os"
	"strings"
)

// Kinds lists the template names Template accepts.
var Kinds = []string{"tcp", "serial"}

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "tcp":
		return tcpTemplate, nil
	case "serial":
		return serialTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const sharedSections = `
[relay.winch]
enabled = false
device = "/dev/ttyACM0"
baud = 115200
status_interval = "150ms"
reset_delay = "500ms"

[relay.cylinder]
enabled = false
device = "/dev/ttyACM1"
baud = 115200
status_interval = "200ms"
reset_delay = "500ms"

[bridge]
addr = ":8081"

[http]
addr = ":8080"
cors_origins = ["http://localhost:3000"]
token = ""

[journal]
path = "local/faults.db"

[log]
level = "info"
heartbeat = "10s"
`

const tcpTemplate = `[drive]
transport = "tcp"
addr = "192.168.1.40:7776"
connect_timeout = "5s"
poll = true
idle_poll_interval = "150ms"
gear_ratio = 2.5
accel = 10.0
decel = 10.0
jog_velocity = 2.0
move_velocity = 1.5
jog_lockout = "500ms"
move_interval = "500ms"
` + sharedSections

const serialTemplate = `[drive]
transport = "serial"
device = "/dev/ttyUSB0"
baud = 115200
read_timeout = "100ms"
poll = true
idle_poll_interval = "150ms"
gear_ratio = 2.5
accel = 10.0
decel = 10.0
jog_velocity = 2.0
move_velocity = 1.5
jog_lockout = "500ms"
move_interval = "500ms"
` + sharedSections

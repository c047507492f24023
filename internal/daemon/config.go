package daemon

import (
	"time"

	"github.com/danmuck/drivectl/internal/bridge"
	"github.com/danmuck/drivectl/internal/drive"
	"github.com/danmuck/drivectl/internal/relay"
	"github.com/danmuck/drivectl/internal/serialport"
	"github.com/danmuck/drivectl/internal/server"
	"github.com/danmuck/drivectl/internal/transport"
)

// Drive transports.
const (
	TransportTCP    = "tcp"
	TransportSerial = "serial"
)

type DriveConfig struct {
	Transport string
	Addr      string
	Serial    serialport.Config
	Link      transport.Config
	Motion    drive.Config
	// Poll starts the status poller after every successful connect.
	Poll bool
}

// RelaySlot is an optional secondary serial device.
type RelaySlot struct {
	Enabled bool
	Relay   relay.Config
}

// ServiceConfig configures the daemon. Empty listener addresses and an empty
// journal path disable those parts.
type ServiceConfig struct {
	Drive             DriveConfig
	Winch             RelaySlot
	Cylinder          RelaySlot
	BridgeAddr        string
	HTTPAddr          string
	CORSOrigins       []string
	// HTTPToken, when set, is required as a bearer token on control routes.
	HTTPToken         string
	JournalPath       string
	LogLevel          string
	HeartbeatInterval time.Duration
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Drive: DriveConfig{
			Transport: TransportTCP,
			Addr:      transport.DefaultDriveAddr,
			Serial:    serialport.Config{Device: "/dev/ttyUSB0"}.WithDefaults(),
			Link:      transport.DefaultConfig(),
			Motion:    drive.DefaultConfig(),
			Poll:      true,
		},
		Winch: RelaySlot{Relay: relay.Config{
			Name:       "winch",
			Serial:     serialport.Config{Device: "/dev/ttyACM0"}.WithDefaults(),
			ResetDelay: 500 * time.Millisecond,
		}},
		Cylinder: RelaySlot{Relay: relay.Config{
			Name:       "cylinder",
			Serial:     serialport.Config{Device: "/dev/ttyACM1"}.WithDefaults(),
			ResetDelay: 500 * time.Millisecond,
		}},
		BridgeAddr:        bridge.DefaultAddr,
		HTTPAddr:          server.DefaultAddr,
		CORSOrigins:       []string{"http://localhost:3000"},
		JournalPath:       "",
		LogLevel:          "info",
		HeartbeatInterval: 10 * time.Second,
	}
}

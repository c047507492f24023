package daemon

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/danmuck/drivectl/internal/auth"
	"github.com/danmuck/drivectl/internal/bridge"
	"github.com/danmuck/drivectl/internal/drive"
	"github.com/danmuck/drivectl/internal/journal"
	logs "github.com/danmuck/drivectl/internal/logging"
	"github.com/danmuck/drivectl/internal/relay"
	"github.com/danmuck/drivectl/internal/server"
	"github.com/danmuck/drivectl/internal/transport"
)

var (
	ErrInvalidHeartbeatInterval = errors.New("daemon: invalid heartbeat interval")
	ErrInvalidTransport         = errors.New("daemon: invalid drive transport")
	ErrDriveAddressRequired     = errors.New("daemon: drive address required")
)

// Service owns one drive client plus its optional relays and listeners.
type Service struct {
	cfg ServiceConfig

	// newChannel builds the drive link; tests substitute fakes.
	newChannel func(DriveConfig) (transport.Channel, error)
	openRelay  relay.OpenFunc

	client   *drive.Client
	winch    *relay.Winch
	cylinder *relay.DropCylinder
	journal  *journal.Journal
	bridge   *bridge.Server
	http     *server.Server

	driveLost  chan struct{}
	reconnects atomic.Int64
}

func NewService() *Service {
	return NewServiceWithConfig(DefaultServiceConfig())
}

func NewServiceWithConfig(cfg ServiceConfig) *Service {
	return &Service{
		cfg:        cfg,
		newChannel: buildChannel,
		openRelay:  relay.OpenSerial,
		driveLost:  make(chan struct{}, 1),
	}
}

func buildChannel(cfg DriveConfig) (transport.Channel, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Transport)) {
	case TransportTCP:
		if strings.TrimSpace(cfg.Addr) == "" {
			return nil, ErrDriveAddressRequired
		}
		return transport.NewTCPChannel(strings.TrimSpace(cfg.Addr), cfg.Link), nil
	case TransportSerial:
		if err := cfg.Serial.Validate(); err != nil {
			return nil, err
		}
		return transport.NewSerialChannel(cfg.Serial, nil), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidTransport, cfg.Transport)
	}
}

// Run blocks until SIGINT or SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.bootstrap(); err != nil {
		return err
	}
	return s.serve(ctx)
}

func (s *Service) Client() *drive.Client { return s.client }

func (s *Service) Journal() *journal.Journal { return s.journal }

func (s *Service) Reconnects() int64 { return s.reconnects.Load() }

func (s *Service) bootstrap() error {
	if s.cfg.HeartbeatInterval <= 0 {
		return ErrInvalidHeartbeatInterval
	}
	if lvl := strings.TrimSpace(s.cfg.LogLevel); lvl != "" && !logs.SetLevel(lvl) {
		logs.Warnf("daemon.Service.bootstrap unknown log level=%q", lvl)
	}

	ch, err := s.newChannel(s.cfg.Drive)
	if err != nil {
		return err
	}
	s.client = drive.NewClient(ch, s.cfg.Drive.Motion)
	s.client.OnConnection(func(state drive.ConnectionState, msg string) {
		if state == drive.StateError || state == drive.StateDisconnected {
			signalLost(s.driveLost)
		}
	})
	s.client.OnFault(func(f drive.Fault) {
		logs.Warnf("daemon.Service fault %s", f.Text())
	})

	if path := strings.TrimSpace(s.cfg.JournalPath); path != "" {
		j, err := journal.Open(path)
		if err != nil {
			return err
		}
		s.journal = j
		j.Attach(s.client)
	}

	var links []server.RelayLink
	if s.cfg.Winch.Enabled {
		s.winch = relay.NewWinch(s.cfg.Winch.Relay, s.openRelay)
		links = append(links, s.winch)
	}
	if s.cfg.Cylinder.Enabled {
		s.cylinder = relay.NewDropCylinder(s.cfg.Cylinder.Relay, s.openRelay)
		links = append(links, s.cylinder)
	}

	if addr := strings.TrimSpace(s.cfg.BridgeAddr); addr != "" {
		s.bridge = bridge.New(bridge.Config{Addr: addr}, s.client)
	}
	if addr := strings.TrimSpace(s.cfg.HTTPAddr); addr != "" {
		opts := server.Options{
			Addr:        addr,
			CORSOrigins: s.cfg.CORSOrigins,
			Controller:  s.client,
			Relays:      links,
		}
		if s.journal != nil {
			opts.Faults = s.journal
		}
		if token := strings.TrimSpace(s.cfg.HTTPToken); token != "" {
			opts.Auth = auth.StaticToken{Token: token}
		}
		s.http = server.New(opts)
	}

	logs.Infof(
		"daemon.Service.bootstrap ready target=%q bridge=%q http=%q journal=%q winch=%v cylinder=%v",
		s.client.Target(),
		s.cfg.BridgeAddr,
		s.cfg.HTTPAddr,
		s.cfg.JournalPath,
		s.winch != nil,
		s.cylinder != nil,
	)
	return nil
}

func (s *Service) serve(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer s.shutdown(&wg)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.superviseDrive(ctx)
	}()
	if s.winch != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			superviseRelay(ctx, s.winch.Relay, s.cfg.Drive.Link.Backoff)
		}()
	}
	if s.cylinder != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			superviseRelay(ctx, s.cylinder.Relay, s.cfg.Drive.Link.Backoff)
		}()
	}
	if s.bridge != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.bridge.Serve(ctx); err != nil {
				errCh <- err
			}
		}()
	}
	if s.http != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.http.Serve(ctx); err != nil {
				errCh <- err
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			logs.Infof("daemon.Service.serve shutdown")
			return nil
		case err := <-errCh:
			return err
		case <-ticker.C:
			st := s.client.Status()
			var bridgeClients int64
			if s.bridge != nil {
				bridgeClients = s.bridge.Clients()
			}
			logs.Infof(
				"daemon.Service.heartbeat connected=%v position=%d alarm=%s moving=%v polling=%v reconnects=%d bridge_clients=%d",
				st.Connected,
				st.EncoderPosition,
				st.AlarmCode,
				st.IsMoving,
				s.client.Polling(),
				s.reconnects.Load(),
				bridgeClients,
			)
		}
	}
}

// shutdown waits for the listeners and supervisors, then releases the links.
func (s *Service) shutdown(wg *sync.WaitGroup) {
	wg.Wait()
	if s.client != nil {
		s.client.Disconnect()
	}
	if s.winch != nil {
		s.winch.Disconnect()
	}
	if s.cylinder != nil {
		s.cylinder.Disconnect()
	}
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			logs.Warnf("daemon.Service.shutdown journal close err=%v", err)
		}
	}
}

func signalLost(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

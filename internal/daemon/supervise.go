package daemon

import (
	"context"
	"time"

	logs "github.com/danmuck/drivectl/internal/logging"
	"github.com/danmuck/drivectl/internal/relay"
	"github.com/danmuck/drivectl/internal/transport"
)

// superviseDrive keeps the drive connected, restarting the poller after each
// successful connect, until ctx is cancelled.
func (s *Service) superviseDrive(ctx context.Context) {
	connectedOnce := false
	supervise(ctx, "drive", s.cfg.Drive.Link.Backoff, s.driveLost,
		s.client.Connected,
		func(ctx context.Context) bool {
			if !s.client.Connect(ctx) {
				return false
			}
			if connectedOnce {
				s.reconnects.Add(1)
			}
			connectedOnce = true
			if s.cfg.Drive.Poll {
				s.client.StartPolling(s.cfg.Drive.Motion.IdlePollInterval)
			}
			return true
		},
	)
}

func superviseRelay[S any](ctx context.Context, r *relay.Relay[S], backoff transport.BackoffConfig) {
	lost := make(chan struct{}, 1)
	r.OnConnection(func(state relay.State, _ string) {
		if state == relay.StateError || state == relay.StateDisconnected {
			signalLost(lost)
		}
	})
	supervise(ctx, r.Name(), backoff, lost, r.Connected, r.Connect)
}

// supervise connects, waits for a loss signal and reconnects with backoff.
func supervise(
	ctx context.Context,
	name string,
	backoff transport.BackoffConfig,
	lost <-chan struct{},
	connected func() bool,
	connect func(context.Context) bool,
) {
	backoff.Jitter = false
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}
		if !connected() {
			if !connect(ctx) {
				attempt++
				delay := transport.NextBackoffDelay(backoff, attempt, nil)
				logs.Warnf("daemon.supervise %s connect failed attempt=%d retry_in=%s", name, attempt, delay)
				if !waitDelay(ctx, delay) {
					return
				}
				continue
			}
			attempt = 0
			logs.Infof("daemon.supervise %s connected", name)
		}
		select {
		case <-ctx.Done():
			return
		case <-lost:
		}
	}
}

func waitDelay(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

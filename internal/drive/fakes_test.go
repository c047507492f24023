package drive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/drivectl/internal/protocol/scl"
	"github.com/danmuck/drivectl/internal/transport"
)

// fakeClock only moves on Advance; Sleep records the request so settle
// delays do not leak into guard windows.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
}

func (c *fakeClock) Slept(d time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.sleeps {
		if s == d {
			return true
		}
	}
	return false
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var errFakeLink = errors.New("fake: connection reset")

// fakeDrive answers like a drive: reads report state, everything else acks.
type fakeDrive struct {
	mu      sync.Mutex
	encoder int64
	status  string
	alarms  []string
	alarm   string
	silent  map[string]bool
	broken  map[string]bool
}

func newFakeDrive(encoder int64) *fakeDrive {
	return &fakeDrive{
		encoder: encoder,
		status:  "0001",
		alarm:   scl.AlarmClear,
		silent:  map[string]bool{},
		broken:  map[string]bool{},
	}
}

func (d *fakeDrive) handle(cmd string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.broken[cmd] {
		return "", errFakeLink
	}
	if d.silent[cmd] {
		return "", nil
	}
	switch cmd {
	case "EP":
		return fmt.Sprintf("EP=%d", d.encoder), nil
	case "IE":
		return fmt.Sprintf("IE=%d", d.encoder), nil
	case "SC":
		return "SC=" + d.status, nil
	case "AL":
		if len(d.alarms) > 0 {
			d.alarm = d.alarms[0]
			d.alarms = d.alarms[1:]
		}
		return "AL=" + d.alarm, nil
	case "IV":
		return "IV=1.25", nil
	}
	if strings.HasPrefix(cmd, "EP") {
		d.encoder = 0
	}
	return "%", nil
}

func (d *fakeDrive) setEncoder(v int64) {
	d.mu.Lock()
	d.encoder = v
	d.mu.Unlock()
}

func (d *fakeDrive) setSilent(cmd string) {
	d.mu.Lock()
	d.silent[cmd] = true
	d.mu.Unlock()
}

func (d *fakeDrive) setBroken(cmd string) {
	d.mu.Lock()
	d.broken[cmd] = true
	d.mu.Unlock()
}

func (d *fakeDrive) repair(cmd string) {
	d.mu.Lock()
	delete(d.broken, cmd)
	d.mu.Unlock()
}

type fakeChannel struct {
	mu         sync.Mutex
	handler    func(string) (string, error)
	connectErr error
	connected  bool
	sent       []string
	pending    string
	pendingErr error
	closes     int
}

func (f *fakeChannel) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeChannel) Send(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return transport.ErrNotConnected
	}
	f.sent = append(f.sent, text)
	f.pending, f.pendingErr = f.handler(text)
	return nil
}

func (f *fakeChannel) ReadResponse(time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	resp, err := f.pending, f.pendingErr
	f.pending, f.pendingErr = "", nil
	if err != nil {
		return "", err
	}
	if resp == "" {
		return "", scl.ErrResponseTimeout
	}
	return resp, nil
}

func (f *fakeChannel) Discard() error { return nil }

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.closes++
	return nil
}

func (f *fakeChannel) Framing() scl.Framing { return scl.FramingESCL }

func (f *fakeChannel) Target() string { return "fake://drive" }

func (f *fakeChannel) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeChannel) ResetSent() {
	f.mu.Lock()
	f.sent = nil
	f.mu.Unlock()
}

// newConnectedClient returns a connected client with the init exchange cleared.
func newConnectedClient(t *testing.T, drv *fakeDrive) (*Client, *fakeChannel, *fakeClock) {
	t.Helper()
	ch := &fakeChannel{handler: drv.handle}
	clk := newFakeClock()
	c := NewClient(ch, DefaultConfig())
	c.clock = clk
	if !c.Connect(context.Background()) {
		t.Fatalf("connect failed")
	}
	ch.ResetSent()
	return c, ch, clk
}

func equalSeq(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func contains(seq []string, cmd string) bool {
	for _, s := range seq {
		if s == cmd {
			return true
		}
	}
	return false
}

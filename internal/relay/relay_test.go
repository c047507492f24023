package relay

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/drivectl/internal/protocol/winch"
	"github.com/danmuck/drivectl/internal/serialport"
	"github.com/danmuck/drivectl/internal/testutil/testlog"
)

type memLink struct {
	mu       sync.Mutex
	in       bytes.Buffer
	out      bytes.Buffer
	deadline time.Time
	readErr  error
	closed   bool
}

func (l *memLink) feed(s string) {
	l.mu.Lock()
	l.in.WriteString(s)
	l.mu.Unlock()
}

func (l *memLink) failReads(err error) {
	l.mu.Lock()
	l.readErr = err
	l.mu.Unlock()
}

func (l *memLink) written() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.String()
}

func (l *memLink) Read(b []byte) (int, error) {
	for {
		l.mu.Lock()
		if l.readErr != nil {
			err := l.readErr
			l.mu.Unlock()
			return 0, err
		}
		if l.in.Len() > 0 {
			n, _ := l.in.Read(b)
			l.mu.Unlock()
			return n, nil
		}
		deadline := l.deadline
		l.mu.Unlock()
		if !deadline.IsZero() && time.Now().After(deadline) {
			return 0, os.ErrDeadlineExceeded
		}
		time.Sleep(time.Millisecond)
	}
}

func (l *memLink) Write(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Write(b)
}

func (l *memLink) SetReadDeadline(t time.Time) error {
	l.mu.Lock()
	l.deadline = t
	l.mu.Unlock()
	return nil
}

func (l *memLink) Discard() error {
	l.mu.Lock()
	l.in.Reset()
	l.mu.Unlock()
	return nil
}

func (l *memLink) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return nil
}

func (l *memLink) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// commands returns written traffic minus the periodic status requests.
func (l *memLink) commands() string {
	return strings.ReplaceAll(l.written(), "?\n", "")
}

func openMem(l *memLink) OpenFunc {
	return func(serialport.Config) (Link, error) { return l, nil }
}

func testConfig() Config {
	return Config{
		Serial:         serialport.Config{Device: "/dev/ttyUSB9", ReadTimeout: 5 * time.Millisecond},
		StatusInterval: time.Hour,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSplitLines(t *testing.T) {
	testlog.Start(t)

	lines, rest := splitLines("OK\r\nPOS:1\nERR\rPOS:2 MO")
	if strings.Join(lines, "|") != "OK|POS:1|ERR" || rest != "POS:2 MO" {
		t.Fatalf("unexpected split lines=%v rest=%q", lines, rest)
	}
	lines, rest = splitLines("\r\n\r\n  \n")
	if len(lines) != 0 || rest != "" {
		t.Fatalf("expected blank lines dropped, got %v %q", lines, rest)
	}
}

func TestWinchRelayParsesStatusAcrossChunks(t *testing.T) {
	testlog.Start(t)

	link := &memLink{}
	w := NewWinch(testConfig(), openMem(link))

	var mu sync.Mutex
	var statuses []*winch.Status
	var raw []string
	w.OnStatus(func(s *winch.Status) {
		mu.Lock()
		statuses = append(statuses, s)
		mu.Unlock()
	})
	w.OnRawLine(func(line string) {
		mu.Lock()
		raw = append(raw, line)
		mu.Unlock()
	})

	if !w.Connect(context.Background()) {
		t.Fatalf("connect failed")
	}
	defer w.Disconnect()

	link.feed("OK\r\nPOS:1 MODE:IDLE SPD:0.00 HOME:N WELL:N ESTOP:0\r\nPOS:2 MO")
	waitFor(t, "first status", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(statuses) == 1
	})
	link.feed("DE:JOG SPD:1.00 HOME:Y@5 WELL:N ESTOP:0 VJOG:4.00\n")
	waitFor(t, "second status", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(statuses) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	if statuses[0].Position != 1 || statuses[1].Position != 2 || statuses[1].Mode != winch.ModeJog {
		t.Fatalf("unexpected statuses: %+v %+v", statuses[0], statuses[1])
	}
	if statuses[1].JogRPS != 4 || statuses[1].MoveRPS != winch.DefaultMoveRPS {
		t.Fatalf("unexpected velocities: %+v", statuses[1])
	}
	if len(raw) != 3 || raw[0] != "OK" {
		t.Fatalf("unexpected raw lines: %v", raw)
	}
	last, seen := w.LastStatus()
	if last == nil || last.Position != 2 || seen.IsZero() {
		t.Fatalf("unexpected last status: %+v", last)
	}
}

func TestWinchRelayWritesQueuedCommands(t *testing.T) {
	testlog.Start(t)

	link := &memLink{}
	w := NewWinch(testConfig(), openMem(link))
	var mu sync.Mutex
	var sent []string
	w.OnCommandSent(func(cmd string) {
		if cmd == winch.CmdStatus {
			return
		}
		mu.Lock()
		sent = append(sent, cmd)
		mu.Unlock()
	})

	if w.JogLeft() {
		t.Fatalf("commands must be refused while disconnected")
	}
	if err := w.Send("JL"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if !w.Connect(context.Background()) {
		t.Fatalf("connect failed")
	}
	defer w.Disconnect()

	if !w.JogLeft() || !w.GoTo(-250) || !w.SetMoveSpeed(7.5) || !w.SaveWell() {
		t.Fatalf("enqueue failed")
	}
	want := "JL\nGT-250\nVM7.50\nSW\n"
	waitFor(t, "queued writes", func() bool { return link.commands() == want })

	mu.Lock()
	defer mu.Unlock()
	if strings.Join(sent, ",") != "JL,GT-250,VM7.50,SW" {
		t.Fatalf("unexpected sent callbacks: %v", sent)
	}
}

func TestStatusRequesterEnqueuesAtInterval(t *testing.T) {
	testlog.Start(t)

	link := &memLink{}
	cfg := testConfig()
	cfg.StatusInterval = 10 * time.Millisecond
	w := NewWinch(cfg, openMem(link))
	if !w.Connect(context.Background()) {
		t.Fatalf("connect failed")
	}
	defer w.Disconnect()

	waitFor(t, "status requests", func() bool { return strings.Count(link.written(), "?\n") >= 3 })
}

func TestRelayReadErrorMovesToErrorState(t *testing.T) {
	testlog.Start(t)

	link := &memLink{}
	w := NewWinch(testConfig(), openMem(link))
	var mu sync.Mutex
	var states []State
	var errs []string
	w.OnConnection(func(s State, _ string) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})
	w.OnError(func(msg string) {
		mu.Lock()
		errs = append(errs, msg)
		mu.Unlock()
	})

	if !w.Connect(context.Background()) {
		t.Fatalf("connect failed")
	}
	link.failReads(errors.New("device unplugged"))
	waitFor(t, "error state", func() bool { return w.State() == StateError })
	if w.Enqueue("?") {
		t.Fatalf("enqueue must fail after link loss")
	}
	w.Disconnect()

	mu.Lock()
	defer mu.Unlock()
	if len(errs) != 1 || !strings.Contains(errs[0], "device unplugged") {
		t.Fatalf("unexpected errors: %v", errs)
	}
	want := []State{StateConnecting, StateConnected, StateError, StateDisconnected}
	if len(states) != len(want) {
		t.Fatalf("unexpected states: %v", states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("unexpected states: %v", states)
		}
	}
}

func TestReconnectAfterErrorReleasesOldSession(t *testing.T) {
	testlog.Start(t)

	first, second := &memLink{}, &memLink{}
	links := []*memLink{first, second}
	cfg := testConfig()
	cfg.StatusInterval = 20 * time.Millisecond
	w := NewWinch(cfg, func(serialport.Config) (Link, error) {
		l := links[0]
		links = links[1:]
		return l, nil
	})

	if !w.Connect(context.Background()) {
		t.Fatalf("connect failed")
	}
	first.failReads(errors.New("device unplugged"))
	waitFor(t, "error state", func() bool { return w.State() == StateError })

	if !w.Connect(context.Background()) {
		t.Fatalf("reconnect failed")
	}
	defer w.Disconnect()
	if !first.isClosed() {
		t.Fatalf("old port should be closed on reconnect")
	}

	time.Sleep(200 * time.Millisecond)
	if n := strings.Count(second.written(), "?\n"); n > 15 {
		t.Fatalf("status requester duplicated after reconnect: %d requests in 200ms", n)
	}
}

func TestRelayConnectFailure(t *testing.T) {
	testlog.Start(t)

	w := NewWinch(testConfig(), func(serialport.Config) (Link, error) {
		return nil, errors.New("no such device")
	})
	var last State
	w.OnConnection(func(s State, _ string) { last = s })
	if w.Connect(context.Background()) {
		t.Fatalf("expected connect failure")
	}
	if last != StateError || w.Connected() {
		t.Fatalf("expected error state, got %s", last)
	}
}

func TestDropCylinderRelay(t *testing.T) {
	testlog.Start(t)

	link := &memLink{}
	d := NewDropCylinder(testConfig(), openMem(link))
	got := make(chan *winch.CylinderStatus, 1)
	d.OnStatus(func(s *winch.CylinderStatus) { got <- s })

	if !d.Connect(context.Background()) {
		t.Fatalf("connect failed")
	}
	defer d.Disconnect()

	if !d.SetTrim(99) || !d.SetSpeed(-5) || !d.JogDown() {
		t.Fatalf("enqueue failed")
	}
	waitFor(t, "cylinder writes", func() bool { return link.commands() == "TR50\nVS0\nJD\n" })

	link.feed("POS:250 MODE:MOVE_STOP START:Y@0 STOP:Y@900 TRIM:3 WIFI:AP IP:192.168.4.1\n")
	select {
	case s := <-got:
		if s.PositionMS != 250 || !s.Moving() || *s.StopPositionMS != 900 {
			t.Fatalf("unexpected cylinder status: %+v", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no cylinder status")
	}
}

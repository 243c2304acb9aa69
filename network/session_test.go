package network

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/eladdad/core-net/protocol"
	"github.com/eladdad/core-net/screen"
)

// logBuffer collects zerolog output from concurrent loops.
type logBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *logBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func (l *logBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}

func waitEvent(t *testing.T, events <-chan Event, kind EventKind) Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("event stream closed while waiting for %s", kind)
			}
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

func newTestManager(t *testing.T, host, listen string) *SessionManager {
	t.Helper()
	sm, err := NewSessionManager(SessionManagerOptions{
		Options:       testOptions(host),
		ListenAddress: listen,
	})
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	if err := sm.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(sm.Stop)
	return sm
}

func TestSessionHandshakeAndMessaging(t *testing.T) {
	server := newTestManager(t, "desktop", "127.0.0.1:0")
	client := newTestManager(t, "macbook", "")

	if err := client.Connect("desktop", server.Addr()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	serverSide := waitEvent(t, server.Events(), PeerConnected)
	if serverSide.Peer != "macbook" {
		t.Fatalf("server saw peer %q, want macbook", serverSide.Peer)
	}
	if serverSide.Screen.Width != 2560 || serverSide.Screen.Height != 1600 {
		t.Fatalf("server saw geometry %dx%d, want 2560x1600",
			serverSide.Screen.Width, serverSide.Screen.Height)
	}

	clientSide := waitEvent(t, client.Events(), PeerConnected)
	if clientSide.Peer != "desktop" {
		t.Fatalf("client saw peer %q, want desktop", clientSide.Peer)
	}

	err := client.Send("desktop", protocol.Message{
		Type: protocol.TypeEnterScreen,
		X:    0,
		Y:    540,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	ev := waitEvent(t, server.Events(), PeerMessage)
	if ev.Message.Type != protocol.TypeEnterScreen {
		t.Fatalf("message type = %s, want enter_screen", protocol.TypeName(ev.Message.Type))
	}
	if ev.Message.X != 0 || ev.Message.Y != 540 {
		t.Fatalf("entry point = (%d,%d), want (0,540)", ev.Message.X, ev.Message.Y)
	}
	if ev.Message.Sequence == 0 {
		t.Fatal("post-handshake message carried sequence 0")
	}
}

func TestSessionDisconnectEmitsEvent(t *testing.T) {
	server := newTestManager(t, "desktop", "127.0.0.1:0")
	client := newTestManager(t, "macbook", "")

	if err := client.Connect("desktop", server.Addr()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitEvent(t, server.Events(), PeerConnected)
	waitEvent(t, client.Events(), PeerConnected)

	client.Disconnect("desktop")

	ev := waitEvent(t, server.Events(), PeerDisconnected)
	if ev.Peer != "macbook" {
		t.Fatalf("disconnected peer = %q, want macbook", ev.Peer)
	}

	if err := server.Send("macbook", protocol.Message{Type: protocol.TypeHeartbeat}); err == nil {
		t.Fatal("Send to disconnected peer succeeded")
	}
}

func TestSendToUnknownPeerFails(t *testing.T) {
	client := newTestManager(t, "macbook", "")
	err := client.Send("nowhere", protocol.Message{Type: protocol.TypeHeartbeat})
	if err == nil {
		t.Fatal("Send to unknown peer succeeded")
	}
}

func TestHandshakeRejectsSelfConnection(t *testing.T) {
	server := newTestManager(t, "macbook", "127.0.0.1:0")

	_, err := Dial(server.Addr(), testOptions("macbook"))
	if err == nil {
		t.Fatal("dial with our own host name succeeded")
	}
}

func TestDuplicateSessionClosesNewcomer(t *testing.T) {
	server := newTestManager(t, "desktop", "127.0.0.1:0")

	first, err := Dial(server.Addr(), testOptions("macbook"))
	if err != nil {
		t.Fatalf("first Dial: %v", err)
	}
	defer first.Close()
	waitEvent(t, server.Events(), PeerConnected)

	second, err := Dial(server.Addr(), testOptions("macbook"))
	if err != nil {
		t.Fatalf("second Dial: %v", err)
	}
	defer second.Close()

	// The established session wins; the newcomer is torn down.
	select {
	case <-second.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("duplicate session was not closed")
	}
	if first.State() == StateClosed {
		t.Fatal("established session was closed instead of the newcomer")
	}
	if err := server.Send("macbook", protocol.Message{Type: protocol.TypeHeartbeat}); err != nil {
		t.Fatalf("Send over the surviving session: %v", err)
	}
}

func TestMutualConnectDoesNotChurnSessions(t *testing.T) {
	newManager := func(host string, logs *logBuffer) *SessionManager {
		t.Helper()
		sm, err := NewSessionManager(SessionManagerOptions{
			Options: Options{
				LocalScreen:       screen.Geometry{Host: host, Width: 1920, Height: 1080},
				HeartbeatInterval: time.Hour,
				Logger:            zerolog.New(logs),
			},
			ListenAddress:      "127.0.0.1:0",
			ReconnectBaseDelay: 20 * time.Millisecond,
		})
		if err != nil {
			t.Fatalf("NewSessionManager: %v", err)
		}
		if err := sm.Start(); err != nil {
			t.Fatalf("Start: %v", err)
		}
		t.Cleanup(sm.Stop)
		return sm
	}

	var logsA, logsB logBuffer
	a := newManager("desktop", &logsA)
	b := newManager("macbook", &logsB)

	if err := a.Connect("macbook", b.Addr()); err != nil {
		t.Fatalf("Connect a->b: %v", err)
	}
	if err := b.Connect("desktop", a.Addr()); err != nil {
		t.Fatalf("Connect b->a: %v", err)
	}

	waitEvent(t, a.Events(), PeerConnected)
	waitEvent(t, b.Events(), PeerConnected)

	// With a 20ms base delay a redial loop that ignores the surviving
	// session would lose the duplicate race dozens of times in this window.
	time.Sleep(500 * time.Millisecond)

	duplicates := strings.Count(logsA.String(), "duplicate session") +
		strings.Count(logsB.String(), "duplicate session")
	if duplicates > 2 {
		t.Fatalf("%d duplicate-session closes; dial loops are churning against live sessions", duplicates)
	}

	if err := a.Send("macbook", protocol.Message{Type: protocol.TypeHeartbeat}); err != nil {
		t.Fatalf("Send a->b after settle: %v", err)
	}
	if err := b.Send("desktop", protocol.Message{Type: protocol.TypeHeartbeat}); err != nil {
		t.Fatalf("Send b->a after settle: %v", err)
	}
}

func TestNextBackoffDoublesAndCaps(t *testing.T) {
	max := 4 * time.Second
	d := 500 * time.Millisecond

	want := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		4 * time.Second,
	}
	for i, w := range want {
		d = nextBackoff(d, max)
		if d != w {
			t.Fatalf("step %d = %v, want %v", i, d, w)
		}
	}
}

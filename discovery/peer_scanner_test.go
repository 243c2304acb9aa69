package discovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func testServiceEntry(hostID, instance string, port int, ip string) *zeroconf.ServiceEntry {
	return &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{
			Instance: instance,
			Service:  DefaultService,
			Domain:   DefaultDomain,
		},
		HostName: instance + ".local",
		Port:     port,
		Text: []string{
			"host_id=" + hostID,
			"version=1",
			"width=1920",
			"height=1080",
		},
		AddrIPv4: []net.IP{net.ParseIP(ip)},
	}
}

func waitForCondition(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before timeout %s", timeout)
}

func TestPeerScannerFiltersSelf(t *testing.T) {
	cfg := Config{
		HostID:          "self-host",
		RefreshInterval: time.Hour,
		ScanTimeout:     35 * time.Millisecond,
		browseFn: func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
			entries <- testServiceEntry("self-host", "macbook", 24800, "10.0.0.1")
			entries <- testServiceEntry("host-2", "desktop", 24800, "10.0.0.2")
			<-ctx.Done()
			return nil
		},
	}

	scanner, err := NewPeerScanner(cfg)
	if err != nil {
		t.Fatalf("NewPeerScanner failed: %v", err)
	}
	if err := scanner.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer scanner.Stop()

	waitForCondition(t, time.Second, func() bool {
		peers := scanner.ListPeers()
		return len(peers) == 1 && peers[0].Name == "desktop"
	})

	peers := scanner.ListPeers()
	if peers[0].ScreenWidth != 1920 || peers[0].ScreenHeight != 1080 {
		t.Fatalf("geometry = %dx%d, want 1920x1080",
			peers[0].ScreenWidth, peers[0].ScreenHeight)
	}
}

func TestPeerScannerResolve(t *testing.T) {
	cfg := Config{
		HostID:          "self-host",
		RefreshInterval: time.Hour,
		ScanTimeout:     35 * time.Millisecond,
		browseFn: func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
			entries <- testServiceEntry("host-2", "desktop", 24801, "10.0.0.2")
			<-ctx.Done()
			return nil
		},
	}

	scanner, err := NewPeerScanner(cfg)
	if err != nil {
		t.Fatalf("NewPeerScanner failed: %v", err)
	}

	endpoint, err := scanner.Resolve(context.Background(), "desktop")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if endpoint != "10.0.0.2:24801" {
		t.Fatalf("endpoint = %q, want 10.0.0.2:24801", endpoint)
	}

	if _, err := scanner.Resolve(context.Background(), "nowhere"); !errors.Is(err, ErrPeerNotDiscovered) {
		t.Fatalf("expected ErrPeerNotDiscovered, got %v", err)
	}
}

func TestBroadcasterValidation(t *testing.T) {
	_, err := StartBroadcaster(Config{HostName: "macbook", ListeningPort: 24800})
	if err == nil {
		t.Fatal("broadcaster started without host ID")
	}

	_, err = StartBroadcaster(Config{HostID: "self-host", HostName: "macbook"})
	if err == nil {
		t.Fatal("broadcaster started without port")
	}
}

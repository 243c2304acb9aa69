package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

// ErrPeerNotDiscovered indicates no mDNS announcement matched the host name.
var ErrPeerNotDiscovered = errors.New("discovery: peer not discovered")

// DiscoveredPeer contains a discovered LAN host.
type DiscoveredPeer struct {
	HostID       string
	Name         string
	Version      int
	ScreenWidth  uint32
	ScreenHeight uint32
	Port         int
	Addresses    []string
	LastSeen     time.Time
}

// Endpoint returns the first dialable address:port for the peer.
func (p DiscoveredPeer) Endpoint() (string, bool) {
	if len(p.Addresses) == 0 || p.Port <= 0 {
		return "", false
	}
	return net.JoinHostPort(p.Addresses[0], strconv.Itoa(p.Port)), true
}

// PeerScanner discovers hosts with periodic mDNS browse operations.
type PeerScanner struct {
	cfg Config

	browse browseFunc

	mu    sync.RWMutex
	peers map[string]DiscoveredPeer

	startOnce sync.Once
	stopOnce  sync.Once

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPeerScanner creates a scanner with config defaults applied.
func NewPeerScanner(config Config) (*PeerScanner, error) {
	cfg := config.withDefaults()
	if err := cfg.validateForScan(); err != nil {
		return nil, err
	}

	browse := cfg.browseFn
	if browse == nil {
		resolver, err := zeroconf.NewResolver(nil)
		if err != nil {
			return nil, err
		}
		browse = resolver.Browse
	}

	return &PeerScanner{
		cfg:    cfg,
		browse: browse,
		peers:  make(map[string]DiscoveredPeer),
	}, nil
}

// Start begins background peer scanning.
func (s *PeerScanner) Start() error {
	s.startOnce.Do(func() {
		s.ctx, s.cancel = context.WithCancel(context.Background())
		s.wg.Add(1)
		go s.loop()
	})
	return nil
}

// Stop stops background scanning.
func (s *PeerScanner) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
	})
}

// ListPeers returns the current discovered peer snapshot sorted by name.
func (s *PeerScanner) ListPeers() []DiscoveredPeer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]DiscoveredPeer, 0, len(s.peers))
	for _, peer := range s.peers {
		out = append(out, peer)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].HostID < out[j].HostID
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Resolve maps a peer host name to a dialable address, scanning once when the
// cached snapshot has no match. It satisfies the session layer's resolver.
func (s *PeerScanner) Resolve(ctx context.Context, host string) (string, error) {
	if peer, ok := s.lookup(host); ok {
		if endpoint, ok := peer.Endpoint(); ok {
			return endpoint, nil
		}
	}

	if err := s.scanOnce(ctx); err != nil {
		return "", err
	}

	peer, ok := s.lookup(host)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrPeerNotDiscovered, host)
	}
	endpoint, ok := peer.Endpoint()
	if !ok {
		return "", fmt.Errorf("%w: %s announced no address", ErrPeerNotDiscovered, host)
	}
	return endpoint, nil
}

func (s *PeerScanner) lookup(host string) (DiscoveredPeer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, peer := range s.peers {
		if peer.Name == host {
			return peer, true
		}
	}
	return DiscoveredPeer{}, false
}

func (s *PeerScanner) loop() {
	defer s.wg.Done()

	// Prime the peer list immediately.
	_ = s.scanOnce(s.ctx)

	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = s.scanOnce(s.ctx)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *PeerScanner) scanOnce(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	scanCtx, cancel := context.WithTimeout(parent, s.cfg.ScanTimeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 32)
	collected := make(map[string]DiscoveredPeer)
	collectorDone := make(chan struct{})

	go func() {
		defer close(collectorDone)
		for {
			select {
			case <-scanCtx.Done():
				return
			case entry := <-entries:
				if entry == nil {
					continue
				}
				peer, ok := parseEntry(entry, s.cfg.HostID)
				if !ok {
					continue
				}
				peer.LastSeen = time.Now()
				collected[peer.HostID] = peer
			}
		}
	}()

	if err := s.browse(scanCtx, s.cfg.Service, s.cfg.Domain, entries); err != nil {
		return fmt.Errorf("mDNS browse: %w", err)
	}

	<-scanCtx.Done()
	<-collectorDone

	s.mu.Lock()
	for id, peer := range collected {
		s.peers[id] = peer
	}
	// Forget announcements that went stale several refresh cycles ago.
	cutoff := time.Now().Add(-3 * s.cfg.RefreshInterval)
	for id, peer := range s.peers {
		if _, fresh := collected[id]; !fresh && peer.LastSeen.Before(cutoff) {
			delete(s.peers, id)
		}
	}
	s.mu.Unlock()

	// A timeout just means this scan window ended naturally.
	if err := scanCtx.Err(); err != nil &&
		!errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func parseEntry(entry *zeroconf.ServiceEntry, selfHostID string) (DiscoveredPeer, bool) {
	txt := txtToMap(entry.Text)

	hostID := strings.TrimSpace(txt["host_id"])
	if hostID == "" || hostID == selfHostID {
		return DiscoveredPeer{}, false
	}

	peer := DiscoveredPeer{
		HostID: hostID,
		Port:   entry.Port,
	}

	if txt["version"] != "" {
		if parsed, err := strconv.Atoi(txt["version"]); err == nil {
			peer.Version = parsed
		}
	}
	if parsed, err := strconv.ParseUint(txt["width"], 10, 32); err == nil {
		peer.ScreenWidth = uint32(parsed)
	}
	if parsed, err := strconv.ParseUint(txt["height"], 10, 32); err == nil {
		peer.ScreenHeight = uint32(parsed)
	}

	seen := make(map[string]struct{})
	for _, ip := range append(entry.AddrIPv4, entry.AddrIPv6...) {
		if ip == nil {
			continue
		}
		raw := ip.String()
		if raw == "" {
			continue
		}
		if _, exists := seen[raw]; exists {
			continue
		}
		seen[raw] = struct{}{}
		peer.Addresses = append(peer.Addresses, raw)
	}
	sort.Strings(peer.Addresses)

	peer.Name = strings.TrimSpace(entry.Instance)
	if peer.Name == "" {
		peer.Name = strings.TrimSpace(entry.HostName)
	}
	if peer.Name == "" {
		peer.Name = hostID
	}

	return peer, true
}

func txtToMap(text []string) map[string]string {
	out := make(map[string]string, len(text))
	for _, item := range text {
		key, value, found := strings.Cut(item, "=")
		if !found {
			continue
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return out
}

package network

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/eladdad/core-net/protocol"
	"github.com/eladdad/core-net/screen"
)

var (
	// ErrPeerNotConnected indicates a send to a host with no live session.
	ErrPeerNotConnected = errors.New("network: peer not connected")
	// ErrSessionClosed indicates the session manager has been stopped.
	ErrSessionClosed = errors.New("network: session manager closed")
)

const (
	// DefaultReconnectBaseDelay seeds the exponential reconnect backoff.
	DefaultReconnectBaseDelay = 500 * time.Millisecond
	// DefaultReconnectMaxDelay caps the exponential reconnect backoff.
	DefaultReconnectMaxDelay = 30 * time.Second
)

// EventKind classifies session events delivered to the routing core.
type EventKind int

const (
	PeerConnected EventKind = iota
	PeerDisconnected
	PeerMessage
)

func (k EventKind) String() string {
	switch k {
	case PeerConnected:
		return "peer_connected"
	case PeerDisconnected:
		return "peer_disconnected"
	case PeerMessage:
		return "peer_message"
	default:
		return "unknown"
	}
}

// Event is one session-layer occurrence: a peer joined, a peer left, or a
// peer sent a message.
type Event struct {
	Kind    EventKind
	Peer    string
	Screen  screen.Geometry
	Message protocol.Message
}

// Resolver maps a peer host name to a dialable address.
type Resolver interface {
	Resolve(ctx context.Context, host string) (string, error)
}

// PeerStore persists peer geometry and last known endpoints across restarts.
type PeerStore interface {
	UpsertPeer(host string, width, height uint32, address string) error
	PeerAddress(host string) (string, error)
}

// SessionManagerOptions configures a SessionManager.
type SessionManagerOptions struct {
	Options

	// ListenAddress accepts inbound peers; empty disables the listener.
	ListenAddress string

	// Resolver is consulted when a reconnect has no usable address; optional.
	Resolver Resolver

	// Store persists peer endpoints for address fallback; optional.
	Store PeerStore

	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration
}

func (o SessionManagerOptions) withDefaults() SessionManagerOptions {
	out := o
	out.Options = o.Options.withDefaults()
	if out.ReconnectBaseDelay <= 0 {
		out.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if out.ReconnectMaxDelay < out.ReconnectBaseDelay {
		out.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	return out
}

// SessionManager maintains one live PeerConnection per peer host, merging
// every connection's traffic into a single event stream. Outbound peers are
// redialed with exponential backoff until Stop or an explicit Disconnect.
type SessionManager struct {
	options SessionManagerOptions
	log     zerolog.Logger

	server *Server

	mu          sync.RWMutex
	connections map[string]*PeerConnection
	reconnects  map[string]context.CancelFunc
	dialAddrs   map[string]string

	events chan Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// NewSessionManager creates a stopped session manager.
func NewSessionManager(options SessionManagerOptions) (*SessionManager, error) {
	opts := options.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &SessionManager{
		options:     opts,
		log:         opts.Logger,
		connections: make(map[string]*PeerConnection),
		reconnects:  make(map[string]context.CancelFunc),
		dialAddrs:   make(map[string]string),
		events:      make(chan Event, 256),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start begins accepting inbound peers when a listen address is configured.
func (sm *SessionManager) Start() error {
	if sm.options.ListenAddress == "" {
		return nil
	}

	server, err := Listen(sm.options.ListenAddress, sm.options.Options)
	if err != nil {
		return fmt.Errorf("start session listener: %w", err)
	}
	sm.server = server

	sm.wg.Add(1)
	go sm.acceptLoop()
	return nil
}

// Addr returns the listening address, or nil when not listening.
func (sm *SessionManager) Addr() string {
	if sm.server == nil {
		return ""
	}
	return sm.server.Addr().String()
}

// Events returns the merged stream of session events.
func (sm *SessionManager) Events() <-chan Event {
	return sm.events
}

// Peers returns the hosts with a live connection.
func (sm *SessionManager) Peers() []string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	peers := make([]string, 0, len(sm.connections))
	for host := range sm.connections {
		peers = append(peers, host)
	}
	return peers
}

// PeerScreen returns the announced geometry of a connected peer.
func (sm *SessionManager) PeerScreen(host string) (screen.Geometry, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	pc, ok := sm.connections[host]
	if !ok {
		return screen.Geometry{}, false
	}
	return pc.PeerScreen(), true
}

// Connect dials a peer and keeps the session alive with reconnects. The
// address may be empty when the store or resolver can supply one.
func (sm *SessionManager) Connect(host, address string) error {
	select {
	case <-sm.ctx.Done():
		return ErrSessionClosed
	default:
	}

	sm.mu.Lock()
	if _, live := sm.connections[host]; live {
		sm.mu.Unlock()
		return nil
	}
	if address != "" {
		sm.dialAddrs[host] = address
	}
	if _, pending := sm.reconnects[host]; pending {
		sm.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(sm.ctx)
	sm.reconnects[host] = cancel
	sm.mu.Unlock()

	sm.wg.Add(1)
	go sm.dialLoop(ctx, host)
	return nil
}

// Disconnect closes the session with a peer and stops redialing it.
func (sm *SessionManager) Disconnect(host string) {
	sm.mu.Lock()
	if cancel, ok := sm.reconnects[host]; ok {
		cancel()
		delete(sm.reconnects, host)
	}
	delete(sm.dialAddrs, host)
	pc := sm.connections[host]
	sm.mu.Unlock()

	if pc != nil {
		_ = pc.Close()
	}
}

// Send delivers a message to a connected peer.
func (sm *SessionManager) Send(host string, m protocol.Message) error {
	sm.mu.RLock()
	pc, ok := sm.connections[host]
	sm.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrPeerNotConnected, host)
	}
	return pc.Send(m)
}

// Stop closes all sessions and the event stream.
func (sm *SessionManager) Stop() {
	sm.closeOnce.Do(func() {
		sm.cancel()

		if sm.server != nil {
			_ = sm.server.Close()
		}

		sm.mu.Lock()
		conns := make([]*PeerConnection, 0, len(sm.connections))
		for _, pc := range sm.connections {
			conns = append(conns, pc)
		}
		sm.mu.Unlock()

		for _, pc := range conns {
			_ = pc.Close()
		}

		sm.wg.Wait()
		close(sm.events)
	})
}

func (sm *SessionManager) acceptLoop() {
	defer sm.wg.Done()

	for {
		select {
		case pc, ok := <-sm.server.Incoming():
			if !ok {
				return
			}
			sm.registerConnection(pc, false)
		case err, ok := <-sm.server.Errors():
			if !ok {
				return
			}
			sm.log.Warn().Err(err).Msg("inbound session error")
		case <-sm.ctx.Done():
			return
		}
	}
}

func (sm *SessionManager) dialLoop(ctx context.Context, host string) {
	defer sm.wg.Done()

	delay := sm.options.ReconnectBaseDelay
	for attempt := 1; ; attempt++ {
		if existing := sm.connection(host); existing != nil {
			// Another session for this host won the duplicate race. Hold the
			// redial until it ends instead of churning handshakes against it.
			select {
			case <-existing.Done():
			case <-ctx.Done():
				return
			}
			delay = sm.options.ReconnectBaseDelay
			attempt = 0
		} else if address := sm.resolveAddress(ctx, host); address == "" {
			sm.log.Warn().Str("peer", host).Msg("no address known for peer, retrying")
		} else {
			pc, err := Dial(address, sm.options.Options)
			if err == nil {
				if pc.PeerHost() != host {
					sm.log.Warn().
						Str("expected", host).
						Str("announced", pc.PeerHost()).
						Msg("peer announced unexpected host name")
				}
				sm.registerConnection(pc, true)

				// Wait for the session to end before redialing.
				select {
				case <-pc.Done():
				case <-ctx.Done():
					return
				}
				delay = sm.options.ReconnectBaseDelay
				attempt = 0
			} else {
				sm.log.Warn().
					Err(err).
					Str("peer", host).
					Str("addr", address).
					Int("attempt", attempt).
					Msg("dial failed")
			}
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
		delay = nextBackoff(delay, sm.options.ReconnectMaxDelay)
	}
}

func (sm *SessionManager) connection(host string) *PeerConnection {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.connections[host]
}

func (sm *SessionManager) resolveAddress(ctx context.Context, host string) string {
	sm.mu.RLock()
	address := sm.dialAddrs[host]
	sm.mu.RUnlock()
	if address != "" {
		return address
	}

	if sm.options.Store != nil {
		if stored, err := sm.options.Store.PeerAddress(host); err == nil && stored != "" {
			return stored
		}
	}

	if sm.options.Resolver != nil {
		resolveCtx, cancel := context.WithTimeout(ctx, sm.options.ConnectionTimeout)
		defer cancel()
		if resolved, err := sm.options.Resolver.Resolve(resolveCtx, host); err == nil {
			return resolved
		} else {
			sm.log.Debug().Err(err).Str("peer", host).Msg("resolve failed")
		}
	}
	return ""
}

func (sm *SessionManager) registerConnection(pc *PeerConnection, dialed bool) {
	host := pc.PeerHost()

	sm.mu.Lock()
	if existing, ok := sm.connections[host]; ok {
		// Keep the established session; the newcomer loses.
		sm.mu.Unlock()
		sm.log.Warn().Str("peer", host).Msg("duplicate session, closing newcomer")
		if existing != pc {
			_ = pc.Close()
		}
		return
	}
	sm.connections[host] = pc
	sm.mu.Unlock()

	if sm.options.Store != nil {
		g := pc.PeerScreen()
		if err := sm.options.Store.UpsertPeer(host, g.Width, g.Height, pc.RemoteAddr().String()); err != nil {
			sm.log.Warn().Err(err).Str("peer", host).Msg("persist peer failed")
		}
	}

	sm.emit(Event{Kind: PeerConnected, Peer: host, Screen: pc.PeerScreen()})

	sm.wg.Add(1)
	go sm.connectionLoop(pc, dialed)
}

func (sm *SessionManager) connectionLoop(pc *PeerConnection, dialed bool) {
	defer sm.wg.Done()

	host := pc.PeerHost()
	for {
		select {
		case m, ok := <-pc.Inbound():
			if !ok {
				continue
			}
			sm.emit(Event{Kind: PeerMessage, Peer: host, Screen: pc.PeerScreen(), Message: m})
		case <-pc.Done():
			sm.mu.Lock()
			if sm.connections[host] == pc {
				delete(sm.connections, host)
			}
			sm.mu.Unlock()

			if err := pc.LastError(); err != nil {
				sm.log.Warn().Err(err).Str("peer", host).Msg("session ended")
			} else {
				sm.log.Info().Str("peer", host).Msg("session closed")
			}

			sm.emit(Event{Kind: PeerDisconnected, Peer: host, Screen: pc.PeerScreen()})
			return
		case <-sm.ctx.Done():
			return
		}
	}
}

func (sm *SessionManager) emit(ev Event) {
	select {
	case sm.events <- ev:
	case <-sm.ctx.Done():
	}
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}

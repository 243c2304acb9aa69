package network

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/eladdad/core-net/protocol"
	"github.com/eladdad/core-net/screen"
)

var (
	// ErrPeerTimeout indicates no traffic arrived within the liveness window.
	ErrPeerTimeout = errors.New("network: peer heartbeat timeout")
	// ErrConnectionClosed indicates a send on a closed connection.
	ErrConnectionClosed = errors.New("network: connection closed")
)

// ConnectionState represents the lifecycle state of one peer connection.
type ConnectionState string

const (
	StateConnecting  ConnectionState = "CONNECTING"
	StateEstablished ConnectionState = "ESTABLISHED"
	StateClosing     ConnectionState = "CLOSING"
	StateClosed      ConnectionState = "CLOSED"
)

// PeerConnection manages one framed TCP session with a peer host.
//
// The send path assigns a strictly increasing sequence number to every
// outgoing message before encoding. The receive path drops any message whose
// sequence is not strictly greater than the last accepted one; such drops are
// logged as reordering anomalies, never treated as fatal. Heartbeats refresh
// liveness inside the read loop and are never surfaced to the consumer.
type PeerConnection struct {
	conn net.Conn

	localHost  string
	peerHost   string
	peerScreen screen.Geometry

	// Owned by writeLoop. The handshake consumed sequence 0.
	sendSeq uint32

	// Owned by readLoop.
	lastAccepted int64

	outbound chan protocol.Message
	inbound  chan protocol.Message

	lastActivity atomic.Int64
	dropped      atomic.Uint64

	heartbeatInterval  time.Duration
	livenessMultiplier int

	stateMu sync.RWMutex
	state   ConnectionState

	closeOnce sync.Once
	closed    chan struct{}

	errMu    sync.RWMutex
	closeErr error

	log zerolog.Logger
}

func newPeerConnection(conn net.Conn, peerScreen screen.Geometry, options Options) *PeerConnection {
	opts := options.withDefaults()

	pc := &PeerConnection{
		conn:               conn,
		localHost:          opts.LocalScreen.Host,
		peerHost:           peerScreen.Host,
		peerScreen:         peerScreen,
		sendSeq:            1,
		lastAccepted:       0,
		outbound:           make(chan protocol.Message, opts.SendQueueSize),
		inbound:            make(chan protocol.Message, 64),
		heartbeatInterval:  opts.HeartbeatInterval,
		livenessMultiplier: opts.LivenessMultiplier,
		state:              StateConnecting,
		closed:             make(chan struct{}),
		log:                opts.Logger.With().Str("peer", peerScreen.Host).Logger(),
	}

	pc.touchActivity()
	pc.setState(StateEstablished)
	go pc.readLoop()
	go pc.writeLoop()
	go pc.heartbeatLoop()

	return pc
}

// PeerHost returns the peer's host identity.
func (pc *PeerConnection) PeerHost() string {
	return pc.peerHost
}

// PeerScreen returns the geometry the peer announced at handshake.
func (pc *PeerConnection) PeerScreen() screen.Geometry {
	return pc.peerScreen
}

// RemoteAddr returns the peer's network address.
func (pc *PeerConnection) RemoteAddr() net.Addr {
	return pc.conn.RemoteAddr()
}

// State returns the current connection state.
func (pc *PeerConnection) State() ConnectionState {
	pc.stateMu.RLock()
	defer pc.stateMu.RUnlock()
	return pc.state
}

// Done is closed when the connection is fully closed.
func (pc *PeerConnection) Done() <-chan struct{} {
	return pc.closed
}

// LastError returns the terminal connection error, if any.
func (pc *PeerConnection) LastError() error {
	pc.errMu.RLock()
	defer pc.errMu.RUnlock()
	return pc.closeErr
}

// Inbound returns the stream of accepted non-heartbeat messages.
func (pc *PeerConnection) Inbound() <-chan protocol.Message {
	return pc.inbound
}

// DroppedOutbound returns how many input events were shed because the send
// queue was full.
func (pc *PeerConnection) DroppedOutbound() uint64 {
	return pc.dropped.Load()
}

// Send queues a message for transmission. The sequence number is assigned by
// the write loop just before encoding. Input events are shed when the queue
// is full (the next event supersedes them); control messages block until
// there is room or the connection closes.
func (pc *PeerConnection) Send(m protocol.Message) error {
	if pc.State() == StateClosed {
		if err := pc.LastError(); err != nil {
			return err
		}
		return ErrConnectionClosed
	}

	if m.IsInputEvent() {
		select {
		case pc.outbound <- m:
			return nil
		case <-pc.closed:
			return ErrConnectionClosed
		default:
			dropped := pc.dropped.Add(1)
			if dropped == 1 || dropped%1000 == 0 {
				pc.log.Warn().
					Uint64("dropped_total", dropped).
					Msg("send queue full, shedding input event")
			}
			return nil
		}
	}

	select {
	case pc.outbound <- m:
		return nil
	case <-pc.closed:
		return ErrConnectionClosed
	}
}

// Close terminates the connection.
func (pc *PeerConnection) Close() error {
	pc.setState(StateClosing)
	pc.closeWithError(nil)
	return nil
}

func (pc *PeerConnection) writeLoop() {
	for {
		select {
		case m := <-pc.outbound:
			m.Sequence = pc.sendSeq
			pc.sendSeq++

			frame, err := protocol.Encode(m)
			if err != nil {
				pc.closeWithError(fmt.Errorf("encode %s: %w", protocol.TypeName(m.Type), err))
				return
			}
			if _, err := pc.conn.Write(frame); err != nil {
				pc.closeWithError(fmt.Errorf("write frame: %w", err))
				return
			}
		case <-pc.closed:
			return
		}
	}
}

func (pc *PeerConnection) readLoop() {
	readTimeout := pc.livenessWindow() + pc.heartbeatInterval

	for {
		select {
		case <-pc.closed:
			return
		default:
		}

		m, err := protocol.ReadMessageWithTimeout(pc.conn, readTimeout)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				pc.closeWithError(nil)
				return
			}

			// Malformed, unknown, or oversized frames are protocol errors:
			// this connection closes, others are unaffected.
			pc.closeWithError(fmt.Errorf("read frame: %w", err))
			return
		}

		pc.touchActivity()

		if int64(m.Sequence) <= pc.lastAccepted {
			pc.log.Warn().
				Uint32("sequence", m.Sequence).
				Int64("last_accepted", pc.lastAccepted).
				Str("type", protocol.TypeName(m.Type)).
				Msg("dropping duplicate or reordered message")
			continue
		}
		pc.lastAccepted = int64(m.Sequence)

		if m.Type == protocol.TypeHeartbeat {
			continue
		}

		select {
		case pc.inbound <- m:
		case <-pc.closed:
			return
		}
	}
}

func (pc *PeerConnection) heartbeatLoop() {
	ticker := time.NewTicker(pc.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if time.Since(time.Unix(0, pc.lastActivity.Load())) > pc.livenessWindow() {
				pc.log.Warn().
					Dur("window", pc.livenessWindow()).
					Msg("no traffic within liveness window, declaring peer lost")
				pc.closeWithError(ErrPeerTimeout)
				return
			}

			select {
			case pc.outbound <- protocol.Message{Type: protocol.TypeHeartbeat}:
			default:
				// Queue full means traffic is flowing; the peer stays live.
			}
		case <-pc.closed:
			return
		}
	}
}

func (pc *PeerConnection) livenessWindow() time.Duration {
	return time.Duration(pc.livenessMultiplier) * pc.heartbeatInterval
}

func (pc *PeerConnection) setState(state ConnectionState) {
	pc.stateMu.Lock()
	defer pc.stateMu.Unlock()
	if pc.state == StateClosed {
		return
	}
	pc.state = state
}

func (pc *PeerConnection) touchActivity() {
	pc.lastActivity.Store(time.Now().UnixNano())
}

func (pc *PeerConnection) closeWithError(err error) {
	pc.closeOnce.Do(func() {
		pc.errMu.Lock()
		pc.closeErr = err
		pc.errMu.Unlock()

		pc.stateMu.Lock()
		pc.state = StateClosed
		pc.stateMu.Unlock()

		_ = pc.conn.Close()
		close(pc.closed)
	})
}

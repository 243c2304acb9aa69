package network

import (
	"fmt"
	"net"
	"time"
)

// Dial establishes an outbound session with a peer: TCP connect, geometry
// handshake, then a live PeerConnection.
func Dial(address string, options Options) (*PeerConnection, error) {
	opts := options.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	conn, err := net.DialTimeout("tcp", address, opts.ConnectionTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial %q: %w", address, err)
	}

	cleanup := true
	defer func() {
		if cleanup {
			_ = conn.Close()
		}
	}()

	if err := conn.SetDeadline(time.Now().Add(opts.ConnectionTimeout)); err != nil {
		return nil, fmt.Errorf("set handshake deadline: %w", err)
	}

	// The dialer speaks first.
	if err := sendScreenInfo(conn, opts.LocalScreen, opts.ConnectionTimeout); err != nil {
		return nil, fmt.Errorf("send handshake: %w", err)
	}

	peerScreen, err := recvScreenInfo(conn, opts.ConnectionTimeout)
	if err != nil {
		return nil, err
	}
	if peerScreen.Host == opts.LocalScreen.Host {
		return nil, fmt.Errorf("%w: peer announced our own host name %q",
			ErrHandshakeFailed, peerScreen.Host)
	}

	if err := conn.SetDeadline(time.Time{}); err != nil {
		return nil, fmt.Errorf("clear handshake deadline: %w", err)
	}

	pc := newPeerConnection(conn, peerScreen, opts)
	pc.log.Info().
		Str("addr", address).
		Uint32("width", peerScreen.Width).
		Uint32("height", peerScreen.Height).
		Msg("connected to peer")

	cleanup = false
	return pc, nil
}

package network

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/eladdad/core-net/protocol"
	"github.com/eladdad/core-net/screen"
)

var (
	// ErrHandshakeFailed indicates the geometry exchange did not complete.
	ErrHandshakeFailed = errors.New("network: handshake failed")
	// ErrInvalidScreenInfo indicates a handshake announcement with an empty
	// name or zero dimensions.
	ErrInvalidScreenInfo = errors.New("network: invalid screen info")
)

// The first message in each direction on a new connection is a ScreenInfo
// announcement with sequence 0: the dialer speaks first, the accepter
// validates and replies with its own geometry. Both directions then continue
// from sequence 1.

func sendScreenInfo(conn net.Conn, local screen.Geometry, timeout time.Duration) error {
	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return fmt.Errorf("set handshake write deadline: %w", err)
	}
	defer func() {
		_ = conn.SetWriteDeadline(time.Time{})
	}()

	return protocol.WriteMessage(conn, protocol.Message{
		Type:   protocol.TypeScreenInfo,
		Width:  local.Width,
		Height: local.Height,
		Name:   local.Host,
	})
}

func recvScreenInfo(conn net.Conn, timeout time.Duration) (screen.Geometry, error) {
	m, err := protocol.ReadMessageWithTimeout(conn, timeout)
	if err != nil {
		return screen.Geometry{}, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	if m.Type != protocol.TypeScreenInfo {
		return screen.Geometry{}, fmt.Errorf("%w: expected screen_info, got %s",
			ErrHandshakeFailed, protocol.TypeName(m.Type))
	}

	g := screen.Geometry{Host: m.Name, Width: m.Width, Height: m.Height}
	if !g.Valid() {
		return screen.Geometry{}, fmt.Errorf("%w: name %q, %dx%d",
			ErrInvalidScreenInfo, m.Name, m.Width, m.Height)
	}
	return g, nil
}

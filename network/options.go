package network

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/eladdad/core-net/screen"
)

const (
	// DefaultConnectionTimeout bounds TCP dial and handshake duration.
	DefaultConnectionTimeout = 5 * time.Second
	// DefaultHeartbeatInterval is the fixed heartbeat send interval.
	DefaultHeartbeatInterval = time.Second
	// DefaultLivenessMultiplier declares a peer lost after this many silent
	// heartbeat intervals.
	DefaultLivenessMultiplier = 3
	// DefaultSendQueueSize buffers outbound messages per connection so one
	// stalled peer cannot stall the senders.
	DefaultSendQueueSize = 128
)

// Options controls connection establishment and runtime behavior.
type Options struct {
	// LocalScreen is announced during the handshake; its Host is the local
	// peer identity.
	LocalScreen screen.Geometry

	ConnectionTimeout  time.Duration
	HeartbeatInterval  time.Duration
	LivenessMultiplier int
	SendQueueSize      int

	Logger zerolog.Logger
}

func (o Options) withDefaults() Options {
	out := o
	if out.ConnectionTimeout <= 0 {
		out.ConnectionTimeout = DefaultConnectionTimeout
	}
	if out.HeartbeatInterval <= 0 {
		out.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if out.LivenessMultiplier < 2 {
		out.LivenessMultiplier = DefaultLivenessMultiplier
	}
	if out.SendQueueSize <= 0 {
		out.SendQueueSize = DefaultSendQueueSize
	}
	return out
}

func (o Options) validate() error {
	if !o.LocalScreen.Valid() {
		return errors.New("network: local screen geometry is required")
	}
	return nil
}

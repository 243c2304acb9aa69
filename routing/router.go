// Package routing implements the input ownership state machine. A single
// goroutine consumes local capture events and session events from one merged
// loop, so ownership, suppression, and layout state never need locking.
package routing

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/eladdad/core-net/input"
	"github.com/eladdad/core-net/network"
	"github.com/eladdad/core-net/protocol"
	"github.com/eladdad/core-net/screen"
)

// Ownership is where local input currently flows.
type Ownership uint8

const (
	// OwnershipLocal: input reaches the local system.
	OwnershipLocal Ownership = iota
	// OwnershipTransitioning: a handoff is in flight; suppression is already
	// active so no captured event can leak to both systems.
	OwnershipTransitioning
	// OwnershipRemote: input is suppressed locally and forwarded to a peer.
	OwnershipRemote
)

func (o Ownership) String() string {
	switch o {
	case OwnershipLocal:
		return "local"
	case OwnershipTransitioning:
		return "transitioning"
	case OwnershipRemote:
		return "remote"
	}
	return "unknown"
}

// Transport is the slice of the session layer the router needs.
type Transport interface {
	Send(peer string, m protocol.Message) error
	Events() <-chan network.Event
}

// HandoffRecorder persists ownership transfers for diagnostics.
type HandoffRecorder interface {
	RecordHandoff(peer, direction string, x, y uint32) error
}

// Options wires a Router's collaborators.
type Options struct {
	Layout    *screen.Layout
	Capture   input.Capture
	Injector  input.Injector
	Clipboard input.ClipboardSink
	Transport Transport

	DwellSamples      int
	ClipboardEnabled  bool
	MaxClipboardBytes int

	// Recorder is optional.
	Recorder HandoffRecorder

	Logger zerolog.Logger
}

// Router owns the ownership state machine. All fields are confined to the
// Run goroutine.
type Router struct {
	layout    *screen.Layout
	capture   input.Capture
	injector  input.Injector
	clipboard input.ClipboardSink
	transport Transport
	recorder  HandoffRecorder
	log       zerolog.Logger

	dwellSamples      int
	clipboardEnabled  bool
	maxClipboardBytes int

	ownership Ownership

	// owner is the peer our input flows to while OwnershipRemote.
	owner              string
	virtualX, virtualY uint32
	remoteTracker      *screen.Tracker

	// controller is the peer whose input we inject, set by EnterScreen.
	controller string

	localTracker *screen.Tracker
}

// NewRouter creates a router in the local ownership state.
func NewRouter(options Options) (*Router, error) {
	if options.Layout == nil {
		return nil, errors.New("routing: layout is required")
	}
	if options.Capture == nil || options.Injector == nil {
		return nil, errors.New("routing: capture and injector are required")
	}
	if options.Transport == nil {
		return nil, errors.New("routing: transport is required")
	}
	if options.DwellSamples < 1 {
		options.DwellSamples = screen.DefaultDwellSamples
	}
	if options.MaxClipboardBytes <= 0 {
		options.MaxClipboardBytes = protocol.MaxPayloadSize
	}

	return &Router{
		layout:            options.Layout,
		capture:           options.Capture,
		injector:          options.Injector,
		clipboard:         options.Clipboard,
		transport:         options.Transport,
		recorder:          options.Recorder,
		log:               options.Logger,
		dwellSamples:      options.DwellSamples,
		clipboardEnabled:  options.ClipboardEnabled,
		maxClipboardBytes: options.MaxClipboardBytes,
		ownership:         OwnershipLocal,
		localTracker:      screen.NewTracker(options.Layout, options.Layout.LocalHost(), options.DwellSamples),
	}, nil
}

// Run drives the state machine until ctx is cancelled or both event sources
// close. On exit ownership is forced local and capture suppression lifted.
func (r *Router) Run(ctx context.Context) error {
	if err := r.capture.Start(); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	defer func() {
		r.forceLocal("router stopping")
		if err := r.capture.Stop(); err != nil {
			r.log.Warn().Err(err).Msg("stop capture")
		}
	}()

	captureEvents := r.capture.Events()
	sessionEvents := r.transport.Events()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-captureEvents:
			if !ok {
				if sessionEvents == nil {
					return errors.New("routing: all event sources closed")
				}
				captureEvents = nil
				continue
			}
			r.handleCapture(ev)
		case ev, ok := <-sessionEvents:
			if !ok {
				if captureEvents == nil {
					return errors.New("routing: all event sources closed")
				}
				sessionEvents = nil
				continue
			}
			r.handleSession(ev)
		}
	}
}

func (r *Router) handleCapture(ev input.Event) {
	if r.ownership != OwnershipRemote {
		if ev.Type != input.EventMouseMove {
			return
		}

		d := r.localTracker.Observe(ev.X, ev.Y)
		if d.Action == screen.ActionHandoff {
			r.beginRemote(d)
		}
		return
	}

	r.forwardToOwner(ev)
}

// beginRemote transfers ownership to the handoff target. Suppression is
// enabled in the same handler invocation as the ownership flip, before any
// further captured event is processed, so input is never live on two hosts.
func (r *Router) beginRemote(d screen.Decision) {
	if err := r.capture.SetSuppressed(true); err != nil {
		// Without suppression remote ownership would double-deliver input.
		r.log.Error().Err(err).Msg("cannot suppress local input, aborting handoff")
		r.forceLocal("suppression unavailable")
		return
	}
	r.setOwnership(OwnershipTransitioning)

	enter := protocol.Message{Type: protocol.TypeEnterScreen, X: d.X, Y: d.Y}
	if err := r.transport.Send(d.Target, enter); err != nil {
		r.log.Warn().Err(err).Str("peer", d.Target).Msg("handoff aborted, peer unreachable")
		r.forceLocal("handoff target unreachable")
		return
	}

	r.owner = d.Target
	r.virtualX, r.virtualY = d.X, d.Y
	r.remoteTracker = screen.NewTracker(r.layout, d.Target, r.dwellSamples)
	r.localTracker.Reset()
	r.setOwnership(OwnershipRemote)
	r.record(d.Target, "enter", d.X, d.Y)

	r.log.Info().
		Str("peer", d.Target).
		Str("edge", d.Edge.String()).
		Uint32("x", d.X).
		Uint32("y", d.Y).
		Msg("input ownership moved to peer")
}

func (r *Router) forwardToOwner(ev input.Event) {
	m, ok := eventToMessage(ev)
	if !ok {
		return
	}

	if ev.Type == input.EventMouseMove {
		vx := addDelta(r.virtualX, ev.DX)
		vy := addDelta(r.virtualY, ev.DY)
		cx, cy, err := r.layout.Clamp(r.owner, vx, vy)
		if err != nil {
			r.forceLocal("owner geometry lost")
			return
		}
		r.virtualX, r.virtualY = cx, cy
	}

	if err := r.transport.Send(r.owner, m); err != nil {
		r.forceLocal("owner unreachable")
		return
	}

	if ev.Type == input.EventMouseMove {
		d := r.remoteTracker.Observe(r.virtualX, r.virtualY)
		if d.Action == screen.ActionHandoff {
			r.continueHandoff(d)
		}
	}
}

// continueHandoff moves ownership off the current owner's screen: back home
// when the crossed edge leads to us, onward when it leads to a third host.
func (r *Router) continueHandoff(d screen.Decision) {
	if d.Target == r.layout.LocalHost() {
		_ = r.transport.Send(r.owner, protocol.Message{Type: protocol.TypeLeaveScreen})
		r.record(r.owner, "leave", d.X, d.Y)
		returned := r.owner
		r.forceLocal("pointer returned")

		// Land the pointer where it crossed back in.
		if err := r.injector.Inject(input.Event{Type: input.EventMouseMove, X: d.X, Y: d.Y}); err != nil {
			r.log.Warn().Err(err).Msg("warp pointer after return")
		}
		r.log.Info().Str("peer", returned).Msg("input ownership returned")
		return
	}

	enter := protocol.Message{Type: protocol.TypeEnterScreen, X: d.X, Y: d.Y}
	if err := r.transport.Send(d.Target, enter); err != nil {
		r.log.Warn().Err(err).Str("peer", d.Target).Msg("chained handoff aborted, peer unreachable")
		r.remoteTracker.Reset()
		return
	}
	_ = r.transport.Send(r.owner, protocol.Message{Type: protocol.TypeLeaveScreen})
	r.record(r.owner, "leave", r.virtualX, r.virtualY)

	previous := r.owner
	r.owner = d.Target
	r.virtualX, r.virtualY = d.X, d.Y
	r.remoteTracker = screen.NewTracker(r.layout, d.Target, r.dwellSamples)
	r.record(d.Target, "enter", d.X, d.Y)

	r.log.Info().
		Str("from", previous).
		Str("to", d.Target).
		Msg("input ownership chained to next peer")
}

func (r *Router) handleSession(ev network.Event) {
	switch ev.Kind {
	case network.PeerConnected:
		r.layout.AddScreen(ev.Screen)
		r.log.Info().
			Str("peer", ev.Peer).
			Uint32("width", ev.Screen.Width).
			Uint32("height", ev.Screen.Height).
			Msg("peer joined layout")

	case network.PeerDisconnected:
		r.layout.RemoveScreen(ev.Peer)
		if r.ownership == OwnershipRemote && ev.Peer == r.owner {
			r.forceLocal("owner disconnected")
		}
		if r.controller == ev.Peer {
			r.controller = ""
			r.log.Info().Str("peer", ev.Peer).Msg("controlling peer disconnected")
		}

	case network.PeerMessage:
		r.handleMessage(ev.Peer, ev.Message)
	}
}

func (r *Router) handleMessage(peer string, m protocol.Message) {
	switch m.Type {
	case protocol.TypeEnterScreen:
		if r.ownership != OwnershipLocal {
			// A peer taking control of us supersedes any ownership we hold.
			r.forceLocal("control taken by peer")
		}
		r.controller = peer
		if err := r.injector.Inject(input.Event{Type: input.EventMouseMove, X: m.X, Y: m.Y}); err != nil {
			r.log.Warn().Err(err).Msg("warp pointer to entry point")
		}
		r.log.Info().
			Str("peer", peer).
			Uint32("x", m.X).
			Uint32("y", m.Y).
			Msg("peer took control of this host")

	case protocol.TypeLeaveScreen:
		if r.controller != peer {
			// Stale or misdirected release; our state is authoritative.
			r.log.Warn().Str("peer", peer).Msg("ignoring leave_screen from non-controller")
			return
		}
		r.controller = ""
		r.log.Info().Str("peer", peer).Msg("peer released control of this host")

	case protocol.TypeClipboardData:
		if !r.clipboardEnabled || r.clipboard == nil {
			return
		}
		if len(m.Clipboard) > r.maxClipboardBytes {
			r.log.Warn().
				Int("bytes", len(m.Clipboard)).
				Int("limit", r.maxClipboardBytes).
				Msg("dropping oversized clipboard payload")
			return
		}
		if err := r.clipboard.SetClipboard(m.Clipboard); err != nil {
			r.log.Warn().Err(err).Msg("apply clipboard")
		}

	case protocol.TypeScreenInfo:
		g := screen.Geometry{Host: m.Name, Width: m.Width, Height: m.Height}
		if !g.Valid() {
			// A zero-sized screen would poison the remap math.
			r.log.Warn().
				Str("peer", peer).
				Str("name", m.Name).
				Uint32("width", m.Width).
				Uint32("height", m.Height).
				Msg("ignoring screen_info with invalid geometry")
			return
		}
		r.layout.AddScreen(g)

	default:
		if !m.IsInputEvent() {
			return
		}
		if r.controller != peer {
			r.log.Debug().
				Str("peer", peer).
				Str("type", protocol.TypeName(m.Type)).
				Msg("ignoring input from peer that does not control this host")
			return
		}
		ev, ok := messageToEvent(m)
		if !ok {
			return
		}
		if err := r.injector.Inject(ev); err != nil {
			r.log.Warn().Err(err).Str("type", protocol.TypeName(m.Type)).Msg("inject input")
		}
	}
}

// forceLocal is the fail-safe: whatever went wrong, local input must work.
func (r *Router) forceLocal(reason string) {
	wasRemote := r.ownership == OwnershipRemote
	r.owner = ""
	r.remoteTracker = nil
	r.localTracker.Reset()
	r.setOwnership(OwnershipLocal)

	if err := r.capture.SetSuppressed(false); err != nil {
		r.log.Error().Err(err).Msg("lift input suppression")
	}

	if wasRemote {
		r.log.Info().Str("reason", reason).Msg("input ownership forced local")
	}
}

func (r *Router) setOwnership(o Ownership) {
	if r.ownership == o {
		return
	}
	r.log.Debug().
		Str("from", r.ownership.String()).
		Str("to", o.String()).
		Msg("ownership state changed")
	r.ownership = o
}

func (r *Router) record(peer, direction string, x, y uint32) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.RecordHandoff(peer, direction, x, y); err != nil {
		r.log.Warn().Err(err).Msg("record handoff")
	}
}

func addDelta(v uint32, d int32) uint32 {
	n := int64(v) + int64(d)
	if n < 0 {
		return 0
	}
	return uint32(n)
}

// Package input defines the normalized event model and the narrow platform
// capability interfaces the routing core consumes. Platform hook/tap/injection
// backends live behind these interfaces and are selected once at startup.
package input

import "errors"

// ErrNotSupported indicates no platform backend is built into this binary.
var ErrNotSupported = errors.New("input: not supported on this platform")

// EventType discriminates normalized input events.
type EventType uint8

const (
	EventMouseMove EventType = iota
	EventMouseButton
	EventMouseScroll
	EventKeyDown
	EventKeyUp
)

func (t EventType) String() string {
	switch t {
	case EventMouseMove:
		return "mouse_move"
	case EventMouseButton:
		return "mouse_button"
	case EventMouseScroll:
		return "mouse_scroll"
	case EventKeyDown:
		return "key_down"
	case EventKeyUp:
		return "key_up"
	}
	return "unknown"
}

// Event is one normalized input event. Mouse moves carry both the absolute
// position sample (for edge tracking) and the relative deltas (for
// forwarding). Only the fields relevant to Type are meaningful.
type Event struct {
	Type EventType

	// EventMouseMove: absolute position on the local screen.
	X, Y uint32
	// EventMouseMove, EventMouseScroll: relative deltas.
	DX, DY int32

	// EventMouseButton
	Button  uint8
	Pressed bool

	// EventKeyDown, EventKeyUp
	KeyCode   uint32
	Modifiers uint32

	// Capture timestamp, unix milliseconds.
	Timestamp int64
}

// Capture produces normalized events from the local keyboard and mouse.
// The platform callback behind Events only enqueues; it never touches
// ownership state.
type Capture interface {
	Start() error
	Stop() error
	// SetSuppressed controls whether captured input still reaches the local
	// system. Must be idempotent: applying the same value twice has the same
	// observable effect as once.
	SetSuppressed(suppressed bool) error
	Events() <-chan Event
}

// Injector applies a normalized event to the local system.
type Injector interface {
	Inject(ev Event) error
}

// ClipboardSink receives clipboard payloads arriving from peers. Payload
// interpretation beyond framing is the sink's business.
type ClipboardSink interface {
	SetClipboard(data []byte) error
}

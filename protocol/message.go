package protocol

// Message type tags. Unknown tags fail decode.
const (
	TypeMouseMoveRelative uint8 = 0x01
	TypeMouseMoveAbsolute uint8 = 0x02
	TypeMouseButton       uint8 = 0x03
	TypeMouseScroll       uint8 = 0x04
	TypeKeyDown           uint8 = 0x05
	TypeKeyUp             uint8 = 0x06
	TypeScreenInfo        uint8 = 0x07
	TypeEnterScreen       uint8 = 0x08
	TypeLeaveScreen       uint8 = 0x09
	TypeClipboardData     uint8 = 0x0A
	TypeHeartbeat         uint8 = 0x0B
)

// Mouse button identifiers carried in MouseButton messages.
const (
	ButtonLeft   uint8 = 0
	ButtonRight  uint8 = 1
	ButtonMiddle uint8 = 2
	Button4      uint8 = 3
	Button5      uint8 = 4
)

// Keyboard modifier bits carried in KeyDown/KeyUp messages.
const (
	ModShift    uint32 = 0x01
	ModCtrl     uint32 = 0x02
	ModAlt      uint32 = 0x04
	ModMeta     uint32 = 0x08
	ModCapsLock uint32 = 0x10
	ModNumLock  uint32 = 0x20
)

// Message is one wire protocol message. It is a value object: construct it,
// encode it, never mutate it afterwards. Only the fields relevant to Type are
// meaningful; all others must stay zero so decode(encode(m)) == m holds.
type Message struct {
	Type     uint8
	Sequence uint32

	// TypeMouseMoveRelative, TypeMouseScroll
	DX, DY int32

	// TypeMouseMoveAbsolute, TypeEnterScreen
	X, Y uint32

	// TypeMouseButton
	Button  uint8
	Pressed bool

	// TypeKeyDown, TypeKeyUp
	KeyCode   uint32
	Modifiers uint32

	// TypeScreenInfo
	Width, Height uint32
	Name          string

	// TypeClipboardData
	Clipboard []byte
}

// IsInputEvent reports whether the message carries a forwarded input event
// (as opposed to control traffic like screen transitions or heartbeats).
func (m Message) IsInputEvent() bool {
	switch m.Type {
	case TypeMouseMoveRelative, TypeMouseMoveAbsolute, TypeMouseButton,
		TypeMouseScroll, TypeKeyDown, TypeKeyUp:
		return true
	}
	return false
}

// TypeName returns a short human-readable name for a type tag, for logs.
func TypeName(t uint8) string {
	switch t {
	case TypeMouseMoveRelative:
		return "mouse_move_relative"
	case TypeMouseMoveAbsolute:
		return "mouse_move_absolute"
	case TypeMouseButton:
		return "mouse_button"
	case TypeMouseScroll:
		return "mouse_scroll"
	case TypeKeyDown:
		return "key_down"
	case TypeKeyUp:
		return "key_up"
	case TypeScreenInfo:
		return "screen_info"
	case TypeEnterScreen:
		return "enter_screen"
	case TypeLeaveScreen:
		return "leave_screen"
	case TypeClipboardData:
		return "clipboard_data"
	case TypeHeartbeat:
		return "heartbeat"
	}
	return "unknown"
}

package routing

import (
	"github.com/eladdad/core-net/input"
	"github.com/eladdad/core-net/protocol"
)

// eventToMessage converts a captured event into its wire form. Mouse moves
// forward as relative deltas; the absolute sample only feeds edge tracking.
func eventToMessage(ev input.Event) (protocol.Message, bool) {
	switch ev.Type {
	case input.EventMouseMove:
		return protocol.Message{
			Type: protocol.TypeMouseMoveRelative,
			DX:   ev.DX,
			DY:   ev.DY,
		}, true
	case input.EventMouseButton:
		return protocol.Message{
			Type:    protocol.TypeMouseButton,
			Button:  ev.Button,
			Pressed: ev.Pressed,
		}, true
	case input.EventMouseScroll:
		return protocol.Message{
			Type: protocol.TypeMouseScroll,
			DX:   ev.DX,
			DY:   ev.DY,
		}, true
	case input.EventKeyDown:
		return protocol.Message{
			Type:      protocol.TypeKeyDown,
			KeyCode:   ev.KeyCode,
			Modifiers: ev.Modifiers,
		}, true
	case input.EventKeyUp:
		return protocol.Message{
			Type:      protocol.TypeKeyUp,
			KeyCode:   ev.KeyCode,
			Modifiers: ev.Modifiers,
		}, true
	}
	return protocol.Message{}, false
}

// messageToEvent converts a peer's input message into an injectable event.
func messageToEvent(m protocol.Message) (input.Event, bool) {
	switch m.Type {
	case protocol.TypeMouseMoveRelative:
		return input.Event{
			Type: input.EventMouseMove,
			DX:   m.DX,
			DY:   m.DY,
		}, true
	case protocol.TypeMouseMoveAbsolute:
		return input.Event{
			Type: input.EventMouseMove,
			X:    m.X,
			Y:    m.Y,
		}, true
	case protocol.TypeMouseButton:
		return input.Event{
			Type:    input.EventMouseButton,
			Button:  m.Button,
			Pressed: m.Pressed,
		}, true
	case protocol.TypeMouseScroll:
		return input.Event{
			Type: input.EventMouseScroll,
			DX:   m.DX,
			DY:   m.DY,
		}, true
	case protocol.TypeKeyDown:
		return input.Event{
			Type:      input.EventKeyDown,
			KeyCode:   m.KeyCode,
			Modifiers: m.Modifiers,
		}, true
	case protocol.TypeKeyUp:
		return input.Event{
			Type:      input.EventKeyUp,
			KeyCode:   m.KeyCode,
			Modifiers: m.Modifiers,
		}, true
	}
	return input.Event{}, false
}

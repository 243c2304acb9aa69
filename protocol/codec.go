package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

const (
	// HeaderSize is the fixed frame header: type(1) + payload_length(4) + sequence(4).
	HeaderSize = 9
	// MaxPayloadSize is the maximum accepted payload size (10 MB).
	MaxPayloadSize = 10 * 1024 * 1024
)

var (
	// ErrTruncatedInput indicates fewer bytes than the fixed header requires.
	ErrTruncatedInput = errors.New("protocol: truncated input")
	// ErrUnknownType indicates an unrecognized message type tag.
	ErrUnknownType = errors.New("protocol: unknown message type")
	// ErrMalformedFrame indicates the declared payload length does not match
	// the bytes present, or a payload has the wrong shape for its type.
	ErrMalformedFrame = errors.New("protocol: malformed frame")
	// ErrPayloadTooLarge indicates the payload exceeds MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("protocol: payload exceeds max size")
)

// Encode serializes a message into its wire form. Encoding is total and
// deterministic: the same message always yields identical bytes. Encode is
// stateless and safe for concurrent use.
func Encode(m Message) ([]byte, error) {
	payload, err := encodePayload(m)
	if err != nil {
		return nil, err
	}
	if len(payload) > MaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}

	buf := make([]byte, HeaderSize+len(payload))
	buf[0] = m.Type
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(payload)))
	binary.BigEndian.PutUint32(buf[5:9], m.Sequence)
	copy(buf[HeaderSize:], payload)
	return buf, nil
}

// Decode parses exactly one message from data. The declared payload length
// must equal the bytes present after the header. Decode is stateless and safe
// for concurrent use.
func Decode(data []byte) (Message, error) {
	if len(data) < HeaderSize {
		return Message{}, ErrTruncatedInput
	}

	length := binary.BigEndian.Uint32(data[1:5])
	if length > MaxPayloadSize {
		return Message{}, ErrPayloadTooLarge
	}
	if len(data) != HeaderSize+int(length) {
		return Message{}, ErrMalformedFrame
	}

	m := Message{
		Type:     data[0],
		Sequence: binary.BigEndian.Uint32(data[5:9]),
	}
	if err := decodePayload(&m, data[HeaderSize:]); err != nil {
		return Message{}, err
	}
	return m, nil
}

// WriteMessage encodes and writes one message to w.
func WriteMessage(w io.Writer, m Message) error {
	frame, err := Encode(m)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadMessage reads exactly one message from r.
func ReadMessage(r io.Reader) (Message, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return Message{}, fmt.Errorf("read frame header: %w", err)
	}

	length := binary.BigEndian.Uint32(header[1:5])
	if length > MaxPayloadSize {
		return Message{}, ErrPayloadTooLarge
	}

	frame := make([]byte, HeaderSize+int(length))
	copy(frame, header)
	if length > 0 {
		if _, err := io.ReadFull(r, frame[HeaderSize:]); err != nil {
			return Message{}, fmt.Errorf("read frame payload: %w", err)
		}
	}
	return Decode(frame)
}

// ReadMessageWithTimeout reads one message with an optional read deadline.
func ReadMessageWithTimeout(conn net.Conn, timeout time.Duration) (Message, error) {
	if timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return Message{}, fmt.Errorf("set read deadline: %w", err)
		}
		defer func() {
			_ = conn.SetReadDeadline(time.Time{})
		}()
	}
	return ReadMessage(conn)
}

func encodePayload(m Message) ([]byte, error) {
	switch m.Type {
	case TypeMouseMoveRelative, TypeMouseScroll:
		payload := make([]byte, 8)
		binary.BigEndian.PutUint32(payload[0:4], uint32(m.DX))
		binary.BigEndian.PutUint32(payload[4:8], uint32(m.DY))
		return payload, nil
	case TypeMouseMoveAbsolute, TypeEnterScreen:
		payload := make([]byte, 8)
		binary.BigEndian.PutUint32(payload[0:4], m.X)
		binary.BigEndian.PutUint32(payload[4:8], m.Y)
		return payload, nil
	case TypeMouseButton:
		payload := make([]byte, 2)
		payload[0] = m.Button
		if m.Pressed {
			payload[1] = 1
		}
		return payload, nil
	case TypeKeyDown, TypeKeyUp:
		payload := make([]byte, 8)
		binary.BigEndian.PutUint32(payload[0:4], m.KeyCode)
		binary.BigEndian.PutUint32(payload[4:8], m.Modifiers)
		return payload, nil
	case TypeScreenInfo:
		name := []byte(m.Name)
		payload := make([]byte, 12+len(name))
		binary.BigEndian.PutUint32(payload[0:4], m.Width)
		binary.BigEndian.PutUint32(payload[4:8], m.Height)
		binary.BigEndian.PutUint32(payload[8:12], uint32(len(name)))
		copy(payload[12:], name)
		return payload, nil
	case TypeClipboardData:
		payload := make([]byte, 4+len(m.Clipboard))
		binary.BigEndian.PutUint32(payload[0:4], uint32(len(m.Clipboard)))
		copy(payload[4:], m.Clipboard)
		return payload, nil
	case TypeLeaveScreen, TypeHeartbeat:
		return nil, nil
	}
	return nil, ErrUnknownType
}

func decodePayload(m *Message, payload []byte) error {
	switch m.Type {
	case TypeMouseMoveRelative, TypeMouseScroll:
		if len(payload) != 8 {
			return ErrMalformedFrame
		}
		m.DX = int32(binary.BigEndian.Uint32(payload[0:4]))
		m.DY = int32(binary.BigEndian.Uint32(payload[4:8]))
	case TypeMouseMoveAbsolute, TypeEnterScreen:
		if len(payload) != 8 {
			return ErrMalformedFrame
		}
		m.X = binary.BigEndian.Uint32(payload[0:4])
		m.Y = binary.BigEndian.Uint32(payload[4:8])
	case TypeMouseButton:
		if len(payload) != 2 {
			return ErrMalformedFrame
		}
		m.Button = payload[0]
		m.Pressed = payload[1] != 0
	case TypeKeyDown, TypeKeyUp:
		if len(payload) != 8 {
			return ErrMalformedFrame
		}
		m.KeyCode = binary.BigEndian.Uint32(payload[0:4])
		m.Modifiers = binary.BigEndian.Uint32(payload[4:8])
	case TypeScreenInfo:
		if len(payload) < 12 {
			return ErrMalformedFrame
		}
		nameLen := binary.BigEndian.Uint32(payload[8:12])
		if len(payload) != 12+int(nameLen) {
			return ErrMalformedFrame
		}
		m.Width = binary.BigEndian.Uint32(payload[0:4])
		m.Height = binary.BigEndian.Uint32(payload[4:8])
		m.Name = string(payload[12:])
	case TypeClipboardData:
		if len(payload) < 4 {
			return ErrMalformedFrame
		}
		dataLen := binary.BigEndian.Uint32(payload[0:4])
		if len(payload) != 4+int(dataLen) {
			return ErrMalformedFrame
		}
		if dataLen > 0 {
			m.Clipboard = append([]byte(nil), payload[4:]...)
		}
	case TypeLeaveScreen, TypeHeartbeat:
		if len(payload) != 0 {
			return ErrMalformedFrame
		}
	default:
		return ErrUnknownType
	}
	return nil
}

package protocol

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func sampleMessages() []Message {
	return []Message{
		{Type: TypeMouseMoveRelative, Sequence: 1, DX: 100, DY: -50},
		{Type: TypeMouseMoveAbsolute, Sequence: 2, X: 1919, Y: 540},
		{Type: TypeMouseButton, Sequence: 3, Button: ButtonRight, Pressed: true},
		{Type: TypeMouseScroll, Sequence: 4, DX: 0, DY: -3},
		{Type: TypeKeyDown, Sequence: 5, KeyCode: 0x04, Modifiers: ModShift | ModCtrl},
		{Type: TypeKeyUp, Sequence: 6, KeyCode: 0x04},
		{Type: TypeScreenInfo, Sequence: 0, Width: 2560, Height: 1600, Name: "macbook"},
		{Type: TypeEnterScreen, Sequence: 7, X: 0, Y: 540},
		{Type: TypeLeaveScreen, Sequence: 8},
		{Type: TypeClipboardData, Sequence: 9, Clipboard: []byte("copied text")},
		{Type: TypeHeartbeat, Sequence: 10},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, original := range sampleMessages() {
		frame, err := Encode(original)
		if err != nil {
			t.Fatalf("Encode %s failed: %v", TypeName(original.Type), err)
		}

		decoded, err := Decode(frame)
		if err != nil {
			t.Fatalf("Decode %s failed: %v", TypeName(original.Type), err)
		}
		if !reflect.DeepEqual(original, decoded) {
			t.Fatalf("%s round trip mismatch: sent %+v, got %+v", TypeName(original.Type), original, decoded)
		}
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	m := Message{Type: TypeScreenInfo, Sequence: 42, Width: 1920, Height: 1080, Name: "desktop"}

	first, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	second, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("same message produced different bytes")
	}
}

func TestDecodeTruncatedHeader(t *testing.T) {
	if _, err := Decode([]byte{TypeHeartbeat, 0, 0}); !errors.Is(err, ErrTruncatedInput) {
		t.Fatalf("expected ErrTruncatedInput, got %v", err)
	}
	if _, err := Decode(nil); !errors.Is(err, ErrTruncatedInput) {
		t.Fatalf("expected ErrTruncatedInput for empty input, got %v", err)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	frame := []byte{0x7F, 0, 0, 0, 0, 0, 0, 0, 1}
	if _, err := Decode(frame); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestDecodeLengthMismatch(t *testing.T) {
	frame, err := Encode(Message{Type: TypeMouseMoveRelative, Sequence: 1, DX: 1, DY: 2})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	// Declared length larger than the bytes present.
	if _, err := Decode(frame[:len(frame)-2]); !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame for short payload, got %v", err)
	}

	// Trailing bytes beyond the declared length.
	if _, err := Decode(append(frame, 0xAA)); !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame for trailing bytes, got %v", err)
	}
}

func TestDecodeWrongPayloadShape(t *testing.T) {
	// Heartbeat declaring a payload it should not carry.
	frame := []byte{TypeHeartbeat, 0, 0, 0, 1, 0, 0, 0, 5, 0xFF}
	if _, err := Decode(frame); !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}

	// ScreenInfo whose inner name length disagrees with the payload.
	m := Message{Type: TypeScreenInfo, Width: 1, Height: 1, Name: "host"}
	good, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	bad := append([]byte(nil), good...)
	bad[HeaderSize+11]++ // bump declared name length
	if _, err := Decode(bad); !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
}

func TestReadWriteMessageStream(t *testing.T) {
	var buf bytes.Buffer
	sent := sampleMessages()
	for _, m := range sent {
		if err := WriteMessage(&buf, m); err != nil {
			t.Fatalf("WriteMessage %s failed: %v", TypeName(m.Type), err)
		}
	}

	for _, want := range sent {
		got, err := ReadMessage(&buf)
		if err != nil {
			t.Fatalf("ReadMessage failed: %v", err)
		}
		if !reflect.DeepEqual(want, got) {
			t.Fatalf("stream mismatch: sent %+v, got %+v", want, got)
		}
	}
}

func TestIsInputEvent(t *testing.T) {
	if !(Message{Type: TypeKeyDown}).IsInputEvent() {
		t.Fatal("key down should be an input event")
	}
	if (Message{Type: TypeEnterScreen}).IsInputEvent() {
		t.Fatal("enter screen should not be an input event")
	}
	if (Message{Type: TypeHeartbeat}).IsInputEvent() {
		t.Fatal("heartbeat should not be an input event")
	}
}

package storage

import (
	"errors"
	"time"
)

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("storage: not found")

// Peer is one known remote host: its announced screen geometry and the last
// endpoint a session was established with.
type Peer struct {
	Host             string
	Width            uint32
	Height           uint32
	LastKnownAddress string
	FirstSeen        int64
	LastSeen         int64
}

// HandoffEvent records one ownership transfer for diagnostics.
type HandoffEvent struct {
	ID        int64
	Peer      string
	Direction string // "enter" or "leave"
	X         uint32
	Y         uint32
	Timestamp int64
}

const (
	HandoffEnter = "enter"
	HandoffLeave = "leave"
)

func nowUnixMilli() int64 {
	return time.Now().UnixMilli()
}

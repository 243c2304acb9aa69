package input

import "github.com/rs/zerolog"

// StubCapture is the fallback capture backend for builds without a platform
// hook. It produces no events and tracks suppression state so the routing
// core behaves identically to a real backend.
type StubCapture struct {
	log        zerolog.Logger
	events     chan Event
	suppressed bool
	started    bool
}

// NewStubCapture creates an inert capture backend.
func NewStubCapture(log zerolog.Logger) *StubCapture {
	return &StubCapture{
		log:    log,
		events: make(chan Event),
	}
}

func (c *StubCapture) Start() error {
	if c.started {
		return nil
	}
	c.started = true
	c.log.Warn().Msg("no platform capture backend built; local input will not be captured")
	return nil
}

func (c *StubCapture) Stop() error {
	if !c.started {
		return nil
	}
	c.started = false
	close(c.events)
	return nil
}

func (c *StubCapture) SetSuppressed(suppressed bool) error {
	c.suppressed = suppressed
	return nil
}

// Suppressed reports the last suppression state applied.
func (c *StubCapture) Suppressed() bool {
	return c.suppressed
}

func (c *StubCapture) Events() <-chan Event {
	return c.events
}

// StubInjector logs injections instead of applying them.
type StubInjector struct {
	log zerolog.Logger
}

// NewStubInjector creates an inert injector.
func NewStubInjector(log zerolog.Logger) *StubInjector {
	return &StubInjector{log: log}
}

func (i *StubInjector) Inject(ev Event) error {
	i.log.Debug().Str("event", ev.Type.String()).Msg("inject (stub)")
	return nil
}

// StubClipboard logs clipboard payloads instead of storing them.
type StubClipboard struct {
	log zerolog.Logger
}

// NewStubClipboard creates an inert clipboard sink.
func NewStubClipboard(log zerolog.Logger) *StubClipboard {
	return &StubClipboard{log: log}
}

func (s *StubClipboard) SetClipboard(data []byte) error {
	s.log.Debug().Int("bytes", len(data)).Msg("clipboard received (stub)")
	return nil
}

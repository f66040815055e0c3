// Package display fans chat events out to the operator-facing surfaces
// (console, TUI, chime, websocket mirror).
package display

import (
	"sync"

	"meshchat/internal/wire"
)

// Display receives everything the node wants the operator to see.
// Implementations must not block for long; they are called from
// connection handlers.
type Display interface {
	ShowMessage(wire.Message)
	ShowSystem(string)
}

type multi struct {
	sinks []Display
}

// Multi returns a Display that forwards to every non-nil sink in order.
func Multi(sinks ...Display) Display {
	out := make([]Display, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &multi{sinks: out}
}

func (m *multi) ShowMessage(msg wire.Message) {
	for _, s := range m.sinks {
		s.ShowMessage(msg)
	}
}

func (m *multi) ShowSystem(text string) {
	for _, s := range m.sinks {
		s.ShowSystem(text)
	}
}

// Recorder keeps every event in memory. Tests use it as a probe.
type Recorder struct {
	mu       sync.Mutex
	messages []wire.Message
	system   []string
	notify   chan struct{}
}

func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 1)}
}

func (r *Recorder) ShowMessage(msg wire.Message) {
	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.mu.Unlock()
	r.poke()
}

func (r *Recorder) ShowSystem(text string) {
	r.mu.Lock()
	r.system = append(r.system, text)
	r.mu.Unlock()
	r.poke()
}

func (r *Recorder) Messages() []wire.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]wire.Message(nil), r.messages...)
}

func (r *Recorder) System() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.system...)
}

// Changed is signalled (coalesced) after every recorded event.
func (r *Recorder) Changed() <-chan struct{} {
	return r.notify
}

func (r *Recorder) poke() {
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

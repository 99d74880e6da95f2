package testsupport

import (
	"encoding/json"
	"slices"
	"sync"
	"testing"
	"time"
)

// Event is one outbound message captured by a Peer.
type Event struct {
	Name    string
	Payload json.RawMessage
	Chunk   []byte
}

// ChunkEvent is the name Peer records binary chunks under.
const ChunkEvent = "download"

// Peer records outbound events and close calls in place of a websocket.
type Peer struct {
	mu      sync.Mutex
	events  []Event
	closed  []string
	notify  chan struct{}
	sendErr error
}

// NewPeer returns an empty recording peer.
func NewPeer() *Peer {
	return &Peer{notify: make(chan struct{}, 1)}
}

// FailSends makes every later send return err.
func (p *Peer) FailSends(err error) {
	p.mu.Lock()
	p.sendErr = err
	p.mu.Unlock()
}

// SendEvent records a named event.
func (p *Peer) SendEvent(event string, payload any) error {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		raw = data
	}
	return p.record(Event{Name: event, Payload: raw})
}

// SendChunk records a binary chunk.
func (p *Peer) SendChunk(data []byte) error {
	return p.record(Event{Name: ChunkEvent, Chunk: slices.Clone(data)})
}

// Close records a close request.
func (p *Peer) Close(reason string) {
	p.mu.Lock()
	p.closed = append(p.closed, reason)
	p.mu.Unlock()
}

func (p *Peer) record(ev Event) error {
	p.mu.Lock()
	if p.sendErr != nil {
		err := p.sendErr
		p.mu.Unlock()
		return err
	}
	p.events = append(p.events, ev)
	p.mu.Unlock()
	select {
	case p.notify <- struct{}{}:
	default:
	}
	return nil
}

// Events returns a copy of everything recorded so far.
func (p *Peer) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.events)
}

// Names returns the recorded event names in order.
func (p *Peer) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, len(p.events))
	for i, ev := range p.events {
		names[i] = ev.Name
	}
	return names
}

// Closed returns the reasons passed to Close.
func (p *Peer) Closed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.closed)
}

// WaitFor blocks until an event named name has been recorded and returns it.
func (p *Peer) WaitFor(t testing.TB, name string, timeout time.Duration) Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		for _, ev := range p.Events() {
			if ev.Name == name {
				return ev
			}
		}
		select {
		case <-p.notify:
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatalf("timed out waiting for %q; saw %v", name, p.Names())
			return Event{}
		}
	}
}

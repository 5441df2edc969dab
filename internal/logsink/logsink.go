// Package logsink buffers recent structured log entries in memory and fans
// them out to live subscribers (the admin `/api/logs/stream` SSE
// endpoint), per spec.md §4.N.
//
// DESIGN: grounded on the teacher's monitoring.Logger zerolog wrapper
// (internal/monitoring/logger.go) — this package supplies the
// zerolog.Hook that wrapper's Global() logger is missing, rather than
// replacing it.
package logsink

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

const ringSize = 1000

// Entry is one captured log line, built from a zerolog event's level and
// message (see Hook.Run) so subscribers (and Recent) get a structured
// value rather than a raw byte slice.
type Entry struct {
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Time    string         `json:"time"`
	Fields  map[string]any `json:"-"`
	raw     []byte
}

// Sink is a fixed-capacity ring buffer of recent log entries plus a set of
// live subscriber channels.
type Sink struct {
	mu          sync.Mutex
	buf         []Entry
	next        int
	filled      bool
	subscribers map[chan Entry]struct{}
}

// New returns an empty Sink.
func New() *Sink {
	return &Sink{
		buf:         make([]Entry, ringSize),
		subscribers: make(map[chan Entry]struct{}),
	}
}

// Append records one log entry, overwriting the oldest slot once the
// buffer is full, and pushes it to every live subscriber. A subscriber
// whose channel is full (a slow consumer) is skipped for this entry rather
// than blocking the logger — one slow reader must never back-pressure
// logging.
func (s *Sink) Append(e Entry) {
	s.mu.Lock()
	s.buf[s.next] = e
	s.next = (s.next + 1) % ringSize
	if s.next == 0 {
		s.filled = true
	}
	subs := make([]chan Entry, 0, len(s.subscribers))
	for ch := range s.subscribers {
		subs = append(subs, ch)
	}
	s.mu.Unlock()

	for _, ch := range subs {
		func() {
			defer func() { recover() }() // a subscriber that closed its channel concurrently must not crash logging
			select {
			case ch <- e:
			default:
			}
		}()
	}
}

// Recent returns up to n of the most recently appended entries, oldest
// first.
func (s *Sink) Recent(n int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ordered []Entry
	if s.filled {
		ordered = append(ordered, s.buf[s.next:]...)
		ordered = append(ordered, s.buf[:s.next]...)
	} else {
		ordered = append(ordered, s.buf[:s.next]...)
	}
	if n <= 0 || n >= len(ordered) {
		return ordered
	}
	return ordered[len(ordered)-n:]
}

// Clear empties the buffer. Subscribers are left connected.
func (s *Sink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = make([]Entry, ringSize)
	s.next = 0
	s.filled = false
}

// Subscribe registers a new live-tail channel; the caller must call
// Unsubscribe when done reading.
func (s *Sink) Subscribe() chan Entry {
	ch := make(chan Entry, 64)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (s *Sink) Unsubscribe(ch chan Entry) {
	s.mu.Lock()
	delete(s.subscribers, ch)
	s.mu.Unlock()
	close(ch)
}

// Hook implements zerolog.Hook, building an Entry from each event's level
// and message and appending it to the sink.
type Hook struct {
	sink *Sink
}

// NewHook builds a zerolog.Hook that feeds sink.
func NewHook(sink *Sink) Hook {
	return Hook{sink: sink}
}

// Run is called by zerolog after the event's fields are set but before
// it's written; we can't see the final serialized line from here, so we
// reconstruct a minimal Entry from the fields zerolog gives the hook.
func (h Hook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	entry := Entry{Level: level.String(), Message: msg}
	if b, err := json.Marshal(entry); err == nil {
		entry.raw = b
	}
	h.sink.Append(entry)
}

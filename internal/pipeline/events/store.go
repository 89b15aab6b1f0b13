// Package events records pipeline status messages for a collaborator to display.
package events

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperr "github.com/GriffinCanCode/apexclick/internal/errors"
)

// Kind classifies a status message.
type Kind string

const (
	KindInfo  Kind = "info"
	KindFatal Kind = "fatal"
)

// Event is a single status message. Fatal events carry the error's code.
type Event struct {
	Time    time.Time
	Kind    Kind
	Session uuid.UUID
	Code    apperr.Code
	Message string
}

func (e Event) String() string {
	return strings.ToUpper(string(e.Kind)) + ": " + e.Message
}

// Store keeps a bounded history of events and fans them out on a channel.
type Store struct {
	mu       sync.RWMutex
	entries  []Event
	maxSize  int
	eventsCh chan Event
}

// NewStore creates a new event store.
func NewStore(maxEntries, eventBuffer int) *Store {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &Store{
		entries:  make([]Event, 0, maxEntries),
		maxSize:  maxEntries,
		eventsCh: make(chan Event, eventBuffer),
	}
}

// Info records and emits an informational message.
func (s *Store) Info(session uuid.UUID, msg string) {
	s.Emit(Event{Kind: KindInfo, Session: session, Message: msg})
}

// Fatal records and emits a session-ending message for err.
func (s *Store) Fatal(session uuid.UUID, err error, msg string) {
	s.Emit(Event{Kind: KindFatal, Session: session, Code: apperr.CodeOf(err), Message: msg})
}

// Emit stores the event and sends it to subscribers (non-blocking).
func (s *Store) Emit(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	s.mu.Lock()
	s.entries = append(s.entries, e)
	if len(s.entries) > s.maxSize {
		s.entries = s.entries[len(s.entries)-s.maxSize:]
	}
	s.mu.Unlock()

	select {
	case s.eventsCh <- e:
	default:
	}
}

// Events returns the channel of emitted events.
func (s *Store) Events() <-chan Event {
	return s.eventsCh
}

// Entries returns a copy of all retained events.
func (s *Store) Entries() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]Event, len(s.entries))
	copy(result, s.entries)
	return result
}

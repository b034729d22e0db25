package core

import (
	"math/rand/v2"
	"time"
)

// Default generation delay bounds.
const (
	DefaultMinDelay = 1000 * time.Millisecond
	DefaultMaxDelay = 5000 * time.Millisecond
)

// EventSource draws uniformly-random event attributes and inter-fire
// delays from fixed, non-empty vocabularies. Draws never block and never
// fail; the top-level rand functions are safe for concurrent chains.
type EventSource struct {
	usernames  []string
	eventTypes []string
	minDelay   time.Duration
	maxDelay   time.Duration
}

// NewEventSource builds an EventSource. Empty vocabularies and degenerate
// delay bounds fall back to the compiled-in defaults.
func NewEventSource(usernames, eventTypes []string, minDelay, maxDelay time.Duration) *EventSource {
	if len(usernames) == 0 {
		usernames = DefaultUsernames
	}
	if len(eventTypes) == 0 {
		eventTypes = DefaultEventTypes
	}
	if minDelay <= 0 || maxDelay <= minDelay {
		minDelay = DefaultMinDelay
		maxDelay = DefaultMaxDelay
	}

	return &EventSource{
		usernames:  usernames,
		eventTypes: eventTypes,
		minDelay:   minDelay,
		maxDelay:   maxDelay,
	}
}

// PickUsername returns a uniform draw from the sample user vocabulary.
func (s *EventSource) PickUsername() string {
	return s.usernames[rand.IntN(len(s.usernames))]
}

// PickEventType returns a uniform draw from the event-type vocabulary.
func (s *EventSource) PickEventType() string {
	return s.eventTypes[rand.IntN(len(s.eventTypes))]
}

// NextDelay returns a uniform integer-millisecond delay in [min, max).
func (s *EventSource) NextDelay() time.Duration {
	minMs := s.minDelay.Milliseconds()
	maxMs := s.maxDelay.Milliseconds()
	return time.Duration(minMs+rand.Int64N(maxMs-minMs)) * time.Millisecond
}

// MaxDelay exposes the upper delay bound, used for health reporting.
func (s *EventSource) MaxDelay() time.Duration {
	return s.maxDelay
}

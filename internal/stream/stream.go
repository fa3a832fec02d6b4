// Package stream fans access decisions out to live subscribers, such
// as door dashboards watching the scan feed over SSE.
package stream

import (
	"context"
	"sync"
	"time"
)

// DecisionEvent is the published form of one access decision.
type DecisionEvent struct {
	PersonID   string    `json:"person_id"`
	PersonName string    `json:"person_name"`
	Verdict    string    `json:"verdict"`
	Method     string    `json:"method"`
	Timestamp  time.Time `json:"timestamp"`
}

// Stream delivers decision events to all active subscribers.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan DecisionEvent
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan DecisionEvent)}
}

// Subscribe registers a subscriber and returns a channel which will
// receive events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan DecisionEvent {
	ch := make(chan DecisionEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fans the event out to all subscribers.
func (s *Stream) Publish(evt DecisionEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when a subscriber is slow to avoid blocking the
			// decision flow.
		}
	}
}

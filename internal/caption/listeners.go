package caption

import (
	"encoding/json"
	"sync"
)

// Subscription identifies a registered listener for Off
type Subscription uint64

// StatusEvent is delivered to status listeners for connection transitions,
// session lifecycle events and server errors
type StatusEvent struct {
	Status  Status
	Type    string
	Message string
	Raw     json.RawMessage
}

// Warning describes an ignored defect: a malformed event or a listener panic
type Warning struct {
	Kind    string
	Message string
	Err     error
}

type listener[T any] struct {
	id Subscription
	fn func(T)
}

// listenerSet keeps listeners in registration order so delivery is
// deterministic.
type listenerSet struct {
	mu     sync.Mutex
	nextID Subscription
	state  []listener[ViewModel]
	tts    []listener[TTSEvent]
	status []listener[StatusEvent]
	warn   []listener[Warning]
}

func (s *listenerSet) id() Subscription {
	s.nextID++
	return s.nextID
}

func addListener[T any](s *listenerSet, list *[]listener[T], fn func(T)) Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	*list = append(*list, listener[T]{id: id, fn: fn})
	return id
}

func removeListener[T any](list []listener[T], id Subscription) ([]listener[T], bool) {
	for i, l := range list {
		if l.id == id {
			out := make([]listener[T], 0, len(list)-1)
			out = append(out, list[:i]...)
			return append(out, list[i+1:]...), true
		}
	}
	return list, false
}

func (s *listenerSet) remove(id Subscription) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ok bool
	if s.state, ok = removeListener(s.state, id); ok {
		return true
	}
	if s.tts, ok = removeListener(s.tts, id); ok {
		return true
	}
	if s.status, ok = removeListener(s.status, id); ok {
		return true
	}
	s.warn, ok = removeListener(s.warn, id)
	return ok
}

// snapshot copies a listener list so delivery runs without the lock held and
// listeners may register or unregister from inside a callback.
func snapshot[T any](s *listenerSet, list *[]listener[T]) []listener[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]listener[T], len(*list))
	copy(out, *list)
	return out
}

// notice is one pending delivery produced while the state lock was held
type notice struct {
	state  *ViewModel
	tts    *TTSEvent
	status *StatusEvent
	warn   *Warning
}

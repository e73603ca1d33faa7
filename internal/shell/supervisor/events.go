package supervisor

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventKind identifies the type of a supervisor event.
type EventKind string

const (
	// EventOutput carries one captured line of backend output.
	EventOutput EventKind = "output"
	// EventState reports a lifecycle transition.
	EventState EventKind = "state"
	// EventExit reports that the backend process terminated.
	EventExit EventKind = "exit"
	// EventError is a failure the user should hear about: the backend could
	// not be started, or it died without being asked to.
	EventError EventKind = "error"
)

// Event is delivered to subscribers.
type Event struct {
	Kind EventKind `json:"kind"`
	Time time.Time `json:"time"`
	PID  int       `json:"pid,omitempty"`

	// EventOutput
	Stream Stream `json:"stream,omitempty"`
	Line   string `json:"line,omitempty"`

	// EventState. Interpreter and Script are set when the backend starts.
	From        State  `json:"from,omitempty"`
	To          State  `json:"to,omitempty"`
	Interpreter string `json:"interpreter,omitempty"`
	Script      string `json:"script,omitempty"`

	// EventExit
	Code      int  `json:"code"`
	Requested bool `json:"requested,omitempty"`

	// EventError
	Message string `json:"message,omitempty"`
}

// subscriptionBuffer is how many events a slow subscriber may lag behind
// before output lines are dropped for it. Lifecycle events are always
// queued.
const subscriptionBuffer = 256

// Subscription is a stream of supervisor events. C is closed when the
// subscription or the supervisor is closed; events queued before the
// supervisor closed are still delivered.
type Subscription struct {
	C <-chan Event

	id  string
	ch  chan Event
	hub *hub

	mu      sync.Mutex
	queue   []Event
	done    bool
	dropped int
	wake    chan struct{}
	quit    chan struct{}
	quitOne sync.Once
}

func newSubscription(h *hub) *Subscription {
	ch := make(chan Event)
	sub := &Subscription{
		C:    ch,
		id:   uuid.New().String(),
		ch:   ch,
		hub:  h,
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
	go sub.forward()
	return sub
}

// ID returns the subscription's unique id.
func (s *Subscription) ID() string {
	return s.id
}

// Dropped returns how many output events were discarded because the
// subscriber fell behind.
func (s *Subscription) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close stops delivery and closes C. Undelivered events are discarded. It
// is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.remove(s.id)
	s.quitOne.Do(func() { close(s.quit) })
}

func (s *Subscription) push(ev Event) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	if ev.Kind == EventOutput && len(s.queue) >= subscriptionBuffer {
		s.dropped++
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	s.signal()
}

// finish ends the subscription once its queue has drained.
func (s *Subscription) finish() {
	s.mu.Lock()
	s.done = true
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) forward() {
	defer close(s.ch)
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			ev := s.queue[0]
			s.queue[0] = Event{}
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case s.ch <- ev:
			case <-s.quit:
				return
			}
			continue
		}
		done := s.done
		s.mu.Unlock()

		if done {
			return
		}
		select {
		case <-s.wake:
		case <-s.quit:
			return
		}
	}
}

type hub struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[string]*Subscription)}
}

func (h *hub) subscribe() *Subscription {
	sub := newSubscription(h)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.finish()
		return sub
	}
	h.subs[sub.id] = sub
	return sub
}

func (h *hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		sub.finish()
	}
}

// broadcast never blocks. A subscriber that has fallen behind misses output
// lines but never state, exit or error events.
func (h *hub) broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		sub.push(ev)
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		sub.finish()
	}
}

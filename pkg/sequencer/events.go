package sequencer

import "time"

// EventType identifies a sequencer event.
type EventType string

const (
	EventEnqueued    EventType = "enqueued"
	EventStarted     EventType = "started"
	EventCompleted   EventType = "completed"
	EventFailed      EventType = "failed"
	EventSkipped     EventType = "skipped"
	EventWaitWarning EventType = "wait_warning"
	EventClosed      EventType = "closed"
)

// Event describes a transition of an entry or of the sequencer itself.
type Event struct {
	Type      EventType
	Sequencer string
	EntryID   string
	State     State
	QueueSize int
	Position  int
	Wait      time.Duration
	Duration  time.Duration
	Err       error
}

// Handler receives events synchronously on the goroutine that produced them: the
// submitting caller for enqueued and wait warnings, the worker for everything else.
// Handlers must not block.
type Handler func(event Event)

// On registers a handler for an event type.
func (s *Sequencer[T]) On(eventType EventType, handler Handler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.handlers[eventType] = append(s.handlers[eventType], handler)
}

// Off removes all handlers for an event type.
func (s *Sequencer[T]) Off(eventType EventType) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	delete(s.handlers, eventType)
}

func (s *Sequencer[T]) emit(event Event) {
	event.Sequencer = s.name

	s.handlerMu.RLock()
	handlers := s.handlers[event.Type]
	s.handlerMu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}

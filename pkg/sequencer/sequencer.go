package sequencer

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/harun/seqkit/internal/observability"
	"github.com/harun/seqkit/internal/tracing"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "seqkit.sequencer"

// Operation is a deferred unit of work. It may block; the sequencer does not start the next
// entry until it returns.
type Operation[T any] func(ctx context.Context) (T, error)

type outcome[T any] struct {
	value T
	err   error
}

// entry tracks one submission from enqueue to its terminal state
type entry[T any] struct {
	id         string
	op         Operation[T]
	ctx        context.Context
	state      State
	enqueuedAt time.Time
	result     chan outcome[T]
}

// Stats is a point-in-time view of a sequencer.
type Stats struct {
	Name      string
	Queued    int
	Active    bool
	Submitted int
	Completed int
	Failed    int
	Skipped   int
	Rejected  int
}

// Sequencer runs submitted operations one at a time in submission order. The zero value
// is not usable; create instances with New.
type Sequencer[T any] struct {
	name   string
	opts   options
	logger zerolog.Logger

	mu      sync.Mutex
	queue   []*entry[T]
	active  *entry[T]
	running bool
	closed  bool
	seq     uint64
	stats   Stats

	done     chan struct{}
	doneOnce sync.Once
	ctx      context.Context
	cancel   context.CancelFunc

	handlers  map[EventType][]Handler
	handlerMu sync.RWMutex
}

// New creates a sequencer for one logical resource. An empty name gets a generated one.
func New[T any](name string, opts ...Option) *Sequencer[T] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if name == "" {
		id, _ := gonanoid.New(10)
		name = "seq-" + id
	}

	if o.metrics {
		observability.EnsureRegistered()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Sequencer[T]{
		name:     name,
		opts:     o,
		logger:   o.baseLogger(),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		handlers: make(map[EventType][]Handler),
	}
}

// Name returns the sequencer's name.
func (s *Sequencer[T]) Name() string {
	return s.name
}

// Submit enqueues op and blocks until it has run, returning its value or its failure as an
// *OperationError. If ctx ends first, Submit returns ctx.Err(); an entry that has not started
// by then is skipped without running, and an entry already running finishes unobserved.
func (s *Sequencer[T]) Submit(ctx context.Context, op Operation[T]) (T, error) {
	var zero T
	if op == nil {
		return zero, ErrNilOperation
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := tracing.StartSpan(
		ctx,
		tracerName,
		"sequencer.submit",
		attribute.String("sequencer", s.name),
	)
	defer span.End()

	ctx = tracing.WithSequencerKey(ctx, s.name)

	e, queueSize, startWorker, err := s.enqueue(ctx, op)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return zero, err
	}
	span.SetAttributes(attribute.String("entry_id", e.id))

	logger := tracing.LoggerFromContext(e.ctx, s.logger)
	logger.Debug().
		Int("queue_size", queueSize).
		Msg("Entry enqueued")

	if s.opts.metrics {
		observability.RecordSubmit(s.name, queueSize)
	}

	s.emit(Event{
		Type:      EventEnqueued,
		EntryID:   e.id,
		State:     StateQueued,
		QueueSize: queueSize,
	})

	if startWorker {
		go s.drain()
	}

	if s.opts.waitWarning > 0 {
		timer := time.AfterFunc(s.opts.waitWarning, func() {
			s.warnIfQueued(e)
		})
		defer timer.Stop()
	}

	select {
	case r := <-e.result:
		if r.err != nil {
			span.RecordError(r.err)
			span.SetStatus(codes.Error, r.err.Error())
		}
		return r.value, r.err
	case <-ctx.Done():
		span.SetStatus(codes.Error, "caller abandoned")
		logger.Debug().
			Err(ctx.Err()).
			Msg("Caller stopped waiting")
		return zero, ctx.Err()
	}
}

// enqueue appends a new entry and reports whether the caller must start the worker.
func (s *Sequencer[T]) enqueue(ctx context.Context, op Operation[T]) (*entry[T], int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, 0, false, fmt.Errorf("sequencer %s: %w", s.name, ErrClosed)
	}
	if s.opts.capacity > 0 && s.pending() >= s.opts.capacity {
		s.stats.Rejected++
		if s.opts.metrics {
			observability.RecordOutcome(s.name, observability.StatusRejected, 0, len(s.queue))
		}
		return nil, 0, false, fmt.Errorf("sequencer %s: %w (capacity %d)", s.name, ErrQueueFull, s.opts.capacity)
	}

	s.seq++
	id := fmt.Sprintf("%s-%d", s.name, s.seq)
	e := &entry[T]{
		id:         id,
		op:         op,
		ctx:        tracing.WithEntryID(ctx, id),
		state:      StateQueued,
		enqueuedAt: time.Now(),
		result:     make(chan outcome[T], 1),
	}
	s.queue = append(s.queue, e)
	s.stats.Submitted++

	startWorker := false
	if !s.running {
		s.running = true
		startWorker = true
	}

	return e, len(s.queue), startWorker, nil
}

// pending counts queued entries whose callers are still waiting. Caller holds s.mu.
func (s *Sequencer[T]) pending() int {
	n := 0
	for _, e := range s.queue {
		if e.ctx.Err() == nil {
			n++
		}
	}
	return n
}

// drain is the single worker loop. It exits once the queue is empty; the next submission
// starts a new one.
func (s *Sequencer[T]) drain() {
	for {
		e, skipped, queueSize, ok := s.next()
		if !ok {
			return
		}
		if skipped {
			s.skip(e, queueSize)
			continue
		}
		s.execute(e, queueSize)
	}
}

// next pops the queue head. An entry whose caller has already gone away is marked skipped
// instead of running.
func (s *Sequencer[T]) next() (*entry[T], bool, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		s.running = false
		s.queue = nil
		if s.closed {
			s.finish()
		}
		return nil, false, 0, false
	}

	e := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]

	if e.ctx.Err() != nil {
		e.state = StateSkipped
		s.stats.Skipped++
		return e, true, len(s.queue), true
	}

	e.state = StateRunning
	s.active = e
	return e, false, len(s.queue), true
}

func (s *Sequencer[T]) skip(e *entry[T], queueSize int) {
	logger := tracing.LoggerFromContext(e.ctx, s.logger)
	logger.Debug().
		Int("queue_size", queueSize).
		Msg("Entry skipped, caller abandoned")

	if s.opts.metrics {
		observability.RecordOutcome(s.name, observability.StatusSkipped, 0, queueSize)
	}

	s.emit(Event{
		Type:      EventSkipped,
		EntryID:   e.id,
		State:     StateSkipped,
		QueueSize: queueSize,
		Wait:      time.Since(e.enqueuedAt),
		Err:       e.ctx.Err(),
	})
}

func (s *Sequencer[T]) execute(e *entry[T], queueSize int) {
	runCtx := e.ctx
	if !s.opts.cancelInFlight {
		runCtx = context.WithoutCancel(e.ctx)
	}

	runCtx, span := tracing.StartSpan(
		runCtx,
		tracerName,
		"sequencer.execute",
		attribute.String("sequencer", s.name),
		attribute.String("entry_id", e.id),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(runCtx, s.logger)

	runCtx, cancel := context.WithCancel(runCtx)
	stopCancel := context.AfterFunc(s.ctx, cancel)
	defer func() {
		stopCancel()
		cancel()
	}()

	wait := time.Since(e.enqueuedAt)
	if s.opts.metrics {
		observability.RecordStart(s.name, wait, queueSize)
	}
	logger.Debug().
		Dur("wait", wait).
		Int("queue_size", queueSize).
		Msg("Entry started")
	s.emit(Event{
		Type:      EventStarted,
		EntryID:   e.id,
		State:     StateRunning,
		QueueSize: queueSize,
		Wait:      wait,
	})

	startTime := time.Now()
	value, err := invoke(runCtx, e.op)
	duration := time.Since(startTime)

	final := StateCompleted
	if err != nil {
		final = StateFailed
	}

	s.mu.Lock()
	e.state = final
	if final == StateFailed {
		s.stats.Failed++
	} else {
		s.stats.Completed++
	}
	s.active = nil
	queueSize = len(s.queue)
	s.mu.Unlock()

	if err != nil {
		err = &OperationError{Sequencer: s.name, EntryID: e.id, Err: err}
	}

	// Buffered; never blocks even if the caller already left.
	e.result <- outcome[T]{value: value, err: err}

	eventType := EventCompleted
	status := observability.StatusCompleted
	if err != nil {
		eventType = EventFailed
		status = observability.StatusFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn().
			Dur("duration", duration).
			Err(err).
			Msg("Entry failed")
	} else {
		logger.Debug().
			Dur("duration", duration).
			Msg("Entry completed")
	}

	if s.opts.metrics {
		observability.RecordOutcome(s.name, status, duration, queueSize)
	}

	s.emit(Event{
		Type:      eventType,
		EntryID:   e.id,
		State:     final,
		QueueSize: queueSize,
		Wait:      wait,
		Duration:  duration,
		Err:       err,
	})
}

func invoke[T any](ctx context.Context, op Operation[T]) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			value = zero
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return op(ctx)
}

// warnIfQueued reports an entry that is still waiting for its turn
func (s *Sequencer[T]) warnIfQueued(e *entry[T]) {
	s.mu.Lock()
	position := -1
	if e.state == StateQueued {
		for i, queued := range s.queue {
			if queued == e {
				position = i
				break
			}
		}
	}
	queueSize := len(s.queue)
	s.mu.Unlock()

	if position < 0 {
		return
	}

	wait := time.Since(e.enqueuedAt)
	logger := tracing.LoggerFromContext(e.ctx, s.logger)
	logger.Warn().
		Dur("wait", wait).
		Int("position", position).
		Msg("Entry waiting longer than expected")

	s.emit(Event{
		Type:      EventWaitWarning,
		EntryID:   e.id,
		State:     StateQueued,
		QueueSize: queueSize,
		Position:  position,
		Wait:      wait,
	})
}

// Len returns the number of entries waiting to start.
func (s *Sequencer[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Busy reports whether an operation is currently running.
func (s *Sequencer[T]) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// Idle reports whether nothing is queued or running.
func (s *Sequencer[T]) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active == nil && len(s.queue) == 0
}

// Closed reports whether Close has been called.
func (s *Sequencer[T]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Stats returns counters and the current queue state.
func (s *Sequencer[T]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.stats
	stats.Name = s.name
	stats.Queued = len(s.queue)
	stats.Active = s.active != nil
	return stats
}

// Close stops accepting submissions, resolves every queued caller with ErrClosed and cancels
// the running operation's context. It does not wait for that operation to return; use Done or
// Wait for that. Close is safe to call more than once, including from an operation or an
// event handler.
func (s *Sequencer[T]) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	pending := s.queue
	s.queue = nil

	// Entries in the queue never received a result, so the buffered sends cannot block.
	closedErr := fmt.Errorf("sequencer %s: %w", s.name, ErrClosed)
	for _, e := range pending {
		e.state = StateSkipped
		s.stats.Skipped++
		e.result <- outcome[T]{err: closedErr}
		if s.opts.metrics {
			observability.RecordOutcome(s.name, observability.StatusClosed, 0, 0)
		}
	}
	if !s.running {
		s.finish()
	}
	s.mu.Unlock()

	s.cancel()

	s.logger.Debug().
		Str("sequencer", s.name).
		Int("abandoned", len(pending)).
		Msg("Sequencer closed")
	s.emit(Event{
		Type:      EventClosed,
		QueueSize: len(pending),
	})

	return nil
}

// finish marks the worker gone for good. Caller holds s.mu and has set s.closed.
func (s *Sequencer[T]) finish() {
	s.doneOnce.Do(func() {
		if s.opts.metrics {
			observability.Forget(s.name)
		}
		close(s.done)
	})
}

// Done returns a channel that is closed once the sequencer is closed and its last running
// operation has returned.
func (s *Sequencer[T]) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until Done is closed or ctx ends.
func (s *Sequencer[T]) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sequencer %s: %w", s.name, ctx.Err())
	}
}

package sequencer

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Option configures a Sequencer or Group.
type Option func(*options)

type options struct {
	logger         *zerolog.Logger
	capacity       int
	waitWarning    time.Duration
	cancelInFlight bool
	metrics        bool
}

func defaultOptions() options {
	return options{
		metrics: true,
	}
}

func (o options) baseLogger() zerolog.Logger {
	if o.logger != nil {
		return *o.logger
	}
	return log.Logger.With().Str("component", "sequencer").Logger()
}

// WithLogger sets the logger used for entry lifecycle logs.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}

// WithCapacity bounds the number of queued (not yet running) entries whose callers are still
// waiting. Abandoned entries do not count even before the worker drops them. Submissions beyond
// the bound fail with ErrQueueFull. Zero or negative means unbounded.
func WithCapacity(n int) Option {
	return func(o *options) {
		o.capacity = n
	}
}

// WithWaitWarning logs a warning and emits EventWaitWarning when an entry is still queued
// after d.
func WithWaitWarning(d time.Duration) Option {
	return func(o *options) {
		o.waitWarning = d
	}
}

// WithInFlightCancellation hands the caller's context to the running operation unchanged, so
// an operation can stop early when its caller goes away. By default a running operation
// keeps going after its caller leaves and its result is discarded.
func WithInFlightCancellation() Option {
	return func(o *options) {
		o.cancelInFlight = true
	}
}

// WithMetrics toggles Prometheus recording.
func WithMetrics(enabled bool) Option {
	return func(o *options) {
		o.metrics = enabled
	}
}

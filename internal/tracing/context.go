package tracing

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// RunIDKey is the context key for a harness or scheduler run
	RunIDKey ContextKey = "run_id"
	// SequencerKey is the context key for the sequencer (serialization key) name
	SequencerKey ContextKey = "sequencer"
	// EntryIDKey is the context key for the entry being executed
	EntryIDKey ContextKey = "entry_id"
)

// TraceContext holds tracing information
type TraceContext struct {
	TraceID   string
	RunID     string
	Sequencer string
	EntryID   string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// NewRunID generates a new run ID
func NewRunID() string {
	return uuid.New().String()
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// WithSequencerKey records which sequencer the work belongs to
func WithSequencerKey(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, SequencerKey, name)
}

func WithEntryID(ctx context.Context, entryID string) context.Context {
	return context.WithValue(ctx, EntryIDKey, entryID)
}

func GetTraceID(ctx context.Context) string {
	return stringValue(ctx, TraceIDKey)
}

func GetRunID(ctx context.Context) string {
	return stringValue(ctx, RunIDKey)
}

func GetSequencerKey(ctx context.Context) string {
	return stringValue(ctx, SequencerKey)
}

func GetEntryID(ctx context.Context) string {
	return stringValue(ctx, EntryIDKey)
}

func stringValue(ctx context.Context, key ContextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID:   GetTraceID(ctx),
		RunID:     GetRunID(ctx),
		Sequencer: GetSequencerKey(ctx),
		EntryID:   GetEntryID(ctx),
	}
}

// NewContext copies the non-empty fields of tc into ctx
func NewContext(ctx context.Context, tc *TraceContext) context.Context {
	if tc.TraceID != "" {
		ctx = WithTraceID(ctx, tc.TraceID)
	}
	if tc.RunID != "" {
		ctx = WithRunID(ctx, tc.RunID)
	}
	if tc.Sequencer != "" {
		ctx = WithSequencerKey(ctx, tc.Sequencer)
	}
	if tc.EntryID != "" {
		ctx = WithEntryID(ctx, tc.EntryID)
	}
	return ctx
}

// NewRunContext starts a new run with fresh trace and run IDs
func NewRunContext(ctx context.Context) context.Context {
	ctx = WithTraceID(ctx, NewTraceID())
	return WithRunID(ctx, NewRunID())
}

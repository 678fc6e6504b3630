package tracing

import (
	"context"
	"testing"
)

func TestNewTraceID(t *testing.T) {
	id1 := NewTraceID()
	id2 := NewTraceID()

	if id1 == "" {
		t.Error("NewTraceID returned empty string")
	}
	if id1 == id2 {
		t.Error("NewTraceID returned duplicate IDs")
	}
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithRunID(ctx, "run-1")
	ctx = WithSequencerKey(ctx, "room:!abc")
	ctx = WithEntryID(ctx, "room:!abc-3")

	if got := GetTraceID(ctx); got != "trace-1" {
		t.Errorf("Expected trace ID trace-1, got %s", got)
	}
	if got := GetRunID(ctx); got != "run-1" {
		t.Errorf("Expected run ID run-1, got %s", got)
	}
	if got := GetSequencerKey(ctx); got != "room:!abc" {
		t.Errorf("Expected sequencer room:!abc, got %s", got)
	}
	if got := GetEntryID(ctx); got != "room:!abc-3" {
		t.Errorf("Expected entry ID room:!abc-3, got %s", got)
	}
}

func TestGettersOnEmptyContext(t *testing.T) {
	ctx := context.Background()

	if GetTraceID(ctx) != "" || GetRunID(ctx) != "" || GetSequencerKey(ctx) != "" || GetEntryID(ctx) != "" {
		t.Error("Expected empty values from background context")
	}
}

func TestNewContextRoundTrip(t *testing.T) {
	tc := &TraceContext{TraceID: "t", RunID: "r", Sequencer: "s"}

	ctx := NewContext(context.Background(), tc)
	got := FromContext(ctx)

	if got.TraceID != "t" || got.RunID != "r" || got.Sequencer != "s" {
		t.Errorf("Unexpected trace context: %+v", got)
	}
	if got.EntryID != "" {
		t.Errorf("Expected empty entry ID, got %s", got.EntryID)
	}
}

func TestNewRunContext(t *testing.T) {
	ctx := NewRunContext(context.Background())

	if GetTraceID(ctx) == "" {
		t.Error("Trace ID not generated")
	}
	if GetRunID(ctx) == "" {
		t.Error("Run ID not generated")
	}
}

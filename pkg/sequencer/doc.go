// Package sequencer provides an ordered task sequencer: a per-key serialization primitive
// that runs submitted operations one at a time, strictly in submission order.
//
// Invariants:
// - At most one operation of a Sequencer is running at any instant.
// - Entries reach a terminal state (completed, failed, skipped) in the order they were submitted.
// - A caller whose context ends before its entry starts is skipped; the next entry starts immediately.
// - Distinct Sequencer instances share no state and run fully in parallel.
//
// Usage:
//
//	seq := sequencer.New[string]("room:!abc")
//	defer seq.Close()
//	result, err := seq.Submit(ctx, func(ctx context.Context) (string, error) {
//		return send(ctx, "hello")
//	})
//
// Callers that need one sequencer per key can keep their own map or use a Group.
package sequencer

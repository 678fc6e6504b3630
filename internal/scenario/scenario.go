// Package scenario runs small, deterministic demonstrations of sequencer behavior.
// Each run reports what the operations observed, in the order they observed it.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/harun/seqkit/internal/tracing"
	"github.com/harun/seqkit/pkg/sequencer"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Names lists the runnable scenarios
var Names = []string{"sequential", "parallel", "abandon", "failure"}

// ErrUnknownScenario is returned by Run for a name not in Names
var ErrUnknownScenario = errors.New("unknown scenario")

// Config sizes a run
type Config struct {
	Work       time.Duration      // simulated duration of each operation
	Operations int                // submissions per sequencer
	Sequencers int                // instances in the parallel scenario
	Options    []sequencer.Option // applied to every sequencer created
	Logger     *zerolog.Logger
}

// DefaultConfig returns a configuration that keeps runs short
func DefaultConfig() Config {
	return Config{
		Work:       100 * time.Millisecond,
		Operations: 3,
		Sequencers: 3,
	}
}

func (c Config) logger() zerolog.Logger {
	if c.Logger != nil {
		return *c.Logger
	}
	return log.Logger.With().Str("component", "scenario").Logger()
}

// Outcome is what one submitting caller got back
type Outcome struct {
	Label     string
	Sequencer string
	Value     string
	Err       error
}

// Result describes a finished run
type Result struct {
	Name     string
	RunID    string
	TraceID  string
	Observed []string  // labels of operations that ran to success, in completion order
	Outcomes []Outcome // per caller, in submission order
	Elapsed  time.Duration
}

// Run dispatches to the scenario called name
func Run(ctx context.Context, name string, cfg Config) (*Result, error) {
	switch name {
	case "sequential":
		return Sequential(ctx, cfg)
	case "parallel":
		return Parallel(ctx, cfg)
	case "abandon":
		return Abandon(ctx, cfg)
	case "failure":
		return Failure(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownScenario, name)
	}
}

// recorder collects the labels of operations as they complete
type recorder struct {
	mu       sync.Mutex
	observed []string
}

func (r *recorder) record(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observed = append(r.observed, label)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.observed...)
}

// work sleeps for d, then records label and returns it
func (r *recorder) work(label string, d time.Duration) sequencer.Operation[string] {
	return func(ctx context.Context) (string, error) {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		r.record(label)
		return label, nil
	}
}

type submission struct {
	index   int
	outcome Outcome
}

// submitter starts one caller goroutine per submission and waits until each
// entry is queued before starting the next, so queue order is submission order.
type submitter struct {
	seq      *sequencer.Sequencer[string]
	enqueued chan struct{}
	results  chan submission
	count    int
}

func newSubmitter(seq *sequencer.Sequencer[string], capacity int) *submitter {
	s := &submitter{
		seq:      seq,
		enqueued: make(chan struct{}, capacity),
		results:  make(chan submission, capacity),
	}
	seq.On(sequencer.EventEnqueued, func(sequencer.Event) {
		s.enqueued <- struct{}{}
	})
	return s
}

func (s *submitter) submit(ctx context.Context, label string, op sequencer.Operation[string]) error {
	index := s.count
	s.count++

	go func() {
		value, err := s.seq.Submit(ctx, op)
		s.results <- submission{
			index:   index,
			outcome: Outcome{Label: label, Sequencer: s.seq.Name(), Value: value, Err: err},
		}
	}()

	select {
	case <-s.enqueued:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("submission %s was not enqueued", label)
	}
}

func (s *submitter) wait() []Outcome {
	collected := make([]submission, 0, s.count)
	for len(collected) < s.count {
		collected = append(collected, <-s.results)
	}
	sort.Slice(collected, func(i, j int) bool { return collected[i].index < collected[j].index })

	outcomes := make([]Outcome, len(collected))
	for i, c := range collected {
		outcomes[i] = c.outcome
	}
	return outcomes
}

func label(i int) string {
	return fmt.Sprintf("#%d", i+1)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func begin(ctx context.Context, name string) (context.Context, *Result) {
	if tracing.GetTraceID(ctx) == "" {
		ctx = tracing.WithTraceID(ctx, tracing.NewTraceID())
	}
	if tracing.GetRunID(ctx) == "" {
		ctx = tracing.WithRunID(ctx, tracing.NewRunID())
	}
	return ctx, &Result{
		Name:    name,
		RunID:   tracing.GetRunID(ctx),
		TraceID: tracing.GetTraceID(ctx),
	}
}

func finish(ctx context.Context, cfg Config, result *Result, started time.Time) *Result {
	result.Elapsed = time.Since(started)
	logger := tracing.LoggerFromContext(ctx, cfg.logger())
	logger.Info().
		Str("scenario", result.Name).
		Strs("observed", result.Observed).
		Dur("elapsed", result.Elapsed).
		Msg("Scenario finished")
	return result
}

// Sequential submits Operations entries to one sequencer. They complete in
// submission order and take roughly Operations*Work in total.
func Sequential(ctx context.Context, cfg Config) (*Result, error) {
	ctx, result := begin(ctx, "sequential")
	started := time.Now()

	seq := sequencer.New[string]("sequential-"+shortID(result.RunID), cfg.Options...)
	defer seq.Close()

	rec := &recorder{}
	sub := newSubmitter(seq, cfg.Operations)
	for i := 0; i < cfg.Operations; i++ {
		if err := sub.submit(ctx, label(i), rec.work(label(i), cfg.Work)); err != nil {
			return nil, err
		}
	}

	result.Outcomes = sub.wait()
	result.Observed = rec.snapshot()
	return finish(ctx, cfg, result, started), nil
}

// Parallel submits one entry to each of Sequencers independent instances.
// Elapsed time stays close to a single Work because instances never wait on each other.
func Parallel(ctx context.Context, cfg Config) (*Result, error) {
	ctx, result := begin(ctx, "parallel")
	started := time.Now()

	group := sequencer.NewGroup[int, string]("parallel-"+shortID(result.RunID), cfg.Options...)
	defer group.Close()

	rec := &recorder{}
	outcomes := make([]Outcome, cfg.Sequencers)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Sequencers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			value, err := group.Submit(ctx, i, rec.work(label(i), cfg.Work))
			outcomes[i] = Outcome{Label: label(i), Value: value, Err: err}
		}(i)
	}
	wg.Wait()

	for i := range outcomes {
		outcomes[i].Sequencer = fmt.Sprintf("parallel-%s:%d", shortID(result.RunID), i)
	}
	result.Outcomes = outcomes
	result.Observed = rec.snapshot()
	return finish(ctx, cfg, result, started), nil
}

// Abandon submits three entries and cancels the second caller while the first
// is still running. The second operation never runs, so the observed results
// are ["#1", "#3"].
func Abandon(ctx context.Context, cfg Config) (*Result, error) {
	ctx, result := begin(ctx, "abandon")
	started := time.Now()

	seq := sequencer.New[string]("abandon-"+shortID(result.RunID), cfg.Options...)
	defer seq.Close()

	rec := &recorder{}
	sub := newSubmitter(seq, 3)

	// The first operation holds the queue until the second caller has gone away.
	release := make(chan struct{})
	first := func(ctx context.Context) (string, error) {
		<-release
		return rec.work(label(0), cfg.Work)(ctx)
	}

	abandonCtx, abandon := context.WithCancel(ctx)
	defer abandon()

	if err := sub.submit(ctx, label(0), first); err != nil {
		close(release)
		return nil, err
	}
	if err := sub.submit(abandonCtx, label(1), rec.work(label(1), cfg.Work)); err != nil {
		close(release)
		return nil, err
	}
	if err := sub.submit(ctx, label(2), rec.work(label(2), cfg.Work)); err != nil {
		close(release)
		return nil, err
	}

	abandon()
	close(release)

	result.Outcomes = sub.wait()
	result.Observed = rec.snapshot()
	return finish(ctx, cfg, result, started), nil
}

// ErrSimulated is the failure injected by the failure scenario
var ErrSimulated = errors.New("simulated failure")

// Failure submits Operations entries where the middle one fails. Only its
// caller sees the error; its neighbours complete normally.
func Failure(ctx context.Context, cfg Config) (*Result, error) {
	ctx, result := begin(ctx, "failure")
	started := time.Now()

	seq := sequencer.New[string]("failure-"+shortID(result.RunID), cfg.Options...)
	defer seq.Close()

	n := cfg.Operations
	if n < 3 {
		n = 3
	}
	failing := n / 2

	rec := &recorder{}
	sub := newSubmitter(seq, n)
	for i := 0; i < n; i++ {
		op := rec.work(label(i), cfg.Work)
		if i == failing {
			op = func(ctx context.Context) (string, error) {
				time.Sleep(cfg.Work)
				return "", ErrSimulated
			}
		}
		if err := sub.submit(ctx, label(i), op); err != nil {
			return nil, err
		}
	}

	result.Outcomes = sub.wait()
	result.Observed = rec.snapshot()
	return finish(ctx, cfg, result, started), nil
}

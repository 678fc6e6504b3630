// Package schedule fires cron jobs into per-key sequencers, so that runs of
// jobs sharing a key never overlap and always execute in trigger order.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/harun/seqkit/internal/observability"
	"github.com/harun/seqkit/internal/tracing"
	"github.com/harun/seqkit/pkg/sequencer"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrJobNotFound is returned for an unknown job ID
var ErrJobNotFound = errors.New("job not found")

// Job is a cron-triggered unit of work bound to a sequencer key
type Job struct {
	ID   string
	Key  string
	Spec string
	Work time.Duration
}

// Task performs one run of a job
type Task func(ctx context.Context, job Job) (string, error)

// Run reports the outcome of one trigger
type Run struct {
	JobID    string
	Key      string
	RunID    string
	Value    string
	Err      error
	Waited   time.Duration // trigger to completion, including time queued behind earlier runs
	Finished time.Time
}

// Options configures a Scheduler
type Options struct {
	// Task runs each trigger. Defaults to SimulatedTask.
	Task Task

	// SequencerOptions apply to every per-key sequencer.
	SequencerOptions []sequencer.Option

	// MaxWait bounds how long a trigger waits for its run. A run that has not
	// started by then is skipped, so a slow key drops stale triggers instead of
	// accumulating them. A run already started finishes unobserved. 0 waits forever.
	MaxWait time.Duration

	// IdleSweep drops per-key sequencers unused for this long. 0 keeps them.
	IdleSweep time.Duration

	// OnRun is called after every trigger, successful or not.
	OnRun func(Run)

	Logger *zerolog.Logger
}

type scheduled struct {
	job   Job
	entry cron.EntryID
}

// Scheduler owns a cron instance and a group of sequencers keyed by Job.Key
type Scheduler struct {
	cron    *cron.Cron
	parser  cron.Parser
	group   *sequencer.Group[string, string]
	options Options
	logger  zerolog.Logger

	jobs    map[string]*scheduled
	mu      sync.Mutex
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a stopped scheduler
func New(opts Options) *Scheduler {
	if opts.Task == nil {
		opts.Task = SimulatedTask
	}

	logger := log.Logger.With().Str("component", "schedule").Logger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	group := sequencer.NewGroup[string, string]("schedule", opts.SequencerOptions...)
	if opts.IdleSweep > 0 {
		group.StartJanitor(opts.IdleSweep, opts.IdleSweep)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:    cron.New(cron.WithParser(parser)),
		parser:  parser,
		group:   group,
		options: opts,
		logger:  logger,
		jobs:    make(map[string]*scheduled),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SimulatedTask sleeps for job.Work and returns the job key
func SimulatedTask(ctx context.Context, job Job) (string, error) {
	select {
	case <-time.After(job.Work):
		return job.Key, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Add registers a job and returns its ID. An empty job.ID is generated.
func (s *Scheduler) Add(job Job) (string, error) {
	if job.Key == "" {
		return "", fmt.Errorf("job key is required")
	}

	sched, err := s.parser.Parse(job.Spec)
	if err != nil {
		return "", fmt.Errorf("invalid cron spec %q: %w", job.Spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return "", fmt.Errorf("scheduler is stopped")
	}

	if job.ID == "" {
		id, err := gonanoid.New(12)
		if err != nil {
			return "", fmt.Errorf("failed to generate job id: %w", err)
		}
		job.ID = id
	}
	if _, exists := s.jobs[job.ID]; exists {
		return "", fmt.Errorf("job %s already exists", job.ID)
	}

	j := job
	entry := s.cron.Schedule(sched, cron.FuncJob(func() {
		s.dispatch(j)
	}))
	s.jobs[job.ID] = &scheduled{job: job, entry: entry}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("key", job.Key).
		Str("spec", job.Spec).
		Msg("Job scheduled")

	return job.ID, nil
}

// Remove unschedules a job. Runs already queued still execute.
func (s *Scheduler) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sj, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	s.cron.Remove(sj.entry)
	delete(s.jobs, id)
	return nil
}

// Jobs returns the registered jobs ordered by key, then ID
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, sj := range s.jobs {
		jobs = append(jobs, sj.job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].Key != jobs[j].Key {
			return jobs[i].Key < jobs[j].Key
		}
		return jobs[i].ID < jobs[j].ID
	})
	return jobs
}

// NextRun returns when a job fires next. Zero until the scheduler is started.
func (s *Scheduler) NextRun(id string) (time.Time, error) {
	s.mu.Lock()
	sj, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return s.cron.Entry(sj.entry).Next, nil
}

// Trigger fires a job immediately, outside its schedule, and waits for the run.
func (s *Scheduler) Trigger(id string) (Run, error) {
	s.mu.Lock()
	sj, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		return Run{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return s.dispatch(sj.job), nil
}

// Stats returns per-key sequencer stats
func (s *Scheduler) Stats() map[string]sequencer.Stats {
	return s.group.Stats()
}

// Start starts the cron loop
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Int("jobs", len(s.Jobs())).Msg("Scheduler started")
}

// Stop stops triggering, abandons queued runs and waits for running ones
// until ctx ends. A task that ignores its context is left running when ctx ends.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	cronDone := s.cron.Stop()
	s.cancel()
	if err := s.group.Close(); err != nil {
		return fmt.Errorf("failed to close sequencers: %w", err)
	}

	select {
	case <-cronDone.Done():
	case <-ctx.Done():
		s.logger.Warn().Msg("Scheduler stop timed out waiting for triggers")
		return ctx.Err()
	}

	if err := s.group.Wait(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Scheduler stop timed out waiting for running jobs")
		return err
	}

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

func (s *Scheduler) dispatch(job Job) Run {
	runID, err := gonanoid.New(10)
	if err != nil {
		runID = tracing.NewRunID()
	}

	ctx := tracing.WithTraceID(s.ctx, tracing.NewTraceID())
	ctx = tracing.WithRunID(ctx, runID)

	if s.options.MaxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.options.MaxWait)
		defer cancel()
	}

	triggered := time.Now()
	value, err := s.group.Submit(ctx, job.Key, func(ctx context.Context) (string, error) {
		return s.options.Task(ctx, job)
	})

	run := Run{
		JobID:    job.ID,
		Key:      job.Key,
		RunID:    runID,
		Value:    value,
		Err:      err,
		Waited:   time.Since(triggered),
		Finished: time.Now(),
	}

	observability.RecordScheduleTick(job.Key, err == nil)

	logger := tracing.LoggerFromContext(ctx, s.logger)
	if err != nil {
		logger.Warn().Err(err).Str("job_id", job.ID).Str("key", job.Key).Msg("Scheduled run failed")
	} else {
		logger.Debug().Str("job_id", job.ID).Str("key", job.Key).Dur("waited", run.Waited).Msg("Scheduled run completed")
	}

	if s.options.OnRun != nil {
		s.options.OnRun(run)
	}
	return run
}

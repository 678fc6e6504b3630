package sequencer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// member is a group's sequencer plus the bookkeeping needed to evict it safely
type member[T any] struct {
	seq      *Sequencer[T]
	users    int
	lastUsed time.Time
}

// Group lazily creates one Sequencer per key. It is owned by the caller that creates it;
// there is no process-wide registry. Sequencers of different keys never block each other.
type Group[K comparable, T any] struct {
	name    string
	opts    []Option
	logger  zerolog.Logger
	members map[K]*member[T]
	closing []*Sequencer[T]
	closed  bool
	mu      sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewGroup creates an empty group. opts apply to every sequencer the group creates.
func NewGroup[K comparable, T any](name string, opts ...Option) *Group[K, T] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Group[K, T]{
		name:    name,
		opts:    opts,
		logger:  o.baseLogger().With().Str("group", name).Logger(),
		members: make(map[K]*member[T]),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (g *Group[K, T]) sequencerName(key K) string {
	if g.name == "" {
		return fmt.Sprint(key)
	}
	return fmt.Sprintf("%s:%v", g.name, key)
}

// lookup returns the member for key, creating it when missing. Caller holds g.mu.
func (g *Group[K, T]) lookup(key K) *member[T] {
	m, ok := g.members[key]
	if !ok {
		m = &member[T]{seq: New[T](g.sequencerName(key), g.opts...)}
		g.members[key] = m
		g.logger.Debug().Str("sequencer", m.seq.Name()).Msg("Sequencer created")
	}
	m.lastUsed = time.Now()
	return m
}

// Get returns the sequencer for key, creating it on first use. A sequencer obtained this
// way can be closed by Sweep once idle; Submit is safe against that.
func (g *Group[K, T]) Get(key K) (*Sequencer[T], error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil, fmt.Errorf("group %s: %w", g.name, ErrClosed)
	}
	return g.lookup(key).seq, nil
}

// Submit runs op on the sequencer for key. See Sequencer.Submit.
func (g *Group[K, T]) Submit(ctx context.Context, key K, op Operation[T]) (T, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		var zero T
		return zero, fmt.Errorf("group %s: %w", g.name, ErrClosed)
	}
	m := g.lookup(key)
	m.users++
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		m.users--
		m.lastUsed = time.Now()
		g.mu.Unlock()
	}()

	return m.seq.Submit(ctx, op)
}

// Keys returns the keys that currently have a sequencer.
func (g *Group[K, T]) Keys() []K {
	g.mu.Lock()
	defer g.mu.Unlock()

	keys := make([]K, 0, len(g.members))
	for key := range g.members {
		keys = append(keys, key)
	}
	return keys
}

// Len returns the number of live sequencers.
func (g *Group[K, T]) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.members)
}

// Stats returns per-key sequencer stats.
func (g *Group[K, T]) Stats() map[K]Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	stats := make(map[K]Stats, len(g.members))
	for key, m := range g.members {
		stats[key] = m.seq.Stats()
	}
	return stats
}

// Sweep closes and drops sequencers that have no waiting callers, nothing queued or running,
// and have not been used for at least idleFor. It returns the number removed.
func (g *Group[K, T]) Sweep(idleFor time.Duration) int {
	g.mu.Lock()
	var evicted []*Sequencer[T]
	now := time.Now()
	for key, m := range g.members {
		if m.users > 0 || !m.seq.Idle() || now.Sub(m.lastUsed) < idleFor {
			continue
		}
		delete(g.members, key)
		evicted = append(evicted, m.seq)
	}
	g.mu.Unlock()

	for _, seq := range evicted {
		_ = seq.Close()
	}

	if len(evicted) > 0 {
		g.logger.Debug().Int("evicted", len(evicted)).Msg("Idle sequencers swept")
	}
	return len(evicted)
}

// StartJanitor sweeps idle sequencers every interval until the group is closed.
func (g *Group[K, T]) StartJanitor(interval, idleFor time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	g.mu.Lock()
	if g.done != nil || g.closed {
		g.mu.Unlock()
		return
	}
	g.done = make(chan struct{})
	done := g.done
	g.mu.Unlock()

	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-g.ctx.Done():
				return
			case <-ticker.C:
				g.Sweep(idleFor)
			}
		}
	}()
}

// Close stops the janitor and closes every sequencer in the group. Like Sequencer.Close it
// does not wait for running operations; use Wait for that.
func (g *Group[K, T]) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	members := g.members
	g.members = make(map[K]*member[T])
	done := g.done
	for _, m := range members {
		g.closing = append(g.closing, m.seq)
	}
	g.mu.Unlock()

	g.cancel()
	if done != nil {
		<-done
	}

	for _, m := range members {
		_ = m.seq.Close()
	}

	g.logger.Debug().Int("sequencers", len(members)).Msg("Group closed")
	return nil
}

// Wait blocks until every sequencer closed by Close has finished its running operation,
// or until ctx ends.
func (g *Group[K, T]) Wait(ctx context.Context) error {
	g.mu.Lock()
	closing := g.closing
	g.mu.Unlock()

	for _, seq := range closing {
		select {
		case <-seq.Done():
		case <-ctx.Done():
			return fmt.Errorf("group %s: %w", g.name, ctx.Err())
		}
	}
	return nil
}

// Package tracker polls the dispatch engine for run and batch status until
// a terminal state is reached.
package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/collectline/dunlin/internal/domain"
)

// DefaultInterval is the polling cadence when none is configured.
const DefaultInterval = 2 * time.Second

// Snapshot is one observed status of a remote run or batch.
type Snapshot struct {
	Status         domain.RunStatus
	TotalProcessed int
	SuccessCount   int
	FailedCount    int
	ErrorSummary   string
}

// FetchFunc retrieves the current remote status. A transport error does not
// end the observation; the poller retries on the next tick.
type FetchFunc func(ctx context.Context) (*Snapshot, error)

// Poller drives the polling loop for one remote job. Fetch is required;
// OnUpdate fires on every successful non-terminal poll, OnTerminal exactly
// once when a terminal status arrives.
type Poller struct {
	Interval   time.Duration
	Fetch      FetchFunc
	OnUpdate   func(Snapshot)
	OnTerminal func(Snapshot)
}

// Observation is a handle on a running polling loop.
type Observation struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop cancels the observation. Safe to call after the loop has already
// finished.
func (o *Observation) Stop() {
	o.cancel()
}

// Done is closed when the polling loop exits, whether by terminal status or
// cancellation.
func (o *Observation) Done() <-chan struct{} {
	return o.done
}

// Observe starts the polling loop in a goroutine. The first status request
// is issued immediately on attach; follow-ups run sequentially one interval
// apart, so a slow fetch delays the next tick rather than overlapping it.
func (p *Poller) Observe(ctx context.Context) *Observation {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	ctx, cancel := context.WithCancel(ctx)
	obs := &Observation{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(obs.done)
		p.loop(ctx, interval)
	}()

	return obs
}

func (p *Poller) loop(ctx context.Context, interval time.Duration) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		// Both channels may be ready when cancellation races the timer.
		if ctx.Err() != nil {
			return
		}

		snap, err := p.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("status poll failed", "error", err)
			timer.Reset(interval)
			continue
		}

		if snap.Status.Terminal() {
			if p.OnTerminal != nil {
				p.OnTerminal(*snap)
			}
			return
		}

		if p.OnUpdate != nil {
			p.OnUpdate(*snap)
		}
		timer.Reset(interval)
	}
}

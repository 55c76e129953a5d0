// Package worker runs the background observer that tracks in-flight
// execution runs and batch jobs to their terminal status.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/collectline/dunlin/internal/dispatch"
	"github.com/collectline/dunlin/internal/domain"
	"github.com/collectline/dunlin/internal/tracker"
)

// RunStatusFetcher fetches remote run state from the dispatch engine.
type RunStatusFetcher interface {
	RunStatus(ctx context.Context, remoteID string) (*dispatch.RunState, error)
}

// BatchStatusFetcher fetches remote batch state from the dispatch engine.
type BatchStatusFetcher interface {
	BatchStatus(ctx context.Context, remoteID string) (*dispatch.BatchState, error)
}

// Observer subscribes to run and batch initiation events and polls the
// dispatch engine until each reaches a terminal status, persisting every
// observed update.
type Observer struct {
	bus      domain.EventBus
	repo     domain.Repository
	runs     RunStatusFetcher
	batches  BatchStatusFetcher
	interval time.Duration

	mu           sync.Mutex
	observations map[string]*tracker.Observation
	subs         []domain.Subscription
	wg           sync.WaitGroup
}

// New creates an observer. interval is the polling cadence; zero means the
// tracker default.
func New(bus domain.EventBus, repo domain.Repository, runs RunStatusFetcher, batches BatchStatusFetcher, interval time.Duration) *Observer {
	return &Observer{
		bus:          bus,
		repo:         repo,
		runs:         runs,
		batches:      batches,
		interval:     interval,
		observations: make(map[string]*tracker.Observation),
	}
}

// Start subscribes to the initiation topics.
func (o *Observer) Start(ctx context.Context) error {
	runSub, err := o.bus.Subscribe(ctx, domain.TopicRunInitiated, o.handleRunInitiated)
	if err != nil {
		return err
	}

	batchSub, err := o.bus.Subscribe(ctx, domain.TopicBatchSubmitted, o.handleBatchSubmitted)
	if err != nil {
		runSub.Unsubscribe()
		return err
	}

	o.mu.Lock()
	o.subs = append(o.subs, runSub, batchSub)
	o.mu.Unlock()

	slog.Info("observer started", "poll_interval", o.interval)
	return nil
}

// Stop unsubscribes and cancels all in-flight observations, waiting for
// their polling loops to exit.
func (o *Observer) Stop() {
	o.mu.Lock()
	for _, sub := range o.subs {
		_ = sub.Unsubscribe()
	}
	o.subs = nil
	for _, obs := range o.observations {
		obs.Stop()
	}
	o.mu.Unlock()

	o.wg.Wait()
	slog.Info("observer stopped")
}

func (o *Observer) handleRunInitiated(ctx context.Context, msg *domain.Message) error {
	var event domain.RunEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		slog.Error("failed to decode run event", "error", err)
		return err
	}

	poller := &tracker.Poller{
		Interval: o.interval,
		Fetch: func(ctx context.Context) (*tracker.Snapshot, error) {
			state, err := o.runs.RunStatus(ctx, event.RemoteID)
			if err != nil {
				return nil, err
			}
			return &tracker.Snapshot{
				Status:         state.Status,
				TotalProcessed: state.TotalProcessed,
				SuccessCount:   state.SuccessCount,
				FailedCount:    state.FailedCount,
				ErrorSummary:   state.ErrorSummary,
			}, nil
		},
		OnUpdate: func(snap tracker.Snapshot) {
			o.persistRun(event.RunID, snap, false)
		},
		OnTerminal: func(snap tracker.Snapshot) {
			o.finishRun(event, snap)
		},
	}

	o.observe("run:"+event.RunID, poller)
	return nil
}

func (o *Observer) handleBatchSubmitted(ctx context.Context, msg *domain.Message) error {
	var event domain.BatchEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		slog.Error("failed to decode batch event", "error", err)
		return err
	}

	poller := &tracker.Poller{
		Interval: o.interval,
		Fetch: func(ctx context.Context) (*tracker.Snapshot, error) {
			state, err := o.batches.BatchStatus(ctx, event.RemoteID)
			if err != nil {
				return nil, err
			}
			return &tracker.Snapshot{
				Status:         state.Status,
				TotalProcessed: state.TotalCases,
				SuccessCount:   state.Successful,
				FailedCount:    state.Failed,
			}, nil
		},
		OnUpdate: func(snap tracker.Snapshot) {
			o.persistBatch(event.BatchID, snap, false)
		},
		OnTerminal: func(snap tracker.Snapshot) {
			o.finishBatch(event, snap)
		},
	}

	o.observe("batch:"+event.BatchID, poller)
	return nil
}

func (o *Observer) observe(key string, poller *tracker.Poller) {
	obs := poller.Observe(context.Background())

	o.mu.Lock()
	o.observations[key] = obs
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		<-obs.Done()

		o.mu.Lock()
		delete(o.observations, key)
		o.mu.Unlock()
	}()
}

func (o *Observer) persistRun(runID string, snap tracker.Snapshot, terminal bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	run, err := o.repo.GetRun(ctx, runID)
	if err != nil {
		slog.Error("failed to load run for status update", "run_id", runID, "error", err)
		return
	}

	run.Status = snap.Status
	run.TotalProcessed = snap.TotalProcessed
	run.SuccessCount = snap.SuccessCount
	run.FailedCount = snap.FailedCount
	run.ErrorSummary = snap.ErrorSummary
	if terminal {
		now := time.Now().UTC()
		run.CompletedAt = &now
	}

	if err := o.repo.UpdateRun(ctx, run); err != nil {
		slog.Error("failed to persist run status", "run_id", runID, "error", err)
	}
}

func (o *Observer) finishRun(event domain.RunEvent, snap tracker.Snapshot) {
	o.persistRun(event.RunID, snap, true)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	succeeded := snap.Status == domain.RunCompleted
	if err := o.repo.RecordRunOutcome(ctx, event.RuleID, succeeded, time.Now().UTC()); err != nil {
		slog.Error("failed to record run outcome", "rule_id", event.RuleID, "error", err)
	}

	run := &domain.ExecutionRun{
		Status:         snap.Status,
		TotalProcessed: snap.TotalProcessed,
		SuccessCount:   snap.SuccessCount,
		FailedCount:    snap.FailedCount,
		ErrorSummary:   snap.ErrorSummary,
	}

	topic := domain.TopicRunCompleted
	if snap.Status == domain.RunFailed {
		topic = domain.TopicRunFailed
	}

	event.Outcome = run.Outcome()
	o.publish(ctx, topic, event)

	slog.Info("run finished",
		"run_id", event.RunID,
		"rule_id", event.RuleID,
		"status", snap.Status,
		"processed", snap.TotalProcessed,
	)
}

func (o *Observer) persistBatch(batchID string, snap tracker.Snapshot, terminal bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	batch, err := o.repo.GetBatch(ctx, batchID)
	if err != nil {
		slog.Error("failed to load batch for status update", "batch_id", batchID, "error", err)
		return
	}

	batch.Status = snap.Status
	batch.TotalCases = snap.TotalProcessed
	batch.Successful = snap.SuccessCount
	batch.Failed = snap.FailedCount
	if terminal {
		now := time.Now().UTC()
		batch.CompletedAt = &now
	}

	if err := o.repo.UpdateBatch(ctx, batch); err != nil {
		slog.Error("failed to persist batch status", "batch_id", batchID, "error", err)
	}
}

func (o *Observer) finishBatch(event domain.BatchEvent, snap tracker.Snapshot) {
	o.persistBatch(event.BatchID, snap, true)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	event.Outcome = string(snap.Status)
	o.publish(ctx, domain.TopicBatchCompleted, event)

	slog.Info("batch finished",
		"batch_id", event.BatchID,
		"kind", event.Kind,
		"status", snap.Status,
	)
}

func (o *Observer) publish(ctx context.Context, topic string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal event", "topic", topic, "error", err)
		return
	}
	if err := o.bus.Publish(ctx, topic, payload); err != nil {
		slog.Error("failed to publish event", "topic", topic, "error", err)
	}
}

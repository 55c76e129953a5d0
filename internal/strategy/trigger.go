package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/collectline/dunlin/internal/domain"
)

// RunStarter starts an execution run on the dispatch engine and returns the
// engine's identifier for it.
type RunStarter interface {
	TriggerRun(ctx context.Context, rule *domain.Rule, trigger domain.TriggerType) (string, error)
}

// Trigger starts execution runs for rules, whether on operator request or on
// schedule, and announces them on the event bus so the observer picks up
// status tracking.
type Trigger struct {
	repo   domain.Repository
	bus    domain.EventBus
	engine RunStarter
}

// NewTrigger creates a trigger.
func NewTrigger(repo domain.Repository, bus domain.EventBus, engine RunStarter) *Trigger {
	return &Trigger{repo: repo, bus: bus, engine: engine}
}

// Run starts an execution run for the given rule. Only ACTIVE rules may
// run. The run record is persisted before the initiated event is published
// so a subscriber always finds it.
func (t *Trigger) Run(ctx context.Context, ruleID string, trigger domain.TriggerType) (*domain.ExecutionRun, error) {
	rule, err := t.repo.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if rule.Status != domain.RuleActive {
		return nil, fmt.Errorf("%w: rule %s is %s", domain.ErrInvalidInput, ruleID, rule.Status)
	}

	remoteID, err := t.engine.TriggerRun(ctx, rule, trigger)
	if err != nil {
		return nil, fmt.Errorf("failed to trigger run: %w", err)
	}

	run := &domain.ExecutionRun{
		ID:          uuid.New().String(),
		RuleID:      rule.ID,
		RemoteID:    remoteID,
		TriggerType: trigger,
		Status:      domain.RunInitiated,
		StartedAt:   time.Now().UTC(),
	}
	if err := t.repo.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}

	t.publish(ctx, domain.TopicRunInitiated, domain.RunEvent{
		RunID:       run.ID,
		RuleID:      run.RuleID,
		RemoteID:    run.RemoteID,
		TriggerType: run.TriggerType,
	})

	slog.Info("execution run initiated",
		"run_id", run.ID,
		"rule_id", run.RuleID,
		"trigger", trigger,
	)

	return run, nil
}

func (t *Trigger) publish(ctx context.Context, topic string, event domain.RunEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal run event", "topic", topic, "error", err)
		return
	}
	if err := t.bus.Publish(ctx, topic, payload); err != nil {
		slog.Error("failed to publish run event", "topic", topic, "error", err)
	}
}

package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/collectline/dunlin/internal/domain"
)

type triggerRepo struct {
	domain.Repository
	rule *domain.Rule
	runs []*domain.ExecutionRun
}

func (r *triggerRepo) GetRule(ctx context.Context, id string) (*domain.Rule, error) {
	if r.rule == nil || r.rule.ID != id {
		return nil, domain.ErrNotFound
	}
	return r.rule, nil
}

func (r *triggerRepo) SaveRun(ctx context.Context, run *domain.ExecutionRun) error {
	r.runs = append(r.runs, run)
	return nil
}

type recordingBus struct {
	domain.EventBus
	topics   []string
	payloads [][]byte
}

func (b *recordingBus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.topics = append(b.topics, topic)
	b.payloads = append(b.payloads, payload)
	return nil
}

type fakeEngine struct {
	remoteID string
	err      error
	calls    int
}

func (e *fakeEngine) TriggerRun(ctx context.Context, rule *domain.Rule, trigger domain.TriggerType) (string, error) {
	e.calls++
	return e.remoteID, e.err
}

func TestTriggerRun(t *testing.T) {
	repo := &triggerRepo{rule: &domain.Rule{ID: "rule-1", Status: domain.RuleActive}}
	bus := &recordingBus{}
	engine := &fakeEngine{remoteID: "remote-7"}
	trigger := NewTrigger(repo, bus, engine)

	run, err := trigger.Run(context.Background(), "rule-1", domain.TriggerManual)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if run.RemoteID != "remote-7" {
		t.Errorf("remoteID = %q, want remote-7", run.RemoteID)
	}
	if run.Status != domain.RunInitiated {
		t.Errorf("status = %s, want %s", run.Status, domain.RunInitiated)
	}
	if len(repo.runs) != 1 || repo.runs[0].ID != run.ID {
		t.Errorf("expected the run to be persisted, got %d runs", len(repo.runs))
	}

	if len(bus.topics) != 1 || bus.topics[0] != domain.TopicRunInitiated {
		t.Fatalf("topics = %v, want [%s]", bus.topics, domain.TopicRunInitiated)
	}
	var event domain.RunEvent
	if err := json.Unmarshal(bus.payloads[0], &event); err != nil {
		t.Fatalf("failed to decode event: %v", err)
	}
	if event.RunID != run.ID || event.RuleID != "rule-1" || event.RemoteID != "remote-7" {
		t.Errorf("unexpected event %+v", event)
	}
}

func TestTriggerRejectsInactiveRule(t *testing.T) {
	for _, status := range []domain.RuleStatus{domain.RuleDraft, domain.RuleInactive} {
		t.Run(string(status), func(t *testing.T) {
			repo := &triggerRepo{rule: &domain.Rule{ID: "rule-1", Status: status}}
			engine := &fakeEngine{remoteID: "remote-7"}
			trigger := NewTrigger(repo, &recordingBus{}, engine)

			_, err := trigger.Run(context.Background(), "rule-1", domain.TriggerManual)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
			if engine.calls != 0 {
				t.Errorf("engine called %d times, want 0", engine.calls)
			}
		})
	}
}

func TestTriggerUnknownRule(t *testing.T) {
	trigger := NewTrigger(&triggerRepo{}, &recordingBus{}, &fakeEngine{})

	_, err := trigger.Run(context.Background(), "ghost", domain.TriggerScheduled)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestTriggerEngineFailure(t *testing.T) {
	repo := &triggerRepo{rule: &domain.Rule{ID: "rule-1", Status: domain.RuleActive}}
	bus := &recordingBus{}
	trigger := NewTrigger(repo, bus, &fakeEngine{err: errors.New("engine down")})

	_, err := trigger.Run(context.Background(), "rule-1", domain.TriggerManual)
	if err == nil {
		t.Fatal("expected an error")
	}
	if len(repo.runs) != 0 {
		t.Errorf("expected no run persisted, got %d", len(repo.runs))
	}
	if len(bus.topics) != 0 {
		t.Errorf("expected no event published, got %v", bus.topics)
	}
}

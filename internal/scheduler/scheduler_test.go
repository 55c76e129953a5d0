package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/collectline/dunlin/internal/domain"
)

type schedulerRepo struct {
	domain.Repository

	mu       sync.Mutex
	rules    []*domain.Rule
	nextRuns map[string]*time.Time
}

func newSchedulerRepo(rules ...*domain.Rule) *schedulerRepo {
	return &schedulerRepo{rules: rules, nextRuns: make(map[string]*time.Time)}
}

func (r *schedulerRepo) ListRules(ctx context.Context) ([]*domain.Rule, error) {
	return r.rules, nil
}

func (r *schedulerRepo) SetNextRun(ctx context.Context, ruleID string, at *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextRuns[ruleID] = at
	return nil
}

func (r *schedulerRepo) nextRun(ruleID string) *time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nextRuns[ruleID]
}

func noTrigger(ctx context.Context, ruleID string, trigger domain.TriggerType) error {
	return nil
}

func scheduledRule(id string, status domain.RuleStatus) *domain.Rule {
	return &domain.Rule{
		ID:     id,
		Name:   "rule " + id,
		Status: status,
		Schedule: domain.Schedule{
			Frequency: domain.FreqWeekly,
			Time:      "09:00",
			Days:      []domain.Weekday{domain.Monday},
		},
	}
}

func TestRegisterActiveRule(t *testing.T) {
	s := New(newSchedulerRepo(), noTrigger)

	next, err := s.Register(scheduledRule("rule-1", domain.RuleActive))
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if !next.After(time.Now()) {
		t.Errorf("next = %v, want a future time", next)
	}
	if s.Count() != 1 {
		t.Errorf("count = %d, want 1", s.Count())
	}

	// Re-registering replaces the entry rather than stacking a second one.
	if _, err := s.Register(scheduledRule("rule-1", domain.RuleActive)); err != nil {
		t.Fatalf("second Register failed: %v", err)
	}
	if s.Count() != 1 {
		t.Errorf("count = %d after re-register, want 1", s.Count())
	}
}

func TestRegisterInactiveRuleUnregisters(t *testing.T) {
	s := New(newSchedulerRepo(), noTrigger)

	if _, err := s.Register(scheduledRule("rule-1", domain.RuleActive)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	next, err := s.Register(scheduledRule("rule-1", domain.RuleInactive))
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if !next.IsZero() {
		t.Errorf("next = %v, want zero time for inactive rule", next)
	}
	if s.Count() != 0 {
		t.Errorf("count = %d, want 0", s.Count())
	}
}

func TestUnregister(t *testing.T) {
	s := New(newSchedulerRepo(), noTrigger)

	s.Register(scheduledRule("rule-1", domain.RuleActive))
	s.Unregister("rule-1")
	if s.Count() != 0 {
		t.Errorf("count = %d, want 0", s.Count())
	}

	// Unregistering an unknown rule is a no-op.
	s.Unregister("ghost")
}

func TestSync(t *testing.T) {
	repo := newSchedulerRepo(
		scheduledRule("rule-1", domain.RuleActive),
		scheduledRule("rule-2", domain.RuleDraft),
		scheduledRule("rule-3", domain.RuleActive),
	)
	s := New(repo, noTrigger)

	if err := s.Sync(context.Background()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if s.Count() != 2 {
		t.Errorf("count = %d, want 2 (drafts are not scheduled)", s.Count())
	}
	if repo.nextRun("rule-1") == nil || repo.nextRun("rule-3") == nil {
		t.Error("expected next run recorded for active rules")
	}
	if repo.nextRun("rule-2") != nil {
		t.Error("draft rule should not get a next run")
	}
}

func TestStartStop(t *testing.T) {
	s := New(newSchedulerRepo(), noTrigger)
	s.Register(scheduledRule("rule-1", domain.RuleActive))

	s.Start()
	s.Stop()
}

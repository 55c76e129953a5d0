// Package scheduler fires execution runs for active rules on their
// normalized schedules.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/collectline/dunlin/internal/domain"
	"github.com/collectline/dunlin/internal/schedule"
)

// TriggerFunc starts an execution run for a rule. The scheduler never
// inspects the result beyond logging: a failed trigger retries at the next
// scheduled fire.
type TriggerFunc func(ctx context.Context, ruleID string, trigger domain.TriggerType) error

// Scheduler keeps one cron entry per ACTIVE rule.
type Scheduler struct {
	cron    *cron.Cron
	trigger TriggerFunc
	repo    domain.Repository

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// New creates a scheduler.
func New(repo domain.Repository, trigger TriggerFunc) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		trigger: trigger,
		repo:    repo,
		entries: make(map[string]cron.EntryID),
	}
}

// Register adds or replaces the cron entry for a rule and returns its next
// fire time. Rules that are not ACTIVE are unregistered instead.
func (s *Scheduler) Register(rule *domain.Rule) (time.Time, error) {
	if rule.Status != domain.RuleActive {
		s.Unregister(rule.ID)
		return time.Time{}, nil
	}

	spec := schedule.CronSpec(&rule.Schedule)

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[rule.ID]; ok {
		s.cron.Remove(id)
	}

	ruleID := rule.ID
	id, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.trigger(ctx, ruleID, domain.TriggerScheduled); err != nil {
			slog.Error("scheduled trigger failed", "rule_id", ruleID, "error", err)
		}
		s.recordNextRun(ctx, ruleID)
	})
	if err != nil {
		return time.Time{}, err
	}

	s.entries[rule.ID] = id
	next := s.cron.Entry(id).Schedule.Next(time.Now())

	slog.Info("rule scheduled",
		"rule_id", rule.ID,
		"cron", spec,
		"next_run", next,
	)

	return next, nil
}

// Unregister removes a rule's cron entry if present.
func (s *Scheduler) Unregister(ruleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[ruleID]; ok {
		s.cron.Remove(id)
		delete(s.entries, ruleID)
		slog.Info("rule unscheduled", "rule_id", ruleID)
	}
}

// Sync reconciles cron entries against the persisted rule set and records
// next fire times. Called at startup.
func (s *Scheduler) Sync(ctx context.Context) error {
	rules, err := s.repo.ListRules(ctx)
	if err != nil {
		return err
	}

	for _, rule := range rules {
		next, err := s.Register(rule)
		if err != nil {
			slog.Error("failed to schedule rule", "rule_id", rule.ID, "error", err)
			continue
		}
		if !next.IsZero() {
			if err := s.repo.SetNextRun(ctx, rule.ID, &next); err != nil {
				slog.Warn("failed to record next run", "rule_id", rule.ID, "error", err)
			}
		}
	}

	return nil
}

// Start begins firing scheduled entries.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler, waiting for in-flight jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Count returns the number of scheduled rules.
func (s *Scheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Scheduler) recordNextRun(ctx context.Context, ruleID string) {
	s.mu.Lock()
	id, ok := s.entries[ruleID]
	s.mu.Unlock()
	if !ok {
		return
	}

	next := s.cron.Entry(id).Schedule.Next(time.Now())
	if err := s.repo.SetNextRun(ctx, ruleID, &next); err != nil {
		slog.Warn("failed to record next run", "rule_id", ruleID, "error", err)
	}
}

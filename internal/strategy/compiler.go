// Package strategy compiles rule drafts into executable rules and triggers
// their execution runs.
package strategy

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/collectline/dunlin/internal/domain"
	"github.com/collectline/dunlin/internal/filter"
	"github.com/collectline/dunlin/internal/schedule"
)

// Stage names the compilation stages in pipeline order. Validation stops at
// the first failing stage so the caller can point the operator at exactly
// one screen.
type Stage string

const (
	StageBasicInfo Stage = "basic_info"
	StageChannel   Stage = "channel"
	StageFilters   Stage = "filters"
	StageTemplate  Stage = "template"
	StageSchedule  Stage = "schedule"
)

// ValidationError reports the first stage that rejected a draft.
type ValidationError struct {
	Stage   Stage  `json:"stage"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Stage, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

// Draft is a rule as submitted by the wizard: raw criteria and schedule
// input, not yet normalized or validated.
type Draft struct {
	ID           string             `json:"id,omitempty"`
	Name         string             `json:"name"`
	Description  string             `json:"description,omitempty"`
	Priority     int                `json:"priority,omitempty"`
	Status       domain.RuleStatus  `json:"status,omitempty"`
	Channel      domain.Channel     `json:"channel"`
	TemplateID   string             `json:"templateId"`
	TemplateName string             `json:"templateName,omitempty"`
	Criteria     []filter.Criterion `json:"criteria"`
	Schedule     schedule.Input     `json:"schedule"`
}

// Compiler turns drafts into persisted-ready rules.
type Compiler struct {
	normalizer *filter.Normalizer
	validator  *filter.Validator
}

// NewCompiler creates a compiler over the given normalizer and expression
// validator.
func NewCompiler(normalizer *filter.Normalizer, validator *filter.Validator) *Compiler {
	return &Compiler{normalizer: normalizer, validator: validator}
}

// Compile runs the five-stage pipeline over a draft. The resulting rule is
// complete except for persistence timestamps, which Compile sets to now for
// new rules.
func (c *Compiler) Compile(draft *Draft) (*domain.Rule, error) {
	if err := c.checkBasicInfo(draft); err != nil {
		return nil, err
	}
	if err := c.checkChannel(draft); err != nil {
		return nil, err
	}

	conditions, expression, err := c.compileFilters(draft)
	if err != nil {
		return nil, err
	}

	if err := c.checkTemplate(draft); err != nil {
		return nil, err
	}

	sched, err := c.compileSchedule(draft)
	if err != nil {
		return nil, err
	}

	status := draft.Status
	if status == "" {
		status = domain.RuleDraft
	}

	now := time.Now().UTC()
	rule := &domain.Rule{
		ID:          draft.ID,
		Name:        strings.TrimSpace(draft.Name),
		Description: strings.TrimSpace(draft.Description),
		Status:      status,
		Priority:    draft.Priority,
		Channel: domain.ChannelBinding{
			Type:         draft.Channel,
			TemplateID:   draft.TemplateID,
			TemplateName: draft.TemplateName,
		},
		Filters:    conditions,
		Expression: expression,
		Schedule:   *sched,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}

	return rule, nil
}

func (c *Compiler) checkBasicInfo(draft *Draft) error {
	if strings.TrimSpace(draft.Name) == "" {
		return &ValidationError{Stage: StageBasicInfo, Field: "name", Message: "rule name is required"}
	}
	if draft.Status != "" {
		switch draft.Status {
		case domain.RuleDraft, domain.RuleActive, domain.RuleInactive:
		default:
			return &ValidationError{Stage: StageBasicInfo, Field: "status", Message: fmt.Sprintf("unknown status %q", draft.Status)}
		}
	}
	return nil
}

func (c *Compiler) checkChannel(draft *Draft) error {
	if !draft.Channel.Valid() {
		return &ValidationError{Stage: StageChannel, Field: "channel", Message: fmt.Sprintf("unknown channel %q", draft.Channel)}
	}
	return nil
}

func (c *Compiler) compileFilters(draft *Draft) ([]domain.FilterCondition, string, error) {
	conditions, err := c.normalizer.NormalizeAll(draft.Criteria)
	if err != nil {
		return nil, "", &ValidationError{Stage: StageFilters, Message: err.Error()}
	}

	expression := filter.Render(conditions)
	if err := c.validator.Validate(expression); err != nil {
		return nil, "", &ValidationError{Stage: StageFilters, Message: err.Error()}
	}

	return conditions, expression, nil
}

func (c *Compiler) checkTemplate(draft *Draft) error {
	if strings.TrimSpace(draft.TemplateID) == "" {
		return &ValidationError{Stage: StageTemplate, Field: "templateId", Message: "message template is required"}
	}
	return nil
}

func (c *Compiler) compileSchedule(draft *Draft) (*domain.Schedule, error) {
	sched, err := schedule.Normalize(draft.Schedule)
	if err != nil {
		return nil, &ValidationError{Stage: StageSchedule, Message: err.Error()}
	}
	return sched, nil
}

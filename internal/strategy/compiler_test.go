package strategy

import (
	"errors"
	"strings"
	"testing"

	"github.com/collectline/dunlin/internal/domain"
	"github.com/collectline/dunlin/internal/filter"
	"github.com/collectline/dunlin/internal/schedule"
)

func testCompiler(t *testing.T) *Compiler {
	t.Helper()

	catalog := filter.NewCatalog([]domain.FilterField{
		{ID: "dpd", DisplayName: "Days Past Due", Type: domain.FilterNumeric},
		{ID: "language", DisplayName: "Preferred Language", Type: domain.FilterText, Options: []domain.FieldOption{
			{Code: "en", Value: "English"},
			{Code: "hi", Value: "Hindi"},
		}},
	})

	validator, err := filter.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator failed: %v", err)
	}

	return NewCompiler(filter.NewNormalizer(catalog, filter.DropIncomplete), validator)
}

func validDraft() *Draft {
	return &Draft{
		Name:       "Bucket X Nudge",
		Channel:    domain.ChannelSMS,
		TemplateID: "tmpl-sms-en",
		Criteria: []filter.Criterion{
			{FieldID: "dpd", Comparison: "Greater Than", Min: "30"},
		},
		Schedule: schedule.Input{
			Frequency: domain.FreqWeekly,
			Time:      "09:30",
			Days:      []domain.Weekday{domain.Monday, domain.Thursday},
		},
	}
}

func TestCompileValidDraft(t *testing.T) {
	c := testCompiler(t)

	rule, err := c.Compile(validDraft())
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if rule.ID == "" {
		t.Error("expected a generated rule ID")
	}
	if rule.Status != domain.RuleDraft {
		t.Errorf("status = %s, want %s", rule.Status, domain.RuleDraft)
	}
	if rule.Expression != "dpd > 30.0" {
		t.Errorf("expression = %q, want %q", rule.Expression, "dpd > 30.0")
	}
	if rule.Channel.Type != domain.ChannelSMS || rule.Channel.TemplateID != "tmpl-sms-en" {
		t.Errorf("unexpected channel binding %+v", rule.Channel)
	}
	if len(rule.Filters) != 1 {
		t.Fatalf("filters = %d, want 1", len(rule.Filters))
	}
	if rule.Schedule.Frequency != domain.FreqWeekly || len(rule.Schedule.Days) != 2 {
		t.Errorf("unexpected schedule %+v", rule.Schedule)
	}
	if rule.CreatedAt.IsZero() || rule.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestCompileKeepsSubmittedID(t *testing.T) {
	c := testCompiler(t)

	draft := validDraft()
	draft.ID = "rule-42"
	draft.Status = domain.RuleActive

	rule, err := c.Compile(draft)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if rule.ID != "rule-42" {
		t.Errorf("id = %q, want rule-42", rule.ID)
	}
	if rule.Status != domain.RuleActive {
		t.Errorf("status = %s, want %s", rule.Status, domain.RuleActive)
	}
}

func TestCompileEmptyCriteria(t *testing.T) {
	c := testCompiler(t)

	draft := validDraft()
	draft.Criteria = nil

	rule, err := c.Compile(draft)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if rule.Expression != "true" {
		t.Errorf("expression = %q, want %q", rule.Expression, "true")
	}
	if len(rule.Filters) != 0 {
		t.Errorf("filters = %d, want 0", len(rule.Filters))
	}
}

func TestCompileStopsAtFirstFailingStage(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Draft)
		wantStage Stage
		wantField string
	}{
		{
			name:      "missing name",
			mutate:    func(d *Draft) { d.Name = "  " },
			wantStage: StageBasicInfo,
			wantField: "name",
		},
		{
			name:      "unknown status",
			mutate:    func(d *Draft) { d.Status = "ARCHIVED" },
			wantStage: StageBasicInfo,
			wantField: "status",
		},
		{
			name:      "unknown channel",
			mutate:    func(d *Draft) { d.Channel = "PIGEON" },
			wantStage: StageChannel,
			wantField: "channel",
		},
		{
			name: "unknown filter field",
			mutate: func(d *Draft) {
				d.Criteria = []filter.Criterion{{FieldID: "shoe_size", Comparison: "Greater Than", Min: "9"}}
			},
			wantStage: StageFilters,
		},
		{
			name:      "missing template",
			mutate:    func(d *Draft) { d.TemplateID = "" },
			wantStage: StageTemplate,
			wantField: "templateId",
		},
		{
			name:      "bad schedule time",
			mutate:    func(d *Draft) { d.Schedule.Time = "noonish" },
			wantStage: StageSchedule,
		},
		{
			name: "name failure reported before channel failure",
			mutate: func(d *Draft) {
				d.Name = ""
				d.Channel = "PIGEON"
			},
			wantStage: StageBasicInfo,
			wantField: "name",
		},
		{
			name: "channel failure reported before template failure",
			mutate: func(d *Draft) {
				d.Channel = "PIGEON"
				d.TemplateID = ""
			},
			wantStage: StageChannel,
			wantField: "channel",
		},
	}

	c := testCompiler(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := validDraft()
			tt.mutate(draft)

			_, err := c.Compile(draft)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
			if verr.Stage != tt.wantStage {
				t.Errorf("stage = %s, want %s", verr.Stage, tt.wantStage)
			}
			if verr.Field != tt.wantField {
				t.Errorf("field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	withField := &ValidationError{Stage: StageBasicInfo, Field: "name", Message: "rule name is required"}
	if got := withField.Error(); !strings.Contains(got, "basic_info") || !strings.Contains(got, "name") {
		t.Errorf("unexpected message %q", got)
	}

	bare := &ValidationError{Stage: StageFilters, Message: "unknown field"}
	if got := bare.Error(); got != "filters: unknown field" {
		t.Errorf("message = %q, want %q", got, "filters: unknown field")
	}
}

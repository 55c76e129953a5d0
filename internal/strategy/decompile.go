package strategy

import (
	"github.com/collectline/dunlin/internal/domain"
	"github.com/collectline/dunlin/internal/filter"
	"github.com/collectline/dunlin/internal/schedule"
)

// comparisonLabels render canonical operators back into labels the keyword
// classifier resolves to the same operator, so a decompiled draft recompiles
// to the rule it came from.
var comparisonLabels = map[domain.Operator]string{
	domain.OpGt:    "Greater Than",
	domain.OpGte:   "Greater Than Or Equal",
	domain.OpLt:    "Less Than",
	domain.OpLte:   "Less Than Or Equal",
	domain.OpEq:    "Equal To",
	domain.OpRange: "Range",
}

// Decompile reverses compilation for the edit wizard: a stored rule becomes a
// draft whose criteria carry selection codes again. TEXT condition values are
// decoded against the current catalog, which may have drifted since the rule
// was saved; values nothing resolves pass through verbatim.
func Decompile(catalog *filter.Catalog, rule *domain.Rule) *Draft {
	criteria := make([]filter.Criterion, 0, len(rule.Filters))
	for _, cond := range rule.Filters {
		criteria = append(criteria, decompileCondition(catalog, cond))
	}

	return &Draft{
		ID:           rule.ID,
		Name:         rule.Name,
		Description:  rule.Description,
		Priority:     rule.Priority,
		Status:       rule.Status,
		Channel:      rule.Channel.Type,
		TemplateID:   rule.Channel.TemplateID,
		TemplateName: rule.Channel.TemplateName,
		Criteria:     criteria,
		Schedule:     decompileSchedule(rule.Schedule),
	}
}

func decompileCondition(catalog *filter.Catalog, cond domain.FilterCondition) filter.Criterion {
	c := filter.Criterion{FieldID: cond.Field}

	if cond.Operator == domain.OpIn {
		var options []domain.FieldOption
		if field, ok := catalog.Field(cond.Field); ok {
			options = field.Options
		}
		c.SelectedCodes = filter.NewResolver(options).Decode(cond.Values)
		return c
	}

	c.Comparison = comparisonLabels[cond.Operator]

	// Operand slots mirror normalization: > and >= fill min, < and <= fill
	// max, = fills exact, RANGE fills both bounds.
	switch cond.Operator {
	case domain.OpGt, domain.OpGte:
		c.Min = cond.Value1
	case domain.OpLt, domain.OpLte:
		c.Max = cond.Value1
	case domain.OpEq:
		c.Exact = cond.Value1
	case domain.OpRange:
		c.Min = cond.Value1
		c.Max = cond.Value2
	}

	return c
}

// decompileSchedule hands back only the day field the frequency reads. DAILY
// rules carry the expanded working week in storage but the wizard never edits
// it, so the day list is dropped rather than echoed.
func decompileSchedule(s domain.Schedule) schedule.Input {
	in := schedule.Input{
		Frequency: s.Frequency,
		Time:      s.Time,
	}
	switch s.Frequency {
	case domain.FreqWeekly:
		in.Days = append([]domain.Weekday(nil), s.Days...)
	case domain.FreqMonthly:
		in.DayOfMonth = s.DayOfMonth
	}
	return in
}

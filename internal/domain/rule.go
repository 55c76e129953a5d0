package domain

import (
	"time"
)

// FilterType classifies a filter field's value domain.
type FilterType string

const (
	FilterNumeric FilterType = "NUMERIC"
	FilterText    FilterType = "TEXT"
	FilterDate    FilterType = "DATE"
)

// Operator is the closed set of canonical comparison operators. Raw
// comparison-sign labels from master data are classified into this set at
// the system boundary; nothing past the condition normalizer touches label
// text.
type Operator string

const (
	OpEq    Operator = "EQ"
	OpGt    Operator = "GT"
	OpGte   Operator = "GTE"
	OpLt    Operator = "LT"
	OpLte   Operator = "LTE"
	OpRange Operator = "RANGE"
	OpIn    Operator = "IN"
)

// legalOperators maps each filter type to its allowed operator set.
var legalOperators = map[FilterType][]Operator{
	FilterNumeric: {OpEq, OpGt, OpGte, OpLt, OpLte, OpRange},
	FilterDate:    {OpGte, OpLte, OpRange},
	FilterText:    {OpIn},
}

// Allows reports whether op is legal for the filter type.
func (t FilterType) Allows(op Operator) bool {
	for _, legal := range legalOperators[t] {
		if op == legal {
			return true
		}
	}
	return false
}

// FilterCondition is one atomic comparison contributing to a rule's
// eligibility expression. Value1 holds the single operand for comparison
// operators; RANGE uses Value1 as the lower and Value2 as the upper bound.
// TEXT conditions carry their operand set in Values (non-empty).
type FilterCondition struct {
	Field      string     `json:"field"`
	FilterType FilterType `json:"filterType"`
	Operator   Operator   `json:"operator"`
	Value1     string     `json:"value1,omitempty"`
	Value2     string     `json:"value2,omitempty"`
	Values     []string   `json:"values,omitempty"`
}

// RuleStatus is the lifecycle state of a rule.
type RuleStatus string

const (
	RuleDraft    RuleStatus = "DRAFT"
	RuleActive   RuleStatus = "ACTIVE"
	RuleInactive RuleStatus = "INACTIVE"
)

// ChannelBinding ties a rule to a communication channel and template.
type ChannelBinding struct {
	Type         Channel `json:"type"`
	TemplateID   string  `json:"templateId"`
	TemplateName string  `json:"templateName,omitempty"`
}

// Rule is a persisted collections strategy: an eligibility filter expression,
// a run schedule, and a channel/template binding. Updates are full-replace;
// delete is terminal.
type Rule struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Status      RuleStatus `json:"status"`

	// Priority is carried opaquely; its ordering convention belongs to the
	// deployment, not to this service.
	Priority int `json:"priority"`

	Channel ChannelBinding `json:"channel"`

	// Filters is the ordered condition list; empty means match all
	// eligible cases.
	Filters []FilterCondition `json:"filters"`

	// Expression is the compiled CEL eligibility expression derived from
	// Filters, consumed by the dispatch engine.
	Expression string `json:"expression"`

	Schedule Schedule `json:"schedule"`

	SuccessCount int64      `json:"successCount"`
	FailureCount int64      `json:"failureCount"`
	LastRunAt    *time.Time `json:"lastRunAt,omitempty"`
	NextRunAt    *time.Time `json:"nextRunAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

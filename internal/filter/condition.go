package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/collectline/dunlin/internal/domain"
)

// IncompletePolicy is how the normalizer treats a criterion whose resolved
// operator is missing a required operand.
type IncompletePolicy int

const (
	// DropIncomplete silently omits the condition from the compiled
	// filter set. This matches the lenient submit-only-complete-criteria
	// behavior operators expect from the rule wizard.
	DropIncomplete IncompletePolicy = iota

	// RejectIncomplete turns a missing operand into a validation error.
	RejectIncomplete
)

// PolicyFromString maps a config value to a policy, defaulting to drop.
func PolicyFromString(s string) IncompletePolicy {
	if strings.EqualFold(s, "reject") {
		return RejectIncomplete
	}
	return DropIncomplete
}

var (
	// ErrIncomplete marks a criterion missing a required operand, under
	// RejectIncomplete.
	ErrIncomplete = errors.New("incomplete condition")

	// ErrUnknownField marks a criterion naming a field absent from the
	// catalog.
	ErrUnknownField = errors.New("unknown filter field")

	// ErrUnknownComparison marks a sign label no keyword strategy could
	// classify.
	ErrUnknownComparison = errors.New("unrecognized comparison sign")
)

// Criterion is one raw filter row as the operator entered it: a field, a
// human-readable comparison label, and up to three staging values. TEXT
// fields carry their multi-select in SelectedCodes instead.
type Criterion struct {
	FieldID       string   `json:"fieldId"`
	Comparison    string   `json:"comparison,omitempty"`
	Min           string   `json:"min,omitempty"`
	Max           string   `json:"max,omitempty"`
	Exact         string   `json:"exact,omitempty"`
	SelectedCodes []string `json:"selectedCodes,omitempty"`
}

// Normalizer converts raw criteria into canonical filter conditions. It is a
// pure function of its inputs plus the field catalog.
type Normalizer struct {
	catalog *Catalog
	policy  IncompletePolicy
}

// NewNormalizer creates a normalizer over the given catalog.
func NewNormalizer(catalog *Catalog, policy IncompletePolicy) *Normalizer {
	return &Normalizer{catalog: catalog, policy: policy}
}

// Normalize converts one criterion into a canonical FilterCondition.
// A criterion whose required operands are empty yields (nil, nil) under
// DropIncomplete: the condition is omitted, never submitted half-populated.
func (n *Normalizer) Normalize(c Criterion) (*domain.FilterCondition, error) {
	field, ok := n.catalog.Field(c.FieldID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, c.FieldID)
	}

	if field.Type == domain.FilterText {
		return n.normalizeText(field, c)
	}

	op, ok := ClassifyComparison(c.Comparison)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownComparison, c.Comparison)
	}
	if !field.Type.Allows(op) {
		return nil, fmt.Errorf("operator %s not allowed for %s field %s", op, field.Type, field.ID)
	}

	cond := &domain.FilterCondition{
		Field:      field.ID,
		FilterType: field.Type,
		Operator:   op,
	}

	minVal := strings.TrimSpace(c.Min)
	maxVal := strings.TrimSpace(c.Max)
	exact := strings.TrimSpace(c.Exact)

	// Operand slots follow the resolved operator: > and >= read the min
	// slot, < and <= the max slot, = the exact slot, RANGE both bounds.
	switch op {
	case domain.OpGt, domain.OpGte:
		cond.Value1 = minVal
	case domain.OpLt, domain.OpLte:
		cond.Value1 = maxVal
	case domain.OpEq:
		cond.Value1 = exact
	case domain.OpRange:
		cond.Value1 = minVal
		cond.Value2 = maxVal
	}

	if cond.Value1 == "" || (op == domain.OpRange && cond.Value2 == "") {
		return n.incomplete(field.ID)
	}

	return cond, nil
}

// NormalizeAll normalizes a criterion list, omitting dropped conditions and
// preserving order.
func (n *Normalizer) NormalizeAll(criteria []Criterion) ([]domain.FilterCondition, error) {
	conds := make([]domain.FilterCondition, 0, len(criteria))
	for _, c := range criteria {
		cond, err := n.Normalize(c)
		if err != nil {
			return nil, err
		}
		if cond != nil {
			conds = append(conds, *cond)
		}
	}
	return conds, nil
}

func (n *Normalizer) normalizeText(field *domain.FilterField, c Criterion) (*domain.FilterCondition, error) {
	if len(c.SelectedCodes) == 0 {
		return n.incomplete(field.ID)
	}

	values := NewResolver(field.Options).Encode(c.SelectedCodes)
	return &domain.FilterCondition{
		Field:      field.ID,
		FilterType: domain.FilterText,
		Operator:   domain.OpIn,
		Values:     values,
	}, nil
}

func (n *Normalizer) incomplete(fieldID string) (*domain.FilterCondition, error) {
	if n.policy == RejectIncomplete {
		return nil, fmt.Errorf("%w: %s", ErrIncomplete, fieldID)
	}
	return nil, nil
}

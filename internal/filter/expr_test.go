package filter

import (
	"testing"

	"github.com/collectline/dunlin/internal/domain"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name       string
		conditions []domain.FilterCondition
		want       string
	}{
		{
			name: "empty renders match-all",
			want: "true",
		},
		{
			name: "numeric comparison gets double literal",
			conditions: []domain.FilterCondition{
				{Field: "dpd", FilterType: domain.FilterNumeric, Operator: domain.OpGt, Value1: "30"},
			},
			want: "dpd > 30.0",
		},
		{
			name: "numeric with decimal point kept as is",
			conditions: []domain.FilterCondition{
				{Field: "emi_amount", FilterType: domain.FilterNumeric, Operator: domain.OpLte, Value1: "1500.50"},
			},
			want: "emi_amount <= 1500.50",
		},
		{
			name: "numeric range",
			conditions: []domain.FilterCondition{
				{Field: "dpd", FilterType: domain.FilterNumeric, Operator: domain.OpRange, Value1: "30", Value2: "90"},
			},
			want: "(dpd >= 30.0 && dpd <= 90.0)",
		},
		{
			name: "date gets timestamp literal",
			conditions: []domain.FilterCondition{
				{Field: "due_date", FilterType: domain.FilterDate, Operator: domain.OpGte, Value1: "2026-01-15"},
			},
			want: `due_date >= timestamp("2026-01-15T00:00:00Z")`,
		},
		{
			name: "text renders membership",
			conditions: []domain.FilterCondition{
				{Field: "language", FilterType: domain.FilterText, Operator: domain.OpIn, Values: []string{"English", "Hindi"}},
			},
			want: `language in ["English", "Hindi"]`,
		},
		{
			name: "conditions joined with and",
			conditions: []domain.FilterCondition{
				{Field: "dpd", FilterType: domain.FilterNumeric, Operator: domain.OpGt, Value1: "30"},
				{Field: "state", FilterType: domain.FilterText, Operator: domain.OpIn, Values: []string{"Maharashtra"}},
			},
			want: `dpd > 30.0 && state in ["Maharashtra"]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Render(tt.conditions)
			if got != tt.want {
				t.Errorf("Render = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidatorAcceptsRenderedExpressions(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator failed: %v", err)
	}

	conditions := []domain.FilterCondition{
		{Field: "dpd", FilterType: domain.FilterNumeric, Operator: domain.OpRange, Value1: "30", Value2: "90"},
		{Field: "due_date", FilterType: domain.FilterDate, Operator: domain.OpLte, Value1: "2026-06-30"},
		{Field: "language", FilterType: domain.FilterText, Operator: domain.OpIn, Values: []string{"English"}},
	}

	expr := Render(conditions)
	if err := v.Validate(expr); err != nil {
		t.Errorf("Validate(%q) failed: %v", expr, err)
	}

	if err := v.Validate("true"); err != nil {
		t.Errorf("Validate(true) failed: %v", err)
	}
}

func TestValidatorRejectsBadExpressions(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator failed: %v", err)
	}

	tests := []struct {
		name string
		expr string
	}{
		{"syntax error", "dpd >>> 30.0"},
		{"unknown variable", "outstanding > 30.0"},
		{"non-boolean result", "dpd + 1.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := v.Validate(tt.expr); err == nil {
				t.Errorf("Validate(%q) succeeded, want error", tt.expr)
			}
		})
	}
}

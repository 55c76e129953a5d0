package filter

import (
	"testing"

	"github.com/collectline/dunlin/internal/domain"
)

func TestClassifyComparison(t *testing.T) {
	tests := []struct {
		label string
		want  domain.Operator
		ok    bool
	}{
		{"Greater Than or Equal To", domain.OpGte, true},
		{"greater than", domain.OpGt, true},
		{"GREATER", domain.OpGt, true},
		{"Less Than or Equal To", domain.OpLte, true},
		{"less than", domain.OpLt, true},
		{"Equal To", domain.OpEq, true},
		{"equals", domain.OpEq, true},
		{"Range", domain.OpRange, true},
		{"between", domain.OpRange, true},
		{"In Between", domain.OpRange, true},
		{"", "", false},
		{"approximately", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := ClassifyComparison(tt.label)
			if ok != tt.ok {
				t.Fatalf("ClassifyComparison(%q) ok = %v, want %v", tt.label, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("ClassifyComparison(%q) = %s, want %s", tt.label, got, tt.want)
			}
		})
	}
}

// The greater+equal keywords must win over the bare greater keyword
// regardless of label phrasing.
func TestClassifyComparisonPrecedence(t *testing.T) {
	labels := []string{
		"Greater Than Or Equal To",
		">= (greater than or equal)",
		"equal to or greater than",
	}

	for _, label := range labels {
		got, ok := ClassifyComparison(label)
		if !ok || got != domain.OpGte {
			t.Errorf("ClassifyComparison(%q) = %s, want GTE", label, got)
		}
	}
}

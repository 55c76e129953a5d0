// Package filter implements the eligibility filter pipeline: the field
// catalog, condition normalization, multi-value resolution, and the CEL
// rendering of condition lists.
package filter

import (
	"strings"

	"github.com/collectline/dunlin/internal/domain"
)

// ClassifyComparison resolves a human-readable comparison-sign label to a
// canonical operator. Sign labels come from master data and their wording
// varies by deployment, so classification is by keyword presence rather than
// exact match. Precedence, first match wins:
//
//	greater + equal  -> GTE
//	greater          -> GT
//	less + equal     -> LTE
//	less             -> LT
//	equal            -> EQ
//	range | between  -> RANGE
//
// Returns false when no keyword matches.
func ClassifyComparison(label string) (domain.Operator, bool) {
	s := strings.ToLower(label)

	greater := strings.Contains(s, "greater")
	less := strings.Contains(s, "less")
	equal := strings.Contains(s, "equal")

	switch {
	case greater && equal:
		return domain.OpGte, true
	case greater:
		return domain.OpGt, true
	case less && equal:
		return domain.OpLte, true
	case less:
		return domain.OpLt, true
	case equal:
		return domain.OpEq, true
	case strings.Contains(s, "range") || strings.Contains(s, "between"):
		return domain.OpRange, true
	}
	return "", false
}

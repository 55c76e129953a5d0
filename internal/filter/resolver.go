package filter

import (
	"strings"

	"github.com/collectline/dunlin/internal/domain"
)

// Resolver maps between UI-internal selection codes and backend-canonical
// display values for an enumerated TEXT field. Encode runs at compile time;
// Decode runs when a stored rule is loaded for edit, where the stored values
// may be stale relative to current master data.
type Resolver struct {
	options []domain.FieldOption
}

// NewResolver creates a resolver over a field's current option list.
func NewResolver(options []domain.FieldOption) *Resolver {
	return &Resolver{options: options}
}

// Encode maps each selection code to its canonical display value. Codes
// absent from the option list pass through unchanged (fail-open): a stale
// selection must not block submission.
func (r *Resolver) Encode(codes []string) []string {
	values := make([]string, len(codes))
	for i, code := range codes {
		values[i] = code
		for _, opt := range r.options {
			if strings.EqualFold(opt.Code, code) {
				values[i] = opt.Value
				break
			}
		}
	}
	return values
}

// Decode maps stored display values back to selection codes. Each value is
// resolved independently through the matcher strategies in order; the first
// hit wins. With no options loaded, or when nothing matches, the original
// value is returned verbatim.
func (r *Resolver) Decode(values []string) []string {
	codes := make([]string, len(values))
	for i, value := range values {
		codes[i] = r.decodeOne(value)
	}
	return codes
}

func (r *Resolver) decodeOne(value string) string {
	if len(r.options) == 0 {
		return value
	}
	for _, match := range matchers {
		if code, ok := match(r.options, value); ok {
			return code
		}
	}
	return value
}

// matcher is one decode strategy: given the option list and a stored value,
// it either resolves a selection code or declines.
type matcher func(options []domain.FieldOption, value string) (string, bool)

// matchers is the decode precedence. The order is the contract: exact code,
// exact display value, numeric exact, bidirectional substring.
var matchers = []matcher{
	matchExactCode,
	matchExactValue,
	matchNumericExact,
	matchSubstring,
}

func matchExactCode(options []domain.FieldOption, value string) (string, bool) {
	for _, opt := range options {
		if strings.EqualFold(opt.Code, value) {
			return opt.Code, true
		}
	}
	return "", false
}

func matchExactValue(options []domain.FieldOption, value string) (string, bool) {
	for _, opt := range options {
		if strings.EqualFold(opt.Value, value) {
			return opt.Code, true
		}
	}
	return "", false
}

// matchNumericExact applies only to purely numeric stored values, matching
// them exactly against either side of the option.
func matchNumericExact(options []domain.FieldOption, value string) (string, bool) {
	if !isNumeric(value) {
		return "", false
	}
	for _, opt := range options {
		if opt.Code == value || opt.Value == value {
			return opt.Code, true
		}
	}
	return "", false
}

func matchSubstring(options []domain.FieldOption, value string) (string, bool) {
	needle := strings.ToLower(value)
	for _, opt := range options {
		hay := strings.ToLower(opt.Value)
		if strings.Contains(hay, needle) || strings.Contains(needle, hay) {
			return opt.Code, true
		}
	}
	return "", false
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

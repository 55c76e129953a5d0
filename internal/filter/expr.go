package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/collectline/dunlin/internal/domain"
)

// Render converts normalized filter conditions into the CEL expression the
// dispatch engine evaluates against each case. An empty condition list
// renders to "true": the strategy matches every case.
func Render(conditions []domain.FilterCondition) string {
	if len(conditions) == 0 {
		return "true"
	}

	clauses := make([]string, 0, len(conditions))
	for _, c := range conditions {
		clauses = append(clauses, renderCondition(c))
	}
	return strings.Join(clauses, " && ")
}

func renderCondition(c domain.FilterCondition) string {
	switch c.FilterType {
	case domain.FilterText:
		return renderIn(c.Field, c.Values)
	case domain.FilterDate:
		return renderComparison(c, dateLiteral)
	default:
		return renderComparison(c, numericLiteral)
	}
}

func renderComparison(c domain.FilterCondition, literal func(string) string) string {
	switch c.Operator {
	case domain.OpEq:
		return fmt.Sprintf("%s == %s", c.Field, literal(c.Value1))
	case domain.OpGt:
		return fmt.Sprintf("%s > %s", c.Field, literal(c.Value1))
	case domain.OpGte:
		return fmt.Sprintf("%s >= %s", c.Field, literal(c.Value1))
	case domain.OpLt:
		return fmt.Sprintf("%s < %s", c.Field, literal(c.Value1))
	case domain.OpLte:
		return fmt.Sprintf("%s <= %s", c.Field, literal(c.Value1))
	case domain.OpRange:
		return fmt.Sprintf("(%s >= %s && %s <= %s)",
			c.Field, literal(c.Value1), c.Field, literal(c.Value2))
	default:
		return "true"
	}
}

func renderIn(field string, values []string) string {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		quoted = append(quoted, strconv.Quote(v))
	}
	return fmt.Sprintf("%s in [%s]", field, strings.Join(quoted, ", "))
}

// numericLiteral ensures the operand parses as a CEL double. Case fields are
// declared double-typed, and CEL does not coerce int literals to double.
func numericLiteral(v string) string {
	if strings.ContainsAny(v, ".eE") {
		return v
	}
	return v + ".0"
}

// dateLiteral renders a date operand as a CEL timestamp. Bare dates get a
// midnight UTC time component.
func dateLiteral(v string) string {
	if len(v) == 10 {
		v += "T00:00:00Z"
	}
	return fmt.Sprintf("timestamp(%q)", v)
}

// Validator compiles rendered expressions against the case schema to catch
// rendering defects before a strategy is persisted.
type Validator struct {
	env *cel.Env
}

// NewValidator builds the CEL environment from the field definition table.
func NewValidator() (*Validator, error) {
	opts := make([]cel.EnvOption, 0, len(fieldDefs))
	for _, def := range fieldDefs {
		switch def.Type {
		case domain.FilterNumeric:
			opts = append(opts, cel.Variable(def.ID, cel.DoubleType))
		case domain.FilterDate:
			opts = append(opts, cel.Variable(def.ID, cel.TimestampType))
		default:
			opts = append(opts, cel.Variable(def.ID, cel.StringType))
		}
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Validator{env: env}, nil
}

// Validate compiles the expression and requires a boolean result type.
func (v *Validator) Validate(expression string) error {
	ast, issues := v.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("failed to compile expression: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("expression must return bool, got %s", ast.OutputType())
	}
	return nil
}

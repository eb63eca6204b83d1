// Package models provides guard expression evaluation for sequence flows.
package models

import (
	"fmt"
	"strconv"
	"strings"
)

// GuardInterpreter evaluates edge guard expressions against an execution's
// variable bag. The language is deliberately small: boolean literals, bare
// variable references, negation, and a single binary comparison of the form
// "left OP right" where OP is one of == != <= >= < >.
type GuardInterpreter struct{}

var comparisonOperators = []string{"==", "!=", "<=", ">=", "<", ">"}

// Evaluate returns the truth value of the expression. An empty expression
// is true, keeping unguarded edges always traversable.
func (g GuardInterpreter) Evaluate(expression string, variables map[string]any) (bool, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return true, nil
	}

	if negated, ok := strings.CutPrefix(expression, "!"); ok {
		result, err := g.Evaluate(negated, variables)
		if err != nil {
			return false, err
		}

		return !result, nil
	}

	for _, op := range comparisonOperators {
		left, right, found := strings.Cut(expression, op)
		if !found {
			continue
		}

		return g.compare(strings.TrimSpace(left), op, strings.TrimSpace(right), variables)
	}

	return g.truthy(g.resolve(expression, variables))
}

func (g GuardInterpreter) compare(left, op, right string, variables map[string]any) (bool, error) {
	leftValue := g.resolve(left, variables)
	rightValue := g.resolve(right, variables)

	leftNum, leftIsNum := toFloat(leftValue)
	rightNum, rightIsNum := toFloat(rightValue)

	if leftIsNum && rightIsNum {
		switch op {
		case "==":
			return leftNum == rightNum, nil
		case "!=":
			return leftNum != rightNum, nil
		case "<":
			return leftNum < rightNum, nil
		case "<=":
			return leftNum <= rightNum, nil
		case ">":
			return leftNum > rightNum, nil
		case ">=":
			return leftNum >= rightNum, nil
		}
	}

	leftStr := fmt.Sprintf("%v", leftValue)
	rightStr := fmt.Sprintf("%v", rightValue)

	switch op {
	case "==":
		return leftStr == rightStr, nil
	case "!=":
		return leftStr != rightStr, nil
	default:
		return false, fmt.Errorf("operator %q requires numeric operands, got %T and %T", op, leftValue, rightValue)
	}
}

// resolve maps an operand to its value: a quoted string stays literal, a
// parseable literal becomes typed, anything else is looked up in the bag.
// Boolean literals are exactly "true" and "false"; anything ParseBool would
// additionally accept ("1", "t", ...) must stay numeric or a variable name.
func (g GuardInterpreter) resolve(operand string, variables map[string]any) any {
	if len(operand) >= 2 && operand[0] == '"' && operand[len(operand)-1] == '"' {
		return operand[1 : len(operand)-1]
	}

	switch operand {
	case "true":
		return true
	case "false":
		return false
	}

	if f, err := strconv.ParseFloat(operand, 64); err == nil {
		return f
	}

	if value, ok := variables[operand]; ok {
		return value
	}

	return nil
}

func (g GuardInterpreter) truthy(value any) (bool, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		return v != "", nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	default:
		return false, fmt.Errorf("cannot convert %T to boolean", value)
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case float32:
		return float64(v), true
	default:
		return 0, false
	}
}

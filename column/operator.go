package column

import (
	"fmt"
	"strings"
)

// Operator is a comparison a column can evaluate against a constant.
type Operator uint8

const (
	// Equal matches values equal to the operand.
	Equal Operator = iota
	// NotEqual matches values different from the operand.
	NotEqual
	// LessThan matches values ordered before the operand.
	LessThan
	// LessOrEqual matches values ordered before or equal to the operand.
	LessOrEqual
	// GreaterThan matches values ordered after the operand.
	GreaterThan
	// GreaterOrEqual matches values ordered after or equal to the operand.
	GreaterOrEqual
	// StartsWith matches values whose text starts with the operand text,
	// case-insensitively.
	StartsWith
	// Contains matches values whose text contains the operand text,
	// case-insensitively.
	Contains
)

var operatorNames = [...]string{
	Equal:          "=",
	NotEqual:       "!=",
	LessThan:       "<",
	LessOrEqual:    "<=",
	GreaterThan:    ">",
	GreaterOrEqual: ">=",
	StartsWith:     "startswith",
	Contains:       "contains",
}

func (o Operator) String() string {
	if int(o) < len(operatorNames) {
		return operatorNames[o]
	}
	return fmt.Sprintf("operator(%d)", uint8(o))
}

// ParseOperator parses an operator as printed by String.
func ParseOperator(s string) (Operator, error) {
	for op, name := range operatorNames {
		if strings.EqualFold(name, s) {
			return Operator(op), nil
		}
	}
	switch s {
	case "==":
		return Equal, nil
	case "<>":
		return NotEqual, nil
	}
	return Equal, fmt.Errorf("unknown operator %q", s)
}

// textual reports whether o compares canonical text instead of typed values.
func (o Operator) textual() bool {
	return o == StartsWith || o == Contains
}

// matchOrder reports whether a comparison result satisfies o.
func (o Operator) matchOrder(cmp int) bool {
	switch o {
	case Equal:
		return cmp == 0
	case NotEqual:
		return cmp != 0
	case LessThan:
		return cmp < 0
	case LessOrEqual:
		return cmp <= 0
	case GreaterThan:
		return cmp > 0
	case GreaterOrEqual:
		return cmp >= 0
	default:
		return false
	}
}

func (o Operator) matchText(text, operand string) bool {
	text, operand = strings.ToLower(text), strings.ToLower(operand)
	switch o {
	case StartsWith:
		return strings.HasPrefix(text, operand)
	case Contains:
		return strings.Contains(text, operand)
	default:
		return false
	}
}

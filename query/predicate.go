package query

import (
	"fmt"
	"strings"

	"github.com/hupe1980/arriba/column"
	"github.com/hupe1980/arriba/execution"
	"github.com/hupe1980/arriba/partition"
	"github.com/hupe1980/arriba/shortset"
	"github.com/hupe1980/arriba/value"
)

// Predicate selects rows within a partition. Every predicate in this
// package also implements fmt.Stringer; the string form is used as part of
// query cache keys.
type Predicate = partition.Predicate

type allPredicate struct{}

// All matches every row.
func All() Predicate { return allPredicate{} }

func (allPredicate) Evaluate(_ *partition.Partition, result *shortset.ShortSet, _ *execution.Details) {
	all := shortset.New(result.Capacity())
	all.Not()
	result.Or(all)
}

func (allPredicate) String() string { return "*" }

type nonePredicate struct{}

// None matches no row.
func None() Predicate { return nonePredicate{} }

func (nonePredicate) Evaluate(*partition.Partition, *shortset.ShortSet, *execution.Details) {}

func (nonePredicate) String() string { return "NONE" }

// Term compares one column against a constant.
type Term struct {
	Column string
	Op     column.Operator
	Value  value.Value
}

// NewTerm builds a Term from a Go operand. It panics on operands value.Of
// does not support.
func NewTerm(columnName string, op column.Operator, operand any) Term {
	return Term{Column: columnName, Op: op, Value: value.MustOf(operand)}
}

// Equal is shorthand for NewTerm(columnName, column.Equal, operand).
func Equal(columnName string, operand any) Term {
	return NewTerm(columnName, column.Equal, operand)
}

// Evaluate implements Predicate. Unknown columns are reported on details
// and match nothing.
func (t Term) Evaluate(p *partition.Partition, result *shortset.ShortSet, details *execution.Details) {
	c, ok := p.Column(t.Column)
	if !ok {
		details.AddError("unknown column %q", t.Column)
		return
	}
	c.Where(t.Op, t.Value, result, details)
}

func (t Term) String() string {
	return fmt.Sprintf("[%s] %s %q", t.Column, t.Op, t.Value.Text())
}

type andPredicate []Predicate

// And matches rows matched by every child. And() matches every row.
func And(children ...Predicate) Predicate {
	if len(children) == 0 {
		return All()
	}
	if len(children) == 1 {
		return children[0]
	}
	return andPredicate(children)
}

func (a andPredicate) Evaluate(p *partition.Partition, result *shortset.ShortSet, details *execution.Details) {
	acc := shortset.New(result.Capacity())
	a[0].Evaluate(p, acc, details)
	for _, child := range a[1:] {
		if acc.IsEmpty() {
			return
		}
		next := shortset.New(result.Capacity())
		child.Evaluate(p, next, details)
		acc.And(next)
	}
	result.Or(acc)
}

func (a andPredicate) String() string { return join(a, " AND ") }

type orPredicate []Predicate

// Or matches rows matched by any child. Or() matches nothing.
func Or(children ...Predicate) Predicate {
	if len(children) == 0 {
		return None()
	}
	if len(children) == 1 {
		return children[0]
	}
	return orPredicate(children)
}

func (o orPredicate) Evaluate(p *partition.Partition, result *shortset.ShortSet, details *execution.Details) {
	for _, child := range o {
		child.Evaluate(p, result, details)
	}
}

func (o orPredicate) String() string { return join(o, " OR ") }

type notPredicate struct{ child Predicate }

// Not matches rows the child does not match.
func Not(child Predicate) Predicate { return notPredicate{child: child} }

func (n notPredicate) Evaluate(p *partition.Partition, result *shortset.ShortSet, details *execution.Details) {
	inner := shortset.New(result.Capacity())
	n.child.Evaluate(p, inner, details)
	inner.Not()
	result.Or(inner)
}

func (n notPredicate) String() string { return "NOT " + describe(n.child) }

// In matches rows whose column equals any of values.
func In(columnName string, values ...any) Predicate {
	terms := make([]Predicate, len(values))
	for i, v := range values {
		terms[i] = Equal(columnName, v)
	}
	return Or(terms...)
}

type deniedPredicate struct{ columns []string }

func (d deniedPredicate) Evaluate(_ *partition.Partition, _ *shortset.ShortSet, details *execution.Details) {
	for _, c := range d.columns {
		details.AddDeniedColumn(c)
	}
}

func (d deniedPredicate) String() string {
	return "DENIED(" + strings.Join(d.columns, ",") + ")"
}

// Deny rewrites pred so that terms on any of the given columns match
// nothing and report the column as access denied. A negation over a denied
// term is denied as a whole, so restricted columns cannot be probed through
// Not.
func Deny(pred Predicate, columns ...string) Predicate {
	rewritten, _ := deny(pred, columns)
	return rewritten
}

func deny(pred Predicate, columns []string) (Predicate, []string) {
	switch p := pred.(type) {
	case Term:
		if isDenied(p.Column, columns) {
			return deniedPredicate{columns: []string{p.Column}}, []string{p.Column}
		}
		return p, nil
	case andPredicate:
		out, denied := denyAll(p, columns)
		return andPredicate(out), denied
	case orPredicate:
		out, denied := denyAll(p, columns)
		return orPredicate(out), denied
	case notPredicate:
		child, denied := deny(p.child, columns)
		if len(denied) > 0 {
			return deniedPredicate{columns: denied}, denied
		}
		return notPredicate{child: child}, nil
	default:
		return pred, nil
	}
}

func denyAll(children []Predicate, columns []string) ([]Predicate, []string) {
	out := make([]Predicate, len(children))
	var denied []string
	for i, child := range children {
		var d []string
		out[i], d = deny(child, columns)
		denied = append(denied, d...)
	}
	return out, denied
}

func isDenied(name string, columns []string) bool {
	for _, c := range columns {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

func describe(p Predicate) string {
	if s, ok := p.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", p)
}

func join(children []Predicate, sep string) string {
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = describe(c)
	}
	return "(" + strings.Join(parts, sep) + ")"
}

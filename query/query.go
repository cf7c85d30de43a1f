// Package query builds filter expressions in the Octane query syntax.
//
// Expressions are immutable trees assembled through a fluent chain and
// rendered with Build:
//
//	q, err := query.Field("severity").Equal("high").
//		AndField("owner").NotEqual(query.Null).
//		Build()
//	// severity EQ ^high^;!owner EQ null
package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type operator int

const (
	opCompare operator = iota
	opAnd
	opOr
	opNot
	opGroup
)

type comparator string

const (
	cmpEqual        comparator = "EQ"
	cmpLess         comparator = "LT"
	cmpGreater      comparator = "GT"
	cmpLessEqual    comparator = "LE"
	cmpGreaterEqual comparator = "GE"
	cmpBetween      comparator = "BTW"
	cmpIn           comparator = "IN"
)

type sentinel int

// Null compares a field against the null value; NullReference compares a
// reference field against the null reference. `Field("owner").Equal(Null)`
// renders as `owner EQ null`, with NullReference as `owner EQ {null}`.
const (
	Null sentinel = iota
	NullReference
)

// Query is an immutable filter expression node.
type Query struct {
	op     operator
	cmp    comparator
	field  string
	values []any
	left   *Query
	right  *Query
	child  *Query
}

// Condition is a comparator chain started by Field, AndField, or OrField.
// It holds the field name (and, for the delayed combinator forms, the
// left-hand query awaiting its right operand) until a comparator completes
// the expression.
type Condition struct {
	field   string
	combine operator // opAnd or opOr when resuming a delayed combinator
	left    *Query
}

// Field starts a comparator chain for the named field.
func Field(name string) *Condition {
	return &Condition{field: name}
}

// AndField continues the expression with `q AND <field> <cmp> <value>`,
// deferring the combination until a comparator supplies the right operand.
func (q *Query) AndField(name string) *Condition {
	return &Condition{field: name, combine: opAnd, left: q}
}

// OrField continues the expression with `q OR <field> <cmp> <value>`.
func (q *Query) OrField(name string) *Condition {
	return &Condition{field: name, combine: opOr, left: q}
}

func (c *Condition) complete(cmp comparator, negated bool, values ...any) *Query {
	node := &Query{op: opCompare, cmp: cmp, field: c.field, values: values}
	if negated {
		node = &Query{op: opNot, child: node}
	}
	switch c.combine {
	case opAnd:
		return &Query{op: opAnd, left: c.left, right: node}
	case opOr:
		return &Query{op: opOr, left: c.left, right: node}
	default:
		return node
	}
}

func (c *Condition) Equal(value any) *Query           { return c.complete(cmpEqual, false, value) }
func (c *Condition) NotEqual(value any) *Query        { return c.complete(cmpEqual, true, value) }
func (c *Condition) Less(value any) *Query            { return c.complete(cmpLess, false, value) }
func (c *Condition) NotLess(value any) *Query         { return c.complete(cmpLess, true, value) }
func (c *Condition) Greater(value any) *Query         { return c.complete(cmpGreater, false, value) }
func (c *Condition) NotGreater(value any) *Query      { return c.complete(cmpGreater, true, value) }
func (c *Condition) LessEqual(value any) *Query       { return c.complete(cmpLessEqual, false, value) }
func (c *Condition) NotLessEqual(value any) *Query    { return c.complete(cmpLessEqual, true, value) }
func (c *Condition) GreaterEqual(value any) *Query    { return c.complete(cmpGreaterEqual, false, value) }
func (c *Condition) NotGreaterEqual(value any) *Query { return c.complete(cmpGreaterEqual, true, value) }

// Between matches values in the inclusive range [lo, hi]. Both bounds must
// be numbers or both must be times.
func (c *Condition) Between(lo, hi any) *Query {
	return c.complete(cmpBetween, false, lo, hi)
}

// In matches any of the given values.
func (c *Condition) In(values ...any) *Query {
	return c.complete(cmpIn, false, values...)
}

// And combines two complete queries as `q;other`.
func (q *Query) And(other *Query) *Query {
	return &Query{op: opAnd, left: q, right: other}
}

// Or combines two complete queries as `q||other`.
func (q *Query) Or(other *Query) *Query {
	return &Query{op: opOr, left: q, right: other}
}

// Group wraps the query in parentheses.
func (q *Query) Group() *Query {
	return &Query{op: opGroup, child: q}
}

// Not negates the query.
func (q *Query) Not() *Query {
	return &Query{op: opNot, child: q}
}

// Build renders the expression to the Octane query string. The same tree
// always renders to the same string. Operand values outside the supported
// set (numbers, booleans, strings, time.Time, *Query, Null sentinels)
// surface as errors here.
func (q *Query) Build() (string, error) {
	if q == nil {
		return "", fmt.Errorf("query: build on nil query")
	}
	var b strings.Builder
	if err := q.render(&b); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (q *Query) render(b *strings.Builder) error {
	switch q.op {
	case opCompare:
		return q.renderCompare(b)
	case opAnd:
		if err := q.left.render(b); err != nil {
			return err
		}
		b.WriteString(";")
		return q.right.render(b)
	case opOr:
		if err := q.left.render(b); err != nil {
			return err
		}
		b.WriteString("||")
		return q.right.render(b)
	case opNot:
		b.WriteString("!")
		return q.child.render(b)
	case opGroup:
		b.WriteString("(")
		if err := q.child.render(b); err != nil {
			return err
		}
		b.WriteString(")")
		return nil
	default:
		return fmt.Errorf("query: unknown operator %d", q.op)
	}
}

func (q *Query) renderCompare(b *strings.Builder) error {
	switch q.cmp {
	case cmpBetween:
		lo, hi := q.values[0], q.values[1]
		if !sameRangeKind(lo, hi) {
			return fmt.Errorf("query: between bounds for %s must both be numbers or both be dates", q.field)
		}
		loStr, err := renderValue(lo)
		if err != nil {
			return fmt.Errorf("query: field %s: %w", q.field, err)
		}
		hiStr, err := renderValue(hi)
		if err != nil {
			return fmt.Errorf("query: field %s: %w", q.field, err)
		}
		fmt.Fprintf(b, "%s BTW %s...%s", q.field, loStr, hiStr)
		return nil
	case cmpIn:
		parts := make([]string, 0, len(q.values))
		for _, v := range q.values {
			s, err := renderValue(v)
			if err != nil {
				return fmt.Errorf("query: field %s: %w", q.field, err)
			}
			parts = append(parts, s)
		}
		fmt.Fprintf(b, "%s IN %s", q.field, strings.Join(parts, ","))
		return nil
	default:
		s, err := renderValue(q.values[0])
		if err != nil {
			return fmt.Errorf("query: field %s: %w", q.field, err)
		}
		fmt.Fprintf(b, "%s %s %s", q.field, q.cmp, s)
		return nil
	}
}

func renderValue(v any) (string, error) {
	switch val := v.(type) {
	case sentinel:
		if val == NullReference {
			return "{null}", nil
		}
		return "null", nil
	case string:
		return "^" + val + "^", nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int32:
		return strconv.FormatInt(int64(val), 10), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case time.Time:
		return "^" + val.UTC().Format(time.RFC3339) + "^", nil
	case *Query:
		built, err := val.Build()
		if err != nil {
			return "", err
		}
		return "{" + built + "}", nil
	default:
		return "", fmt.Errorf("unsupported operand type %T", v)
	}
}

func sameRangeKind(lo, hi any) bool {
	return isNumber(lo) && isNumber(hi) || isTime(lo) && isTime(hi)
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return true
	}
	return false
}

func isTime(v any) bool {
	_, ok := v.(time.Time)
	return ok
}

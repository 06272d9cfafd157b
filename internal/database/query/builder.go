// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package query

import "strings"

// Cond is one predicate of a WHERE clause. A zero Cond (empty SQL) is
// dropped by Where, which lets optional filters return "nothing" without
// branching at the call site.
type Cond struct {
	SQL  string
	Args []any
}

// Raw wraps a literal predicate. sql must be trusted text.
func Raw(sql string, args ...any) Cond {
	return Cond{SQL: sql, Args: args}
}

// In matches column against any of values. No values means no predicate.
// column is trusted SQL and must never come from user input.
func In(column string, values []string) Cond {
	if len(values) == 0 {
		return Cond{}
	}
	var b strings.Builder
	b.WriteString(column)
	b.WriteString(" IN (")
	args := make([]any, len(values))
	for i, v := range values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('?')
		args[i] = v
	}
	b.WriteByte(')')
	return Cond{SQL: b.String(), Args: args}
}

// AtLeast matches column >= *min. A nil min means no predicate.
func AtLeast(column string, min *float64) Cond {
	if min == nil {
		return Cond{}
	}
	return Cond{SQL: column + " >= ?", Args: []any{*min}}
}

// Clause is a conjunction of conditions.
type Clause []Cond

// Where collects the non-empty conditions, keeping their order.
//
//	where, args := query.Where(
//		query.In("customer_id", customers),
//		query.Raw("NOT refund_flag"),
//	).SQL()
//	// WHERE customer_id IN (?, ?) AND NOT refund_flag
func Where(conds ...Cond) Clause {
	out := make(Clause, 0, len(conds))
	for _, c := range conds {
		if c.SQL != "" {
			out = append(out, c)
		}
	}
	return out
}

// Len returns the number of conditions kept.
func (c Clause) Len() int { return len(c) }

// Expr joins the conditions with AND. An empty clause is "1=1" so callers
// can always splice it after WHERE.
func (c Clause) Expr() (string, []any) {
	if len(c) == 0 {
		return "1=1", []any{}
	}
	parts := make([]string, len(c))
	args := []any{}
	for i, cond := range c {
		parts[i] = cond.SQL
		args = append(args, cond.Args...)
	}
	return strings.Join(parts, " AND "), args
}

// SQL is Expr with a leading "WHERE ".
func (c Clause) SQL() (string, []any) {
	expr, args := c.Expr()
	return "WHERE " + expr, args
}

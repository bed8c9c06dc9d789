// Package query compiles an HTTP-style parameter bag into a structured
// query plan: a conjunctive condition tree, a priority-ordered sort list,
// and offset or cursor pagination.
package query

import (
	"fmt"

	"github.com/forgecms/forge/internal/model"
)

// Operator is a filter comparison operator
type Operator int

const (
	OpEq Operator = iota
	OpNe
	OpGt
	OpGte
	OpLt
	OpLte
	OpContains
	OpStartsWith
	OpEndsWith
	OpIn
	OpNotIn
)

// String returns the parameter syntax for the operator
func (op Operator) String() string {
	switch op {
	case OpEq:
		return "$eq"
	case OpNe:
		return "$ne"
	case OpGt:
		return "$gt"
	case OpGte:
		return "$gte"
	case OpLt:
		return "$lt"
	case OpLte:
		return "$lte"
	case OpContains:
		return "$contains"
	case OpStartsWith:
		return "$startsWith"
	case OpEndsWith:
		return "$endsWith"
	case OpIn:
		return "$in"
	case OpNotIn:
		return "$notIn"
	default:
		return "unknown"
	}
}

// ParseOperator converts a $-prefixed operator token
func ParseOperator(s string) (Operator, error) {
	switch s {
	case "$eq":
		return OpEq, nil
	case "$ne":
		return OpNe, nil
	case "$gt":
		return OpGt, nil
	case "$gte":
		return OpGte, nil
	case "$lt":
		return OpLt, nil
	case "$lte":
		return OpLte, nil
	case "$contains":
		return OpContains, nil
	case "$startsWith":
		return OpStartsWith, nil
	case "$endsWith":
		return OpEndsWith, nil
	case "$in":
		return OpIn, nil
	case "$notIn":
		return OpNotIn, nil
	default:
		return 0, fmt.Errorf("unknown filter operator: %s", s)
	}
}

// Condition is one comparison in the conjunctive where tree. Path is
// non-empty for dotted field access into JSON columns; Values is set for
// $in/$notIn, Value for everything else.
type Condition struct {
	Field  string
	Path   []string
	Op     Operator
	Value  model.Value
	Values []model.Value
}

// Order is one entry in the priority-ordered sort list
type Order struct {
	Field string
	Desc  bool
}

// Mode selects the pagination strategy
type Mode int

const (
	// CursorMode paginates by an opaque cursor derived from the last
	// returned record's id. The default.
	CursorMode Mode = iota
	// OffsetMode paginates by page number, selected by the presence of
	// the page parameter.
	OffsetMode
)

// Plan is the compiled query handed to the execution adapter
type Plan struct {
	Model   string
	Where   []Condition
	OrderBy []Order

	Mode  Mode
	Limit int
	Page  int
	Skip  int
	Take  int

	// CursorID is the decoded cursor position; nil on the first page
	CursorID *int64
}

// ReferencesField reports whether any condition targets the named field,
// used to decide whether implicit visibility filters apply.
func (p *Plan) ReferencesField(name string) bool {
	for i := range p.Where {
		if p.Where[i].Field == name {
			return true
		}
	}
	return false
}

// AddCondition appends a condition conjunctively; user-supplied filters
// are never dropped by system-injected ones.
func (p *Plan) AddCondition(c Condition) {
	p.Where = append(p.Where, c)
}

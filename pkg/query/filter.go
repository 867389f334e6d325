// Package query holds the filter expressions handed to the record store.
//
// A Filter is a small expression tree over string fields. The same tree can be
// rendered three ways: as the JSON filter object understood by a managed list
// API ({"hierarchyString":{"beginsWith":"ITW>"}}), as a SQL WHERE clause for the
// Postgres store, and as an in-memory predicate for records already fetched.
package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Operator is a leaf comparison
type Operator string

const (
	OpEq         Operator = "eq"
	OpBeginsWith Operator = "beginsWith"
	OpIn         Operator = "in"
)

// ErrUnsatisfiable is returned when rendering a filter that matches nothing
// for a backend that has no way to express it
var ErrUnsatisfiable = errors.New("filter matches no records")

// Fielder exposes string fields for in-memory matching
type Fielder interface {
	FieldValue(field string) (string, bool)
}

// Filter is an expression tree. The zero value matches everything.
type Filter struct {
	Field  string
	Op     Operator
	Value  string
	Values []string
	And    []Filter
	Or     []Filter

	none bool
}

// Eq matches field == value
func Eq(field, value string) Filter {
	return Filter{Field: field, Op: OpEq, Value: value}
}

// BeginsWith matches fields starting with value
func BeginsWith(field, value string) Filter {
	return Filter{Field: field, Op: OpBeginsWith, Value: value}
}

// In matches field equal to any of values. An empty list matches nothing.
func In(field string, values ...string) Filter {
	if len(values) == 0 {
		return None()
	}
	v := make([]string, len(values))
	copy(v, values)
	return Filter{Field: field, Op: OpIn, Values: v}
}

// None matches no record
func None() Filter {
	return Filter{none: true}
}

// All matches every record
func All() Filter {
	return Filter{}
}

// And combines filters with logical AND. Empty filters are dropped.
func And(filters ...Filter) Filter {
	kept := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if f.none {
			return None()
		}
		if f.IsEmpty() {
			continue
		}
		kept = append(kept, f)
	}
	switch len(kept) {
	case 0:
		return All()
	case 1:
		return kept[0]
	default:
		return Filter{And: kept}
	}
}

// Or combines filters with logical OR. None filters are dropped; any empty
// filter makes the whole disjunction match everything.
func Or(filters ...Filter) Filter {
	kept := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if f.none {
			continue
		}
		if f.IsEmpty() {
			return All()
		}
		kept = append(kept, f)
	}
	switch len(kept) {
	case 0:
		return None()
	case 1:
		return kept[0]
	default:
		return Filter{Or: kept}
	}
}

// IsEmpty reports whether the filter places no restriction
func (f Filter) IsEmpty() bool {
	return !f.none && f.Field == "" && len(f.And) == 0 && len(f.Or) == 0
}

// IsNone reports whether the filter can never match
func (f Filter) IsNone() bool {
	return f.none
}

// Matches evaluates the filter against a record in memory
func (f Filter) Matches(r Fielder) bool {
	switch {
	case f.none:
		return false
	case len(f.And) > 0:
		for _, sub := range f.And {
			if !sub.Matches(r) {
				return false
			}
		}
		return true
	case len(f.Or) > 0:
		for _, sub := range f.Or {
			if sub.Matches(r) {
				return true
			}
		}
		return false
	case f.Field == "":
		return true
	}

	if r == nil {
		return false
	}
	value, ok := r.FieldValue(f.Field)
	if !ok {
		return false
	}

	switch f.Op {
	case OpEq:
		return value == f.Value
	case OpBeginsWith:
		return strings.HasPrefix(value, f.Value)
	case OpIn:
		for _, v := range f.Values {
			if value == v {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// MarshalJSON renders the managed-API filter object
func (f Filter) MarshalJSON() ([]byte, error) {
	obj, err := f.object()
	if err != nil {
		return nil, err
	}
	return json.Marshal(obj)
}

func (f Filter) object() (map[string]interface{}, error) {
	switch {
	case f.none:
		return nil, ErrUnsatisfiable
	case len(f.And) > 0:
		return group("and", f.And)
	case len(f.Or) > 0:
		return group("or", f.Or)
	case f.Field == "":
		return map[string]interface{}{}, nil
	}

	switch f.Op {
	case OpEq, OpBeginsWith:
		return map[string]interface{}{
			f.Field: map[string]string{string(f.Op): f.Value},
		}, nil
	case OpIn:
		// The list API has no "in"; expand to a disjunction of eq.
		eqs := make([]Filter, len(f.Values))
		for i, v := range f.Values {
			eqs[i] = Eq(f.Field, v)
		}
		return group("or", eqs)
	default:
		return nil, fmt.Errorf("unsupported operator %q", f.Op)
	}
}

func group(key string, filters []Filter) (map[string]interface{}, error) {
	items := make([]map[string]interface{}, 0, len(filters))
	for _, sub := range filters {
		obj, err := sub.object()
		if err != nil {
			return nil, err
		}
		items = append(items, obj)
	}
	return map[string]interface{}{key: items}, nil
}

package rbac

import (
	"github.com/platinummonkey/sims/pkg/hierarchy"
	"github.com/platinummonkey/sims/pkg/query"
	"github.com/platinummonkey/sims/pkg/records"
)

// BuildHierarchyFilter returns the store filter matching the records the
// user's scope covers:
//
//	ENTERPRISE                 no restriction
//	SEGMENT/PLATFORM/DIVISION  hierarchyString equal to the path or beginning with "path>"
//	PLANT                      hierarchyString equal to the path
//	unknown scope              hierarchyString eq the raw user string
//
// Equality accepts the path with or without its trailing delimiter, so the
// filter selects exactly what CheckHierarchyAccess admits. A nil user, or a
// scoped user without a path, gets a filter matching nothing.
func BuildHierarchyFilter(user *UserAccess) query.Filter {
	if user == nil {
		return query.None()
	}
	field := records.FieldHierarchyString

	switch {
	case user.Scope == hierarchy.ScopeEnterprise:
		return query.All()
	case user.Scope.IsPrefixScope():
		p := user.Path()
		if p.IsZero() {
			return query.None()
		}
		return query.Or(
			query.In(field, p.Encodings()...),
			query.BeginsWith(field, p.Prefix()),
		)
	case user.Scope == hierarchy.ScopePlant:
		p := user.Path()
		if p.IsZero() {
			return query.None()
		}
		return query.In(field, p.Encodings()...)
	default:
		return query.Eq(field, user.HierarchyString)
	}
}

// ScopedFilter ANDs the hierarchy filter with a business filter
func ScopedFilter(user *UserAccess, business query.Filter) query.Filter {
	return query.And(BuildHierarchyFilter(user), business)
}

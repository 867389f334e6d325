// Package rbac implements hierarchy-scoped access control for SIMS.
//
// # Overview
//
// Every user holds one or more role assignments. Each assignment names a
// role title, a numeric level and a position in the five-level organization
// tree (Enterprise, Segment, Platform, Division, Plant). The role title maps
// to a bundle of boolean permission flags stored separately from the user.
//
// The primary assignment is the active row with the lowest level, i.e. the
// highest authority. Its level fixes the access scope:
//
//	1 ENTERPRISE  every record
//	2 SEGMENT     records under the user's path
//	3 PLATFORM    records under the user's path
//	4 DIVISION    records under the user's path
//	5 PLANT       records at exactly the user's path
//
// Paths are compared token by token (see package hierarchy), so a user at
// "ITW>Division1>" never sees records of "ITW>Division10>".
//
// # Components
//
// UserAccess is the resolved per-user record. Resolver builds it from a
// Store with a short-lived memo:
//
//	resolver := rbac.NewResolver(store, rbac.ResolverConfig{TTL: time.Minute})
//	access, err := resolver.Resolve(ctx, "alice@example.com")
//	if errors.Is(err, rbac.ErrNoActiveRole) {
//		// no access
//	}
//
// The evaluator functions are pure and never fail; a nil user is denied:
//
//	rbac.HasPermission(access, rbac.PermViewPII)
//	rbac.CheckHierarchyAccess(record, access)
//	rbac.CanEditRecord(record, access)
//	visible := rbac.ApplyDataLevelSecurity(records, access)
//
// BuildHierarchyFilter turns the same rules into a query.Filter for the
// record store. Callers AND it with their business filter:
//
//	f := query.And(rbac.BuildHierarchyFilter(access), query.In("status", "Open", "Draft"))
//
// # HTTP
//
// AccessMiddleware resolves the signed-in principal into a UserAccess and
// stores it in the request context. RequirePermission gates a route on a
// single flag. Handlers exposes /api/v1/access/me, /api/v1/access/check and
// /api/v1/access/invalidate.
package rbac

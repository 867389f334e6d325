package rbac

import (
	"github.com/platinummonkey/sims/pkg/hierarchy"
	"github.com/platinummonkey/sims/pkg/records"
)

// Record is anything owned by a location in the hierarchy
type Record interface {
	GetHierarchyString() string
	GetStatus() string
}

// HasPermission reports whether the user's bundle grants p
func HasPermission(user *UserAccess, p Permission) bool {
	if user == nil {
		return false
	}
	return user.Permissions.Has(p)
}

// HasPermissionNamed looks a flag up by its stored name; unknown names are false
func HasPermissionNamed(user *UserAccess, name string) bool {
	return HasPermission(user, Permission(name))
}

// CheckHierarchyString decides whether a record owned by target falls
// inside the user's scope. Paths compare token by token, so a PLANT user
// matches its own plant with or without a trailing delimiter.
func CheckHierarchyString(user *UserAccess, target string) bool {
	if user == nil {
		return false
	}
	switch {
	case user.Scope == hierarchy.ScopeEnterprise:
		return true
	case user.Scope.IsPrefixScope():
		scope := user.Path()
		if scope.IsZero() {
			return false
		}
		return scope.Covers(hierarchy.Parse(target))
	case user.Scope == hierarchy.ScopePlant:
		scope := user.Path()
		if scope.IsZero() {
			return false
		}
		return scope.Equal(hierarchy.Parse(target))
	default:
		return false
	}
}

// CheckHierarchyAccess applies CheckHierarchyString to a record
func CheckHierarchyAccess(record Record, user *UserAccess) bool {
	if record == nil {
		return false
	}
	return CheckHierarchyString(user, record.GetHierarchyString())
}

// CanViewRecord requires canViewOpenClosedReports and hierarchy access
func CanViewRecord(record Record, user *UserAccess) bool {
	return HasPermission(user, PermViewOpenClosedReports) && CheckHierarchyAccess(record, user)
}

// CanEditRecord requires canTakeFirstReportActions and hierarchy access.
// Completed and closed records are never editable; rejected records also
// need the approval flag.
func CanEditRecord(record Record, user *UserAccess) bool {
	if !HasPermission(user, PermTakeFirstReportActions) || !CheckHierarchyAccess(record, user) {
		return false
	}
	switch record.GetStatus() {
	case records.StatusCompleted, records.StatusClose:
		return false
	case records.StatusRejected:
		return HasPermission(user, PermPerformApprovalIncidentClosure)
	default:
		return true
	}
}

// CanDeleteRecord allows enterprise users with canTakeFirstReportActions to
// delete drafts
func CanDeleteRecord(record Record, user *UserAccess) bool {
	if !HasPermission(user, PermTakeFirstReportActions) || !CheckHierarchyAccess(record, user) {
		return false
	}
	return user.Scope == hierarchy.ScopeEnterprise && record.GetStatus() == records.StatusDraft
}

// CanApproveRecord requires the approval flag, hierarchy access and a
// record waiting in Pending Review
func CanApproveRecord(record Record, user *UserAccess) bool {
	if !HasPermission(user, PermPerformApprovalIncidentClosure) || !CheckHierarchyAccess(record, user) {
		return false
	}
	return record.GetStatus() == records.StatusPendingReview
}

// ApplyDataLevelSecurity keeps the records the user may access. It re-checks
// a list a scoped query already returned.
func ApplyDataLevelSecurity[T Record](items []T, user *UserAccess) []T {
	out := make([]T, 0, len(items))
	if user == nil {
		return out
	}
	for _, item := range items {
		if CheckHierarchyAccess(item, user) {
			out = append(out, item)
		}
	}
	return out
}

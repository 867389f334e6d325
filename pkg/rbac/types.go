package rbac

import (
	"sort"
	"strings"

	"github.com/platinummonkey/sims/pkg/hierarchy"
)

// Permission is a named boolean capability granted by a role
type Permission string

const (
	PermReportInjury                   Permission = "canReportInjury"
	PermReportObservation              Permission = "canReportObservation"
	PermSafetyRecognition              Permission = "canSafetyRecognition"
	PermTakeFirstReportActions         Permission = "canTakeFirstReportActions"
	PermViewPII                        Permission = "canViewPII"
	PermTakeQuickFixActions            Permission = "canTakeQuickFixActions"
	PermTakeIncidentRCAActions         Permission = "canTakeIncidentRCAActions"
	PermPerformApprovalIncidentClosure Permission = "canPerformApprovalIncidentClosure"
	PermViewManageOSHALogs             Permission = "canViewManageOSHALogs"
	PermViewOpenClosedReports          Permission = "canViewOpenClosedReports"
	PermViewSafetyAlerts               Permission = "canViewSafetyAlerts"
	PermViewLessonsLearned             Permission = "canViewLessonsLearned"
	PermViewDashboard                  Permission = "canViewDashboard"
	PermSubmitDSATicket                Permission = "canSubmitDSATicket"
	PermApproveLessonsLearned          Permission = "canApproveLessonsLearned"
)

// AllPermissions lists every known flag in display order
var AllPermissions = []Permission{
	PermReportInjury,
	PermReportObservation,
	PermSafetyRecognition,
	PermTakeFirstReportActions,
	PermViewPII,
	PermTakeQuickFixActions,
	PermTakeIncidentRCAActions,
	PermPerformApprovalIncidentClosure,
	PermViewManageOSHALogs,
	PermViewOpenClosedReports,
	PermViewSafetyAlerts,
	PermViewLessonsLearned,
	PermViewDashboard,
	PermSubmitDSATicket,
	PermApproveLessonsLearned,
}

var knownPermissions = func() map[Permission]struct{} {
	m := make(map[Permission]struct{}, len(AllPermissions))
	for _, p := range AllPermissions {
		m[p] = struct{}{}
	}
	return m
}()

// Valid reports whether p is a known flag
func (p Permission) Valid() bool {
	_, ok := knownPermissions[p]
	return ok
}

// PermissionSet holds a value for every known flag
type PermissionSet map[Permission]bool

// NewPermissionSet returns a set with every known flag present, granting
// only the listed ones. Unknown flags are ignored.
func NewPermissionSet(granted ...Permission) PermissionSet {
	s := make(PermissionSet, len(AllPermissions))
	for _, p := range AllPermissions {
		s[p] = false
	}
	for _, p := range granted {
		if p.Valid() {
			s[p] = true
		}
	}
	return s
}

// Has reports whether the flag is granted. Unknown flags are false.
func (s PermissionSet) Has(p Permission) bool {
	return s[p]
}

// Granted returns the granted flags in AllPermissions order
func (s PermissionSet) Granted() []Permission {
	out := make([]Permission, 0, len(s))
	for _, p := range AllPermissions {
		if s[p] {
			out = append(out, p)
		}
	}
	return out
}

// NormalizePermissions converts a stored permission row into a canonical
// set. Values may be native booleans or the strings "true"/"false"; anything
// else, and every missing flag, is false.
func NormalizePermissions(raw map[string]interface{}) PermissionSet {
	s := NewPermissionSet()
	for _, p := range AllPermissions {
		switch v := raw[string(p)].(type) {
		case bool:
			s[p] = v
		case string:
			s[p] = strings.EqualFold(strings.TrimSpace(v), "true")
		}
	}
	return s
}

// RoleAssignment is one user-role row
type RoleAssignment struct {
	ID              string          `json:"id"`
	Email           string          `json:"email"`
	Name            string          `json:"name"`
	RoleTitle       string          `json:"roleTitle"`
	Level           hierarchy.Level `json:"level"`
	HierarchyString string          `json:"hierarchyString"`
	Plant           string          `json:"plant,omitempty"`
	Active          bool            `json:"isActive"`
	Groups          []string        `json:"groups,omitempty"`
}

// RolePermissions is the permission row for a role title
type RolePermissions struct {
	RoleTitle   string        `json:"roleTitle"`
	Permissions PermissionSet `json:"permissions"`
}

// UserAccess is a user's resolved identity, primary role, scope and
// permission bundle
type UserAccess struct {
	Email           string           `json:"email"`
	Name            string           `json:"name"`
	RoleTitle       string           `json:"roleTitle"`
	Level           hierarchy.Level  `json:"level"`
	HierarchyString string           `json:"hierarchyString"`
	Scope           hierarchy.Scope  `json:"accessScope"`
	Permissions     PermissionSet    `json:"permissions"`
	Active          bool             `json:"isActive"`
	Groups          []string         `json:"groups"`
	Plant           string           `json:"plant,omitempty"`
	Assignments     []RoleAssignment `json:"assignments,omitempty"`
}

// NewUserAccess builds the access record for a primary assignment. The
// scope is derived from the level.
func NewUserAccess(primary RoleAssignment, perms PermissionSet, assignments []RoleAssignment) *UserAccess {
	if perms == nil {
		perms = NewPermissionSet()
	}
	groups := primary.Groups
	if groups == nil {
		groups = []string{}
	}
	return &UserAccess{
		Email:           primary.Email,
		Name:            primary.Name,
		RoleTitle:       primary.RoleTitle,
		Level:           primary.Level,
		HierarchyString: primary.HierarchyString,
		Scope:           hierarchy.ScopeForLevel(primary.Level),
		Permissions:     perms,
		Active:          primary.Active,
		Groups:          groups,
		Plant:           primary.Plant,
		Assignments:     assignments,
	}
}

// Path parses the user's hierarchy string
func (u *UserAccess) Path() hierarchy.Path {
	if u == nil {
		return hierarchy.Path{}
	}
	return hierarchy.Parse(u.HierarchyString)
}

// AccessibleHierarchies returns the distinct hierarchy strings across the
// user's active assignments, most senior first. Paths that differ only by a
// trailing delimiter count once.
func (u *UserAccess) AccessibleHierarchies() []string {
	if u == nil {
		return nil
	}
	rows := u.Assignments
	if len(rows) == 0 {
		rows = []RoleAssignment{{Level: u.Level, HierarchyString: u.HierarchyString, Active: true}}
	}

	sorted := make([]RoleAssignment, 0, len(rows))
	for _, r := range rows {
		if r.Active {
			sorted = append(sorted, r)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Level < sorted[j].Level })

	seen := make(map[string]struct{}, len(sorted))
	out := make([]string, 0, len(sorted))
	for _, r := range sorted {
		key := hierarchy.Parse(r.HierarchyString).Prefix()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r.HierarchyString)
	}
	return out
}

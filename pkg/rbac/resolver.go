package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/sims/pkg/observability"
)

var (
	// ErrNoActiveRole means the user has no active assignment with a valid level
	ErrNoActiveRole = errors.New("no active role assignment")
	// ErrNoRolePermissions means the primary role title has no permission row
	ErrNoRolePermissions = errors.New("no permissions for role")
)

// Store is the lookup the resolver needs
type Store interface {
	// ActiveAssignments returns the active rows for a lower-cased email
	ActiveAssignments(ctx context.Context, email string) ([]RoleAssignment, error)
	// RolePermissions returns ErrNoRolePermissions when the title has no row
	RolePermissions(ctx context.Context, roleTitle string) (*RolePermissions, error)
}

// ResolverConfig tunes the resolver memo
type ResolverConfig struct {
	// CacheSize bounds the number of memoized users
	CacheSize int
	// TTL is how long a resolved record is reused; zero disables the memo
	TTL     time.Duration
	Metrics *observability.Metrics
}

// Resolver turns a signed-in email into a UserAccess
type Resolver struct {
	store   Store
	cache   *lru.LRU[string, *UserAccess]
	metrics *observability.Metrics
}

// NewResolver creates a resolver over store
func NewResolver(store Store, config ResolverConfig) *Resolver {
	r := &Resolver{store: store, metrics: config.Metrics}
	if config.TTL > 0 {
		size := config.CacheSize
		if size <= 0 {
			size = 1024
		}
		r.cache = lru.NewLRU[string, *UserAccess](size, nil, config.TTL)
	}
	return r
}

// Resolve looks up the user's active assignments, picks the primary one and
// attaches its role's permissions. ErrNoActiveRole and ErrNoRolePermissions
// both mean the user has no access.
func (r *Resolver) Resolve(ctx context.Context, email string) (*UserAccess, error) {
	key := strings.ToLower(strings.TrimSpace(email))
	if key == "" {
		r.metrics.RecordAccessResolution("no_role")
		return nil, ErrNoActiveRole
	}

	if r.cache != nil {
		if access, ok := r.cache.Get(key); ok {
			r.metrics.RecordAccessResolution("cached")
			return access, nil
		}
	}

	rows, err := r.store.ActiveAssignments(ctx, key)
	if err != nil {
		r.metrics.RecordAccessResolution("error")
		return nil, fmt.Errorf("failed to load role assignments: %w", err)
	}

	active := make([]RoleAssignment, 0, len(rows))
	for _, row := range rows {
		if row.Active && row.Level.Valid() {
			active = append(active, row)
		}
	}

	primary, ok := PrimaryAssignment(active)
	if !ok {
		r.metrics.RecordAccessResolution("no_role")
		return nil, fmt.Errorf("%w: %s", ErrNoActiveRole, key)
	}

	perms, err := r.store.RolePermissions(ctx, primary.RoleTitle)
	if err != nil {
		if errors.Is(err, ErrNoRolePermissions) {
			r.metrics.RecordAccessResolution("no_permissions")
			return nil, err
		}
		r.metrics.RecordAccessResolution("error")
		return nil, fmt.Errorf("failed to load role permissions: %w", err)
	}

	access := NewUserAccess(primary, perms.Permissions, active)
	if r.cache != nil {
		r.cache.Add(key, access)
	}
	r.metrics.RecordAccessResolution("resolved")
	return access, nil
}

// Invalidate drops the memoized record for email
func (r *Resolver) Invalidate(email string) {
	if r.cache == nil {
		return
	}
	r.cache.Remove(strings.ToLower(strings.TrimSpace(email)))
}

// InvalidateAll drops every memoized record
func (r *Resolver) InvalidateAll() {
	if r.cache == nil {
		return
	}
	r.cache.Purge()
}

// PrimaryAssignment returns the active row with the lowest valid level.
// Ties keep the first row.
func PrimaryAssignment(rows []RoleAssignment) (RoleAssignment, bool) {
	var (
		primary RoleAssignment
		found   bool
	)
	for _, row := range rows {
		if !row.Active || !row.Level.Valid() {
			continue
		}
		if !found || row.Level < primary.Level {
			primary = row
			found = true
		}
	}
	return primary, found
}

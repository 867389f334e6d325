package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/platinummonkey/sims/pkg/hierarchy"
	"github.com/platinummonkey/sims/pkg/observability"
	"github.com/platinummonkey/sims/pkg/rbac"
)

// Entry is one active role assignment with its role's permissions
type Entry struct {
	Email           string             `json:"email"`
	Name            string             `json:"name"`
	RoleTitle       string             `json:"roleTitle"`
	Level           hierarchy.Level    `json:"level"`
	HierarchyString string             `json:"hierarchyString"`
	Plant           string             `json:"plant,omitempty"`
	Groups          []string           `json:"groups,omitempty"`
	Permissions     rbac.PermissionSet `json:"permissions"`
}

// Source is the role data the directory is built from
type Source interface {
	ListActiveAssignments(ctx context.Context) ([]rbac.RoleAssignment, error)
	RolePermissions(ctx context.Context, roleTitle string) (*rbac.RolePermissions, error)
}

// Cache holds the full listing under a single key
type Cache interface {
	Get(ctx context.Context) ([]Entry, bool, error)
	Set(ctx context.Context, entries []Entry) error
	Invalidate(ctx context.Context) error
}

// Options configures a Directory
type Options struct {
	// Cache may be nil, in which case every call reads the source
	Cache   Cache
	Metrics *observability.Metrics
	Logger  logrus.FieldLogger
	// Language selects the collation used to sort by name
	Language language.Tag
}

// Directory builds and caches the notification user listing
type Directory struct {
	source  Source
	cache   Cache
	metrics *observability.Metrics
	logger  logrus.FieldLogger
	lang    language.Tag
}

// New creates a directory over source
func New(source Source, opts Options) *Directory {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	lang := opts.Language
	if lang == language.Und {
		lang = language.English
	}
	return &Directory{
		source:  source,
		cache:   opts.Cache,
		metrics: opts.Metrics,
		logger:  logger,
		lang:    lang,
	}
}

// ListActiveUsers returns every active assignment with its permissions,
// sorted by display name
func (d *Directory) ListActiveUsers(ctx context.Context) ([]Entry, error) {
	if d.cache != nil {
		entries, ok, err := d.cache.Get(ctx)
		switch {
		case err != nil:
			d.logger.WithError(err).Warn("directory cache read failed")
		case ok:
			d.metrics.RecordCacheHit("directory")
			return entries, nil
		}
		d.metrics.RecordCacheMiss("directory")
	}

	entries, err := d.build(ctx)
	if err != nil {
		return nil, err
	}

	if d.cache != nil {
		if err := d.cache.Set(ctx, entries); err != nil {
			d.logger.WithError(err).Warn("directory cache write failed")
		}
	}
	return entries, nil
}

func (d *Directory) build(ctx context.Context) ([]Entry, error) {
	rows, err := d.source.ListActiveAssignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active assignments: %w", err)
	}

	perms := make(map[string]rbac.PermissionSet)
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		if !row.Active {
			continue
		}

		set, ok := perms[row.RoleTitle]
		if !ok {
			set, err = d.rolePermissions(ctx, row.RoleTitle)
			if err != nil {
				return nil, err
			}
			perms[row.RoleTitle] = set
		}

		entries = append(entries, Entry{
			Email:           row.Email,
			Name:            row.Name,
			RoleTitle:       row.RoleTitle,
			Level:           row.Level,
			HierarchyString: row.HierarchyString,
			Plant:           row.Plant,
			Groups:          row.Groups,
			Permissions:     set,
		})
	}

	col := collate.New(d.lang)
	sort.SliceStable(entries, func(i, j int) bool {
		return col.CompareString(entries[i].Name, entries[j].Name) < 0
	})
	return entries, nil
}

// rolePermissions returns an all-false set for titles without a permission row
func (d *Directory) rolePermissions(ctx context.Context, title string) (rbac.PermissionSet, error) {
	rp, err := d.source.RolePermissions(ctx, title)
	if errors.Is(err, rbac.ErrNoRolePermissions) {
		d.logger.WithField("role_title", title).Debug("no permission row for role")
		return rbac.NewPermissionSet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load permissions for %q: %w", title, err)
	}
	return rp.Permissions, nil
}

// Invalidate drops the cached listing
func (d *Directory) Invalidate(ctx context.Context) error {
	if d.cache == nil {
		return nil
	}
	return d.cache.Invalidate(ctx)
}

// Query narrows the listing. Empty fields do not filter.
type Query struct {
	Role       string
	Plant      string
	Prefix     string
	Permission rbac.Permission
}

// Matches reports whether e satisfies every non-empty field of q
func (q Query) Matches(e Entry) bool {
	if q.Role != "" && !strings.EqualFold(e.RoleTitle, q.Role) {
		return false
	}
	if q.Plant != "" && e.Plant != q.Plant {
		return false
	}
	if q.Prefix != "" && !hierarchy.Parse(q.Prefix).Covers(hierarchy.Parse(e.HierarchyString)) {
		return false
	}
	if q.Permission != "" && !e.Permissions.Has(q.Permission) {
		return false
	}
	return true
}

// Find returns the entries matching q in listing order
func (d *Directory) Find(ctx context.Context, q Query) ([]Entry, error) {
	all, err := d.ListActiveUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(all))
	for _, e := range all {
		if q.Matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// ByRole returns entries whose role title equals title, ignoring case
func (d *Directory) ByRole(ctx context.Context, title string) ([]Entry, error) {
	return d.Find(ctx, Query{Role: title})
}

// ByPlant returns entries for exactly plant
func (d *Directory) ByPlant(ctx context.Context, plant string) ([]Entry, error) {
	return d.Find(ctx, Query{Plant: plant})
}

// ByHierarchyPrefix returns entries whose hierarchy path lies under prefix
func (d *Directory) ByHierarchyPrefix(ctx context.Context, prefix string) ([]Entry, error) {
	return d.Find(ctx, Query{Prefix: prefix})
}

// ByPermission returns entries whose role grants p
func (d *Directory) ByPermission(ctx context.Context, p rbac.Permission) ([]Entry, error) {
	return d.Find(ctx, Query{Permission: p})
}

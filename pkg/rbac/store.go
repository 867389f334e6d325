package rbac

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/platinummonkey/sims/pkg/hierarchy"
)

// Default table names
const (
	DefaultAssignmentsTable = "user_roles"
	DefaultPermissionsTable = "role_permissions"
)

// Tables names the tables the store reads. Resolved once at startup.
type Tables struct {
	Assignments string
	Permissions string
}

func (t Tables) withDefaults() Tables {
	if t.Assignments == "" {
		t.Assignments = DefaultAssignmentsTable
	}
	if t.Permissions == "" {
		t.Permissions = DefaultPermissionsTable
	}
	return t
}

// Schema returns the DDL statements for both tables
func Schema(tables Tables) []string {
	tables = tables.withDefaults()
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			role_title TEXT NOT NULL,
			level INTEGER NOT NULL,
			hierarchy_string TEXT NOT NULL DEFAULT '',
			plant TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			group_names TEXT NOT NULL DEFAULT '[]',
			updated_at TIMESTAMP NOT NULL
		)`, pq.QuoteIdentifier(tables.Assignments)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			role_title TEXT PRIMARY KEY,
			permissions TEXT NOT NULL DEFAULT '{}',
			updated_at TIMESTAMP NOT NULL
		)`, pq.QuoteIdentifier(tables.Permissions)),
	}
}

const assignmentColumns = `id, email, name, role_title, level, hierarchy_string, plant, is_active, group_names`

// PostgresStore reads role assignments and role permissions
type PostgresStore struct {
	db          *sql.DB
	assignments string
	permissions string
	now         func() time.Time
}

// NewPostgresStore creates a store over the configured tables
func NewPostgresStore(db *sql.DB, tables Tables) *PostgresStore {
	tables = tables.withDefaults()
	return &PostgresStore{
		db:          db,
		assignments: pq.QuoteIdentifier(tables.Assignments),
		permissions: pq.QuoteIdentifier(tables.Permissions),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ActiveAssignments returns the active rows for email, most senior first
func (s *PostgresStore) ActiveAssignments(ctx context.Context, email string) ([]RoleAssignment, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s
		WHERE lower(email) = $1 AND is_active = $2
		ORDER BY level, id`, assignmentColumns, s.assignments)
	return s.queryAssignments(ctx, q, strings.ToLower(strings.TrimSpace(email)), true)
}

// ListActiveAssignments returns every active row ordered by name
func (s *PostgresStore) ListActiveAssignments(ctx context.Context) ([]RoleAssignment, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE is_active = $1 ORDER BY name, id`, assignmentColumns, s.assignments)
	return s.queryAssignments(ctx, q, true)
}

func (s *PostgresStore) queryAssignments(ctx context.Context, q string, args ...interface{}) ([]RoleAssignment, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query role assignments: %w", err)
	}
	defer rows.Close()

	out := make([]RoleAssignment, 0)
	for rows.Next() {
		var (
			a          RoleAssignment
			level      int
			groupsJSON string
		)
		if err := rows.Scan(&a.ID, &a.Email, &a.Name, &a.RoleTitle, &level,
			&a.HierarchyString, &a.Plant, &a.Active, &groupsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan role assignment: %w", err)
		}
		a.Level = hierarchy.Level(level)
		if groupsJSON != "" {
			if err := json.Unmarshal([]byte(groupsJSON), &a.Groups); err != nil {
				return nil, fmt.Errorf("failed to unmarshal groups for %s: %w", a.ID, err)
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// RolePermissions loads and normalizes the permission row for roleTitle
func (s *PostgresStore) RolePermissions(ctx context.Context, roleTitle string) (*RolePermissions, error) {
	q := fmt.Sprintf(`SELECT permissions FROM %s WHERE role_title = $1`, s.permissions)

	var data string
	err := s.db.QueryRowContext(ctx, q, roleTitle).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNoRolePermissions, roleTitle)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role permissions: %w", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal permissions for %s: %w", roleTitle, err)
	}

	return &RolePermissions{
		RoleTitle:   roleTitle,
		Permissions: NormalizePermissions(raw),
	}, nil
}

// SaveAssignment inserts or replaces a role assignment
func (s *PostgresStore) SaveAssignment(ctx context.Context, a *RoleAssignment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	groups := a.Groups
	if groups == nil {
		groups = []string{}
	}
	groupsJSON, err := json.Marshal(groups)
	if err != nil {
		return fmt.Errorf("failed to marshal groups: %w", err)
	}

	q := fmt.Sprintf(`INSERT INTO %s (%s, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			role_title = EXCLUDED.role_title,
			level = EXCLUDED.level,
			hierarchy_string = EXCLUDED.hierarchy_string,
			plant = EXCLUDED.plant,
			is_active = EXCLUDED.is_active,
			group_names = EXCLUDED.group_names,
			updated_at = EXCLUDED.updated_at`, s.assignments, assignmentColumns)

	_, err = s.db.ExecContext(ctx, q,
		a.ID,
		a.Email,
		a.Name,
		a.RoleTitle,
		int(a.Level),
		a.HierarchyString,
		a.Plant,
		a.Active,
		string(groupsJSON),
		s.now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save role assignment: %w", err)
	}
	return nil
}

// SaveRolePermissions stores a permission row as given. Values are kept in
// their raw form and normalized on read.
func (s *PostgresStore) SaveRolePermissions(ctx context.Context, roleTitle string, raw map[string]interface{}) error {
	if raw == nil {
		raw = map[string]interface{}{}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	q := fmt.Sprintf(`INSERT INTO %s (role_title, permissions, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (role_title) DO UPDATE SET
			permissions = EXCLUDED.permissions,
			updated_at = EXCLUDED.updated_at`, s.permissions)

	if _, err := s.db.ExecContext(ctx, q, roleTitle, string(data), s.now()); err != nil {
		return fmt.Errorf("failed to save role permissions: %w", err)
	}
	return nil
}

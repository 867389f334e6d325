package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/platinummonkey/sims/pkg/query"
)

var (
	// ErrNotFound is returned when no submission has the requested id
	ErrNotFound = errors.New("submission not found")
	// ErrAlreadyExists is returned by Create for a duplicate id
	ErrAlreadyExists = errors.New("submission already exists")
)

// DefaultTable is the submissions table name
const DefaultTable = "submissions"

// Store persists submissions
type Store interface {
	Create(ctx context.Context, s *Submission) error
	Upsert(ctx context.Context, s *Submission) error
	Get(ctx context.Context, id string) (*Submission, error)
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, filter query.Filter, opts ListOptions) ([]*Submission, error)
	Count(ctx context.Context, filter query.Filter) (int64, error)
	UpdateStatus(ctx context.Context, id, status string) error
	SetAttachments(ctx context.Context, id string, keys []string) error
	Delete(ctx context.Context, id string) error
}

// Columns maps filter fields to submission columns
var Columns = map[string]string{
	FieldID:              "id",
	FieldHierarchyString: "hierarchy_string",
	FieldStatus:          "status",
	FieldRecordType:      "record_type",
	FieldCreatedBy:       "created_by",
}

const selectColumns = `id, submission_id, record_type, status, hierarchy_string, created_by,
		title, description, location, employee_name, incident_date,
		incident_hour, incident_minute, incident_ampm, injury_type, body_part,
		recognized_person, culture_flags, attachment_keys, source, created_at, updated_at`

// Schema returns the DDL for the submissions table. Column types are kept
// to ones Postgres and SQLite both accept.
func Schema(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		submission_id TEXT NOT NULL DEFAULT '',
		record_type TEXT NOT NULL,
		status TEXT NOT NULL,
		hierarchy_string TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		employee_name TEXT NOT NULL DEFAULT '',
		incident_date TEXT NOT NULL DEFAULT '',
		incident_hour TEXT NOT NULL DEFAULT '',
		incident_minute TEXT NOT NULL DEFAULT '',
		incident_ampm TEXT NOT NULL DEFAULT '',
		injury_type TEXT NOT NULL DEFAULT '',
		body_part TEXT NOT NULL DEFAULT '',
		recognized_person TEXT NOT NULL DEFAULT '',
		culture_flags TEXT NOT NULL DEFAULT '{}',
		attachment_keys TEXT NOT NULL DEFAULT '[]',
		source TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`, pq.QuoteIdentifier(table))
}

// PostgresStore implements Store on database/sql with $n placeholders
type PostgresStore struct {
	db    *sql.DB
	table string
	now   func() time.Time
}

// NewPostgresStore creates a store over the named table
func NewPostgresStore(db *sql.DB, table string) *PostgresStore {
	if table == "" {
		table = DefaultTable
	}
	return &PostgresStore{
		db:    db,
		table: pq.QuoteIdentifier(table),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts a new submission, assigning an id when none is set
func (s *PostgresStore) Create(ctx context.Context, sub *Submission) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	now := s.now()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	args, err := insertArgs(sub)
	if err != nil {
		return err
	}

	q := fmt.Sprintf(`INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`,
		s.table, selectColumns)

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, sub.ID)
		}
		return fmt.Errorf("failed to insert submission: %w", err)
	}
	return nil
}

// Upsert writes a submission keyed by its id. Writing the same id twice
// overwrites the row's form fields. created_at and status keep their first
// values, and attachment keys are only replaced by a non-empty list.
func (s *PostgresStore) Upsert(ctx context.Context, sub *Submission) error {
	if sub.ID == "" {
		return fmt.Errorf("upsert requires an id")
	}
	now := s.now()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now

	args, err := insertArgs(sub)
	if err != nil {
		return err
	}

	q := fmt.Sprintf(`INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		ON CONFLICT (id) DO UPDATE SET
			submission_id = EXCLUDED.submission_id,
			record_type = EXCLUDED.record_type,
			hierarchy_string = EXCLUDED.hierarchy_string,
			created_by = EXCLUDED.created_by,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			location = EXCLUDED.location,
			employee_name = EXCLUDED.employee_name,
			incident_date = EXCLUDED.incident_date,
			incident_hour = EXCLUDED.incident_hour,
			incident_minute = EXCLUDED.incident_minute,
			incident_ampm = EXCLUDED.incident_ampm,
			injury_type = EXCLUDED.injury_type,
			body_part = EXCLUDED.body_part,
			recognized_person = EXCLUDED.recognized_person,
			culture_flags = EXCLUDED.culture_flags,
			attachment_keys = CASE WHEN EXCLUDED.attachment_keys = '[]'
				THEN %s.attachment_keys ELSE EXCLUDED.attachment_keys END,
			source = EXCLUDED.source,
			updated_at = EXCLUDED.updated_at`,
		s.table, selectColumns, s.table)

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("failed to upsert submission %s: %w", sub.ID, err)
	}
	return nil
}

// Get loads one submission
func (s *PostgresStore) Get(ctx context.Context, id string) (*Submission, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, selectColumns, s.table)
	sub, err := scanSubmission(s.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission %s: %w", id, err)
	}
	return sub, nil
}

// Exists reports whether a submission with id is stored
func (s *PostgresStore) Exists(ctx context.Context, id string) (bool, error) {
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE id = $1`, s.table)
	var n int64
	if err := s.db.QueryRowContext(ctx, q, id).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check submission %s: %w", id, err)
	}
	return n > 0, nil
}

// List returns submissions matching filter, newest first
func (s *PostgresStore) List(ctx context.Context, filter query.Filter, opts ListOptions) ([]*Submission, error) {
	if filter.IsNone() {
		return []*Submission{}, nil
	}

	where, args, err := filter.SQL(Columns, 1)
	if err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}

	q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY created_at DESC, id`, selectColumns, s.table, where)
	if opts.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", opts.Limit)
		if opts.Offset > 0 {
			q += fmt.Sprintf(" OFFSET %d", opts.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	subs := make([]*Submission, 0)
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// Count returns the number of submissions matching filter
func (s *PostgresStore) Count(ctx context.Context, filter query.Filter) (int64, error) {
	if filter.IsNone() {
		return 0, nil
	}
	where, args, err := filter.SQL(Columns, 1)
	if err != nil {
		return 0, fmt.Errorf("invalid filter: %w", err)
	}

	var n int64
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, s.table, where)
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count submissions: %w", err)
	}
	return n, nil
}

// UpdateStatus moves a submission to a new status
func (s *PostgresStore) UpdateStatus(ctx context.Context, id, status string) error {
	q := fmt.Sprintf(`UPDATE %s SET status = $1, updated_at = $2 WHERE id = $3`, s.table)
	return s.execOne(ctx, q, status, s.now(), id)
}

// SetAttachments records object storage keys for a submission
func (s *PostgresStore) SetAttachments(ctx context.Context, id string, keys []string) error {
	if keys == nil {
		keys = []string{}
	}
	data, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("failed to marshal attachment keys: %w", err)
	}
	q := fmt.Sprintf(`UPDATE %s SET attachment_keys = $1, updated_at = $2 WHERE id = $3`, s.table)
	return s.execOne(ctx, q, string(data), s.now(), id)
}

// Delete removes a submission
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table)
	return s.execOne(ctx, q, id)
}

func (s *PostgresStore) execOne(ctx context.Context, q string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("failed to update submission: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func insertArgs(sub *Submission) ([]interface{}, error) {
	flags, err := json.Marshal(sub.CultureFlags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal culture flags: %w", err)
	}
	keys := sub.AttachmentKeys
	if keys == nil {
		keys = []string{}
	}
	attachments, err := json.Marshal(keys)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal attachment keys: %w", err)
	}

	return []interface{}{
		sub.ID,
		sub.SubmissionID,
		string(sub.RecordType),
		sub.Status,
		sub.HierarchyString,
		sub.CreatedBy,
		sub.Title,
		sub.Description,
		sub.Location,
		sub.EmployeeName,
		sub.IncidentDate,
		sub.IncidentHour,
		sub.IncidentMinute,
		sub.IncidentAmPm,
		sub.InjuryType,
		sub.BodyPart,
		sub.RecognizedPerson,
		string(flags),
		string(attachments),
		sub.Source,
		sub.CreatedAt,
		sub.UpdatedAt,
	}, nil
}

func scanSubmission(scanner interface {
	Scan(dest ...interface{}) error
}) (*Submission, error) {
	var sub Submission
	var recordType, flags, attachments string

	err := scanner.Scan(
		&sub.ID,
		&sub.SubmissionID,
		&recordType,
		&sub.Status,
		&sub.HierarchyString,
		&sub.CreatedBy,
		&sub.Title,
		&sub.Description,
		&sub.Location,
		&sub.EmployeeName,
		&sub.IncidentDate,
		&sub.IncidentHour,
		&sub.IncidentMinute,
		&sub.IncidentAmPm,
		&sub.InjuryType,
		&sub.BodyPart,
		&sub.RecognizedPerson,
		&flags,
		&attachments,
		&sub.Source,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	sub.RecordType = RecordType(recordType)
	if flags != "" {
		if err := json.Unmarshal([]byte(flags), &sub.CultureFlags); err != nil {
			return nil, fmt.Errorf("invalid culture flags for %s: %w", sub.ID, err)
		}
	}
	sub.AttachmentKeys = []string{}
	if attachments != "" {
		if err := json.Unmarshal([]byte(attachments), &sub.AttachmentKeys); err != nil {
			return nil, fmt.Errorf("invalid attachment keys for %s: %w", sub.ID, err)
		}
	}
	return &sub, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

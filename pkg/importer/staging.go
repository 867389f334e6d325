package importer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/lib/pq"

	"github.com/platinummonkey/sims/pkg/smartsheet"
)

// DefaultStagingTable is the staging table name
const DefaultStagingTable = "staging_rows"

// StagedRow is a raw sheet row keyed by sheet and row id
type StagedRow struct {
	ID          string                  `json:"id"`
	SheetType   string                  `json:"sheetType"`
	SheetID     string                  `json:"sheetId"`
	RowID       int64                   `json:"rowId"`
	RowNumber   int                     `json:"rowNumber"`
	Values      map[string]string       `json:"values"`
	Attachments []smartsheet.Attachment `json:"attachments,omitempty"`
	StagedAt    time.Time               `json:"stagedAt"`
}

// StagingKey is the primary key of a staged row
func StagingKey(sheetID string, rowID int64) string {
	return sheetID + ":" + strconv.FormatInt(rowID, 10)
}

// StagingStore holds staged rows
type StagingStore interface {
	Upsert(ctx context.Context, row *StagedRow) error
	List(ctx context.Context, sheetType string) ([]StagedRow, error)
	Count(ctx context.Context, sheetType string) (int64, error)
}

// StagingSchema returns the DDL for the staging table
func StagingSchema(table string) string {
	if table == "" {
		table = DefaultStagingTable
	}
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		sheet_type TEXT NOT NULL,
		sheet_id TEXT NOT NULL,
		row_id BIGINT NOT NULL,
		row_number INTEGER NOT NULL DEFAULT 0,
		cell_values TEXT NOT NULL DEFAULT '{}',
		attachments TEXT NOT NULL DEFAULT '[]',
		staged_at TIMESTAMP NOT NULL
	)`, pq.QuoteIdentifier(table))
}

// PostgresStagingStore implements StagingStore on database/sql
type PostgresStagingStore struct {
	db    *sql.DB
	table string
	now   func() time.Time
}

// NewPostgresStagingStore creates a staging store over table
func NewPostgresStagingStore(db *sql.DB, table string) *PostgresStagingStore {
	if table == "" {
		table = DefaultStagingTable
	}
	return &PostgresStagingStore{
		db:    db,
		table: pq.QuoteIdentifier(table),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Upsert writes row under its staging key, replacing any earlier copy
func (s *PostgresStagingStore) Upsert(ctx context.Context, row *StagedRow) error {
	if row.ID == "" {
		row.ID = StagingKey(row.SheetID, row.RowID)
	}
	row.StagedAt = s.now()

	values, err := json.Marshal(row.Values)
	if err != nil {
		return fmt.Errorf("failed to marshal row values: %w", err)
	}
	attachments := row.Attachments
	if attachments == nil {
		attachments = []smartsheet.Attachment{}
	}
	attachmentsJSON, err := json.Marshal(attachments)
	if err != nil {
		return fmt.Errorf("failed to marshal attachments: %w", err)
	}

	q := fmt.Sprintf(`INSERT INTO %s (id, sheet_type, sheet_id, row_id, row_number, cell_values, attachments, staged_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			sheet_type = EXCLUDED.sheet_type,
			row_number = EXCLUDED.row_number,
			cell_values = EXCLUDED.cell_values,
			attachments = EXCLUDED.attachments,
			staged_at = EXCLUDED.staged_at`, s.table)

	if _, err := s.db.ExecContext(ctx, q, row.ID, row.SheetType, row.SheetID, row.RowID,
		row.RowNumber, string(values), string(attachmentsJSON), row.StagedAt); err != nil {
		return fmt.Errorf("failed to stage row %s: %w", row.ID, err)
	}
	return nil
}

// List returns the staged rows of sheetType in sheet order
func (s *PostgresStagingStore) List(ctx context.Context, sheetType string) ([]StagedRow, error) {
	q := fmt.Sprintf(`SELECT id, sheet_type, sheet_id, row_id, row_number, cell_values, attachments, staged_at
		FROM %s WHERE sheet_type = $1 ORDER BY row_number, id`, s.table)

	rows, err := s.db.QueryContext(ctx, q, sheetType)
	if err != nil {
		return nil, fmt.Errorf("failed to list staged rows: %w", err)
	}
	defer rows.Close()

	out := make([]StagedRow, 0)
	for rows.Next() {
		var (
			r                       StagedRow
			values, attachmentsJSON string
		)
		if err := rows.Scan(&r.ID, &r.SheetType, &r.SheetID, &r.RowID, &r.RowNumber,
			&values, &attachmentsJSON, &r.StagedAt); err != nil {
			return nil, fmt.Errorf("failed to scan staged row: %w", err)
		}
		if err := json.Unmarshal([]byte(values), &r.Values); err != nil {
			return nil, fmt.Errorf("failed to unmarshal values of %s: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(attachmentsJSON), &r.Attachments); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attachments of %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of staged rows for sheetType
func (s *PostgresStagingStore) Count(ctx context.Context, sheetType string) (int64, error) {
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE sheet_type = $1`, s.table)
	var n int64
	if err := s.db.QueryRowContext(ctx, q, sheetType).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count staged rows: %w", err)
	}
	return n, nil
}

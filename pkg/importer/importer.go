package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/sims/pkg/objectstore"
	"github.com/platinummonkey/sims/pkg/observability"
	"github.com/platinummonkey/sims/pkg/records"
	"github.com/platinummonkey/sims/pkg/smartsheet"
)

// Stage names used in metrics and logs
const (
	StageStaging = "stage"
	StageCopy    = "copy"
)

// SheetSource reads sheets and attachments from the spreadsheet API
type SheetSource interface {
	GetSheet(ctx context.Context, sheetID string) (*smartsheet.Sheet, error)
	GetAttachment(ctx context.Context, sheetID string, attachmentID int64) (*smartsheet.Attachment, error)
	Download(ctx context.Context, url string) ([]byte, string, error)
}

// RecordStore is where copied records land
type RecordStore interface {
	Upsert(ctx context.Context, s *records.Submission) error
	Get(ctx context.Context, id string) (*records.Submission, error)
	Exists(ctx context.Context, id string) (bool, error)
	SetAttachments(ctx context.Context, id string, keys []string) error
}

// Recorder receives import metrics. Both the Prometheus and the OTLP
// metrics in observability implement it.
type Recorder interface {
	RecordImportRows(ctx context.Context, sheetType, stage, outcome string, n int)
	RecordImportDuration(ctx context.Context, sheetType, stage string, d time.Duration)
	RecordAttachmentFailure(ctx context.Context, sheetType string)
}

type nopRecorder struct{}

func (nopRecorder) RecordImportRows(context.Context, string, string, string, int)       {}
func (nopRecorder) RecordImportDuration(context.Context, string, string, time.Duration) {}
func (nopRecorder) RecordAttachmentFailure(context.Context, string)                     {}

// Config configures an Importer
type Config struct {
	// Concurrency bounds the rows staged at once
	Concurrency int
	// Objects receives attachments; nil skips the attachment flow
	Objects objectstore.Store
	Metrics Recorder
	Logger  logrus.FieldLogger
}

// CopyOptions tunes a copy run
type CopyOptions struct {
	// SkipDuplicates leaves records that already exist untouched instead of
	// overwriting them
	SkipDuplicates bool
}

// Importer stages sheet rows and copies them into records
type Importer struct {
	registry    *Registry
	sheets      SheetSource
	staging     StagingStore
	records     RecordStore
	objects     objectstore.Store
	metrics     Recorder
	logger      logrus.FieldLogger
	concurrency int
}

// New creates an importer
func New(registry *Registry, sheets SheetSource, staging StagingStore, recs RecordStore, cfg Config) *Importer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopRecorder{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Importer{
		registry:    registry,
		sheets:      sheets,
		staging:     staging,
		records:     recs,
		objects:     cfg.Objects,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		concurrency: cfg.Concurrency,
	}
}

// Registry returns the sheet registry
func (im *Importer) Registry() *Registry {
	return im.registry
}

// Stage pulls every row of the sheet into the staging store. A failure to
// fetch the sheet fails the run; a failure on one row is counted and the
// other rows continue.
func (im *Importer) Stage(ctx context.Context, sheetType string) (*Summary, error) {
	cfg, err := im.registry.Lookup(sheetType)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { im.metrics.RecordImportDuration(ctx, sheetType, StageStaging, time.Since(start)) }()

	sheet, err := im.sheets.GetSheet(ctx, cfg.SheetID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sheet for %s: %w", sheetType, err)
	}
	titles := sheet.ColumnTitles()
	logger := im.logger.WithFields(logrus.Fields{"sheet_type": sheetType, "sheet_id": cfg.SheetID})

	summary := newSummary()
	g := new(errgroup.Group)
	g.SetLimit(im.concurrency)

	for _, row := range sheet.Rows {
		row := row
		if ctx.Err() != nil {
			break
		}
		g.Go(func() (err error) {
			defer func() {
				if perr := observability.MustRecover(recover()); perr != nil {
					summary.addError(fmt.Sprintf("row %d: %v", row.RowNumber, perr))
				}
			}()

			staged := &StagedRow{
				ID:          StagingKey(cfg.SheetID, row.ID),
				SheetType:   sheetType,
				SheetID:     cfg.SheetID,
				RowID:       row.ID,
				RowNumber:   row.RowNumber,
				Values:      row.Values(titles),
				Attachments: row.Attachments,
			}
			if err := im.staging.Upsert(ctx, staged); err != nil {
				logger.WithError(err).WithField("row_id", row.ID).Warn("failed to stage row")
				summary.addError(fmt.Sprintf("row %d: %v", row.RowNumber, err))
				return nil
			}
			summary.addCopied()
			return nil
		})
	}
	_ = g.Wait()

	im.metrics.RecordImportRows(ctx, sheetType, StageStaging, "copied", summary.Copied)
	im.metrics.RecordImportRows(ctx, sheetType, StageStaging, "error", summary.Errors)
	logger.WithFields(logrus.Fields{"staged": summary.Copied, "errors": summary.Errors}).Info("staging finished")

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// Copy projects the staged rows of sheetType into records keyed by
// {sheetType}_{autoNumber}. Running it twice over the same staged rows
// writes the same keys.
func (im *Importer) Copy(ctx context.Context, sheetType string, opts CopyOptions) (*Summary, error) {
	cfg, err := im.registry.Lookup(sheetType)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { im.metrics.RecordImportDuration(ctx, sheetType, StageCopy, time.Since(start)) }()

	staged, err := im.staging.List(ctx, sheetType)
	if err != nil {
		return nil, fmt.Errorf("failed to read staged rows for %s: %w", sheetType, err)
	}
	logger := im.logger.WithFields(logrus.Fields{"sheet_type": sheetType, "sheet_id": cfg.SheetID})

	summary := newSummary()
	for _, row := range staged {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		outcome, err := im.copyRow(ctx, cfg, row, opts)
		switch {
		case err != nil:
			logger.WithError(err).WithField("staging_id", row.ID).Warn("failed to copy row")
			summary.addError(fmt.Sprintf("row %d: %v", row.RowNumber, err))
		case outcome == "skipped":
			summary.addSkipped()
		default:
			summary.addCopied()
		}
	}

	im.metrics.RecordImportRows(ctx, sheetType, StageCopy, "copied", summary.Copied)
	im.metrics.RecordImportRows(ctx, sheetType, StageCopy, "skipped", summary.Skipped)
	im.metrics.RecordImportRows(ctx, sheetType, StageCopy, "error", summary.Errors)
	logger.WithFields(logrus.Fields{
		"copied":  summary.Copied,
		"skipped": summary.Skipped,
		"errors":  summary.Errors,
	}).Info("copy finished")
	return summary, nil
}

func (im *Importer) copyRow(ctx context.Context, cfg SheetConfig, row StagedRow, opts CopyOptions) (outcome string, err error) {
	defer func() {
		if perr := observability.MustRecover(recover()); perr != nil {
			err = perr
		}
	}()

	sub, err := cfg.MapRow(row)
	if err != nil {
		return "", err
	}

	if opts.SkipDuplicates {
		exists, err := im.records.Exists(ctx, sub.ID)
		if err != nil {
			return "", err
		}
		if exists {
			return "skipped", nil
		}
	}

	if err := im.records.Upsert(ctx, sub); err != nil {
		return "", err
	}

	if im.objects != nil && len(row.Attachments) > 0 {
		im.copyAttachments(ctx, cfg, row, sub.ID)
	}
	return "copied", nil
}

// copyAttachments moves a row's files into object storage and adds their
// keys to the record. Failures are logged; keys already on the record stay.
func (im *Importer) copyAttachments(ctx context.Context, cfg SheetConfig, row StagedRow, recordID string) {
	logger := im.logger.WithFields(logrus.Fields{"sheet_type": cfg.SheetType, "record_id": recordID})

	keys := make([]string, 0, len(row.Attachments))
	for _, a := range row.Attachments {
		if !a.IsFile() {
			continue
		}
		key, err := im.copyAttachment(ctx, cfg.SheetID, a, recordID)
		if err != nil {
			im.metrics.RecordAttachmentFailure(ctx, cfg.SheetType)
			logger.WithError(err).WithField("attachment_id", a.ID).Warn("failed to copy attachment")
			continue
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return
	}
	existing, err := im.records.Get(ctx, recordID)
	if err != nil {
		im.metrics.RecordAttachmentFailure(ctx, cfg.SheetType)
		logger.WithError(err).Warn("failed to load record for attachment keys")
		return
	}
	if err := im.records.SetAttachments(ctx, recordID, mergeKeys(existing.AttachmentKeys, keys)); err != nil {
		im.metrics.RecordAttachmentFailure(ctx, cfg.SheetType)
		logger.WithError(err).Warn("failed to record attachment keys")
	}
}

// mergeKeys appends the keys in add that are not already in have
func mergeKeys(have, add []string) []string {
	seen := make(map[string]bool, len(have)+len(add))
	out := make([]string, 0, len(have)+len(add))
	for _, k := range append(append([]string{}, have...), add...) {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

func (im *Importer) copyAttachment(ctx context.Context, sheetID string, a smartsheet.Attachment, recordID string) (string, error) {
	meta, err := im.sheets.GetAttachment(ctx, sheetID, a.ID)
	if err != nil {
		return "", err
	}
	if meta.URL == "" {
		return "", fmt.Errorf("attachment %d has no download url", a.ID)
	}
	data, contentType, err := im.sheets.Download(ctx, meta.URL)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = meta.MimeType
	}

	key := objectstore.AttachmentKey(recordID, a.ID, meta.Name)
	if err := im.objects.Put(ctx, key, data, contentType); err != nil {
		return "", err
	}
	return key, nil
}

// Run stages then copies one sheet type
func (im *Importer) Run(ctx context.Context, sheetType string, opts CopyOptions) (*RunResult, error) {
	result := &RunResult{SheetType: sheetType}

	stage, err := im.Stage(ctx, sheetType)
	result.Stage = stage
	if err != nil {
		return result, err
	}

	copied, err := im.Copy(ctx, sheetType, opts)
	result.Copy = copied
	return result, err
}

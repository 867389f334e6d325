// Package importer pulls rows from the spreadsheet API into a staging table
// and projects staged rows into records.
//
// Staging keys rows by {sheetId}:{rowId}; copying keys records by
// {sheetType}_{autoNumber}. Both writes are upserts, so re-running either
// stage overwrites rather than duplicates. With SkipDuplicates the copy
// stage leaves existing records untouched and counts them as skipped.
//
// Column values are resolved by title through the sheet's column map, which
// is fetched once per run. Each target field takes the mapped column value,
// else the fallback column, else a literal default. Times of day are split
// into hour, minute and AM/PM; the recognition checkbox blob is decoded into
// culture flags by phrase.
//
// Rows fail independently: a row that cannot be mapped or written is logged,
// counted in the Summary, and the run moves on. Attachments are copied to
// object storage after their record is written; a failed attachment leaves
// the record without it.
//
// The sheet registry is a YAML file loaded at startup:
//
//	sheets:
//	  injury:
//	    sheetId: "4583173393803140"
//	    recordType: Injury Report
//	    fields:
//	      employeeName: {column: "Injured Employee", fallback: "Name"}
package importer

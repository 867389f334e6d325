// Package smartsheet is a small client for the spreadsheet API the import
// job reads from. It covers sheets with their columns and rows, row
// attachments and attachment downloads.
package smartsheet

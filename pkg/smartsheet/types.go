package smartsheet

import (
	"fmt"
	"strconv"
	"strings"
)

// Sheet is a sheet with its columns and rows
type Sheet struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Column describes one sheet column
type Column struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Index int    `json:"index"`
	Type  string `json:"type"`
}

// Row is one sheet row. Attachments is only populated when requested.
type Row struct {
	ID          int64        `json:"id"`
	RowNumber   int          `json:"rowNumber"`
	Cells       []Cell       `json:"cells"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Cell is one row value
type Cell struct {
	ColumnID     int64       `json:"columnId"`
	Value        interface{} `json:"value,omitempty"`
	DisplayValue string      `json:"displayValue,omitempty"`
}

// Attachment is a file attached to a row. URL is only set by GetAttachment
// and expires shortly after it is issued.
type Attachment struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	MimeType       string `json:"mimeType,omitempty"`
	AttachmentType string `json:"attachmentType,omitempty"`
	SizeInKb       int64  `json:"sizeInKb,omitempty"`
	URL            string `json:"url,omitempty"`
}

// IsFile reports whether the attachment is an uploaded file rather than a link
func (a Attachment) IsFile() bool {
	return a.AttachmentType == "" || strings.EqualFold(a.AttachmentType, "FILE")
}

// ColumnTitles maps column id to title
func (s *Sheet) ColumnTitles() map[int64]string {
	titles := make(map[int64]string, len(s.Columns))
	for _, c := range s.Columns {
		titles[c.ID] = c.Title
	}
	return titles
}

// Values returns the row's cells keyed by column title. Cells for unknown
// columns and empty cells are left out.
func (r Row) Values(titles map[int64]string) map[string]string {
	out := make(map[string]string, len(r.Cells))
	for _, c := range r.Cells {
		title, ok := titles[c.ColumnID]
		if !ok {
			continue
		}
		if v := c.String(); v != "" {
			out[title] = v
		}
	}
	return out
}

// String renders the cell as text, preferring the display value
func (c Cell) String() string {
	if c.DisplayValue != "" {
		return c.DisplayValue
	}
	switch v := c.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// APIError is an error response from the API
type APIError struct {
	StatusCode int    `json:"-"`
	ErrorCode  int    `json:"errorCode"`
	Message    string `json:"message"`
	RefID      string `json:"refId,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("smartsheet: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("smartsheet: HTTP %d: %s (code %d)", e.StatusCode, e.Message, e.ErrorCode)
}

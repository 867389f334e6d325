package records

import (
	"time"
)

// RecordType distinguishes the kinds of submissions employees report
type RecordType string

const (
	TypeInjury      RecordType = "Injury Report"
	TypeObservation RecordType = "Observation Report"
	TypeRecognition RecordType = "Recognition"
)

// Submission statuses
const (
	StatusDraft         = "Draft"
	StatusOpen          = "Open"
	StatusInProgress    = "In Progress"
	StatusPendingReview = "Pending Review"
	StatusRejected      = "Rejected"
	StatusCompleted     = "Completed"
	StatusClose         = "Close"
)

var statuses = map[string]struct{}{
	StatusDraft: {}, StatusOpen: {}, StatusInProgress: {}, StatusPendingReview: {},
	StatusRejected: {}, StatusCompleted: {}, StatusClose: {},
}

// ValidStatus reports whether s is a known workflow status
func ValidStatus(s string) bool {
	_, ok := statuses[s]
	return ok
}

// ValidRecordType reports whether t is one of the submission kinds
func ValidRecordType(t RecordType) bool {
	switch t {
	case TypeInjury, TypeObservation, TypeRecognition:
		return true
	}
	return false
}

// Filter field names shared by the store, the filter builder and the
// managed list API
const (
	FieldID              = "id"
	FieldHierarchyString = "hierarchyString"
	FieldStatus          = "status"
	FieldRecordType      = "recordType"
	FieldCreatedBy       = "createdBy"
)

// CultureFlags are the recognition checkboxes
type CultureFlags struct {
	SafetyFocused        bool `json:"safetyFocused"`
	ContinualImprovement bool `json:"continualImprovement"`
	Accountability       bool `json:"accountability"`
	Integrity            bool `json:"integrity"`
	Teamwork             bool `json:"teamwork"`
	CustomerFocus        bool `json:"customerFocus"`
}

// Any reports whether at least one flag is set
func (c CultureFlags) Any() bool {
	return c.SafetyFocused || c.ContinualImprovement || c.Accountability ||
		c.Integrity || c.Teamwork || c.CustomerFocus
}

// Submission is an injury, observation or recognition record
type Submission struct {
	ID               string       `json:"id"`
	SubmissionID     string       `json:"submissionId"`
	RecordType       RecordType   `json:"recordType"`
	Status           string       `json:"status"`
	HierarchyString  string       `json:"hierarchyString"`
	CreatedBy        string       `json:"createdBy"`
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	Location         string       `json:"location"`
	EmployeeName     string       `json:"employeeName"`
	IncidentDate     string       `json:"incidentDate"`
	IncidentHour     string       `json:"incidentHour"`
	IncidentMinute   string       `json:"incidentMinute"`
	IncidentAmPm     string       `json:"incidentAmPm"`
	InjuryType       string       `json:"injuryType,omitempty"`
	BodyPart         string       `json:"bodyPart,omitempty"`
	RecognizedPerson string       `json:"recognizedPerson,omitempty"`
	CultureFlags     CultureFlags `json:"cultureFlags"`
	AttachmentKeys   []string     `json:"attachmentKeys"`
	Source           string       `json:"source,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

// GetHierarchyString returns the owning location path
func (s *Submission) GetHierarchyString() string {
	if s == nil {
		return ""
	}
	return s.HierarchyString
}

// GetStatus returns the workflow status
func (s *Submission) GetStatus() string {
	if s == nil {
		return ""
	}
	return s.Status
}

// FieldValue exposes filterable fields for in-memory matching
func (s *Submission) FieldValue(field string) (string, bool) {
	if s == nil {
		return "", false
	}
	switch field {
	case FieldID:
		return s.ID, true
	case FieldHierarchyString:
		return s.HierarchyString, true
	case FieldStatus:
		return s.Status, true
	case FieldRecordType:
		return string(s.RecordType), true
	case FieldCreatedBy:
		return s.CreatedBy, true
	default:
		return "", false
	}
}

// ListOptions bounds a list query
type ListOptions struct {
	Limit  int
	Offset int
}

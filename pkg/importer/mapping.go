package importer

import (
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/sims/pkg/records"
)

// RecordID is the natural key of an imported record
func RecordID(sheetType, autoNumber string) string {
	return sheetType + "_" + autoNumber
}

// valueOr returns the first non-empty of the column cell, the fallback
// column cell and the literal default
func valueOr(values map[string]string, m FieldMapping) string {
	if v := strings.TrimSpace(values[m.Column]); m.Column != "" && v != "" {
		return v
	}
	if v := strings.TrimSpace(values[m.Fallback]); m.Fallback != "" && v != "" {
		return v
	}
	return m.Default
}

// TimeOfDay is a time split into the form fields records use
type TimeOfDay struct {
	Hour   string
	Minute string
	AmPm   string
}

var timeLayouts = []string{
	"3:04 PM",
	"3:04PM",
	"3:04:05 PM",
	"3:04:05PM",
	"15:04",
	"15:04:05",
}

// ParseTimeOfDay parses 12- and 24-hour times such as "2:30 PM" or "14:30".
// The hour is 1-12 without padding and the minute is two digits.
func ParseTimeOfDay(s string) (TimeOfDay, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return TimeOfDay{}, false
	}
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return TimeOfDay{Hour: t.Format("3"), Minute: t.Format("04"), AmPm: t.Format("PM")}, true
	}
	return TimeOfDay{}, false
}

// DecodeCultureFlags reads a checkbox text blob. Each flag is set when its
// phrase appears anywhere in s, ignoring case.
func DecodeCultureFlags(s string) records.CultureFlags {
	s = strings.ToLower(s)
	return records.CultureFlags{
		SafetyFocused:        strings.Contains(s, "safety"),
		ContinualImprovement: strings.Contains(s, "continual improvement"),
		Accountability:       strings.Contains(s, "accountab"),
		Integrity:            strings.Contains(s, "integrity"),
		Teamwork:             strings.Contains(s, "teamwork"),
		CustomerFocus:        strings.Contains(s, "customer"),
	}
}

// MapRow projects a staged row onto a submission keyed by its natural key
func (c SheetConfig) MapRow(row StagedRow) (*records.Submission, error) {
	get := func(field string) string {
		return valueOr(row.Values, c.Fields[field])
	}

	autoNumber := get(FieldSubmissionID)
	if autoNumber == "" {
		return nil, fmt.Errorf("row %d has no %q value", row.RowNumber, c.Fields[FieldSubmissionID].Column)
	}

	sub := &records.Submission{
		ID:               RecordID(c.SheetType, autoNumber),
		SubmissionID:     autoNumber,
		RecordType:       c.RecordType,
		Status:           get(FieldStatus),
		HierarchyString:  get(FieldHierarchyString),
		CreatedBy:        get(FieldCreatedBy),
		Title:            get(FieldTitle),
		Description:      get(FieldDescription),
		Location:         get(FieldLocation),
		EmployeeName:     get(FieldEmployeeName),
		IncidentDate:     get(FieldIncidentDate),
		InjuryType:       get(FieldInjuryType),
		BodyPart:         get(FieldBodyPart),
		RecognizedPerson: get(FieldRecognizedPerson),
		CultureFlags:     DecodeCultureFlags(get(FieldCultureFlags)),
		AttachmentKeys:   []string{},
		Source:           fmt.Sprintf("smartsheet:%s", row.ID),
	}
	if sub.Status == "" {
		sub.Status = records.StatusOpen
	}
	if tod, ok := ParseTimeOfDay(get(FieldIncidentTime)); ok {
		sub.IncidentHour = tod.Hour
		sub.IncidentMinute = tod.Minute
		sub.IncidentAmPm = tod.AmPm
	}
	return sub, nil
}

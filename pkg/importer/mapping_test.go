package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/sims/pkg/records"
)

func TestValueOr(t *testing.T) {
	values := map[string]string{"Primary": "a", "Secondary": "b", "Blank": "   "}

	assert.Equal(t, "a", valueOr(values, FieldMapping{Column: "Primary", Fallback: "Secondary", Default: "c"}))
	assert.Equal(t, "b", valueOr(values, FieldMapping{Column: "Blank", Fallback: "Secondary", Default: "c"}))
	assert.Equal(t, "c", valueOr(values, FieldMapping{Column: "Missing", Fallback: "Gone", Default: "c"}))
	assert.Equal(t, "", valueOr(values, FieldMapping{Column: "Missing"}))
	assert.Equal(t, "", valueOr(values, FieldMapping{}))
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in   string
		want TimeOfDay
		ok   bool
	}{
		{"2:30 PM", TimeOfDay{"2", "30", "PM"}, true},
		{"2:30pm", TimeOfDay{"2", "30", "PM"}, true},
		{"11:05:00 am", TimeOfDay{"11", "05", "AM"}, true},
		{"14:30", TimeOfDay{"2", "30", "PM"}, true},
		{"00:15", TimeOfDay{"12", "15", "AM"}, true},
		{"12:00:00", TimeOfDay{"12", "00", "PM"}, true},
		{"", TimeOfDay{}, false},
		{"noon", TimeOfDay{}, false},
		{"25:00", TimeOfDay{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTimeOfDay(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeCultureFlags(t *testing.T) {
	flags := DecodeCultureFlags("Continual Improvement, Safety")
	assert.Equal(t, records.CultureFlags{SafetyFocused: true, ContinualImprovement: true}, flags)

	flags = DecodeCultureFlags("ACCOUNTABILITY; Integrity; Teamwork; Customer Focus")
	assert.Equal(t, records.CultureFlags{Accountability: true, Integrity: true, Teamwork: true, CustomerFocus: true}, flags)

	assert.False(t, DecodeCultureFlags("").Any())
	assert.False(t, DecodeCultureFlags("Improvement").ContinualImprovement)
}

func TestSheetConfig_MapRow(t *testing.T) {
	reg := testRegistry(t)
	injury, _ := reg.Lookup("injury")

	sub, err := injury.MapRow(StagedRow{
		ID:        "1001:9001",
		RowNumber: 1,
		Values: map[string]string{
			"Auto Number":      "INJ-0001",
			"Name":             "Pat Doe",
			"Summary":          "Cut on hand",
			"Time":             "14:45",
			"Hierarchy String": "ITW>Automotive OEM>PlantX",
			"Body Part":        "Hand",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "injury_INJ-0001", sub.ID)
	assert.Equal(t, "INJ-0001", sub.SubmissionID)
	assert.Equal(t, records.TypeInjury, sub.RecordType)
	assert.Equal(t, records.StatusOpen, sub.Status)
	assert.Equal(t, "Pat Doe", sub.EmployeeName)
	assert.Equal(t, "Cut on hand", sub.Title)
	assert.Equal(t, "Other", sub.InjuryType)
	assert.Equal(t, "Hand", sub.BodyPart)
	assert.Equal(t, "smartsheet-import", sub.CreatedBy)
	assert.Equal(t, "ITW>Automotive OEM>PlantX", sub.HierarchyString)
	assert.Equal(t, "2", sub.IncidentHour)
	assert.Equal(t, "45", sub.IncidentMinute)
	assert.Equal(t, "PM", sub.IncidentAmPm)
	assert.Equal(t, "smartsheet:1001:9001", sub.Source)
	assert.Empty(t, sub.AttachmentKeys)

	_, err = injury.MapRow(StagedRow{RowNumber: 2, Values: map[string]string{"Name": "x"}})
	assert.Error(t, err)
}

func TestSheetConfig_MapRow_Recognition(t *testing.T) {
	reg := testRegistry(t)
	recognition, _ := reg.Lookup("recognition")

	sub, err := recognition.MapRow(StagedRow{Values: map[string]string{
		"Auto Number":       "7",
		"Recognized Person": "Sam",
		"Culture":           "Teamwork, Customer",
		"Status":            records.StatusPendingReview,
	}})
	require.NoError(t, err)
	assert.Equal(t, "recognition_7", sub.ID)
	assert.Equal(t, "Sam", sub.RecognizedPerson)
	assert.True(t, sub.CultureFlags.Teamwork)
	assert.True(t, sub.CultureFlags.CustomerFocus)
	assert.False(t, sub.CultureFlags.SafetyFocused)
	assert.Equal(t, records.StatusPendingReview, sub.Status)
	assert.Empty(t, sub.IncidentHour)
}

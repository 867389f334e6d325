package importer

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/sims/pkg/records"
)

// ErrUnknownSheetType is returned for a sheet type missing from the registry
var ErrUnknownSheetType = errors.New("unknown sheet type")

// Target fields a column can be mapped to
const (
	FieldSubmissionID     = "submissionId"
	FieldTitle            = "title"
	FieldDescription      = "description"
	FieldLocation         = "location"
	FieldEmployeeName     = "employeeName"
	FieldIncidentDate     = "incidentDate"
	FieldIncidentTime     = "incidentTime"
	FieldInjuryType       = "injuryType"
	FieldBodyPart         = "bodyPart"
	FieldRecognizedPerson = "recognizedPerson"
	FieldCultureFlags     = "cultureFlags"
	FieldHierarchyString  = "hierarchyString"
	FieldCreatedBy        = "createdBy"
	FieldStatus           = "status"
)

// FieldMapping says where a target field's value comes from. The value is
// the Column cell, else the Fallback column cell, else Default.
type FieldMapping struct {
	Column   string `yaml:"column"`
	Fallback string `yaml:"fallback,omitempty"`
	Default  string `yaml:"default,omitempty"`
}

// SheetConfig describes one importable sheet
type SheetConfig struct {
	SheetType  string                  `yaml:"-"`
	SheetID    string                  `yaml:"sheetId"`
	RecordType records.RecordType      `yaml:"recordType"`
	Fields     map[string]FieldMapping `yaml:"fields"`
}

// Registry maps sheet types to their sheets. It is loaded once at startup.
type Registry struct {
	Sheets map[string]SheetConfig `yaml:"sheets"`
}

// LoadRegistry reads a registry from a YAML file
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet registry: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry parses registry YAML. Fields not listed for a sheet keep the
// defaults for its record type.
func ParseRegistry(data []byte) (*Registry, error) {
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse sheet registry: %w", err)
	}
	if len(reg.Sheets) == 0 {
		return nil, fmt.Errorf("sheet registry has no sheets")
	}

	for sheetType, cfg := range reg.Sheets {
		if cfg.SheetID == "" {
			return nil, fmt.Errorf("sheet %q: sheetId is required", sheetType)
		}
		if cfg.RecordType == "" {
			return nil, fmt.Errorf("sheet %q: recordType is required", sheetType)
		}
		fields := DefaultFields(cfg.RecordType)
		for name, m := range cfg.Fields {
			fields[name] = m
		}
		if fields[FieldSubmissionID].Column == "" {
			return nil, fmt.Errorf("sheet %q: no column mapped to %s", sheetType, FieldSubmissionID)
		}
		cfg.SheetType = sheetType
		cfg.Fields = fields
		reg.Sheets[sheetType] = cfg
	}
	return &reg, nil
}

// Lookup returns the config for sheetType
func (r *Registry) Lookup(sheetType string) (SheetConfig, error) {
	cfg, ok := r.Sheets[sheetType]
	if !ok {
		return SheetConfig{}, fmt.Errorf("%w: %s", ErrUnknownSheetType, sheetType)
	}
	return cfg, nil
}

// Types returns the registered sheet types in sorted order
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.Sheets))
	for t := range r.Sheets {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// DefaultFields returns the standard column layout for a record type
func DefaultFields(rt records.RecordType) map[string]FieldMapping {
	fields := map[string]FieldMapping{
		FieldSubmissionID:    {Column: "Auto Number"},
		FieldTitle:           {Column: "Title", Fallback: "Summary"},
		FieldDescription:     {Column: "Description"},
		FieldLocation:        {Column: "Location", Fallback: "Plant"},
		FieldIncidentDate:    {Column: "Date"},
		FieldIncidentTime:    {Column: "Time"},
		FieldHierarchyString: {Column: "Hierarchy String"},
		FieldCreatedBy:       {Column: "Submitted By", Default: "smartsheet-import"},
		FieldStatus:          {Column: "Status", Default: records.StatusOpen},
	}
	switch rt {
	case records.TypeInjury:
		fields[FieldEmployeeName] = FieldMapping{Column: "Employee Name", Fallback: "Name"}
		fields[FieldInjuryType] = FieldMapping{Column: "Injury Type", Default: "Other"}
		fields[FieldBodyPart] = FieldMapping{Column: "Body Part"}
	case records.TypeObservation:
		fields[FieldEmployeeName] = FieldMapping{Column: "Observer Name", Fallback: "Name"}
	case records.TypeRecognition:
		fields[FieldEmployeeName] = FieldMapping{Column: "Submitter Name", Fallback: "Name"}
		fields[FieldRecognizedPerson] = FieldMapping{Column: "Recognized Person"}
		fields[FieldCultureFlags] = FieldMapping{Column: "Culture"}
	}
	return fields
}

package services

import (
	"fmt"
	"sort"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"
)

// Canonical field names understood by the validation engine
const (
	FieldRecordType  = "record_type"
	FieldPersonID    = "person_id"
	FieldDisplayName = "display_name"
	FieldEmail       = "email"
	FieldActive      = "active"
	FieldGroupID     = "group_id"
	FieldGroupType   = "group_type"
	FieldGroupName   = "group_name"
	FieldRole        = "role"
	FieldValidFrom   = "valid_from"
	FieldValidTo     = "valid_to"
)

var canonicalFields = map[string]struct{}{
	FieldRecordType:  {},
	FieldPersonID:    {},
	FieldDisplayName: {},
	FieldEmail:       {},
	FieldActive:      {},
	FieldGroupID:     {},
	FieldGroupType:   {},
	FieldGroupName:   {},
	FieldRole:        {},
	FieldValidFrom:   {},
	FieldValidTo:     {},
}

// IsCanonicalField reports whether key names a canonical field
func IsCanonicalField(key string) bool {
	_, ok := canonicalFields[models.NormalizeFieldKey(key)]
	return ok
}

// CanonicalFields returns the canonical vocabulary in sorted order
func CanonicalFields() []string {
	fields := make([]string, 0, len(canonicalFields))
	for f := range canonicalFields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// MappingValidationResult is the outcome of checking a candidate field mapping
type MappingValidationResult struct {
	Normalized map[string]string `json:"normalized"`
	Valid      bool              `json:"valid"`
	Errors     []string          `json:"errors,omitempty"`
}

// normalizeMappings folds keys and values of a field mapping and reports every
// problem found. Keys are visited in sorted order so errors are stable.
func normalizeMappings(fieldMappings map[string]string) MappingValidationResult {
	result := MappingValidationResult{Normalized: make(map[string]string, len(fieldMappings))}
	if len(fieldMappings) == 0 {
		result.Errors = append(result.Errors, "field mappings must not be empty")
		return result
	}

	raw := make([]string, 0, len(fieldMappings))
	for k := range fieldMappings {
		raw = append(raw, k)
	}
	sort.Strings(raw)

	targets := make(map[string]string, len(fieldMappings))
	for _, rawSource := range raw {
		source := models.NormalizeFieldKey(rawSource)
		target := models.NormalizeFieldKey(fieldMappings[rawSource])

		switch {
		case source == "":
			result.Errors = append(result.Errors, "source field names must not be empty")
			continue
		case target == "":
			result.Errors = append(result.Errors, fmt.Sprintf("source field %q maps to an empty canonical field", source))
			continue
		}
		if _, dup := result.Normalized[source]; dup {
			result.Errors = append(result.Errors, fmt.Sprintf("source field %q is mapped more than once", source))
			continue
		}
		if _, ok := canonicalFields[target]; !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("canonical field %q is unknown", target))
			continue
		}
		if other, taken := targets[target]; taken {
			result.Errors = append(result.Errors, fmt.Sprintf("source fields %q and %q both map to %q", other, source, target))
			continue
		}
		targets[target] = source
		result.Normalized[source] = target
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// MappedRecord is a source record translated to canonical field names
type MappedRecord struct {
	RowNumber int
	Fields    map[string]*string
}

// Value returns the non-blank value of a canonical field
func (r MappedRecord) Value(field string) (string, bool) {
	v, ok := r.Fields[field]
	if !ok || v == nil {
		return "", false
	}
	return *v, true
}

// applyMapping renames the fields of record. A nil mapping is the identity
// mapping. Unmapped source fields pass through only when they already carry a
// canonical name that no mapped field claims.
func applyMapping(record models.SourceRecord, mappings models.FieldMappings) MappedRecord {
	out := MappedRecord{RowNumber: record.RowNumber, Fields: make(map[string]*string, len(record.Fields))}

	if mappings == nil {
		for _, f := range record.Fields {
			out.Fields[f.Key] = f.Value
		}
		return out
	}

	claimed := make(map[string]struct{}, len(mappings))
	for _, target := range mappings {
		claimed[target] = struct{}{}
	}
	for _, f := range record.Fields {
		if target, ok := mappings[f.Key]; ok {
			out.Fields[target] = f.Value
			continue
		}
		if _, taken := claimed[f.Key]; taken {
			continue
		}
		if _, canonical := canonicalFields[f.Key]; canonical {
			out.Fields[f.Key] = f.Value
		}
	}
	return out
}

package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap is a custom type for map[string]interface{} that implements GORM interfaces
type JSONMap map[string]interface{}

// Value implements driver.Valuer interface for GORM
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner interface for GORM
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}

	bytes, err := scanBytes(value)
	if err != nil {
		return fmt.Errorf("cannot scan %T into JSONMap", value)
	}

	return json.Unmarshal(bytes, m)
}

// Clone returns a deep copy made through a JSON round trip. Numbers are kept
// as json.Number so their text survives.
func (m JSONMap) Clone() JSONMap {
	if m == nil {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out JSONMap
	if err := dec.Decode(&out); err != nil {
		return nil
	}
	return out
}

// FieldMappings translates source field names to canonical field names
type FieldMappings map[string]string

// Value implements driver.Valuer interface for GORM
func (f FieldMappings) Value() (driver.Value, error) {
	if f == nil {
		return json.Marshal(map[string]string{})
	}
	return json.Marshal(f)
}

// Scan implements sql.Scanner interface for GORM
func (f *FieldMappings) Scan(value interface{}) error {
	if value == nil {
		*f = make(FieldMappings)
		return nil
	}

	bytes, err := scanBytes(value)
	if err != nil {
		return fmt.Errorf("cannot scan %T into FieldMappings", value)
	}

	return json.Unmarshal(bytes, f)
}

// Clone returns a copy of the mappings.
func (f FieldMappings) Clone() FieldMappings {
	out := make(FieldMappings, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func scanBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported type %T", value)
	}
}

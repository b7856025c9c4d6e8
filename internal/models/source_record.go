package models

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Field is one key/value pair of a source record. A nil Value means the
// source supplied a blank or null value.
type Field struct {
	Key   string  `json:"key"`
	Value *string `json:"value"`
}

// SourceRecord is one row fetched from a source, in source order.
// RowNumber is 1-indexed and relative to the start of the source.
type SourceRecord struct {
	RowNumber int     `json:"row_number"`
	Fields    []Field `json:"fields"`
	RawData   string  `json:"raw_data"`
}

// NormalizeFieldKey folds a source or canonical key to its comparable form.
func NormalizeFieldKey(key string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(key)))
}

// NormalizeFieldValue maps blank values to nil.
func NormalizeFieldValue(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	v := value
	return &v
}

// Set stores a value under the normalized key, replacing an existing entry
// in place so the original key order is kept.
func (r *SourceRecord) Set(key string, value *string) {
	key = NormalizeFieldKey(key)
	for i := range r.Fields {
		if r.Fields[i].Key == key {
			r.Fields[i].Value = value
			return
		}
	}
	r.Fields = append(r.Fields, Field{Key: key, Value: value})
}

// Get returns the value stored under key and whether the key exists.
func (r SourceRecord) Get(key string) (*string, bool) {
	key = NormalizeFieldKey(key)
	for _, f := range r.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Keys returns the record keys in source order.
func (r SourceRecord) Keys() []string {
	keys := make([]string, 0, len(r.Fields))
	for _, f := range r.Fields {
		keys = append(keys, f.Key)
	}
	return keys
}

// Values returns the record as a plain map, blanks as nil.
func (r SourceRecord) Values() map[string]*string {
	values := make(map[string]*string, len(r.Fields))
	for _, f := range r.Fields {
		values[f.Key] = f.Value
	}
	return values
}

package connectors

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"

	"github.com/tidwall/gjson"
)

// JSONConnector reads records supplied inline with the request
type JSONConnector struct{}

// NewJSONConnector creates an inline JSON connector
func NewJSONConnector() *JSONConnector {
	return &JSONConnector{}
}

// SourceType returns JSON
func (c *JSONConnector) SourceType() string {
	return SourceTypeJSON
}

// LoadRecords converts the records array. Records given as raw JSON keep
// their key order; decoded maps carry none, so their keys are sorted.
func (c *JSONConnector) LoadRecords(ctx context.Context, cfg models.JSONMap) ([]models.SourceRecord, error) {
	raw, ok := lookup(cfg, "records")
	if !ok {
		return nil, models.NewConfigurationError("records is required")
	}
	if doc, isRaw := raw.(json.RawMessage); isRaw {
		return rawRecords(doc)
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, models.NewConfigurationError("records must be an array")
	}

	records := make([]models.SourceRecord, 0, len(items))
	for i, item := range items {
		obj, ok := asObject(item)
		if !ok {
			return nil, models.NewConfigurationError("records[%d] must be an object", i)
		}

		record, err := objectRecord(i+1, obj)
		if err != nil {
			return nil, models.NewConfigurationError("records[%d]: %v", i, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func rawRecords(doc json.RawMessage) ([]models.SourceRecord, error) {
	if !gjson.ValidBytes(doc) {
		return nil, models.NewConfigurationError("records is not valid JSON")
	}
	array := gjson.ParseBytes(doc)
	if !array.IsArray() {
		return nil, models.NewConfigurationError("records must be an array")
	}

	elements := array.Array()
	records := make([]models.SourceRecord, 0, len(elements))
	for i, el := range elements {
		if !el.IsObject() {
			return nil, models.NewConfigurationError("records[%d] must be an object", i)
		}
		record, err := gjsonRecord(i+1, el)
		if err != nil {
			return nil, models.NewConfigurationError("records[%d]: %v", i, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func asObject(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case models.JSONMap:
		return m, true
	}
	return nil, false
}

func objectRecord(rowNumber int, obj map[string]interface{}) (models.SourceRecord, error) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	record := models.SourceRecord{RowNumber: rowNumber}
	for _, k := range keys {
		value, err := stringifyValue(obj[k])
		if err != nil {
			return record, err
		}
		record.Set(k, value)
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return record, err
	}
	record.RawData = string(raw)
	return record, nil
}

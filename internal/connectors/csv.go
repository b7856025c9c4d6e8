package connectors

import (
	"context"
	"unicode/utf8"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/config"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CSVConnector parses inline CSV content
type CSVConnector struct {
	cfg config.CSVConnectorConfig
}

// NewCSVConnector creates a CSV connector
func NewCSVConnector(cfg config.CSVConnectorConfig) *CSVConnector {
	return &CSVConnector{cfg: cfg}
}

// SourceType returns CSV
func (c *CSVConnector) SourceType() string {
	return SourceTypeCSV
}

// LoadRecords parses content into records keyed by the header row.
// Row numbers count data rows after the header; blank rows are skipped
// but keep their number.
func (c *CSVConnector) LoadRecords(ctx context.Context, cfg models.JSONMap) ([]models.SourceRecord, error) {
	content, err := requiredString(cfg, "content")
	if err != nil {
		return nil, err
	}
	if c.cfg.MaxBytes > 0 && len(content) > c.cfg.MaxBytes {
		return nil, models.NewConfigurationError("content exceeds %d bytes", c.cfg.MaxBytes)
	}

	delimiter, err := csvDelimiter(cfg)
	if err != nil {
		return nil, err
	}

	// Strips a UTF-8 BOM, or decodes UTF-16 content announced by its BOM.
	decoded, _, err := transform.String(unicode.BOMOverride(unicode.UTF8.NewDecoder()), content)
	if err != nil {
		return nil, models.NewSourceFetchError(err, "cannot decode CSV content")
	}

	rows, err := parseCSV(decoded, delimiter)
	if err != nil {
		return nil, models.NewSourceFetchError(err, "malformed CSV")
	}

	headerIndex := -1
	for i, row := range rows {
		if !row.blank() {
			headerIndex = i
			break
		}
	}
	if headerIndex < 0 {
		return nil, models.NewConfigurationError("CSV header row is empty")
	}

	header, err := csvHeader(rows[headerIndex])
	if err != nil {
		return nil, err
	}

	records := make([]models.SourceRecord, 0, len(rows)-headerIndex-1)
	for i, row := range rows[headerIndex+1:] {
		if err := ctx.Err(); err != nil {
			return nil, models.NewSourceFetchError(err, "CSV parsing interrupted")
		}

		rowNumber := i + 1
		if row.blank() {
			continue
		}
		if len(row.fields) > len(header) {
			return nil, models.NewSourceFetchError(nil,
				"row %d on line %d has %d fields, header has %d", rowNumber, row.line, len(row.fields), len(header))
		}

		record := models.SourceRecord{RowNumber: rowNumber, RawData: row.raw}
		for col, key := range header {
			var value *string
			if col < len(row.fields) {
				value = models.NormalizeFieldValue(row.fields[col])
			}
			record.Fields = append(record.Fields, models.Field{Key: key, Value: value})
		}
		records = append(records, record)
	}

	return records, nil
}

func csvDelimiter(cfg models.JSONMap) (rune, error) {
	d, err := optionalString(cfg, "delimiter")
	if err != nil {
		return 0, err
	}
	if d == "" {
		return ',', nil
	}
	if utf8.RuneCountInString(d) != 1 {
		return 0, models.NewConfigurationError("delimiter must be a single character")
	}
	r, _ := utf8.DecodeRuneInString(d)
	if r == '"' || r == '\n' || r == '\r' {
		return 0, models.NewConfigurationError("delimiter %q is not allowed", d)
	}
	return r, nil
}

func csvHeader(row csvRow) ([]string, error) {
	header := make([]string, len(row.fields))
	seen := make(map[string]int, len(row.fields))
	for i, name := range row.fields {
		key := models.NormalizeFieldKey(name)
		if key == "" {
			return nil, models.NewConfigurationError("CSV header column %d is empty", i+1)
		}
		if prev, dup := seen[key]; dup {
			return nil, models.NewConfigurationError("duplicate CSV header %q in columns %d and %d", key, prev+1, i+1)
		}
		seen[key] = i
		header[i] = key
	}
	return header, nil
}

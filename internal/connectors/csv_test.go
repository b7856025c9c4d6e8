package connectors

import (
	"context"
	"strings"
	"testing"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/config"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadCSV(t *testing.T, content string, extra ...string) ([]models.SourceRecord, error) {
	t.Helper()
	cfg := models.JSONMap{"content": content}
	if len(extra) > 0 {
		cfg["delimiter"] = extra[0]
	}
	return NewCSVConnector(config.CSVConnectorConfig{}).LoadRecords(context.Background(), cfg)
}

func value(t *testing.T, record models.SourceRecord, key string) *string {
	t.Helper()
	v, ok := record.Get(key)
	require.True(t, ok, "missing key %s", key)
	return v
}

func TestCSVConnector_QuotedFieldWithComma(t *testing.T) {
	records, err := loadCSV(t, "person_id,display_name,active\np-1,\"Doe, Jane\",true")
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, []string{"person_id", "display_name", "active"}, records[0].Keys())
	assert.Equal(t, "p-1", *value(t, records[0], "person_id"))
	assert.Equal(t, "Doe, Jane", *value(t, records[0], "display_name"))
	assert.Equal(t, "true", *value(t, records[0], "active"))
	assert.Equal(t, 1, records[0].RowNumber)
}

func TestCSVConnector_Parsing(t *testing.T) {
	t.Run("escaped quotes and embedded newline", func(t *testing.T) {
		records, err := loadCSV(t, "id,note\r\n1,\"said \"\"hi\"\"\nthen left\"\r\n")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "said \"hi\"\nthen left", *value(t, records[0], "note"))
	})

	t.Run("BOM is stripped from first header", func(t *testing.T) {
		records, err := loadCSV(t, "\ufeffperson_id,email\np-1,a@example.com")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "p-1", *value(t, records[0], "person_id"))
	})

	t.Run("blank rows are skipped but keep row numbers", func(t *testing.T) {
		records, err := loadCSV(t, "id\n1\n\n   \n4\n")
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, 1, records[0].RowNumber)
		assert.Equal(t, 4, records[1].RowNumber)
	})

	t.Run("short rows pad with null", func(t *testing.T) {
		records, err := loadCSV(t, "a,b,c\n1,2")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Nil(t, value(t, records[0], "c"))
	})

	t.Run("blank values become null", func(t *testing.T) {
		records, err := loadCSV(t, "a,b\n1,  ")
		require.NoError(t, err)
		assert.Nil(t, value(t, records[0], "b"))
	})

	t.Run("custom delimiter", func(t *testing.T) {
		records, err := loadCSV(t, "a;b\n1;x,y", ";")
		require.NoError(t, err)
		assert.Equal(t, "x,y", *value(t, records[0], "b"))
	})

	t.Run("raw data keeps source line", func(t *testing.T) {
		records, err := loadCSV(t, "a,b\n1,\"two\"\n")
		require.NoError(t, err)
		assert.Equal(t, "1,\"two\"", records[0].RawData)
	})
}

func TestCSVConnector_Errors(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		delimiter  string
		configErr  bool
		fetchErr   bool
		errContain string
	}{
		{name: "missing content", content: "", configErr: true, errContain: "content"},
		{name: "duplicate header", content: "id,ID\n1,2", configErr: true, errContain: "duplicate"},
		{name: "empty header column", content: "id,,name\n1,2,3", configErr: true, errContain: "empty"},
		{name: "blank header row", content: " ,  \n", configErr: true, errContain: "header"},
		{name: "unterminated quote", content: "id,name\n1,\"open", fetchErr: true, errContain: "unterminated"},
		{name: "row wider than header", content: "id\n1,2", fetchErr: true, errContain: "fields"},
		{name: "bad delimiter", content: "a\n1", delimiter: "ab", configErr: true, errContain: "delimiter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				records []models.SourceRecord
				err     error
			)
			if tt.delimiter != "" {
				records, err = loadCSV(t, tt.content, tt.delimiter)
			} else {
				records, err = loadCSV(t, tt.content)
			}
			require.Error(t, err)
			assert.Nil(t, records)
			assert.Equal(t, tt.configErr, models.IsConfigurationError(err))
			assert.Equal(t, tt.fetchErr, models.IsSourceFetchError(err))
			assert.Contains(t, err.Error(), tt.errContain)
		})
	}
}

func TestCSVConnector_MaxBytes(t *testing.T) {
	c := NewCSVConnector(config.CSVConnectorConfig{MaxBytes: 8})
	_, err := c.LoadRecords(context.Background(), models.JSONMap{"content": "id\n123456789"})
	require.Error(t, err)
	assert.True(t, models.IsConfigurationError(err))
}

func encodeCSVField(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// **Feature: audience-ingestion, Property 3: CSV round trip**
func TestCSVRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	fieldGen := gen.SliceOf(gen.OneConstOf('a', 'Z', ',', '"', '\n', ' ', 'é', '1')).
		Map(func(rs []rune) string {
			return string(rs)
		})
	rowGen := gen.SliceOfN(3, fieldGen)

	properties.Property("quoted rows parse back to their values", prop.ForAll(
		func(rows [][]string) bool {
			var b strings.Builder
			b.WriteString("c1,c2,c3\n")
			for _, row := range rows {
				encoded := make([]string, len(row))
				for i, f := range row {
					encoded[i] = encodeCSVField(f)
				}
				b.WriteString(strings.Join(encoded, ","))
				b.WriteString("\r\n")
			}

			records, err := loadCSV(t, b.String())
			if err != nil || len(records) != len(rows) {
				return false
			}
			for i, row := range rows {
				if records[i].RowNumber != i+1 {
					return false
				}
				for col, f := range row {
					got := records[i].Fields[col].Value
					want := models.NormalizeFieldValue(f)
					if (got == nil) != (want == nil) {
						return false
					}
					if got != nil && *got != *want {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(rowGen),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

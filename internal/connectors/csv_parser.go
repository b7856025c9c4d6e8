package connectors

import (
	"fmt"
	"strings"
)

// csvRow is one physical record of a CSV document
type csvRow struct {
	fields []string
	quoted bool
	line   int
	raw    string
}

func (r csvRow) blank() bool {
	if r.quoted {
		return false
	}
	for _, f := range r.fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// unterminatedQuoteError reports a quoted field left open at end of input
type unterminatedQuoteError struct {
	line int
}

func (e *unterminatedQuoteError) Error() string {
	return fmt.Sprintf("unterminated quoted field starting on line %d", e.line)
}

// parseCSV splits content into rows. It accepts quoted fields with doubled
// quote escapes, delimiters and newlines inside quotes, and LF or CRLF line
// endings. A quote that does not start a field is kept literally.
func parseCSV(content string, delimiter rune) ([]csvRow, error) {
	runes := []rune(content)

	var (
		rows       []csvRow
		fields     []string
		field      strings.Builder
		inQuotes   bool
		quoted     bool
		fieldQuote bool
		line       = 1
		rowLine    = 1
		quoteLine  = 1
		rowStart   = 0
	)

	endField := func() {
		fields = append(fields, field.String())
		field.Reset()
		fieldQuote = false
	}
	endRow := func(end int) {
		endField()
		rows = append(rows, csvRow{
			fields: fields,
			quoted: quoted,
			line:   rowLine,
			raw:    string(runes[rowStart:end]),
		})
		fields = nil
		quoted = false
	}

	for i := 0; i < len(runes); i++ {
		c := runes[i]

		if inQuotes {
			switch {
			case c == '"' && i+1 < len(runes) && runes[i+1] == '"':
				field.WriteRune('"')
				i++
			case c == '"':
				inQuotes = false
			default:
				if c == '\n' {
					line++
				}
				field.WriteRune(c)
			}
			continue
		}

		switch c {
		case '"':
			if field.Len() == 0 && !fieldQuote {
				inQuotes = true
				fieldQuote = true
				quoted = true
				quoteLine = line
				continue
			}
			field.WriteRune(c)
		case delimiter:
			endField()
		case '\r':
			if i+1 < len(runes) && runes[i+1] == '\n' {
				endRow(i)
				i++
			} else {
				endRow(i)
			}
			line++
			rowLine = line
			rowStart = i + 1
		case '\n':
			endRow(i)
			line++
			rowLine = line
			rowStart = i + 1
		default:
			field.WriteRune(c)
		}
	}

	if inQuotes {
		return nil, &unterminatedQuoteError{line: quoteLine}
	}
	if field.Len() > 0 || len(fields) > 0 || fieldQuote {
		endRow(len(runes))
	}
	return rows, nil
}

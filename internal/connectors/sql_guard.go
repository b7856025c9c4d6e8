package connectors

import (
	"regexp"
	"strings"
)

var (
	lineComment   = regexp.MustCompile(`--[^\n]*`)
	blockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	quotedLiteral = regexp.MustCompile(`'(?:[^']|'')*'|"(?:[^"]|"")*"`)
	sqlWord       = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
)

var forbiddenSQLKeywords = map[string]bool{
	"insert": true, "update": true, "delete": true, "merge": true, "upsert": true,
	"drop": true, "create": true, "alter": true, "truncate": true, "rename": true,
	"grant": true, "revoke": true, "call": true, "exec": true, "execute": true,
	"copy": true, "attach": true, "detach": true, "pragma": true, "vacuum": true,
	"reindex": true, "into": true,
}

// checkSelectOnly accepts a single read-only SELECT (optionally introduced
// by WITH) and returns it with comments removed and any trailing semicolon
// dropped.
func checkSelectOnly(query string) (string, error) {
	stripped := blockComment.ReplaceAllString(query, " ")
	stripped = lineComment.ReplaceAllString(stripped, " ")
	stripped = strings.TrimSpace(stripped)
	stripped = strings.TrimSpace(strings.TrimSuffix(stripped, ";"))
	if stripped == "" {
		return "", errEmptyQuery
	}

	scan := quotedLiteral.ReplaceAllString(stripped, "''")
	if strings.Contains(scan, ";") {
		return "", errMultipleStatements
	}

	words := sqlWord.FindAllString(scan, -1)
	if len(words) == 0 {
		return "", errNotSelect
	}
	first := strings.ToLower(words[0])
	if first != "select" && first != "with" {
		return "", errNotSelect
	}
	for _, w := range words {
		if forbiddenSQLKeywords[strings.ToLower(w)] {
			return "", &forbiddenKeywordError{keyword: strings.ToUpper(w)}
		}
	}
	return stripped, nil
}

type sqlGuardError string

func (e sqlGuardError) Error() string { return string(e) }

const (
	errEmptyQuery         = sqlGuardError("query is empty")
	errMultipleStatements = sqlGuardError("query must be a single statement")
	errNotSelect          = sqlGuardError("query must be a SELECT statement")
)

type forbiddenKeywordError struct {
	keyword string
}

func (e *forbiddenKeywordError) Error() string {
	return "query contains forbidden keyword " + e.keyword
}

package database

import "regexp"

var passwordPattern = regexp.MustCompile(`(?i)(password=)\S+`)

func redactPassword(s string) string {
	return passwordPattern.ReplaceAllString(s, "${1}***")
}

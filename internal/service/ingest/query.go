package ingest

import (
	"strings"
	"time"

	"github.com/sanju9645/sumo-insight-backend/internal/sumologic"
)

// unescapeQueryTemplate restores literal whitespace in a query template that
// the configuration store keeps with escaped control characters: escaped
// newlines become spaces, remaining backslashes are stripped.
func unescapeQueryTemplate(template string) string {
	q := strings.ReplaceAll(template, `\n`, " ")
	return strings.ReplaceAll(q, `\`, "")
}

// buildSearchRequest scopes the query template to a single UTC calendar day.
// The template's syntax is not validated here; a malformed query fails at the
// search-service boundary.
func buildSearchRequest(template string, day time.Time) sumologic.SearchJobRequest {
	date := day.UTC().Format("2006-01-02")
	return sumologic.SearchJobRequest{
		Query:    unescapeQueryTemplate(template),
		From:     date + "T00:00:00",
		To:       date + "T23:59:59",
		TimeZone: "UTC",
	}
}

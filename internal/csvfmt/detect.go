// Package csvfmt detects glucose CSV export dialects and parses them
// into normalized readings.
package csvfmt

import "strings"

// Dialect identifies a recognized CSV export format variant.
type Dialect string

const (
	// DialectContour is the Ascensia Contour meter export format.
	DialectContour Dialect = "contour"
	// DialectGenericDateTime is an unrecognized export that still carries
	// glucose keywords or a date+time header row.
	DialectGenericDateTime Dialect = "generic-datetime"
	// DialectGenericDelimited is the structural fallback: delimited rows
	// with no recognizable header.
	DialectGenericDelimited Dialect = "generic-delimited"
	// DialectUnknown means no heuristic matched.
	DialectUnknown Dialect = "unknown"
)

// vendor marker substrings, matched case-insensitively anywhere in the file.
var contourMarkers = []string{"contour", "ascensia"}

// domain keywords that identify a glucose export even without vendor markers.
var glucoseKeywords = []string{"glucose", "mg/dl", "mmol/l", "blood sugar"}

var dateTokens = []string{"date", "day"}
var timeTokens = []string{"time", "hour", "clock"}

// Detect classifies a set of non-blank lines into a dialect. Heuristics run
// in priority order: vendor markers, then domain keywords, then a header row
// carrying both a date-like and a time-like token, then a minimal structural
// fallback (any line with at least 3 comma-separated fields). First match
// wins. Pure function of the input.
func Detect(lines []string) Dialect {
	for _, line := range lines {
		lower := strings.ToLower(line)
		for _, m := range contourMarkers {
			if strings.Contains(lower, m) {
				return DialectContour
			}
		}
	}

	for _, line := range lines {
		lower := strings.ToLower(line)
		for _, kw := range glucoseKeywords {
			if strings.Contains(lower, kw) {
				return DialectGenericDateTime
			}
		}
	}

	for _, line := range lines {
		lower := strings.ToLower(line)
		if containsAny(lower, dateTokens) && containsAny(lower, timeTokens) {
			return DialectGenericDateTime
		}
	}

	for _, line := range lines {
		if len(strings.Split(line, ",")) >= 3 {
			return DialectGenericDelimited
		}
	}

	return DialectUnknown
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

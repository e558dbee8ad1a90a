package csvfmt

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jwulff/glucosync/internal/glucose"
)

// syntheticSpacing is the gap between synthesized timestamps when a row
// carries no usable timestamp field.
const syntheticSpacing = time.Minute

// decimalPattern matches a field that is nothing but a decimal number.
// A comma decimal separator is accepted for European exports.
var decimalPattern = regexp.MustCompile(`^[0-9]+([.,][0-9]+)?$`)

// timestampLayouts are tried in order against fields of generic rows.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"01/02/2006 15:04",
	"02.01.2006 15:04",
	"2006-01-02",
}

// ParseResult aggregates the outcome of parsing one file. Malformed rows
// are counted in SkippedRows rather than surfaced as errors. Synthetic is
// set when zero readings could be extracted and the fixed diagnostic
// fallback set was returned instead; callers must warn the user before
// treating those readings as real data.
type ParseResult struct {
	Readings    []glucose.Reading
	SkippedRows int
	Synthetic   bool
}

// Parser converts classified CSV lines into readings. The zero value is
// not usable; use NewParser. Parsers are stateless and safe for concurrent
// use on independent inputs.
type Parser struct {
	now func() time.Time
	loc *time.Location
}

// NewParser returns a parser resolving local timestamps in the system zone.
func NewParser() *Parser {
	return &Parser{now: time.Now, loc: time.Local}
}

// NewParserAt returns a parser with a fixed clock and zone, for
// deterministic parsing in tests.
func NewParserAt(now func() time.Time, loc *time.Location) *Parser {
	return &Parser{now: now, loc: loc}
}

// Parse converts lines of the given dialect into readings. It never fails
// on readable input: rows that cannot be extracted are skipped and counted.
// Re-parsing the same lines yields the same result.
func (p *Parser) Parse(lines []string, d Dialect) ParseResult {
	var res ParseResult
	switch d {
	case DialectContour:
		res = p.parseContour(lines)
	default:
		res = p.parseGeneric(lines)
	}

	if len(res.Readings) == 0 {
		res.Readings = p.diagnosticReadings()
		res.Synthetic = true
	}
	return res
}

// parseContour handles the fixed Contour export layout:
//
//	Date,Time,Reading (mg/dL),Meal Marker
//	2024-01-15,08:30,104,Before Meal
func (p *Parser) parseContour(lines []string) ParseResult {
	var res ParseResult
	start := headerIndex(lines) + 1

	for _, line := range lines[start:] {
		fields := splitFields(line, ",")
		if len(fields) < 3 {
			res.SkippedRows++
			continue
		}

		ts, ok := p.parseDateTime(fields[0], fields[1])
		if !ok {
			res.SkippedRows++
			continue
		}
		value, ok := parseDecimal(fields[2])
		if !ok || value <= 0 {
			res.SkippedRows++
			continue
		}

		meal := glucose.MealUnknown
		if len(fields) > 3 {
			meal = glucose.ParseMealMarker(fields[3])
		}

		res.Readings = append(res.Readings, glucose.Reading{
			Value:     value,
			Timestamp: ts,
			Meal:      meal,
		})
	}
	return res
}

// parseGeneric is the tolerant path for exports without a fully-specified
// layout. The first field that is a positive decimal number becomes the
// value. Timestamps are taken from the row when any field parses as one;
// otherwise they are synthesized relative to now, spaced so that later rows
// map to later or equal times. Synthesized timestamps are best-effort and
// carry no accuracy guarantee.
func (p *Parser) parseGeneric(lines []string) ParseResult {
	var res ParseResult
	start := headerIndex(lines) + 1
	data := lines[start:]
	delim := detectDelimiter(lines)
	now := p.now()

	for i, line := range data {
		fields := splitFields(line, delim)

		value, ok := firstDecimal(fields)
		if !ok || value <= 0 {
			res.SkippedRows++
			continue
		}

		ts, ok := p.firstTimestamp(fields)
		if !ok {
			offset := time.Duration(len(data)-1-i) * syntheticSpacing
			ts = now.Add(-offset)
		}

		meal := glucose.MealUnknown
		for _, f := range fields {
			if m := glucose.ParseMealMarker(f); m != glucose.MealUnknown {
				meal = m
				break
			}
		}

		res.Readings = append(res.Readings, glucose.Reading{
			Value:     value,
			Timestamp: ts,
			Meal:      meal,
		})
	}
	return res
}

// diagnosticReadings is the fixed fallback set returned when a file yields
// zero readings. Values are deliberately unremarkable; the Synthetic flag
// is what tells callers these are not real measurements.
func (p *Parser) diagnosticReadings() []glucose.Reading {
	now := p.now()
	return []glucose.Reading{
		{Value: 110, Timestamp: now.Add(-10 * time.Minute), Meal: glucose.MealUnknown},
		{Value: 120, Timestamp: now.Add(-5 * time.Minute), Meal: glucose.MealUnknown},
		{Value: 130, Timestamp: now, Meal: glucose.MealUnknown},
	}
}

// headerIndex returns the index of the first line carrying a date, time, or
// glucose keyword, or -1 when no such line exists (data then starts at 0).
func headerIndex(lines []string) int {
	for i, line := range lines {
		lower := strings.ToLower(line)
		if containsAny(lower, glucoseKeywords) ||
			(containsAny(lower, dateTokens) && containsAny(lower, timeTokens)) {
			return i
		}
	}
	return -1
}

// detectDelimiter picks semicolons over commas when the file leans that way.
func detectDelimiter(lines []string) string {
	commas, semis := 0, 0
	for _, line := range lines {
		commas += strings.Count(line, ",")
		semis += strings.Count(line, ";")
	}
	if semis > commas {
		return ";"
	}
	return ","
}

func splitFields(line, delim string) []string {
	fields := strings.Split(line, delim)
	for i, f := range fields {
		fields[i] = strings.TrimSpace(f)
	}
	return fields
}

func firstDecimal(fields []string) (float64, bool) {
	for _, f := range fields {
		if v, ok := parseDecimal(f); ok {
			return v, true
		}
	}
	return 0, false
}

func parseDecimal(s string) (float64, bool) {
	if !decimalPattern.MatchString(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (p *Parser) firstTimestamp(fields []string) (time.Time, bool) {
	for i, f := range fields {
		// date and time exported as adjacent fields take priority over a
		// bare date field
		if i+1 < len(fields) {
			if ts, ok := p.parseTimestamp(f + " " + fields[i+1]); ok {
				return ts, true
			}
		}
		if ts, ok := p.parseTimestamp(f); ok {
			return ts, true
		}
	}
	return time.Time{}, false
}

func (p *Parser) parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, p.loc); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func (p *Parser) parseDateTime(date, clock string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02 15:04:05", "01/02/2006 15:04", "02.01.2006 15:04"} {
		if ts, err := time.ParseInLocation(layout, date+" "+clock, p.loc); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

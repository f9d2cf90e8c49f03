// Package normalize converts messy spreadsheet cell values into canonical
// types. Every function is best-effort: unparseable input yields the zero
// value (empty string or nil pointer), never an error.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonDigitRe   = regexp.MustCompile(`\D`)
	token3Re     = regexp.MustCompile(`\b3\b`)
	token4Re     = regexp.MustCompile(`\b4\b`)
	nonNumericRe = regexp.MustCompile(`[^0-9.\-+]`)
	keyJunkRe    = regexp.MustCompile(`[^a-z0-9]+`)
	spaceRunRe   = regexp.MustCompile(`\s+`)
)

// Siret reduces a raw identifier to its digits. Leading zeros are stripped,
// which shortens a 14-digit code starting with zeros; stored data relies on
// this behavior, so changing it must be coordinated with a data migration.
// Returns "" when no digits remain.
func Siret(raw string) string {
	s := nonDigitRe.ReplaceAllString(raw, "")
	return strings.TrimLeft(s, "0")
}

// dayFirstLayouts are tried in order; French exports are day-first, ISO
// appears in re-exported files.
var dayFirstLayouts = []string{
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2/1/2006",
	"2-1-2006",
	"02/01/06",
	"January 2, 2006",
	"2 January 2006",
}

// fallbackLayouts cover month-first input; only consulted when every
// day-first layout failed, keeping the day-first bias.
var fallbackLayouts = []string{
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
}

// Date parses a cell into a UTC date. Day-first layouts win; a month-first
// fallback runs only when all of them fail. Returns nil for empty, "nan" or
// unparseable input.
func Date(raw string) *time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	switch strings.ToLower(s) {
	case "nan", "nat", "none", "null":
		return nil
	}
	for _, layout := range dayFirstLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return dateOnly(t)
		}
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return dateOnly(t)
		}
	}
	return nil
}

func dateOnly(t time.Time) *time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

// Int parses an integer cell: comma decimal separator tolerated, float input
// truncated. Returns nil on any parse failure.
func Int(raw string) *int {
	s := strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	n := int(f)
	return &n
}

// Numeric cleans a text cell that should carry a number: thousand separators
// (regular, non-breaking and narrow non-breaking spaces) are removed, a comma
// decimal separator becomes a dot, and any remaining character other than
// digits, sign or dot is dropped before parsing. Returns nil when nothing
// parseable remains.
func Numeric(raw string) *float64 {
	s := strings.NewReplacer(
		" ", "",
		" ", "",
		" ", "",
		",", ".",
	).Replace(raw)
	s = nonNumericRe.ReplaceAllString(s, "")
	if s == "" || s == "-" || s == "+" || s == "." {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

// NumericInt is Numeric truncated to an integer.
func NumericInt(raw string) *int {
	f := Numeric(raw)
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}

// Cycle folds a free-text cycle label to "C3" or "C4" on a case-insensitive
// "C3"/"C4" substring or a whole-token "3"/"4". Anything else is returned
// uppercased verbatim; empty input stays "".
func Cycle(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if strings.Contains(s, "C3") || token3Re.MatchString(s) {
		return "C3"
	}
	if strings.Contains(s, "C4") || token4Re.MatchString(s) {
		return "C4"
	}
	return s
}

var accentStripper = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// StripAccents removes combining marks ("Fédération" -> "Federation").
func StripAccents(s string) string {
	out, _, err := transform.String(accentStripper, s)
	if err != nil {
		return s
	}
	return out
}

// FoldKey turns a column header into a payload key: accents stripped,
// lowercased, runs of non-alphanumerics collapsed to a single underscore.
func FoldKey(header string) string {
	s := strings.ToLower(StripAccents(header))
	s = keyJunkRe.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// CollapseSpaces trims a header and squeezes inner whitespace runs.
func CollapseSpaces(s string) string {
	return strings.TrimSpace(spaceRunRe.ReplaceAllString(s, " "))
}

// Package ingest parses uploaded spreadsheets into normalized event records.
// Only the first sheet is read and every cell is treated as text; column
// detection is tolerant (exact lowercase match first, substring second) so
// files with drifting headers still import.
package ingest

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"

	"cse-data/internal/normalize"
)

// Table is the first sheet of a workbook: raw headers plus data rows.
type Table struct {
	Headers []string // collapsed whitespace, original casing (payload keys derive from these)
	lowered []string
	Rows    [][]string
}

// ReadFirstSheet loads the first sheet of an xlsx stream.
func ReadFirstSheet(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return &Table{}, nil
	}

	t := &Table{Rows: rows[1:]}
	for _, h := range rows[0] {
		h = normalize.CollapseSpaces(h)
		t.Headers = append(t.Headers, h)
		t.lowered = append(t.lowered, strings.ToLower(h))
	}
	return t, nil
}

// Resolve finds the column for a field. Two passes over the candidate
// tokens, in the given priority order: exact match against the lowercased
// header first, then substring match. Returns -1 when nothing matches; the
// field is then simply absent for every row, ingestion does not fail.
func (t *Table) Resolve(tokens ...string) int {
	for _, tok := range tokens {
		for i, h := range t.lowered {
			if h == tok {
				return i
			}
		}
	}
	for i, h := range t.lowered {
		for _, tok := range tokens {
			if strings.Contains(h, tok) {
				return i
			}
		}
	}
	return -1
}

// ResolveExact finds the column whose header equals one of the tokens
// (lowercased), with no substring pass. Short tokens like "ul" must use this:
// a substring match would also hit "Blancs et nuls".
func (t *Table) ResolveExact(tokens ...string) int {
	for _, tok := range tokens {
		for i, h := range t.lowered {
			if h == tok {
				return i
			}
		}
	}
	return -1
}

// ResolveAll returns every column whose header contains the token. Used for
// vote columns, where one organization may be spread over several columns
// that get summed.
func (t *Table) ResolveAll(tokens ...string) []int {
	var out []int
	for i, h := range t.lowered {
		for _, tok := range tokens {
			if strings.Contains(h, tok) {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

// ResolveAllWord returns every column whose header contains the token as a
// standalone word. Two-letter tokens like "fo" need this: a substring match
// would also hit "Fonction" or "Informations".
func (t *Table) ResolveAllWord(tokens ...string) []int {
	var out []int
	for i, h := range t.lowered {
		for _, tok := range tokens {
			if containsWord(h, tok) {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

func containsWord(s, word string) bool {
	for _, w := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if w == word {
			return true
		}
	}
	return false
}

// HasColumn reports whether a header matches exactly (lowercased).
func (t *Table) HasColumn(name string) bool {
	for _, h := range t.lowered {
		if h == name {
			return true
		}
	}
	return false
}

// Cell returns the value at a column index for a row, tolerating ragged rows
// and unresolved (-1) columns.
func Cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// Result is the outcome of one ingestion call.
type Result struct {
	Inserted int
	Skipped  int
	Warnings []string
}

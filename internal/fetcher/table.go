package fetcher

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Table is a header plus data rows read from a CSV file or a worksheet.
// Rows may be shorter than the header; missing cells read as "".
type Table struct {
	Header []string
	Rows   [][]string

	index map[string]int
}

// NewTable builds a Table and indexes its header by normalized column name.
// When a name repeats, the first column wins.
func NewTable(header []string, rows [][]string) *Table {
	t := &Table{Header: header, Rows: rows, index: make(map[string]int, len(header))}
	for i, h := range header {
		key := NormalizeColumn(h)
		if _, ok := t.index[key]; !ok {
			t.index[key] = i
		}
	}
	return t
}

// NormalizeColumn lowercases and trims a header name and strips a UTF-8 BOM.
func NormalizeColumn(name string) string {
	name = strings.TrimPrefix(name, "\ufeff")
	return strings.ToLower(strings.TrimSpace(name))
}

// Column returns the index of the first alias present in the header, or -1.
func (t *Table) Column(aliases ...string) int {
	for _, a := range aliases {
		if i, ok := t.index[NormalizeColumn(a)]; ok {
			return i
		}
	}
	return -1
}

// Columns resolves one column per alias group. The error names every group
// that could not be found, using the first alias of each.
func (t *Table) Columns(groups ...[]string) ([]int, error) {
	idx := make([]int, len(groups))
	var missing []string
	for g, aliases := range groups {
		idx[g] = t.Column(aliases...)
		if idx[g] < 0 {
			missing = append(missing, strings.Join(aliases, "|"))
		}
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("table: missing required columns: %s", strings.Join(missing, ", "))
	}
	return idx, nil
}

// Cell returns row[i] trimmed, or "" when the row is too short.
func Cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

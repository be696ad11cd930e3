package columnar

import (
	"github.com/ajitpratap0/clmn/pkg/clmnerrors"
)

// Table is an ordered set of named text columns of equal length. It is the
// exchange form between CSV, the writer and the reader.
type Table struct {
	names   []string
	columns map[string][]string
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{columns: make(map[string][]string)}
}

// TableFromColumns builds a table from decoded columns, in order.
func TableFromColumns(cols []*Column) (*Table, error) {
	t := NewTable()
	for _, c := range cols {
		if err := t.Add(c.Name, c.TextValues()); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Add appends a column. Names must be unique and every column must have the
// same number of values as the first.
func (t *Table) Add(name string, values []string) error {
	if _, exists := t.columns[name]; exists {
		return clmnerrors.Newf(clmnerrors.ErrorTypeValidation, "duplicate column %q", name).
			WithDetail("column", name)
	}
	if len(t.names) > 0 && len(values) != t.RowCount() {
		return clmnerrors.Newf(clmnerrors.ErrorTypeValidation, "column %q has %d values, expected %d", name, len(values), t.RowCount()).
			WithDetail("column", name).
			WithDetail("expected", t.RowCount()).
			WithDetail("actual", len(values))
	}
	t.names = append(t.names, name)
	t.columns[name] = values
	return nil
}

// Names returns the column names in insertion order.
func (t *Table) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Column returns the values of a column.
func (t *Table) Column(name string) ([]string, bool) {
	v, ok := t.columns[name]
	return v, ok
}

// ColumnCount returns the number of columns.
func (t *Table) ColumnCount() int {
	return len(t.names)
}

// RowCount returns the number of values per column.
func (t *Table) RowCount() int {
	if len(t.names) == 0 {
		return 0
	}
	return len(t.columns[t.names[0]])
}

// Project returns a table holding only the named columns, in the given order.
func (t *Table) Project(names []string) (*Table, error) {
	out := NewTable()
	for _, name := range names {
		values, ok := t.columns[name]
		if !ok {
			return nil, columnNotFound(name, t.names)
		}
		if err := out.Add(name, values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Row returns row i across all columns.
func (t *Table) Row(i int) []string {
	row := make([]string, len(t.names))
	for j, name := range t.names {
		row[j] = t.columns[name][i]
	}
	return row
}

// Rows returns every row, in order.
func (t *Table) Rows() [][]string {
	rows := make([][]string, t.RowCount())
	for i := range rows {
		rows[i] = t.Row(i)
	}
	return rows
}

func columnNotFound(name string, available []string) *clmnerrors.Error {
	return clmnerrors.Newf(clmnerrors.ErrorTypeColumnNotFound, "column %q not found", name).
		WithDetail("column", name).
		WithDetail("available", append([]string(nil), available...))
}

package db

import (
	"database/sql"
	"errors"
	"slices"
)

// Row is a single record returned by a `SELECT *`, keeping every column in
// table order. Values hold the driver's native types: int64, float64, string,
// []byte, time.Time or nil.
type Row struct {
	columns []string
	values  []any
}

// NewRow pairs columns with their values. It panics if the lengths differ.
func NewRow(columns []string, values []any) Row {
	if len(columns) != len(values) {
		panic("db: row columns and values differ in length")
	}
	return Row{
		columns: slices.Clone(columns),
		values:  slices.Clone(values),
	}
}

// Len returns the number of columns in the row.
func (r Row) Len() int { return len(r.columns) }

// Columns returns the column names in order.
func (r Row) Columns() []string { return slices.Clone(r.columns) }

// Values returns the column values in order.
func (r Row) Values() []any { return slices.Clone(r.values) }

// Get returns the value of the named column. The lookup is case-sensitive and
// returns the first column with that name.
func (r Row) Get(name string) (any, bool) {
	idx := slices.Index(r.columns, name)
	if idx < 0 {
		return nil, false
	}
	return r.values[idx], true
}

// Map returns the row as a column name to value map. Column order is lost and
// duplicate names keep their first value.
func (r Row) Map() map[string]any {
	out := make(map[string]any, len(r.columns))
	for i, col := range r.columns {
		if _, ok := out[col]; !ok {
			out[col] = r.values[i]
		}
	}
	return out
}

// scanFirst reads the first row of rows and closes it. It returns
// [sql.ErrNoRows] when the result set is empty.
func scanFirst(rows *sql.Rows) (row Row, err error) {
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()
	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return row, err
		}
		return row, sql.ErrNoRows
	}
	return scanRow(rows)
}

// scanFirstMatch reads rows in order until match accepts one, then closes
// rows. It returns [sql.ErrNoRows] when nothing matches.
func scanFirstMatch(rows *sql.Rows, match func(Row) bool) (row Row, err error) {
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()
	for rows.Next() {
		if row, err = scanRow(rows); err != nil {
			return Row{}, err
		}
		if match(row) {
			return row, nil
		}
	}
	if err = rows.Err(); err != nil {
		return Row{}, err
	}
	return Row{}, sql.ErrNoRows
}

func scanRow(rows *sql.Rows) (Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return Row{}, err
	}
	values := make([]any, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}
	if err = rows.Scan(dest...); err != nil {
		return Row{}, err
	}
	return Row{columns: columns, values: values}, nil
}

// scanAll reads every row of rows and closes it. An empty result set is not an
// error.
func scanAll(rows *sql.Rows) (all []Row, err error) {
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		all = append(all, row)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return all, nil
}

package dataset

import (
	"bytes"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Row holds one record's cells keyed by column name. Cells are kept as the
// raw strings from the file; typed access goes through Float and Int.
type Row map[string]string

// Table is an in-memory tabular dataset. Everything downstream of CSV
// parsing operates on this shape, so the pipeline itself is format-agnostic.
type Table struct {
	Columns []string
	Rows    []Row
}

// ParseCSV reads a delimited file into a Table. Header names are trimmed;
// a ragged row or a duplicate header name is a parse error and rejects the
// whole file. Rows are keyed by column name, so duplicate headers would
// collapse cells while the column count still counted both.
func ParseCSV(data []byte) (*Table, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return &Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	t := &Table{Columns: make([]string, len(header))}
	seen := make(map[string]bool, len(header))
	for i, col := range header {
		name := strings.TrimSpace(col)
		if seen[name] {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		seen[name] = true
		t.Columns[i] = name
	}

	for lineNo := 2; ; lineNo++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", lineNo, err)
		}

		row := make(Row, len(t.Columns))
		for i, col := range t.Columns {
			row[col] = strings.TrimSpace(record[i])
		}
		t.Rows = append(t.Rows, row)
	}

	return t, nil
}

func (t *Table) HasColumn(name string) bool {
	for _, col := range t.Columns {
		if col == name {
			return true
		}
	}
	return false
}

// Float parses the named cell as a float. Blank or missing cells are null,
// not an error; a non-numeric cell is also null.
func (r Row) Float(col string) sql.NullFloat64 {
	raw, ok := r[col]
	if !ok || raw == "" {
		return sql.NullFloat64{}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// Int parses the named cell as an integer, accepting float formatting
// ("12.0") since spreadsheet exports routinely produce it.
func (r Row) Int(col string) sql.NullInt64 {
	raw, ok := r[col]
	if !ok || raw == "" {
		return sql.NullInt64{}
	}
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return sql.NullInt64{Int64: v, Valid: true}
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != float64(int64(f)) {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(f), Valid: true}
}

func (r Row) clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

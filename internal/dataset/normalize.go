package dataset

import "strings"

// canonicalColumns is the schema vocabulary uploads are normalized against.
// The environmental tokens follow the NASA POWER parameter names.
var canonicalColumns = []string{
	"Year",
	"Month",
	"Day",
	"Week_Number",
	"Date",
	"Moon_Category",
	"Area_Code",
	"RBB",
	"WSB",
	"T2M",
	"T2M_MIN",
	"T2M_MAX",
	"RH2M",
	"PRECTOTCORR",
	"WS2M",
	"WS2M_MAX",
	"WS2M_MIN",
	"WD2M",
	"CLRSKY_SFC_PAR_TOT",
	"ALLSKY_SFC_UVA",
	"ALLSKY_SFC_UVB",
	"GWETTOP",
}

// normalizeKey folds case and treats spaces and hyphens as underscores, so
// "week number", "Week-Number" and "WEEK_NUMBER" all match Week_Number.
func normalizeKey(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return s
}

var canonicalByKey = func() map[string]string {
	m := make(map[string]string, len(canonicalColumns))
	for _, col := range canonicalColumns {
		m[normalizeKey(col)] = col
	}
	return m
}()

// Normalize returns a copy of the table with every column that matches the
// canonical vocabulary (case- and spacing-insensitively) renamed to its
// canonical token. Unmatched columns pass through unchanged. Normalizing an
// already-normalized table is a no-op.
func Normalize(t *Table) *Table {
	if t == nil {
		return &Table{}
	}

	renames := make(map[string]string, len(t.Columns))
	out := &Table{Columns: make([]string, len(t.Columns))}
	for i, col := range t.Columns {
		canonical, ok := canonicalByKey[normalizeKey(col)]
		if !ok {
			canonical = col
		}
		renames[col] = canonical
		out.Columns[i] = canonical
	}

	out.Rows = make([]Row, len(t.Rows))
	for i, row := range t.Rows {
		newRow := make(Row, len(row))
		for col, val := range row {
			target, ok := renames[col]
			if !ok {
				target = col
			}
			newRow[target] = val
		}
		out.Rows[i] = newRow
	}

	return out
}

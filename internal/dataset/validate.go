package dataset

import "fmt"

// requiredColumns must all be present or validation fails outright.
var requiredColumns = []string{"Year", "Week_Number", "Month", "Day", "RBB", "WSB"}

// expectedEnvColumns are optional; their absence is only worth a warning.
var expectedEnvColumns = []string{"T2M", "RH2M", "PRECTOTCORR", "WS2M"}

const (
	minYear = 2000
	maxYear = 2100
)

// Result is the structured outcome of schema validation.
type Result struct {
	Valid       bool     `json:"valid"`
	Errors      []string `json:"errors"`
	Warnings    []string `json:"warnings"`
	RowCount    int      `json:"row_count"`
	ColumnCount int      `json:"column_count"`
}

// Validate checks a normalized table for required columns and legal value
// ranges. It never mutates the input and always returns a well-formed result,
// including for nil or empty tables.
//
// Range checks run only once the structural checks pass, and each violated
// check contributes a single aggregate error naming the count of offending
// rows, so the error list stays bounded no matter how large the file is.
func Validate(t *Table) Result {
	result := Result{Valid: true}
	if t == nil {
		result.Valid = false
		result.Errors = append(result.Errors, "dataset is empty")
		return result
	}

	result.RowCount = len(t.Rows)
	result.ColumnCount = len(t.Columns)

	for _, col := range requiredColumns {
		if !t.HasColumn(col) {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("required column %s is missing", col))
		}
	}

	for _, col := range expectedEnvColumns {
		if !t.HasColumn(col) {
			result.Warnings = append(result.Warnings, fmt.Sprintf("expected environmental column %s is missing", col))
		}
	}

	if !result.Valid {
		return result
	}

	rangeChecks := []struct {
		column  string
		message string
		bad     func(r Row) bool
	}{
		{"Year", fmt.Sprintf("Year outside [%d, %d]", minYear, maxYear), func(r Row) bool {
			v := r.Int("Year")
			return !v.Valid || v.Int64 < minYear || v.Int64 > maxYear
		}},
		{"Month", "Month outside [1, 12]", func(r Row) bool {
			v := r.Int("Month")
			return !v.Valid || v.Int64 < 1 || v.Int64 > 12
		}},
		{"Day", "Day outside [1, 31]", func(r Row) bool {
			v := r.Int("Day")
			return !v.Valid || v.Int64 < 1 || v.Int64 > 31
		}},
		{"RBB", "negative RBB count", func(r Row) bool {
			v := r.Float("RBB")
			return v.Valid && v.Float64 < 0
		}},
		{"WSB", "negative WSB count", func(r Row) bool {
			v := r.Float("WSB")
			return v.Valid && v.Float64 < 0
		}},
	}

	for _, check := range rangeChecks {
		offending := 0
		for _, row := range t.Rows {
			if check.bad(row) {
				offending++
			}
		}
		if offending > 0 {
			result.Valid = false
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s in %d row(s)", check.message, offending))
		}
	}

	return result
}

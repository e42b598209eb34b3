package dataset

import "time"

// Domain identifies which slice of an upload a projection carries.
type Domain string

const (
	DomainEnvironmental Domain = "environmental"
	DomainPest          Domain = "pest"
	DomainMetadata      Domain = "metadata"
)

// temporalKeyColumns are shared by every projection.
var temporalKeyColumns = []string{"Year", "Month", "Day", "Week_Number"}

// environmentalColumns carry solar, temperature, humidity, wind and soil data.
var environmentalColumns = []string{
	"T2M", "T2M_MIN", "T2M_MAX",
	"RH2M",
	"PRECTOTCORR",
	"WS2M", "WS2M_MAX", "WS2M_MIN", "WD2M",
	"CLRSKY_SFC_PAR_TOT", "ALLSKY_SFC_UVA", "ALLSKY_SFC_UVB",
	"GWETTOP",
}

// pestColumns carry pest counts and the moon-phase category.
var pestColumns = []string{"RBB", "WSB", "Moon_Category"}

// ProjectionRow is one record within a projection. The date is derived from
// (Year, Month, Day); DateOK is false when those fields are incomplete or do
// not form a real calendar date, so a bad date is visible to the importer
// instead of silently dropped.
type ProjectionRow struct {
	Index  int // 1-based data row number in the uploaded file
	Values Row
	Date   time.Time
	DateOK bool
}

// Projection is one domain's view of a validated table. Rows are deep copies;
// mutating one projection never affects another.
type Projection struct {
	Domain        Domain
	Columns       []string // temporal key plus domain columns present in the input
	DomainColumns []string // domain-specific columns present in the input
	Rows          []ProjectionRow
}

// HasData reports whether the projection carries anything importable.
func (p Projection) HasData() bool {
	return len(p.DomainColumns) > 0 && len(p.Rows) > 0
}

// Domains holds the three projections of one upload.
type Domains struct {
	Environmental Projection
	Pest          Projection
	Metadata      Projection
}

// Split partitions a normalized, validated table into environmental, pest and
// metadata projections. Each projection keeps the shared temporal key columns
// plus whichever of its domain columns the input actually has; every column of
// the input that belongs to a known domain lands in exactly one projection.
func Split(t *Table) Domains {
	return Domains{
		Environmental: project(t, DomainEnvironmental, environmentalColumns),
		Pest:          project(t, DomainPest, pestColumns),
		Metadata:      project(t, DomainMetadata, nil),
	}
}

func project(t *Table, domain Domain, domainCols []string) Projection {
	p := Projection{Domain: domain}
	if t == nil {
		return p
	}

	for _, col := range temporalKeyColumns {
		if t.HasColumn(col) {
			p.Columns = append(p.Columns, col)
		}
	}
	for _, col := range domainCols {
		if t.HasColumn(col) {
			p.Columns = append(p.Columns, col)
			p.DomainColumns = append(p.DomainColumns, col)
		}
	}

	keep := make(map[string]bool, len(p.Columns))
	for _, col := range p.Columns {
		keep[col] = true
	}

	for i, row := range t.Rows {
		values := make(Row, len(p.Columns))
		for col, val := range row {
			if keep[col] {
				values[col] = val
			}
		}
		date, ok := deriveDate(row)
		p.Rows = append(p.Rows, ProjectionRow{
			Index:  i + 1,
			Values: values,
			Date:   date,
			DateOK: ok,
		})
	}

	return p
}

// deriveDate builds a calendar date from the Year, Month and Day cells.
// Rollover (e.g. February 31 becoming March 3) counts as failure.
func deriveDate(r Row) (time.Time, bool) {
	year := r.Int("Year")
	month := r.Int("Month")
	day := r.Int("Day")
	if !year.Valid || !month.Valid || !day.Valid {
		return time.Time{}, false
	}

	d := time.Date(int(year.Int64), time.Month(month.Int64), int(day.Int64), 0, 0, 0, 0, time.UTC)
	if d.Year() != int(year.Int64) || d.Month() != time.Month(month.Int64) || d.Day() != int(day.Int64) {
		return time.Time{}, false
	}
	return d, true
}

package dataset

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/markMSUIIT/riceprotek-web-app/internal/metrics"
	"github.com/markMSUIIT/riceprotek-web-app/internal/models"
	"github.com/markMSUIIT/riceprotek-web-app/internal/store"
)

// RowError attributes one failed row to a reason.
type RowError struct {
	Row   int    `json:"row"`
	Date  string `json:"date,omitempty"`
	Error string `json:"error"`
}

// DomainResult summarizes one domain's import loop. Success and Failed count
// rows, not individual records; a pest row that inserts both an rbb and a wsb
// record is still one unit.
type DomainResult struct {
	Domain  Domain     `json:"domain"`
	Success int        `json:"success"`
	Failed  int        `json:"failed"`
	Errors  []RowError `json:"errors,omitempty"`
}

// Report is what the caller gets back from a completed (or rejected) upload.
type Report struct {
	UploadID      string        `json:"upload_id"`
	Validation    Result        `json:"validation"`
	Environmental *DomainResult `json:"environmental,omitempty"`
	Pest          *DomainResult `json:"pest,omitempty"`
}

// Importer runs the ingestion pipeline against the backing store.
type Importer struct {
	store *store.Store
}

func NewImporter(st *store.Store) *Importer {
	return &Importer{store: st}
}

// Run executes the full pipeline for one uploaded file:
// parse -> normalize -> validate -> split -> bind -> per-row import,
// with the upload ledger and activity log updated at each milestone.
//
// Outcomes map to the three failure tiers: a validation failure returns a
// report with Validation.Valid == false and no writes; row-level failures are
// recorded in the report and never abort the batch; a batch-level failure
// (missing/inactive area point, store error) marks the job failed and returns
// an error.
func (im *Importer) Run(fileBytes []byte, filename, areaPointID, uploadedBy string) (*Report, error) {
	job := models.UploadJob{
		UploadID:         uuid.New().String(),
		Filename:         fmt.Sprintf("%s_%s", areaPointID, filename),
		OriginalFilename: filename,
		UploadedBy:       uploadedBy,
		FileSize:         int64(len(fileBytes)),
		ValidationStatus: models.ValidationValid,
		ProcessingStatus: models.ProcessingPending,
	}
	if err := im.store.CreateUploadJob(job); err != nil {
		return nil, fmt.Errorf("create upload job: %w", err)
	}
	im.logActivity(uploadedBy, models.ActionUpload, models.ModuleDataset, "dataset_uploads", job.UploadID,
		map[string]any{"filename": filename, "area_point_id": areaPointID})

	report := &Report{UploadID: job.UploadID}

	table, err := ParseCSV(fileBytes)
	if err != nil {
		im.failJob(job.UploadID, fmt.Sprintf("parse: %v", err))
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	columnsJSON, _ := json.Marshal(table.Columns)
	if err := im.store.UpdateUploadCounts(job.UploadID, len(table.Rows), len(table.Columns), string(columnsJSON)); err != nil {
		return nil, fmt.Errorf("record upload counts: %w", err)
	}

	normalized := Normalize(table)
	report.Validation = Validate(normalized)

	if !report.Validation.Valid {
		// Tier 1: the whole batch is rejected before any write.
		errText := strings.Join(report.Validation.Errors, "; ")
		if err := im.store.UpdateUploadValidation(job.UploadID, models.ValidationInvalid, errText); err != nil {
			return nil, fmt.Errorf("record validation outcome: %w", err)
		}
		im.failJob(job.UploadID, errText)
		log.Printf("dataset: upload %s rejected: %s", job.UploadID, errText)
		return report, nil
	}

	if err := im.store.UpdateUploadValidation(job.UploadID, models.ValidationValid, ""); err != nil {
		return nil, fmt.Errorf("record validation outcome: %w", err)
	}
	if err := im.store.UpdateUploadProcessingStatus(job.UploadID, models.ProcessingActive); err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}

	domains := Split(normalized)

	envRows, err := Bind(domains.Environmental, im.store, areaPointID, uploadedBy)
	if err != nil {
		// Tier 3: batch-level failure before any row is written.
		im.failJob(job.UploadID, err.Error())
		return nil, fmt.Errorf("bind %s: %w", areaPointID, err)
	}
	pestRows, err := Bind(domains.Pest, im.store, areaPointID, uploadedBy)
	if err != nil {
		im.failJob(job.UploadID, err.Error())
		return nil, fmt.Errorf("bind %s: %w", areaPointID, err)
	}

	if domains.Environmental.HasData() {
		result := im.importDomain(job.UploadID, DomainEnvironmental, func() DomainResult {
			return im.ImportEnvironmental(envRows, models.SourceManual, domains.Environmental.DomainColumns)
		})
		report.Environmental = &result
		im.logActivity(uploadedBy, models.ActionImport, models.ModuleEnvironmental, "environmental_data", areaPointID,
			map[string]any{"upload_id": job.UploadID, "success": result.Success, "failed": result.Failed, "total_rows": len(envRows)})
	}

	if domains.Pest.HasData() {
		result := im.importDomain(job.UploadID, DomainPest, func() DomainResult {
			return im.ImportPest(pestRows)
		})
		report.Pest = &result
		im.logActivity(uploadedBy, models.ActionImport, models.ModulePest, "pest_records", areaPointID,
			map[string]any{"upload_id": job.UploadID, "success": result.Success, "failed": result.Failed, "total_rows": len(pestRows)})
	}

	// The metadata projection carries no storable records; its outcome row
	// only documents that the temporal key was seen for this many rows.
	if outcomeID, err := im.store.StartProcessingOutcome(job.UploadID, string(DomainMetadata)); err == nil {
		if err := im.store.FinishProcessingOutcome(outcomeID, len(domains.Metadata.Rows), 0, ""); err != nil {
			log.Printf("dataset: finish metadata outcome: %v", err)
		}
	} else {
		log.Printf("dataset: start metadata outcome: %v", err)
	}

	// Row failures do not fail the job; their detail lives in the
	// processing outcomes, not in the job status.
	if err := im.store.UpdateUploadProcessingStatus(job.UploadID, models.ProcessingCompleted); err != nil {
		return nil, fmt.Errorf("mark completed: %w", err)
	}
	metrics.UploadsTotal.WithLabelValues(string(models.ProcessingCompleted)).Inc()

	log.Printf("dataset: upload %s completed (env %s, pest %s)",
		job.UploadID, summarize(report.Environmental), summarize(report.Pest))
	return report, nil
}

// importDomain wraps one domain's loop with its processing-outcome record.
func (im *Importer) importDomain(uploadID string, domain Domain, run func() DomainResult) DomainResult {
	outcomeID, err := im.store.StartProcessingOutcome(uploadID, string(domain))
	if err != nil {
		log.Printf("dataset: start %s outcome: %v", domain, err)
	}

	result := run()

	metrics.RowsImported.WithLabelValues(string(domain)).Add(float64(result.Success))
	metrics.RowFailures.WithLabelValues(string(domain)).Add(float64(result.Failed))

	if outcomeID != 0 {
		var details string
		if len(result.Errors) > 0 {
			b, _ := json.Marshal(result.Errors)
			details = string(b)
		}
		if err := im.store.FinishProcessingOutcome(outcomeID, result.Success, result.Failed, details); err != nil {
			log.Printf("dataset: finish %s outcome: %v", domain, err)
		}
	}
	return result
}

// ImportEnvironmental inserts one EnvironmentalRecord per bound row. A row
// failure (bad date, duplicate (area point, date, source) triple) is recorded
// and the loop continues; no failure aborts the batch.
func (im *Importer) ImportEnvironmental(rows []BoundRow, source models.Source, columns []string) DomainResult {
	result := DomainResult{Domain: DomainEnvironmental}

	for _, row := range rows {
		if !row.DateOK {
			result.Failed++
			result.Errors = append(result.Errors, RowError{
				Row:   row.Index,
				Error: "invalid or incomplete date (Year, Month, Day)",
			})
			continue
		}

		rec := models.EnvironmentalRecord{
			AreaPointID: row.AreaPointID,
			Date:        row.Date.Format("2006-01-02"),
			Source:      source,
			CreatedBy:   row.CreatedBy,
		}
		assignEnvironmentalFields(&rec, row.Values, columns)

		if _, err := im.store.InsertEnvironmentalRecord(rec); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, RowError{
				Row:   row.Index,
				Date:  rec.Date,
				Error: err.Error(),
			})
			continue
		}
		result.Success++
	}

	return result
}

// ImportPest inserts one PestRecord per nonzero pest-count column of each
// bound row. Counts arrive with spreadsheet float formatting and may be
// fractional; whole insects only, so values are truncated. A non-empty cell
// that does not parse fails the row with the column named. A negative count
// is pushed through the store guard so the failure carries the same error
// text as any other write path; a zero count inserts nothing, matching
// manual encoding practice.
func (im *Importer) ImportPest(rows []BoundRow) DomainResult {
	result := DomainResult{Domain: DomainPest}

	pestTypes := []struct {
		column string
		typ    models.PestType
	}{
		{"RBB", models.PestRBB},
		{"WSB", models.PestWSB},
	}

	for _, row := range rows {
		if !row.DateOK {
			result.Failed++
			result.Errors = append(result.Errors, RowError{
				Row:   row.Index,
				Error: "invalid or incomplete date (Year, Month, Day)",
			})
			continue
		}

		rowFailed := false
		for _, pt := range pestTypes {
			raw, ok := row.Values[pt.column]
			if !ok || raw == "" {
				continue
			}
			parsed := row.Values.Float(pt.column)
			if !parsed.Valid {
				rowFailed = true
				result.Errors = append(result.Errors, RowError{
					Row:   row.Index,
					Date:  row.Date.Format("2006-01-02"),
					Error: fmt.Sprintf("%s: unreadable count %q", pt.column, raw),
				})
				continue
			}
			count := sql.NullInt64{Int64: int64(parsed.Float64), Valid: true}
			if count.Int64 == 0 {
				continue
			}

			rec := models.PestRecord{
				AreaPointID:  row.AreaPointID,
				PestType:     pt.typ,
				Date:         row.Date.Format("2006-01-02"),
				Year:         row.Values.Int("Year"),
				Month:        row.Values.Int("Month"),
				Day:          row.Values.Int("Day"),
				WeekNumber:   row.Values.Int("Week_Number"),
				MoonCategory: row.Values.Int("Moon_Category"),
				Count:        count,
				CreatedBy:    row.CreatedBy,
			}

			if _, err := im.store.InsertPestRecord(rec); err != nil {
				rowFailed = true
				result.Errors = append(result.Errors, RowError{
					Row:   row.Index,
					Date:  rec.Date,
					Error: fmt.Sprintf("%s: %v", pt.column, err),
				})
			}
		}

		if rowFailed {
			result.Failed++
		} else {
			result.Success++
		}
	}

	return result
}

// ImportEnvironmentalRecords is the entry point for pre-built records, e.g.
// NASA POWER retrievals. It shares the per-row loop, ledger and audit-trail
// behavior of file uploads.
func (im *Importer) ImportEnvironmentalRecords(records []models.EnvironmentalRecord, areaPointID, createdBy string) (DomainResult, error) {
	if _, err := im.store.RequireActiveAreaPoint(areaPointID); err != nil {
		return DomainResult{Domain: DomainEnvironmental}, err
	}

	result := DomainResult{Domain: DomainEnvironmental}
	for i, rec := range records {
		rec.AreaPointID = areaPointID
		rec.CreatedBy = createdBy
		if _, err := im.store.InsertEnvironmentalRecord(rec); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, RowError{Row: i + 1, Date: rec.Date, Error: err.Error()})
			continue
		}
		result.Success++
	}

	metrics.RowsImported.WithLabelValues(string(DomainEnvironmental)).Add(float64(result.Success))
	metrics.RowFailures.WithLabelValues(string(DomainEnvironmental)).Add(float64(result.Failed))
	im.logActivity(createdBy, models.ActionImport, models.ModuleEnvironmental, "environmental_data", areaPointID,
		map[string]any{"success": result.Success, "failed": result.Failed, "total_rows": len(records)})

	return result, nil
}

func assignEnvironmentalFields(rec *models.EnvironmentalRecord, values Row, columns []string) {
	fields := map[string]*sql.NullFloat64{
		"T2M":                &rec.Temperature,
		"T2M_MIN":            &rec.TempMin,
		"T2M_MAX":            &rec.TempMax,
		"RH2M":               &rec.Humidity,
		"PRECTOTCORR":        &rec.Precipitation,
		"WS2M":               &rec.WindSpeed,
		"WS2M_MAX":           &rec.WindSpeedMax,
		"WS2M_MIN":           &rec.WindSpeedMin,
		"WD2M":               &rec.WindDirection,
		"CLRSKY_SFC_PAR_TOT": &rec.SolarRadiation,
		"ALLSKY_SFC_UVA":     &rec.UVA,
		"ALLSKY_SFC_UVB":     &rec.UVB,
		"GWETTOP":            &rec.SoilWetness,
	}
	for _, col := range columns {
		if target, ok := fields[col]; ok {
			*target = values.Float(col)
		}
	}
}

func (im *Importer) failJob(uploadID, reason string) {
	if err := im.store.UpdateUploadProcessingStatus(uploadID, models.ProcessingFailed); err != nil {
		log.Printf("dataset: mark upload %s failed: %v", uploadID, err)
	}
	metrics.UploadsTotal.WithLabelValues(string(models.ProcessingFailed)).Inc()
	log.Printf("dataset: upload %s failed: %s", uploadID, reason)
}

func (im *Importer) logActivity(user string, action models.Action, module models.Module, entityType, entityID string, details map[string]any) {
	b, _ := json.Marshal(details)
	if _, err := im.store.LogActivity(user, action, module, entityType, entityID, string(b)); err != nil {
		log.Printf("dataset: log activity: %v", err)
	}
}

func summarize(r *DomainResult) string {
	if r == nil {
		return "skipped"
	}
	return fmt.Sprintf("%d ok/%d failed", r.Success, r.Failed)
}

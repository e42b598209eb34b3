package store

import (
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/markMSUIIT/riceprotek-web-app/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := New(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func createTestAreaPoint(t *testing.T, store *Store, id string) {
	t.Helper()
	err := store.CreateAreaPoint(models.AreaPoint{
		AreaPointID: id,
		Name:        "Test Site " + id,
		Latitude:    9.5,
		Longitude:   125.5,
		Status:      models.LifecycleActive,
		CreatedBy:   "tester",
	})
	if err != nil {
		t.Fatalf("CreateAreaPoint %s: %v", id, err)
	}
}

func TestCreateAndGetAreaPoint(t *testing.T) {
	store := setupTestStore(t)

	createTestAreaPoint(t, store, "AP001")

	ap, err := store.GetAreaPoint("AP001")
	if err != nil {
		t.Fatalf("GetAreaPoint: %v", err)
	}
	if ap == nil {
		t.Fatal("GetAreaPoint returned nil")
	}
	if ap.Name != "Test Site AP001" {
		t.Errorf("Name = %q, want 'Test Site AP001'", ap.Name)
	}
	if !ap.Active() {
		t.Error("new area point should be active")
	}

	missing, err := store.GetAreaPoint("NOPE")
	if err != nil {
		t.Fatalf("GetAreaPoint missing: %v", err)
	}
	if missing != nil {
		t.Error("GetAreaPoint for unknown id should return nil")
	}
}

func TestCreateAreaPoint_Duplicate(t *testing.T) {
	store := setupTestStore(t)

	createTestAreaPoint(t, store, "AP001")

	err := store.CreateAreaPoint(models.AreaPoint{
		AreaPointID: "AP001",
		Name:        "Same ID",
		CreatedBy:   "tester",
	})
	if !errors.Is(err, ErrDuplicateRecord) {
		t.Errorf("err = %v, want ErrDuplicateRecord", err)
	}
}

func TestRequireActiveAreaPoint(t *testing.T) {
	store := setupTestStore(t)

	if _, err := store.RequireActiveAreaPoint("AP001"); !errors.Is(err, ErrAreaPointNotFound) {
		t.Errorf("missing: err = %v, want ErrAreaPointNotFound", err)
	}

	createTestAreaPoint(t, store, "AP001")
	if _, err := store.RequireActiveAreaPoint("AP001"); err != nil {
		t.Fatalf("active: %v", err)
	}

	if err := store.DeactivateAreaPoint("AP001"); err != nil {
		t.Fatalf("DeactivateAreaPoint: %v", err)
	}
	if _, err := store.RequireActiveAreaPoint("AP001"); !errors.Is(err, ErrAreaPointInactive) {
		t.Errorf("inactive: err = %v, want ErrAreaPointInactive", err)
	}
}

func TestDeactivateAreaPoint_KeepsRow(t *testing.T) {
	store := setupTestStore(t)

	createTestAreaPoint(t, store, "AP001")
	createTestAreaPoint(t, store, "AP002")

	if err := store.DeactivateAreaPoint("AP001"); err != nil {
		t.Fatalf("DeactivateAreaPoint: %v", err)
	}

	all, err := store.GetAreaPoints(false)
	if err != nil {
		t.Fatalf("GetAreaPoints(false): %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len(all) = %d, want 2 (deactivation must not delete)", len(all))
	}

	active, err := store.GetAreaPoints(true)
	if err != nil {
		t.Fatalf("GetAreaPoints(true): %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("len(active) = %d, want 1", len(active))
	}
	if active[0].AreaPointID != "AP002" {
		t.Errorf("active point = %s, want AP002", active[0].AreaPointID)
	}

	if err := store.DeactivateAreaPoint("NOPE"); !errors.Is(err, ErrAreaPointNotFound) {
		t.Errorf("deactivate unknown: err = %v, want ErrAreaPointNotFound", err)
	}
}

func TestInsertEnvironmentalRecord_Duplicate(t *testing.T) {
	store := setupTestStore(t)
	createTestAreaPoint(t, store, "AP001")

	rec := models.EnvironmentalRecord{
		AreaPointID: "AP001",
		Date:        "2024-06-15",
		Source:      models.SourceManual,
		Temperature: sql.NullFloat64{Float64: 28.5, Valid: true},
		CreatedBy:   "tester",
	}
	if _, err := store.InsertEnvironmentalRecord(rec); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	if _, err := store.InsertEnvironmentalRecord(rec); !errors.Is(err, ErrDuplicateRecord) {
		t.Errorf("second insert: err = %v, want ErrDuplicateRecord", err)
	}

	// Same date from a different source is a distinct record.
	rec.Source = models.SourceNASAPower
	if _, err := store.InsertEnvironmentalRecord(rec); err != nil {
		t.Errorf("insert with different source: %v", err)
	}
}

func TestInsertEnvironmentalRecord_InvalidSource(t *testing.T) {
	store := setupTestStore(t)
	createTestAreaPoint(t, store, "AP001")

	_, err := store.InsertEnvironmentalRecord(models.EnvironmentalRecord{
		AreaPointID: "AP001",
		Date:        "2024-06-15",
		Source:      "weather_underground",
	})
	if !errors.Is(err, ErrInvalidSource) {
		t.Errorf("err = %v, want ErrInvalidSource", err)
	}
}

func TestGetEnvironmentalRecords_Filters(t *testing.T) {
	store := setupTestStore(t)
	createTestAreaPoint(t, store, "AP001")
	createTestAreaPoint(t, store, "AP002")

	inserts := []models.EnvironmentalRecord{
		{AreaPointID: "AP001", Date: "2024-06-14", Source: models.SourceManual},
		{AreaPointID: "AP001", Date: "2024-06-15", Source: models.SourceManual},
		{AreaPointID: "AP001", Date: "2024-06-15", Source: models.SourceNASAPower},
		{AreaPointID: "AP002", Date: "2024-06-15", Source: models.SourceManual},
	}
	for i, rec := range inserts {
		if _, err := store.InsertEnvironmentalRecord(rec); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	got, err := store.GetEnvironmentalRecords("AP001", models.SourceManual, "", "")
	if err != nil {
		t.Fatalf("GetEnvironmentalRecords: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("AP001 manual: len = %d, want 2", len(got))
	}

	got, err = store.GetEnvironmentalRecords("", "", "2024-06-15", "2024-06-15")
	if err != nil {
		t.Fatalf("GetEnvironmentalRecords by date: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("date 2024-06-15: len = %d, want 3", len(got))
	}
}

func TestInsertPestRecord_Guards(t *testing.T) {
	store := setupTestStore(t)
	createTestAreaPoint(t, store, "AP001")

	base := models.PestRecord{
		AreaPointID: "AP001",
		PestType:    models.PestRBB,
		Date:        "2024-06-15",
		Count:       sql.NullInt64{Int64: 4, Valid: true},
		CreatedBy:   "tester",
	}

	if _, err := store.InsertPestRecord(base); err != nil {
		t.Fatalf("valid insert: %v", err)
	}

	bad := base
	bad.PestType = "locust"
	if _, err := store.InsertPestRecord(bad); !errors.Is(err, ErrInvalidPestType) {
		t.Errorf("invalid pest type: err = %v, want ErrInvalidPestType", err)
	}

	bad = base
	bad.Count = sql.NullInt64{Int64: -1, Valid: true}
	if _, err := store.InsertPestRecord(bad); !errors.Is(err, ErrNegativeCount) {
		t.Errorf("negative count: err = %v, want ErrNegativeCount", err)
	}

	bad = base
	bad.Density = sql.NullFloat64{Float64: -0.5, Valid: true}
	if _, err := store.InsertPestRecord(bad); !errors.Is(err, ErrNegativeCount) {
		t.Errorf("negative density: err = %v, want ErrNegativeCount", err)
	}
}

func TestUpdateAndDeletePestRecord(t *testing.T) {
	store := setupTestStore(t)
	createTestAreaPoint(t, store, "AP001")

	id, err := store.InsertPestRecord(models.PestRecord{
		AreaPointID: "AP001",
		PestType:    models.PestWSB,
		Date:        "2024-06-15",
		Count:       sql.NullInt64{Int64: 2, Valid: true},
		CreatedBy:   "tester",
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	err = store.UpdatePestRecord(id, sql.NullInt64{Int64: 7, Valid: true},
		sql.NullFloat64{}, sql.NullString{String: "recount", Valid: true})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	records, err := store.GetPestRecords("AP001", models.PestWSB, "", "")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len = %d, want 1", len(records))
	}
	if records[0].Count.Int64 != 7 {
		t.Errorf("Count = %d, want 7", records[0].Count.Int64)
	}

	err = store.UpdatePestRecord(id, sql.NullInt64{Int64: -3, Valid: true}, sql.NullFloat64{}, sql.NullString{})
	if !errors.Is(err, ErrNegativeCount) {
		t.Errorf("negative update: err = %v, want ErrNegativeCount", err)
	}

	if err := store.DeletePestRecord(id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	records, err = store.GetPestRecords("AP001", "", "", "")
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("len after delete = %d, want 0", len(records))
	}
}

func TestUploadJobLifecycle(t *testing.T) {
	store := setupTestStore(t)

	job := models.UploadJob{
		UploadID:         "11111111-2222-3333-4444-555555555555",
		Filename:         "AP001_data.csv",
		OriginalFilename: "data.csv",
		UploadedBy:       "tester",
		FileSize:         1024,
	}
	if err := store.CreateUploadJob(job); err != nil {
		t.Fatalf("CreateUploadJob: %v", err)
	}

	got, err := store.GetUploadJob(job.UploadID)
	if err != nil {
		t.Fatalf("GetUploadJob: %v", err)
	}
	if got == nil {
		t.Fatal("GetUploadJob returned nil")
	}
	if got.ProcessingStatus != models.ProcessingPending {
		t.Errorf("initial status = %s, want pending", got.ProcessingStatus)
	}

	if err := store.UpdateUploadCounts(job.UploadID, 52, 22, `["Year","Month"]`); err != nil {
		t.Fatalf("UpdateUploadCounts: %v", err)
	}
	if err := store.UpdateUploadValidation(job.UploadID, models.ValidationValid, ""); err != nil {
		t.Fatalf("UpdateUploadValidation: %v", err)
	}
	if err := store.UpdateUploadProcessingStatus(job.UploadID, models.ProcessingActive); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	if err := store.UpdateUploadProcessingStatus(job.UploadID, models.ProcessingCompleted); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	got, err = store.GetUploadJob(job.UploadID)
	if err != nil {
		t.Fatalf("GetUploadJob final: %v", err)
	}
	if got.RowCount.Int64 != 52 || got.ColumnCount.Int64 != 22 {
		t.Errorf("counts = (%d, %d), want (52, 22)", got.RowCount.Int64, got.ColumnCount.Int64)
	}
	if got.ProcessingStatus != models.ProcessingCompleted {
		t.Errorf("final status = %s, want completed", got.ProcessingStatus)
	}

	if err := store.UpdateUploadProcessingStatus("unknown-id", models.ProcessingFailed); !errors.Is(err, ErrUploadNotFound) {
		t.Errorf("unknown job: err = %v, want ErrUploadNotFound", err)
	}
}

func TestProcessingOutcomes(t *testing.T) {
	store := setupTestStore(t)

	job := models.UploadJob{UploadID: "job-1", Filename: "f.csv", OriginalFilename: "f.csv", UploadedBy: "tester"}
	if err := store.CreateUploadJob(job); err != nil {
		t.Fatalf("CreateUploadJob: %v", err)
	}

	id, err := store.StartProcessingOutcome("job-1", "environmental")
	if err != nil {
		t.Fatalf("StartProcessingOutcome: %v", err)
	}
	if err := store.FinishProcessingOutcome(id, 50, 2, `[{"row":3,"error":"duplicate record"}]`); err != nil {
		t.Fatalf("FinishProcessingOutcome: %v", err)
	}

	outcomes, err := store.GetProcessingOutcomes("job-1")
	if err != nil {
		t.Fatalf("GetProcessingOutcomes: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("len = %d, want 1", len(outcomes))
	}
	o := outcomes[0]
	if o.RecordsProcessed != 50 || o.RecordsFailed != 2 {
		t.Errorf("counts = (%d, %d), want (50, 2)", o.RecordsProcessed, o.RecordsFailed)
	}
	if !o.FinishedAt.Valid {
		t.Error("FinishedAt should be set")
	}
	if !o.ErrorDetails.Valid {
		t.Error("ErrorDetails should be set")
	}
}

func TestLogActivity_ClosedVocabularies(t *testing.T) {
	store := setupTestStore(t)

	if _, err := store.LogActivity("alice", models.ActionUpload, models.ModuleDataset,
		"dataset_uploads", "job-1", `{"filename":"f.csv"}`); err != nil {
		t.Fatalf("valid entry: %v", err)
	}

	if _, err := store.LogActivity("alice", "purge", models.ModuleDataset, "", "", ""); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("bad action: err = %v, want ErrInvalidAction", err)
	}
	if _, err := store.LogActivity("alice", models.ActionUpload, "billing", "", "", ""); !errors.Is(err, ErrInvalidModule) {
		t.Errorf("bad module: err = %v, want ErrInvalidModule", err)
	}

	// Rejected entries must not have been written.
	entries, err := store.GetActivityLogs("alice", "", "", 10)
	if err != nil {
		t.Fatalf("GetActivityLogs: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len = %d, want 1", len(entries))
	}
	if entries[0].Action != models.ActionUpload {
		t.Errorf("Action = %s, want upload", entries[0].Action)
	}
}

func TestGetActivityLogs_Filters(t *testing.T) {
	store := setupTestStore(t)

	seed := []struct {
		user   string
		action models.Action
		module models.Module
	}{
		{"alice", models.ActionUpload, models.ModuleDataset},
		{"alice", models.ActionImport, models.ModuleEnvironmental},
		{"bob", models.ActionCreate, models.ModuleAreaPoint},
	}
	for _, e := range seed {
		if _, err := store.LogActivity(e.user, e.action, e.module, "", "", ""); err != nil {
			t.Fatalf("LogActivity: %v", err)
		}
	}

	entries, err := store.GetActivityLogs("alice", "", "", 10)
	if err != nil {
		t.Fatalf("by user: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("alice entries = %d, want 2", len(entries))
	}

	entries, err = store.GetActivityLogs("", models.ModuleAreaPoint, "", 10)
	if err != nil {
		t.Fatalf("by module: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("area_point entries = %d, want 1", len(entries))
	}

	entries, err = store.GetActivityLogs("", "", models.ActionImport, 10)
	if err != nil {
		t.Fatalf("by action: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("import entries = %d, want 1", len(entries))
	}
}

package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/markMSUIIT/riceprotek-web-app/internal/models"
)

var (
	// ErrInvalidAction means a caller passed an action outside the closed
	// vocabulary. This is a programmer error, not bad input data.
	ErrInvalidAction = errors.New("invalid activity action")
	// ErrInvalidModule means a caller passed a module outside the closed vocabulary.
	ErrInvalidModule = errors.New("invalid activity module")
	// ErrUploadNotFound means no upload job exists with the given id.
	ErrUploadNotFound = errors.New("upload job not found")
)

// ==================== DATASET UPLOADS ====================

// CreateUploadJob records a new upload in the pending state.
func (s *Store) CreateUploadJob(job models.UploadJob) error {
	validation := job.ValidationStatus
	if validation == "" {
		validation = models.ValidationValid
	}
	processing := job.ProcessingStatus
	if processing == "" {
		processing = models.ProcessingPending
	}
	_, err := s.db.Exec(`
		INSERT INTO dataset_uploads (upload_id, filename, original_filename, uploaded_by, row_count, column_count,
			file_size, columns_detected, validation_status, validation_errors, processing_status, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.UploadID, job.Filename, job.OriginalFilename, job.UploadedBy, job.RowCount,
		job.ColumnCount, job.FileSize, job.ColumnsDetected, validation, job.ValidationErrors,
		processing, time.Now().UTC())
	return err
}

func (s *Store) GetUploadJob(uploadID string) (*models.UploadJob, error) {
	row := s.db.QueryRow(`
		SELECT upload_id, filename, original_filename, uploaded_by, row_count, column_count,
		       file_size, columns_detected, validation_status, validation_errors, processing_status, uploaded_at, updated_at
		FROM dataset_uploads
		WHERE upload_id = ?
	`, uploadID)

	var job models.UploadJob
	err := row.Scan(&job.UploadID, &job.Filename, &job.OriginalFilename, &job.UploadedBy,
		&job.RowCount, &job.ColumnCount, &job.FileSize, &job.ColumnsDetected,
		&job.ValidationStatus, &job.ValidationErrors, &job.ProcessingStatus,
		&job.UploadedAt, &job.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *Store) GetUploadJobs(uploadedBy string) ([]models.UploadJob, error) {
	query := `
		SELECT upload_id, filename, original_filename, uploaded_by, row_count, column_count,
		       file_size, columns_detected, validation_status, validation_errors, processing_status, uploaded_at, updated_at
		FROM dataset_uploads`
	var args []any
	if uploadedBy != "" {
		query += ` WHERE uploaded_by = ?`
		args = append(args, uploadedBy)
	}
	query += ` ORDER BY uploaded_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []models.UploadJob
	for rows.Next() {
		var job models.UploadJob
		if err := rows.Scan(&job.UploadID, &job.Filename, &job.OriginalFilename, &job.UploadedBy,
			&job.RowCount, &job.ColumnCount, &job.FileSize, &job.ColumnsDetected,
			&job.ValidationStatus, &job.ValidationErrors, &job.ProcessingStatus,
			&job.UploadedAt, &job.UpdatedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateUploadCounts fills in the parse results of a job.
func (s *Store) UpdateUploadCounts(uploadID string, rowCount, columnCount int, columnsDetected string) error {
	return s.updateUpload(uploadID, `
		UPDATE dataset_uploads SET row_count = ?, column_count = ?, columns_detected = ?, updated_at = ?
		WHERE upload_id = ?
	`, rowCount, columnCount, columnsDetected, time.Now().UTC(), uploadID)
}

// UpdateUploadValidation records the validator outcome.
func (s *Store) UpdateUploadValidation(uploadID string, status models.ValidationStatus, errorText string) error {
	errs := sql.NullString{String: errorText, Valid: errorText != ""}
	return s.updateUpload(uploadID, `
		UPDATE dataset_uploads SET validation_status = ?, validation_errors = ?, updated_at = ?
		WHERE upload_id = ?
	`, status, errs, time.Now().UTC(), uploadID)
}

// UpdateUploadProcessingStatus advances the job state machine.
func (s *Store) UpdateUploadProcessingStatus(uploadID string, status models.ProcessingStatus) error {
	return s.updateUpload(uploadID, `
		UPDATE dataset_uploads SET processing_status = ?, updated_at = ?
		WHERE upload_id = ?
	`, status, time.Now().UTC(), uploadID)
}

func (s *Store) updateUpload(uploadID, query string, args ...any) error {
	result, err := s.db.Exec(query, args...)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("upload %s: %w", uploadID, ErrUploadNotFound)
	}
	return nil
}

// ==================== DATASET PROCESSING ====================

// StartProcessingOutcome creates the per-domain child record for an upload.
func (s *Store) StartProcessingOutcome(uploadID, domain string) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO dataset_processing (upload_id, domain, started_at)
		VALUES (?, ?, ?)
	`, uploadID, domain, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// FinishProcessingOutcome records the final counts. The row is immutable
// afterwards; nothing in the system updates it again.
func (s *Store) FinishProcessingOutcome(id int64, processed, failed int, errorDetails string) error {
	details := sql.NullString{String: errorDetails, Valid: errorDetails != ""}
	_, err := s.db.Exec(`
		UPDATE dataset_processing SET records_processed = ?, records_failed = ?, error_details = ?, finished_at = ?
		WHERE id = ?
	`, processed, failed, details, time.Now().UTC(), id)
	return err
}

func (s *Store) GetProcessingOutcomes(uploadID string) ([]models.ProcessingOutcome, error) {
	rows, err := s.db.Query(`
		SELECT id, upload_id, domain, records_processed, records_failed, error_details, started_at, finished_at
		FROM dataset_processing
		WHERE upload_id = ?
		ORDER BY started_at ASC
	`, uploadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []models.ProcessingOutcome
	for rows.Next() {
		var o models.ProcessingOutcome
		if err := rows.Scan(&o.ID, &o.UploadID, &o.Domain, &o.RecordsProcessed,
			&o.RecordsFailed, &o.ErrorDetails, &o.StartedAt, &o.FinishedAt); err != nil {
			return nil, err
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// ==================== ACTIVITY LOGS ====================

// LogActivity appends one immutable audit event. Action and module are
// validated against their closed vocabularies; values outside them are a
// caller bug and rejected outright.
func (s *Store) LogActivity(user string, action models.Action, module models.Module, entityType, entityID, details string) (int64, error) {
	if !action.Valid() {
		return 0, fmt.Errorf("action %q: %w", action, ErrInvalidAction)
	}
	if !module.Valid() {
		return 0, fmt.Errorf("module %q: %w", module, ErrInvalidModule)
	}

	eid := sql.NullString{String: entityID, Valid: entityID != ""}
	det := sql.NullString{String: details, Valid: details != ""}

	result, err := s.db.Exec(`
		INSERT INTO activity_logs (user, action, module, entity_type, entity_id, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, user, action, module, entityType, eid, det, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *Store) GetActivityLogs(user string, module models.Module, action models.Action, limit int) ([]models.ActivityLogEntry, error) {
	query := `
		SELECT id, user, action, module, entity_type, entity_id, details, timestamp
		FROM activity_logs
		WHERE 1=1`
	var args []any
	if user != "" {
		query += ` AND user = ?`
		args = append(args, user)
	}
	if module != "" {
		query += ` AND module = ?`
		args = append(args, module)
	}
	if action != "" {
		query += ` AND action = ?`
		args = append(args, action)
	}
	query += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.ActivityLogEntry
	for rows.Next() {
		var e models.ActivityLogEntry
		if err := rows.Scan(&e.ID, &e.User, &e.Action, &e.Module, &e.EntityType,
			&e.EntityID, &e.Details, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/markMSUIIT/riceprotek-web-app/internal/dataset"
	"github.com/markMSUIIT/riceprotek-web-app/internal/models"
	"github.com/markMSUIIT/riceprotek-web-app/internal/nasapower"
	"github.com/markMSUIIT/riceprotek-web-app/internal/store"
)

// maxUploadBytes bounds how much of an uploaded file we read into memory.
const maxUploadBytes = 32 << 20

type Server struct {
	store    *store.Store
	importer *dataset.Importer
	nasa     *nasapower.Client
	port     string
}

func NewServer(st *store.Store, importer *dataset.Importer, nasa *nasapower.Client, port string) *Server {
	return &Server{store: st, importer: importer, nasa: nasa, port: port}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok")
	})

	mux.HandleFunc("POST /api/uploads", s.handleUpload)
	mux.HandleFunc("GET /api/uploads", s.handleListUploads)
	mux.HandleFunc("GET /api/uploads/{id}", s.handleGetUpload)

	mux.HandleFunc("GET /api/area-points", s.handleListAreaPoints)
	mux.HandleFunc("POST /api/area-points", s.handleCreateAreaPoint)
	mux.HandleFunc("PUT /api/area-points/{id}", s.handleUpdateAreaPoint)
	mux.HandleFunc("DELETE /api/area-points/{id}", s.handleDeactivateAreaPoint)

	mux.HandleFunc("GET /api/environmental", s.handleListEnvironmental)
	mux.HandleFunc("GET /api/pest", s.handleListPest)
	mux.HandleFunc("POST /api/pest", s.handleCreatePestRecord)
	mux.HandleFunc("PUT /api/pest/{id}", s.handleUpdatePestRecord)
	mux.HandleFunc("DELETE /api/pest/{id}", s.handleDeletePestRecord)
	mux.HandleFunc("GET /api/activity", s.handleListActivity)

	mux.HandleFunc("POST /api/nasa-power/import", s.handleNASAImport)

	return mux
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         ":" + s.port,
		Handler:      s.Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// handleUpload accepts a multipart CSV upload and runs the ingestion
// pipeline synchronously. The response is always one of: a validation
// report (rejected before import), a completed report with per-domain
// success/failure counts, or an error naming the batch-level cause.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse form: %w", err))
		return
	}

	areaPointID := r.FormValue("area_point_id")
	uploadedBy := r.FormValue("uploaded_by")
	if areaPointID == "" || uploadedBy == "" {
		writeError(w, http.StatusBadRequest, errors.New("area_point_id and uploaded_by are required"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("file field: %w", err))
		return
	}
	defer file.Close()

	if header.Size > maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Errorf("file %s is %d bytes, limit is %d", header.Filename, header.Size, maxUploadBytes))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read file: %w", err))
		return
	}

	report, err := s.importer.Run(data, header.Filename, areaPointID, uploadedBy)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrAreaPointNotFound) || errors.Is(err, store.ErrAreaPointInactive) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err)
		return
	}

	status := http.StatusOK
	if !report.Validation.Valid {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, report)
}

func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.GetUploadJobs(r.URL.Query().Get("uploaded_by"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"uploads": jobs})
}

func (s *Server) handleGetUpload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := s.store.GetUploadJob(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("upload %s: %w", id, store.ErrUploadNotFound))
		return
	}
	outcomes, err := s.store.GetProcessingOutcomes(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"upload": job, "outcomes": outcomes})
}

func (s *Server) handleListAreaPoints(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	points, err := s.store.GetAreaPoints(activeOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"area_points": points})
}

type createAreaPointRequest struct {
	AreaPointID  string  `json:"area_point_id"`
	Name         string  `json:"name"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Cluster      *int64  `json:"cluster"`
	Municipality string  `json:"municipality"`
	Barangay     string  `json:"barangay"`
	Description  string  `json:"description"`
	CreatedBy    string  `json:"created_by"`
}

func (s *Server) handleCreateAreaPoint(w http.ResponseWriter, r *http.Request) {
	var req createAreaPointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	if req.AreaPointID == "" || req.Name == "" || req.CreatedBy == "" {
		writeError(w, http.StatusBadRequest, errors.New("area_point_id, name and created_by are required"))
		return
	}

	ap := models.AreaPoint{
		AreaPointID:  req.AreaPointID,
		Name:         req.Name,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		Municipality: sql.NullString{String: req.Municipality, Valid: req.Municipality != ""},
		Barangay:     sql.NullString{String: req.Barangay, Valid: req.Barangay != ""},
		Description:  sql.NullString{String: req.Description, Valid: req.Description != ""},
		Status:       models.LifecycleActive,
		CreatedBy:    req.CreatedBy,
	}
	if req.Cluster != nil {
		ap.Cluster = sql.NullInt64{Int64: *req.Cluster, Valid: true}
	}

	if err := s.store.CreateAreaPoint(ap); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrDuplicateRecord) {
			status = http.StatusConflict
		}
		writeError(w, status, err)
		return
	}

	if _, err := s.store.LogActivity(req.CreatedBy, models.ActionCreate, models.ModuleAreaPoint,
		"area_points", req.AreaPointID, ""); err != nil {
		log.Printf("api: log activity: %v", err)
	}

	writeJSON(w, http.StatusCreated, map[string]any{"area_point_id": req.AreaPointID})
}

type updateAreaPointRequest struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	UpdatedBy string  `json:"updated_by"`
}

func (s *Server) handleUpdateAreaPoint(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateAreaPointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	if req.Name == "" || req.UpdatedBy == "" {
		writeError(w, http.StatusBadRequest, errors.New("name and updated_by are required"))
		return
	}

	if err := s.store.UpdateAreaPoint(id, req.Name, req.Latitude, req.Longitude); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrAreaPointNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}

	if _, err := s.store.LogActivity(req.UpdatedBy, models.ActionUpdate, models.ModuleAreaPoint,
		"area_points", id, ""); err != nil {
		log.Printf("api: log activity: %v", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{"area_point_id": id})
}

func (s *Server) handleDeactivateAreaPoint(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	user := r.URL.Query().Get("user")
	if user == "" {
		user = "system"
	}

	if err := s.store.DeactivateAreaPoint(id); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrAreaPointNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}

	if _, err := s.store.LogActivity(user, models.ActionDelete, models.ModuleAreaPoint,
		"area_points", id, `{"action":"deactivated"}`); err != nil {
		log.Printf("api: log activity: %v", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{"area_point_id": id, "status": models.LifecycleInactive})
}

func (s *Server) handleListEnvironmental(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	records, err := s.store.GetEnvironmentalRecords(
		q.Get("area_point_id"), models.Source(q.Get("source")), q.Get("start"), q.Get("end"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (s *Server) handleListPest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	records, err := s.store.GetPestRecords(
		q.Get("area_point_id"), models.PestType(q.Get("pest_type")), q.Get("start"), q.Get("end"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

type createPestRecordRequest struct {
	AreaPointID  string   `json:"area_point_id"`
	PestType     string   `json:"pest_type"`
	Date         string   `json:"date"` // YYYY-MM-DD
	WeekNumber   *int64   `json:"week_number"`
	MoonCategory *int64   `json:"moon_category"`
	Count        *int64   `json:"count"`
	Density      *float64 `json:"density"`
	Notes        string   `json:"notes"`
	CreatedBy    string   `json:"created_by"`
}

// handleCreatePestRecord inserts a single observation outside the bulk path.
// It goes through the same area-point and enum guards as imports.
func (s *Server) handleCreatePestRecord(w http.ResponseWriter, r *http.Request) {
	var req createPestRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	if req.AreaPointID == "" || req.CreatedBy == "" {
		writeError(w, http.StatusBadRequest, errors.New("area_point_id and created_by are required"))
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse date: %w", err))
		return
	}

	if _, err := s.store.RequireActiveAreaPoint(req.AreaPointID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrAreaPointNotFound) || errors.Is(err, store.ErrAreaPointInactive) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err)
		return
	}

	rec := models.PestRecord{
		AreaPointID: req.AreaPointID,
		PestType:    models.PestType(req.PestType),
		Date:        date.Format("2006-01-02"),
		Year:        sql.NullInt64{Int64: int64(date.Year()), Valid: true},
		Month:       sql.NullInt64{Int64: int64(date.Month()), Valid: true},
		Day:         sql.NullInt64{Int64: int64(date.Day()), Valid: true},
		Notes:       sql.NullString{String: req.Notes, Valid: req.Notes != ""},
		CreatedBy:   req.CreatedBy,
	}
	if req.WeekNumber != nil {
		rec.WeekNumber = sql.NullInt64{Int64: *req.WeekNumber, Valid: true}
	}
	if req.MoonCategory != nil {
		rec.MoonCategory = sql.NullInt64{Int64: *req.MoonCategory, Valid: true}
	}
	if req.Count != nil {
		rec.Count = sql.NullInt64{Int64: *req.Count, Valid: true}
	}
	if req.Density != nil {
		rec.Density = sql.NullFloat64{Float64: *req.Density, Valid: true}
	}

	id, err := s.store.InsertPestRecord(rec)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrInvalidPestType) || errors.Is(err, store.ErrNegativeCount) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}

	if _, err := s.store.LogActivity(req.CreatedBy, models.ActionCreate, models.ModulePest,
		"pest_records", fmt.Sprintf("%d", id), ""); err != nil {
		log.Printf("api: log activity: %v", err)
	}

	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

type updatePestRecordRequest struct {
	Count     *int64   `json:"count"`
	Density   *float64 `json:"density"`
	Notes     string   `json:"notes"`
	UpdatedBy string   `json:"updated_by"`
}

func (s *Server) handleUpdatePestRecord(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse id: %w", err))
		return
	}

	var req updatePestRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}

	var count sql.NullInt64
	if req.Count != nil {
		count = sql.NullInt64{Int64: *req.Count, Valid: true}
	}
	var density sql.NullFloat64
	if req.Density != nil {
		density = sql.NullFloat64{Float64: *req.Density, Valid: true}
	}
	notes := sql.NullString{String: req.Notes, Valid: req.Notes != ""}

	if err := s.store.UpdatePestRecord(id, count, density, notes); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrNegativeCount) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}

	if req.UpdatedBy != "" {
		if _, err := s.store.LogActivity(req.UpdatedBy, models.ActionUpdate, models.ModulePest,
			"pest_records", r.PathValue("id"), ""); err != nil {
			log.Printf("api: log activity: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": id})
}

func (s *Server) handleDeletePestRecord(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse id: %w", err))
		return
	}

	if err := s.store.DeletePestRecord(id); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	user := r.URL.Query().Get("user")
	if user == "" {
		user = "system"
	}
	if _, err := s.store.LogActivity(user, models.ActionDelete, models.ModulePest,
		"pest_records", r.PathValue("id"), ""); err != nil {
		log.Printf("api: log activity: %v", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": id})
}

func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 100
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}
	entries, err := s.store.GetActivityLogs(
		q.Get("user"), models.Module(q.Get("module")), models.Action(q.Get("action")), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

type nasaImportRequest struct {
	AreaPointID string `json:"area_point_id"`
	Start       string `json:"start"` // YYYY-MM-DD
	End         string `json:"end"`   // YYYY-MM-DD
	RequestedBy string `json:"requested_by"`
}

// handleNASAImport fetches NASA POWER readings for an area point's
// coordinates and imports them through the same per-row loop as uploads.
func (s *Server) handleNASAImport(w http.ResponseWriter, r *http.Request) {
	var req nasaImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	if req.AreaPointID == "" || req.RequestedBy == "" {
		writeError(w, http.StatusBadRequest, errors.New("area_point_id and requested_by are required"))
		return
	}

	start, err := time.Parse("2006-01-02", req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse start: %w", err))
		return
	}
	end, err := time.Parse("2006-01-02", req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse end: %w", err))
		return
	}

	ap, err := s.store.RequireActiveAreaPoint(req.AreaPointID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrAreaPointNotFound) || errors.Is(err, store.ErrAreaPointInactive) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err)
		return
	}

	records, err := s.nasa.FetchDaily(ap.Latitude, ap.Longitude, start, end)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Errorf("nasa power: %w", err))
		return
	}

	result, err := s.importer.ImportEnvironmentalRecords(records, req.AreaPointID, req.RequestedBy)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/markMSUIIT/riceprotek-web-app/internal/models"
)

var (
	// ErrAreaPointNotFound means the referenced area point does not exist.
	ErrAreaPointNotFound = errors.New("area point not found")
	// ErrAreaPointInactive means the area point exists but has been deactivated.
	ErrAreaPointInactive = errors.New("area point is inactive")
	// ErrDuplicateRecord means an insert violated a uniqueness constraint,
	// e.g. the (area_point_id, date, source) triple for environmental data.
	ErrDuplicateRecord = errors.New("duplicate record")
	// ErrInvalidSource means the environmental source is outside the closed set.
	ErrInvalidSource = errors.New("invalid environmental source")
	// ErrInvalidPestType means the pest type is outside {rbb, wsb}.
	ErrInvalidPestType = errors.New("invalid pest type")
	// ErrNegativeCount means a pest count or density was negative.
	ErrNegativeCount = errors.New("pest count and density must be non-negative")
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// isUniqueViolation reports whether err is a sqlite UNIQUE constraint failure.
// The uniqueness of (area_point_id, date, source) is enforced by the index, not
// application logic, so concurrent uploads cannot race past an existence check.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ==================== AREA POINTS ====================

func (s *Store) CreateAreaPoint(ap models.AreaPoint) error {
	status := ap.Status
	if status == "" {
		status = models.LifecycleActive
	}
	_, err := s.db.Exec(`
		INSERT INTO area_points (area_point_id, name, latitude, longitude, cluster, municipality, barangay, description, status, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ap.AreaPointID, ap.Name, ap.Latitude, ap.Longitude, ap.Cluster, ap.Municipality,
		ap.Barangay, ap.Description, status, ap.CreatedBy, time.Now().UTC(), time.Now().UTC())
	if isUniqueViolation(err) {
		return fmt.Errorf("area point %s: %w", ap.AreaPointID, ErrDuplicateRecord)
	}
	return err
}

func (s *Store) GetAreaPoint(areaPointID string) (*models.AreaPoint, error) {
	row := s.db.QueryRow(`
		SELECT id, area_point_id, name, latitude, longitude, cluster, municipality, barangay, description, status, created_by, created_at, updated_at
		FROM area_points
		WHERE area_point_id = ?
	`, areaPointID)

	var ap models.AreaPoint
	err := row.Scan(&ap.ID, &ap.AreaPointID, &ap.Name, &ap.Latitude, &ap.Longitude,
		&ap.Cluster, &ap.Municipality, &ap.Barangay, &ap.Description, &ap.Status,
		&ap.CreatedBy, &ap.CreatedAt, &ap.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ap, nil
}

// RequireActiveAreaPoint resolves an area point and verifies it is active.
// This is the referential guard every record write goes through.
func (s *Store) RequireActiveAreaPoint(areaPointID string) (*models.AreaPoint, error) {
	ap, err := s.GetAreaPoint(areaPointID)
	if err != nil {
		return nil, err
	}
	if ap == nil {
		return nil, fmt.Errorf("area point %s: %w", areaPointID, ErrAreaPointNotFound)
	}
	if !ap.Active() {
		return nil, fmt.Errorf("area point %s: %w", areaPointID, ErrAreaPointInactive)
	}
	return ap, nil
}

func (s *Store) GetAreaPoints(activeOnly bool) ([]models.AreaPoint, error) {
	query := `
		SELECT id, area_point_id, name, latitude, longitude, cluster, municipality, barangay, description, status, created_by, created_at, updated_at
		FROM area_points`
	if activeOnly {
		query += ` WHERE status = 'active'`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []models.AreaPoint
	for rows.Next() {
		var ap models.AreaPoint
		if err := rows.Scan(&ap.ID, &ap.AreaPointID, &ap.Name, &ap.Latitude, &ap.Longitude,
			&ap.Cluster, &ap.Municipality, &ap.Barangay, &ap.Description, &ap.Status,
			&ap.CreatedBy, &ap.CreatedAt, &ap.UpdatedAt); err != nil {
			return nil, err
		}
		points = append(points, ap)
	}
	return points, rows.Err()
}

func (s *Store) UpdateAreaPoint(areaPointID string, name string, latitude, longitude float64) error {
	result, err := s.db.Exec(`
		UPDATE area_points SET name = ?, latitude = ?, longitude = ?, updated_at = ?
		WHERE area_point_id = ?
	`, name, latitude, longitude, time.Now().UTC(), areaPointID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("area point %s: %w", areaPointID, ErrAreaPointNotFound)
	}
	return nil
}

// DeactivateAreaPoint soft-deletes: the row stays so historical records keep
// a resolvable reference, but new writes against it are rejected.
func (s *Store) DeactivateAreaPoint(areaPointID string) error {
	result, err := s.db.Exec(`
		UPDATE area_points SET status = ?, updated_at = ? WHERE area_point_id = ?
	`, models.LifecycleInactive, time.Now().UTC(), areaPointID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("area point %s: %w", areaPointID, ErrAreaPointNotFound)
	}
	return nil
}

// ==================== ENVIRONMENTAL DATA ====================

// InsertEnvironmentalRecord inserts one reading. Returns ErrDuplicateRecord
// when (area_point_id, date, source) already exists.
func (s *Store) InsertEnvironmentalRecord(rec models.EnvironmentalRecord) (int64, error) {
	if !rec.Source.Valid() {
		return 0, fmt.Errorf("source %q: %w", rec.Source, ErrInvalidSource)
	}

	result, err := s.db.Exec(`
		INSERT INTO environmental_data (area_point_id, date, source, temperature, temp_min, temp_max, humidity, precipitation,
			wind_speed, wind_speed_max, wind_speed_min, wind_direction, solar_radiation, uva, uvb, soil_wetness, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.AreaPointID, rec.Date, rec.Source, rec.Temperature, rec.TempMin, rec.TempMax,
		rec.Humidity, rec.Precipitation, rec.WindSpeed, rec.WindSpeedMax, rec.WindSpeedMin,
		rec.WindDirection, rec.SolarRadiation, rec.UVA, rec.UVB, rec.SoilWetness,
		rec.CreatedBy, time.Now().UTC())
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("environmental data for %s on %s from %s: %w",
			rec.AreaPointID, rec.Date, rec.Source, ErrDuplicateRecord)
	}
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *Store) GetEnvironmentalRecords(areaPointID string, source models.Source, start, end string) ([]models.EnvironmentalRecord, error) {
	query := `
		SELECT id, area_point_id, date, source, temperature, temp_min, temp_max, humidity, precipitation,
		       wind_speed, wind_speed_max, wind_speed_min, wind_direction, solar_radiation, uva, uvb, soil_wetness, created_by, created_at
		FROM environmental_data
		WHERE 1=1`
	var args []any
	if areaPointID != "" {
		query += ` AND area_point_id = ?`
		args = append(args, areaPointID)
	}
	if source != "" {
		query += ` AND source = ?`
		args = append(args, source)
	}
	if start != "" {
		query += ` AND date >= ?`
		args = append(args, start)
	}
	if end != "" {
		query += ` AND date <= ?`
		args = append(args, end)
	}
	query += ` ORDER BY date DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.EnvironmentalRecord
	for rows.Next() {
		var r models.EnvironmentalRecord
		if err := rows.Scan(&r.ID, &r.AreaPointID, &r.Date, &r.Source, &r.Temperature,
			&r.TempMin, &r.TempMax, &r.Humidity, &r.Precipitation, &r.WindSpeed,
			&r.WindSpeedMax, &r.WindSpeedMin, &r.WindDirection, &r.SolarRadiation,
			&r.UVA, &r.UVB, &r.SoilWetness, &r.CreatedBy, &r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// ==================== PEST RECORDS ====================

// InsertPestRecord inserts one observation. The pest-type enum and the
// non-negativity of count/density are enforced here so that every write path
// (bulk import, single create) shares the same guard.
func (s *Store) InsertPestRecord(rec models.PestRecord) (int64, error) {
	if !rec.PestType.Valid() {
		return 0, fmt.Errorf("pest type %q: %w", rec.PestType, ErrInvalidPestType)
	}
	if rec.Count.Valid && rec.Count.Int64 < 0 {
		return 0, fmt.Errorf("count %d: %w", rec.Count.Int64, ErrNegativeCount)
	}
	if rec.Density.Valid && rec.Density.Float64 < 0 {
		return 0, fmt.Errorf("density %g: %w", rec.Density.Float64, ErrNegativeCount)
	}

	result, err := s.db.Exec(`
		INSERT INTO pest_records (area_point_id, pest_type, date, year, month, day, week_number, moon_category,
			count, density, notes, image_path, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.AreaPointID, rec.PestType, rec.Date, rec.Year, rec.Month, rec.Day, rec.WeekNumber,
		rec.MoonCategory, rec.Count, rec.Density, rec.Notes, rec.ImagePath, rec.CreatedBy, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *Store) GetPestRecords(areaPointID string, pestType models.PestType, start, end string) ([]models.PestRecord, error) {
	query := `
		SELECT id, area_point_id, pest_type, date, year, month, day, week_number, moon_category,
		       count, density, notes, image_path, created_by, created_at
		FROM pest_records
		WHERE 1=1`
	var args []any
	if areaPointID != "" {
		query += ` AND area_point_id = ?`
		args = append(args, areaPointID)
	}
	if pestType != "" {
		query += ` AND pest_type = ?`
		args = append(args, pestType)
	}
	if start != "" {
		query += ` AND date >= ?`
		args = append(args, start)
	}
	if end != "" {
		query += ` AND date <= ?`
		args = append(args, end)
	}
	query += ` ORDER BY date DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.PestRecord
	for rows.Next() {
		var r models.PestRecord
		if err := rows.Scan(&r.ID, &r.AreaPointID, &r.PestType, &r.Date, &r.Year, &r.Month,
			&r.Day, &r.WeekNumber, &r.MoonCategory, &r.Count, &r.Density, &r.Notes,
			&r.ImagePath, &r.CreatedBy, &r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *Store) UpdatePestRecord(id int64, count sql.NullInt64, density sql.NullFloat64, notes sql.NullString) error {
	if count.Valid && count.Int64 < 0 {
		return fmt.Errorf("count %d: %w", count.Int64, ErrNegativeCount)
	}
	if density.Valid && density.Float64 < 0 {
		return fmt.Errorf("density %g: %w", density.Float64, ErrNegativeCount)
	}
	_, err := s.db.Exec(`
		UPDATE pest_records SET count = ?, density = ?, notes = ? WHERE id = ?
	`, count, density, notes, id)
	return err
}

func (s *Store) DeletePestRecord(id int64) error {
	_, err := s.db.Exec(`DELETE FROM pest_records WHERE id = ?`, id)
	return err
}

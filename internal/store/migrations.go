package store

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS area_points (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    area_point_id TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    latitude REAL NOT NULL,
    longitude REAL NOT NULL,
    cluster INTEGER,
    municipality TEXT,
    barangay TEXT,
    description TEXT,
    status TEXT NOT NULL DEFAULT 'active',
    created_by TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS environmental_data (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    area_point_id TEXT NOT NULL,
    date DATE NOT NULL,
    source TEXT NOT NULL,
    temperature REAL,
    temp_min REAL,
    temp_max REAL,
    humidity REAL,
    precipitation REAL,
    wind_speed REAL,
    wind_speed_max REAL,
    wind_speed_min REAL,
    wind_direction REAL,
    solar_radiation REAL,
    uva REAL,
    uvb REAL,
    soil_wetness REAL,
    created_by TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(area_point_id, date, source)
);

CREATE TABLE IF NOT EXISTS pest_records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    area_point_id TEXT NOT NULL,
    pest_type TEXT NOT NULL,
    date DATE NOT NULL,
    year INTEGER,
    month INTEGER,
    day INTEGER,
    week_number INTEGER,
    moon_category INTEGER,
    count INTEGER,
    density REAL,
    notes TEXT,
    image_path TEXT,
    created_by TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS dataset_uploads (
    upload_id TEXT PRIMARY KEY,
    filename TEXT NOT NULL,
    original_filename TEXT NOT NULL,
    uploaded_by TEXT NOT NULL,
    row_count INTEGER,
    column_count INTEGER,
    file_size INTEGER NOT NULL,
    columns_detected TEXT,
    validation_status TEXT NOT NULL DEFAULT 'valid',
    validation_errors TEXT,
    processing_status TEXT NOT NULL DEFAULT 'pending',
    uploaded_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME
);

CREATE TABLE IF NOT EXISTS dataset_processing (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    upload_id TEXT NOT NULL REFERENCES dataset_uploads(upload_id),
    domain TEXT NOT NULL,
    records_processed INTEGER NOT NULL DEFAULT 0,
    records_failed INTEGER NOT NULL DEFAULT 0,
    error_details TEXT,
    started_at DATETIME NOT NULL,
    finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS activity_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user TEXT NOT NULL,
    action TEXT NOT NULL,
    module TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    entity_id TEXT,
    details TEXT,
    timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_env_area_date ON environmental_data(area_point_id, date);
CREATE INDEX IF NOT EXISTS idx_pest_area ON pest_records(area_point_id);
CREATE INDEX IF NOT EXISTS idx_pest_type ON pest_records(pest_type);
CREATE INDEX IF NOT EXISTS idx_pest_date ON pest_records(date);
CREATE INDEX IF NOT EXISTS idx_uploads_uploaded_at ON dataset_uploads(uploaded_at);
CREATE INDEX IF NOT EXISTS idx_uploads_uploader ON dataset_uploads(uploaded_by);
CREATE INDEX IF NOT EXISTS idx_processing_upload ON dataset_processing(upload_id);
CREATE INDEX IF NOT EXISTS idx_activity_time ON activity_logs(timestamp);
CREATE INDEX IF NOT EXISTS idx_activity_user ON activity_logs(user);
CREATE INDEX IF NOT EXISTS idx_activity_module ON activity_logs(module);
`,
	},
}

func (s *Store) Migrate() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		log.Printf("migrations: applying %d - %s", m.Version, m.Description)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}

		log.Printf("migrations: completed %d", m.Version)
	}

	return nil
}

func (s *Store) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME
		)
	`)
	return err
}

func (s *Store) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (s *Store) MigrationVersion() (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}

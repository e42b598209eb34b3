package models

import (
	"database/sql"
	"time"
)

// LifecycleStatus is the soft-delete state of an area point. Records are
// never physically removed; deactivation preserves referential history.
type LifecycleStatus string

const (
	LifecycleActive   LifecycleStatus = "active"
	LifecycleInactive LifecycleStatus = "inactive"
)

// Source identifies where an environmental reading came from.
type Source string

const (
	SourceNASAPower    Source = "nasa_power"
	SourceMicroclimate Source = "microclimate"
	SourceManual       Source = "manual"
)

func (s Source) Valid() bool {
	switch s {
	case SourceNASAPower, SourceMicroclimate, SourceManual:
		return true
	}
	return false
}

// PestType is the closed set of pests tracked by the system.
type PestType string

const (
	PestRBB PestType = "rbb" // rice black bug
	PestWSB PestType = "wsb" // white stem borer
)

func (p PestType) Valid() bool {
	return p == PestRBB || p == PestWSB
}

// ValidationStatus records the schema-validation outcome of an upload.
type ValidationStatus string

const (
	ValidationValid   ValidationStatus = "valid"
	ValidationInvalid ValidationStatus = "invalid"
	ValidationPartial ValidationStatus = "partial"
)

// ProcessingStatus is the upload-job state machine:
// pending -> processing -> completed | failed. Completed and failed are terminal.
type ProcessingStatus string

const (
	ProcessingPending   ProcessingStatus = "pending"
	ProcessingActive    ProcessingStatus = "processing"
	ProcessingCompleted ProcessingStatus = "completed"
	ProcessingFailed    ProcessingStatus = "failed"
)

// Action is the closed vocabulary of auditable operations.
type Action string

const (
	ActionUpload Action = "upload"
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionLogin  Action = "login"
	ActionLogout Action = "logout"
	ActionExport Action = "export"
	ActionImport Action = "import"
)

func (a Action) Valid() bool {
	switch a {
	case ActionUpload, ActionCreate, ActionRead, ActionUpdate, ActionDelete,
		ActionLogin, ActionLogout, ActionExport, ActionImport:
		return true
	}
	return false
}

// Module is the closed vocabulary of system areas an action can touch.
type Module string

const (
	ModuleDataset       Module = "dataset"
	ModuleEnvironmental Module = "environmental"
	ModulePest          Module = "pest"
	ModuleAreaPoint     Module = "area_point"
	ModuleAuth          Module = "auth"
	ModuleVisualization Module = "visualization"
	ModuleSettings      Module = "settings"
)

func (m Module) Valid() bool {
	switch m {
	case ModuleDataset, ModuleEnvironmental, ModulePest, ModuleAreaPoint,
		ModuleAuth, ModuleVisualization, ModuleSettings:
		return true
	}
	return false
}

// AreaPoint is a named monitoring location. Every environmental and pest
// record must reference an area point that exists and is active at write time.
type AreaPoint struct {
	ID           int64
	AreaPointID  string // external identifier, globally unique
	Name         string
	Latitude     float64
	Longitude    float64
	Cluster      sql.NullInt64
	Municipality sql.NullString
	Barangay     sql.NullString
	Description  sql.NullString
	Status       LifecycleStatus
	CreatedBy    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (a AreaPoint) Active() bool {
	return a.Status == LifecycleActive
}

// EnvironmentalRecord is one daily weather/microclimate reading for an area
// point. (AreaPointID, Date, Source) is unique.
type EnvironmentalRecord struct {
	ID             int64
	AreaPointID    string
	Date           string // YYYY-MM-DD
	Source         Source
	Temperature    sql.NullFloat64 // T2M
	TempMin        sql.NullFloat64 // T2M_MIN
	TempMax        sql.NullFloat64 // T2M_MAX
	Humidity       sql.NullFloat64 // RH2M
	Precipitation  sql.NullFloat64 // PRECTOTCORR
	WindSpeed      sql.NullFloat64 // WS2M
	WindSpeedMax   sql.NullFloat64 // WS2M_MAX
	WindSpeedMin   sql.NullFloat64 // WS2M_MIN
	WindDirection  sql.NullFloat64 // WD2M
	SolarRadiation sql.NullFloat64 // CLRSKY_SFC_PAR_TOT
	UVA            sql.NullFloat64 // ALLSKY_SFC_UVA
	UVB            sql.NullFloat64 // ALLSKY_SFC_UVB
	SoilWetness    sql.NullFloat64 // GWETTOP
	CreatedBy      string
	CreatedAt      time.Time
}

// PestRecord is one pest observation for an area point.
type PestRecord struct {
	ID           int64
	AreaPointID  string
	PestType     PestType
	Date         string // YYYY-MM-DD
	Year         sql.NullInt64
	Month        sql.NullInt64
	Day          sql.NullInt64
	WeekNumber   sql.NullInt64
	MoonCategory sql.NullInt64
	Count        sql.NullInt64
	Density      sql.NullFloat64
	Notes        sql.NullString
	ImagePath    sql.NullString
	CreatedBy    string
	CreatedAt    time.Time
}

// UploadJob is the ledger entry for one uploaded file. Created at upload
// time, mutated as processing proceeds, never deleted.
type UploadJob struct {
	UploadID         string // uuid
	Filename         string
	OriginalFilename string
	UploadedBy       string
	RowCount         sql.NullInt64
	ColumnCount      sql.NullInt64
	FileSize         int64
	ColumnsDetected  sql.NullString // JSON array of column names
	ValidationStatus ValidationStatus
	ValidationErrors sql.NullString
	ProcessingStatus ProcessingStatus
	UploadedAt       time.Time
	UpdatedAt        sql.NullTime
}

// ProcessingOutcome is the per-domain child of an upload job. Immutable
// once finished.
type ProcessingOutcome struct {
	ID               int64
	UploadID         string
	Domain           string // environmental | pest | metadata
	RecordsProcessed int
	RecordsFailed    int
	ErrorDetails     sql.NullString // JSON list of row errors
	StartedAt        time.Time
	FinishedAt       sql.NullTime
}

// ActivityLogEntry is an append-only audit event. Never mutated or deleted.
type ActivityLogEntry struct {
	ID         int64
	User       string
	Action     Action
	Module     Module
	EntityType string
	EntityID   sql.NullString
	Details    sql.NullString // JSON payload
	Timestamp  time.Time
}

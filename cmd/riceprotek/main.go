package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/markMSUIIT/riceprotek-web-app/internal/api"
	"github.com/markMSUIIT/riceprotek-web-app/internal/dataset"
	"github.com/markMSUIIT/riceprotek-web-app/internal/models"
	"github.com/markMSUIIT/riceprotek-web-app/internal/nasapower"
	"github.com/markMSUIIT/riceprotek-web-app/internal/store"
)

// Monitoring sites around Lake Mainit. Seeded on first run; deactivation
// afterwards is a lifecycle change, not a delete.
var defaultAreaPoints = []models.AreaPoint{
	{AreaPointID: "AP001", Name: "Alipao", Latitude: 9.4167, Longitude: 125.5167, Cluster: sql.NullInt64{Int64: 1, Valid: true}, Municipality: sql.NullString{String: "Alegria", Valid: true}, Status: models.LifecycleActive, CreatedBy: "system"},
	{AreaPointID: "AP002", Name: "Poblacion", Latitude: 9.4500, Longitude: 125.4833, Cluster: sql.NullInt64{Int64: 1, Valid: true}, Municipality: sql.NullString{String: "Alegria", Valid: true}, Status: models.LifecycleActive, CreatedBy: "system"},
	{AreaPointID: "AP003", Name: "Mainit Lakeside", Latitude: 9.5333, Longitude: 125.5333, Cluster: sql.NullInt64{Int64: 2, Valid: true}, Municipality: sql.NullString{String: "Mainit", Valid: true}, Status: models.LifecycleActive, CreatedBy: "system"},
	{AreaPointID: "AP004", Name: "Matin-ao", Latitude: 9.5500, Longitude: 125.5167, Cluster: sql.NullInt64{Int64: 2, Valid: true}, Municipality: sql.NullString{String: "Mainit", Valid: true}, Status: models.LifecycleActive, CreatedBy: "system"},
}

type appContext struct {
	store    *store.Store
	importer *dataset.Importer
	nasa     *nasapower.Client
}

type cli struct {
	DB string `help:"Path to SQLite database." env:"RICEPROTEK_DB" default:"data/riceprotek.db"`

	Serve     serveCmd     `cmd:"" help:"Run the HTTP API server."`
	Import    importCmd    `cmd:"" help:"Import a CSV dataset file."`
	FetchNASA fetchNASACmd `cmd:"" name:"fetch-nasa" help:"Fetch NASA POWER daily data for an area point."`
	Seed      seedCmd      `cmd:"" help:"Seed the default area points and exit."`
}

type serveCmd struct {
	Port string `help:"HTTP server port." env:"RICEPROTEK_PORT" default:"8080"`
}

func (c *serveCmd) Run(app *appContext) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	server := api.NewServer(app.store, app.importer, app.nasa, c.Port)
	log.Printf("starting server on :%s", c.Port)
	return server.Run(ctx)
}

type importCmd struct {
	File       string `arg:"" help:"CSV file to import." type:"existingfile"`
	AreaPoint  string `help:"Area point id the rows belong to." required:""`
	UploadedBy string `help:"User recorded in the upload ledger." default:"cli"`
}

func (c *importCmd) Run(app *appContext) error {
	data, err := os.ReadFile(c.File)
	if err != nil {
		return fmt.Errorf("read %s: %w", c.File, err)
	}

	report, err := app.importer.Run(data, c.File, c.AreaPoint, c.UploadedBy)
	if err != nil {
		return err
	}

	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))
	if !report.Validation.Valid {
		return fmt.Errorf("upload %s rejected by validation", report.UploadID)
	}
	return nil
}

type fetchNASACmd struct {
	AreaPoint   string `help:"Area point id to fetch for." required:""`
	Start       string `help:"Start date (YYYY-MM-DD)." required:""`
	End         string `help:"End date (YYYY-MM-DD)." required:""`
	RequestedBy string `help:"User recorded in the activity log." default:"cli"`
}

func (c *fetchNASACmd) Run(app *appContext) error {
	start, err := time.Parse("2006-01-02", c.Start)
	if err != nil {
		return fmt.Errorf("parse start: %w", err)
	}
	end, err := time.Parse("2006-01-02", c.End)
	if err != nil {
		return fmt.Errorf("parse end: %w", err)
	}

	ap, err := app.store.RequireActiveAreaPoint(c.AreaPoint)
	if err != nil {
		return err
	}

	records, err := app.nasa.FetchDaily(ap.Latitude, ap.Longitude, start, end)
	if err != nil {
		return fmt.Errorf("nasa power: %w", err)
	}
	log.Printf("fetched %d daily records for %s", len(records), c.AreaPoint)

	result, err := app.importer.ImportEnvironmentalRecords(records, c.AreaPoint, c.RequestedBy)
	if err != nil {
		return err
	}
	log.Printf("imported %d records, %d failed", result.Success, result.Failed)
	return nil
}

type seedCmd struct{}

func (c *seedCmd) Run(app *appContext) error {
	for _, ap := range defaultAreaPoints {
		if err := app.store.CreateAreaPoint(ap); err != nil {
			if errors.Is(err, store.ErrDuplicateRecord) {
				continue
			}
			return fmt.Errorf("seed area point %s: %w", ap.AreaPointID, err)
		}
		log.Printf("seeded area point %s (%s)", ap.AreaPointID, ap.Name)
	}
	return nil
}

func main() {
	var c cli
	ktx := kong.Parse(&c,
		kong.Name("riceprotek"),
		kong.Description("Pest monitoring dataset ingestion and API server."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	db, err := sql.Open("sqlite", c.DB)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Println("database migrated")

	app := &appContext{
		store:    st,
		importer: dataset.NewImporter(st),
		nasa:     nasapower.NewClient(),
	}

	if err := ktx.Run(app); err != nil {
		log.Fatalf("%s: %v", ktx.Command(), err)
	}
}

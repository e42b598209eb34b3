package nasapower

import (
	"testing"

	"github.com/markMSUIIT/riceprotek-web-app/internal/models"
)

func TestParseRecords(t *testing.T) {
	params := map[string]map[string]float64{
		"T2M": {
			"20240616": 29.0,
			"20240615": 28.5,
		},
		"RH2M": {
			"20240615": 85.0,
			"20240616": -999, // fill value
		},
		"GWETTOP": {
			"20240615": 0.75,
		},
	}

	records, err := ParseRecords(params)
	if err != nil {
		t.Fatalf("ParseRecords: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}

	// Sorted ascending by date regardless of map order.
	if records[0].Date != "2024-06-15" || records[1].Date != "2024-06-16" {
		t.Errorf("dates = %s, %s, want 2024-06-15, 2024-06-16", records[0].Date, records[1].Date)
	}

	first := records[0]
	if first.Source != models.SourceNASAPower {
		t.Errorf("source = %s, want nasa_power", first.Source)
	}
	if !first.Temperature.Valid || first.Temperature.Float64 != 28.5 {
		t.Errorf("temperature = %+v, want 28.5", first.Temperature)
	}
	if !first.Humidity.Valid || first.Humidity.Float64 != 85.0 {
		t.Errorf("humidity = %+v, want 85", first.Humidity)
	}
	if !first.SoilWetness.Valid || first.SoilWetness.Float64 != 0.75 {
		t.Errorf("soil wetness = %+v, want 0.75", first.SoilWetness)
	}

	second := records[1]
	if second.Humidity.Valid {
		t.Errorf("humidity on fill-value day should be null, got %+v", second.Humidity)
	}
	if second.SoilWetness.Valid {
		t.Errorf("soil wetness without data should be null, got %+v", second.SoilWetness)
	}
}

func TestParseRecords_Empty(t *testing.T) {
	records, err := ParseRecords(nil)
	if err != nil {
		t.Fatalf("ParseRecords(nil): %v", err)
	}
	if len(records) != 0 {
		t.Errorf("records = %d, want 0", len(records))
	}
}

func TestParseRecords_BadDate(t *testing.T) {
	params := map[string]map[string]float64{
		"T2M": {"not-a-date": 1.0},
	}
	if _, err := ParseRecords(params); err == nil {
		t.Error("unparseable date key should be an error")
	}
}

package nasapower

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/markMSUIIT/riceprotek-web-app/internal/metrics"
	"github.com/markMSUIIT/riceprotek-web-app/internal/models"
)

const apiURL = "https://power.larc.nasa.gov/api/temporal/daily/point"

// missingValue is NASA POWER's fill value for days without data.
const missingValue = -999

// Parameters requested from the daily point endpoint.
var Parameters = []string{
	"T2M", "T2M_MIN", "T2M_MAX",
	"RH2M",
	"PRECTOTCORR",
	"WS2M", "WS2M_MAX", "WS2M_MIN", "WD2M",
	"CLRSKY_SFC_PAR_TOT", "ALLSKY_SFC_UVA", "ALLSKY_SFC_UVB",
	"GWETTOP",
}

type Client struct {
	client *http.Client
}

func NewClient() *Client {
	return &Client{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type pointResponse struct {
	Properties struct {
		// Parameter maps a parameter code to {YYYYMMDD: value}.
		Parameter map[string]map[string]float64 `json:"parameter"`
	} `json:"properties"`
}

// FetchDaily retrieves daily readings for a location and date range and
// returns them as environmental records with source nasa_power, ready for
// the bulk importer. Transient API failures are retried with exponential
// backoff, as NASA POWER rate-limits aggressively.
func (c *Client) FetchDaily(latitude, longitude float64, start, end time.Time) ([]models.EnvironmentalRecord, error) {
	q := url.Values{}
	q.Set("parameters", strings.Join(Parameters, ","))
	q.Set("community", "ag")
	q.Set("latitude", fmt.Sprintf("%g", latitude))
	q.Set("longitude", fmt.Sprintf("%g", longitude))
	q.Set("start", start.Format("20060102"))
	q.Set("end", end.Format("20060102"))
	q.Set("format", "json")

	var body []byte
	operation := func() error {
		resp, err := c.client.Get(apiURL + "?" + q.Encode())
		if err != nil {
			metrics.NASAPowerAPICalls.WithLabelValues("error").Inc()
			return fmt.Errorf("fetch daily: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			metrics.NASAPowerAPICalls.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()
			return fmt.Errorf("fetch daily: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			metrics.NASAPowerAPICalls.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()
			return backoff.Permanent(fmt.Errorf("fetch daily: status %d: %s", resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		metrics.NASAPowerAPICalls.WithLabelValues("200").Inc()
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, err
	}

	var data pointResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	return ParseRecords(data.Properties.Parameter)
}

// ParseRecords converts the parameter->date->value map into one record per
// date, sorted ascending. Fill values (-999) become nulls.
func ParseRecords(params map[string]map[string]float64) ([]models.EnvironmentalRecord, error) {
	dates := make(map[string]bool)
	for _, series := range params {
		for d := range series {
			dates[d] = true
		}
	}

	sorted := make([]string, 0, len(dates))
	for d := range dates {
		sorted = append(sorted, d)
	}
	sort.Strings(sorted)

	var records []models.EnvironmentalRecord
	for _, d := range sorted {
		date, err := time.Parse("20060102", d)
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", d, err)
		}

		rec := models.EnvironmentalRecord{
			Date:   date.Format("2006-01-02"),
			Source: models.SourceNASAPower,
		}

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
		for param, target := range fields {
			series, ok := params[param]
			if !ok {
				continue
			}
			if v, ok := series[d]; ok && v != missingValue {
				*target = sql.NullFloat64{Float64: v, Valid: true}
			}
		}

		records = append(records, rec)
	}

	return records, nil
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riceprotek_uploads_total",
			Help: "Total dataset uploads by final processing status",
		},
		[]string{"status"},
	)

	RowsImported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riceprotek_rows_imported_total",
			Help: "Rows successfully imported per domain",
		},
		[]string{"domain"},
	)

	RowFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riceprotek_row_failures_total",
			Help: "Rows that failed during import per domain",
		},
		[]string{"domain"},
	)

	NASAPowerAPICalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riceprotek_nasa_power_api_calls_total",
			Help: "Total NASA POWER API calls",
		},
		[]string{"status"},
	)
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds every dronerelay collector and backs the /metrics endpoint.
var Registry = prometheus.NewRegistry()

var (
	// CommandsTotal counts command exchanges by result ("ok" or an error kind).
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dronerelay_commands_total",
			Help: "Total number of commands sent to the drone.",
		},
		[]string{"verb", "result"},
	)

	// CommandLatency records the round trip of a command until its reply or timeout.
	CommandLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dronerelay_command_latency_seconds",
			Help:    "Latency of command/reply exchanges with the drone.",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"verb"},
	)

	// TelemetryRecordsTotal counts state records by result: accepted or dropped.
	TelemetryRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dronerelay_telemetry_records_total",
			Help: "Total number of telemetry records received.",
		},
		[]string{"result"},
	)

	FramesIngestedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dronerelay_frames_ingested_total",
			Help: "Total number of decoded frames stored in the frame cell.",
		},
	)

	// FanoutDeliveriesTotal counts per-subscriber sends by result: sent or failed.
	FanoutDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dronerelay_fanout_deliveries_total",
			Help: "Total number of frame deliveries to live viewers.",
		},
		[]string{"result"},
	)

	Subscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dronerelay_subscribers",
			Help: "Number of registered live-viewer subscribers.",
		},
	)

	// CapturesTotal counts capture requests by result ("ok" or an error kind).
	CapturesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dronerelay_captures_total",
			Help: "Total number of capture requests.",
		},
		[]string{"result"},
	)

	CaptureFocusScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dronerelay_capture_focus_score",
			Help:    "Laplacian variance of the frame chosen by each capture.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	// SessionState is 1 for the current session state and 0 for all others.
	SessionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dronerelay_session_state",
			Help: "Current session state (1 for the active state).",
		},
		[]string{"state"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		CommandsTotal,
		CommandLatency,
		TelemetryRecordsTotal,
		FramesIngestedTotal,
		FanoutDeliveriesTotal,
		Subscribers,
		CapturesTotal,
		CaptureFocusScore,
		SessionState,
	)
}

package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Fetch outcomes used as the "outcome" label of upstream fetch metrics
const (
	FetchSuccess        = "success"
	FetchTransportError = "transport_error"
	FetchBadStatus      = "bad_status"
	FetchContentType    = "unexpected_content_type"
	FetchHTML           = "html_instead_of_json"
	FetchParseError     = "json_parse_error"
)

var (
	upstreamFetchTotal      *prometheus.CounterVec
	upstreamFetchDuration   *prometheus.HistogramVec
	departmentAssemblyTotal *prometheus.CounterVec
	departmentAssemblyTime  *prometheus.HistogramVec
	fallbackTotal           *prometheus.CounterVec
	refreshCycleTotal       *prometheus.CounterVec
	refreshCycleDuration    prometheus.Histogram
	patientsOnScreen        *prometheus.GaugeVec
	priorityPatients        *prometheus.GaugeVec
	triagePatients          *prometheus.GaugeVec

	upstreamMetricsOnce sync.Once
)

// initializeUpstreamMetrics registers the hospital API and aggregation metrics once
func initializeUpstreamMetrics() {
	upstreamMetricsOnce.Do(func() {
		upstreamFetchTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erdashboard_upstream_fetch_total",
				Help: "Total number of requests to the hospital API by outcome",
			},
			[]string{"outcome"},
		)

		upstreamFetchDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "erdashboard_upstream_fetch_duration_seconds",
				Help:    "Time spent on requests to the hospital API",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		)

		departmentAssemblyTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erdashboard_department_assembly_total",
				Help: "Total number of department summary assemblies by outcome",
			},
			[]string{"department", "outcome"},
		)

		departmentAssemblyTime = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "erdashboard_department_assembly_duration_seconds",
				Help:    "Time spent assembling one department summary",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"department"},
		)

		fallbackTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erdashboard_fallback_total",
				Help: "Total number of times fallback data replaced live data",
			},
			[]string{"reason"}, // "unconfigured", "fanout_failed", "department_failed"
		)

		refreshCycleTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erdashboard_refresh_cycles_total",
				Help: "Total number of refresh cycles by data source",
			},
			[]string{"source"},
		)

		refreshCycleDuration = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "erdashboard_refresh_cycle_duration_seconds",
				Help:    "Duration of a full refresh cycle",
				Buckets: prometheus.DefBuckets,
			},
		)

		patientsOnScreen = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "erdashboard_patients_on_screen",
				Help: "Patients currently on the attendance screen per department",
			},
			[]string{"department"},
		)

		priorityPatients = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "erdashboard_priority_patients",
				Help: "Patients waiting for first attendance per department and priority",
			},
			[]string{"department", "priority"},
		)

		triagePatients = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "erdashboard_triage_patients",
				Help: "Patients waiting in triage per department",
			},
			[]string{"department"},
		)

		mm := GetInstance()
		mm.registry.MustRegister(
			upstreamFetchTotal,
			upstreamFetchDuration,
			departmentAssemblyTotal,
			departmentAssemblyTime,
			fallbackTotal,
			refreshCycleTotal,
			refreshCycleDuration,
			patientsOnScreen,
			priorityPatients,
			triagePatients,
		)
	})
}

// RecordUpstreamFetch records one request to the hospital API
func RecordUpstreamFetch(outcome string, duration time.Duration) {
	if !businessMetricsEnabled() {
		return
	}

	initializeUpstreamMetrics()

	upstreamFetchTotal.WithLabelValues(outcome).Inc()
	upstreamFetchDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordDepartmentAssembly records the outcome of assembling one department summary
func RecordDepartmentAssembly(department, outcome string, startTime time.Time) {
	if !businessMetricsEnabled() {
		return
	}

	initializeUpstreamMetrics()

	departmentAssemblyTotal.WithLabelValues(department, outcome).Inc()
	departmentAssemblyTime.WithLabelValues(department).Observe(time.Since(startTime).Seconds())
}

// RecordFallback records a substitution of fallback data
func RecordFallback(reason string) {
	if !businessMetricsEnabled() {
		return
	}

	initializeUpstreamMetrics()

	fallbackTotal.WithLabelValues(reason).Inc()
}

// RecordRefreshCycle records a completed refresh cycle
func RecordRefreshCycle(source string, duration time.Duration) {
	if !businessMetricsEnabled() {
		return
	}

	initializeUpstreamMetrics()

	refreshCycleTotal.WithLabelValues(source).Inc()
	refreshCycleDuration.Observe(duration.Seconds())
}

// QueueSizes carries the counts of one department summary for the queue gauges
type QueueSizes struct {
	Department       string
	PatientsOnScreen int
	Purple           int
	Yellow           int
	Green            int
	Triage           int
}

// SetQueueSizes publishes the latest queue sizes of a department
func SetQueueSizes(q QueueSizes) {
	if !businessMetricsEnabled() {
		return
	}

	initializeUpstreamMetrics()

	patientsOnScreen.WithLabelValues(q.Department).Set(float64(q.PatientsOnScreen))
	priorityPatients.WithLabelValues(q.Department, "purple").Set(float64(q.Purple))
	priorityPatients.WithLabelValues(q.Department, "yellow").Set(float64(q.Yellow))
	priorityPatients.WithLabelValues(q.Department, "green").Set(float64(q.Green))
	triagePatients.WithLabelValues(q.Department).Set(float64(q.Triage))
}

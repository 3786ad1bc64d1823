// internal/monitoring/metrics.go
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsManager manages Prometheus metrics for LeadScrapexter.
// A nil *MetricsManager is valid and records nothing.
type MetricsManager struct {
	// Navigation metrics
	pagesLoaded        *prometheus.CounterVec
	navigationDuration *prometheus.HistogramVec
	protectionDetected *prometheus.CounterVec
	bypassAttempts     *prometheus.CounterVec
	bypassOutcomes     *prometheus.CounterVec

	// Extraction metrics
	listingsFound     *prometheus.CounterVec
	listingsProcessed *prometheus.CounterVec
	listingsFailed    *prometheus.CounterVec
	contactsEmitted   *prometheus.CounterVec
	duplicatesDropped *prometheus.CounterVec

	// Output metrics
	rowsWritten  *prometheus.CounterVec
	outputErrors *prometheus.CounterVec
	mergeFiles   *prometheus.CounterVec

	// Scrape metrics
	scrapesTotal      *prometheus.CounterVec
	scrapesActive     prometheus.Gauge
	operationDuration *prometheus.HistogramVec

	registry  *prometheus.Registry
	namespace string
	subsystem string
}

// MetricsConfig configuration for metrics
type MetricsConfig struct {
	Namespace       string `yaml:"namespace" json:"namespace"`
	Subsystem       string `yaml:"subsystem" json:"subsystem"`
	EnableGoMetrics bool   `yaml:"enable_go_metrics" json:"enable_go_metrics"`

	// Registry defaults to a fresh private registry
	Registry *prometheus.Registry `yaml:"-" json:"-"`
}

// NewMetricsManager creates a new metrics manager
func NewMetricsManager(config MetricsConfig) *MetricsManager {
	if config.Namespace == "" {
		config.Namespace = "leadscrapexter"
	}
	if config.Subsystem == "" {
		config.Subsystem = "scraper"
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}
	if config.EnableGoMetrics {
		config.Registry.MustRegister(collectors.NewGoCollector())
		config.Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	mm := &MetricsManager{
		registry:  config.Registry,
		namespace: config.Namespace,
		subsystem: config.Subsystem,
	}

	mm.initializeMetrics()

	return mm
}

// initializeMetrics initializes all Prometheus metrics
func (mm *MetricsManager) initializeMetrics() {
	factory := promauto.With(mm.registry)

	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: mm.subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}

	mm.pagesLoaded = counter("pages_loaded_total", "Result pages loaded by outcome", "source", "status")
	mm.protectionDetected = counter("protection_detected_total", "Anti-bot interstitials detected", "source")
	mm.bypassAttempts = counter("bypass_attempts_total", "Bypass ladder steps attempted", "step", "outcome")
	mm.bypassOutcomes = counter("bypass_outcomes_total", "Bypass ladder results", "outcome")

	mm.navigationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: mm.namespace,
			Subsystem: mm.subsystem,
			Name:      "navigation_duration_seconds",
			Help:      "Time from navigation start to a terminal state",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"state"},
	)

	mm.listingsFound = counter("listings_found_total", "Listing containers found on result pages", "source")
	mm.listingsProcessed = counter("listings_processed_total", "Listings processed without error", "source")
	mm.listingsFailed = counter("listings_failed_total", "Listings that failed extraction", "source")
	mm.contactsEmitted = counter("contacts_emitted_total", "New contact records emitted", "source")
	mm.duplicatesDropped = counter("duplicates_dropped_total", "Listings dropped as already-seen businesses", "source")

	mm.rowsWritten = counter("rows_written_total", "CSV rows written", "source", "mode")
	mm.outputErrors = counter("output_errors_total", "Persistence failures", "operation")
	mm.mergeFiles = counter("merge_files_total", "CSV files read during merge or statistics", "status")

	mm.scrapesTotal = counter("scrapes_total", "Scrape invocations by outcome", "source", "status")

	mm.scrapesActive = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: mm.namespace,
		Subsystem: mm.subsystem,
		Name:      "scrapes_active",
		Help:      "Number of scrapes currently running",
	})

	mm.operationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: mm.namespace,
			Subsystem: mm.subsystem,
			Name:      "operation_duration_seconds",
			Help:      "Duration of scrape, page, export and merge operations",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
}

// Navigation metrics
func (mm *MetricsManager) RecordPageLoaded(source, status string) {
	if mm == nil {
		return
	}
	mm.pagesLoaded.WithLabelValues(source, status).Inc()
}

func (mm *MetricsManager) RecordNavigation(state string, duration time.Duration) {
	if mm == nil {
		return
	}
	mm.navigationDuration.WithLabelValues(state).Observe(duration.Seconds())
}

func (mm *MetricsManager) RecordProtectionDetected(source string) {
	if mm == nil {
		return
	}
	mm.protectionDetected.WithLabelValues(source).Inc()
}

func (mm *MetricsManager) RecordBypassAttempt(step string, cleared bool) {
	if mm == nil {
		return
	}
	outcome := "blocked"
	if cleared {
		outcome = "cleared"
	}
	mm.bypassAttempts.WithLabelValues(step, outcome).Inc()
}

func (mm *MetricsManager) RecordBypassOutcome(bypassed bool) {
	if mm == nil {
		return
	}
	outcome := "failed"
	if bypassed {
		outcome = "bypassed"
	}
	mm.bypassOutcomes.WithLabelValues(outcome).Inc()
}

// Extraction metrics
func (mm *MetricsManager) RecordListingsFound(source string, count int) {
	if mm == nil {
		return
	}
	mm.listingsFound.WithLabelValues(source).Add(float64(count))
}

func (mm *MetricsManager) RecordListingProcessed(source string) {
	if mm == nil {
		return
	}
	mm.listingsProcessed.WithLabelValues(source).Inc()
}

func (mm *MetricsManager) RecordListingFailed(source string) {
	if mm == nil {
		return
	}
	mm.listingsFailed.WithLabelValues(source).Inc()
}

func (mm *MetricsManager) RecordContactsEmitted(source string, count int) {
	if mm == nil {
		return
	}
	mm.contactsEmitted.WithLabelValues(source).Add(float64(count))
}

func (mm *MetricsManager) RecordDuplicateDropped(source string) {
	if mm == nil {
		return
	}
	mm.duplicatesDropped.WithLabelValues(source).Inc()
}

// Output metrics
func (mm *MetricsManager) RecordRowsWritten(source, mode string, rows int) {
	if mm == nil {
		return
	}
	mm.rowsWritten.WithLabelValues(source, mode).Add(float64(rows))
}

func (mm *MetricsManager) RecordOutputError(operation string) {
	if mm == nil {
		return
	}
	mm.outputErrors.WithLabelValues(operation).Inc()
}

func (mm *MetricsManager) RecordMergeFile(status string) {
	if mm == nil {
		return
	}
	mm.mergeFiles.WithLabelValues(status).Inc()
}

// Scrape metrics
func (mm *MetricsManager) RecordScrapeStart() {
	if mm == nil {
		return
	}
	mm.scrapesActive.Inc()
}

func (mm *MetricsManager) RecordScrapeEnd(source, status string, duration time.Duration) {
	if mm == nil {
		return
	}
	mm.scrapesActive.Dec()
	mm.scrapesTotal.WithLabelValues(source, status).Inc()
	mm.operationDuration.WithLabelValues("scrape").Observe(duration.Seconds())
}

func (mm *MetricsManager) ObserveOperation(operation string, duration time.Duration) {
	if mm == nil {
		return
	}
	mm.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// Registry returns the registry the metrics are registered on
func (mm *MetricsManager) Registry() *prometheus.Registry {
	return mm.registry
}

// MetricsHandler returns an HTTP handler for metrics endpoint
func (mm *MetricsManager) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(mm.registry, promhttp.HandlerOpts{Registry: mm.registry})
}

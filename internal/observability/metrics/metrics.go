package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricPrefix = "stewardship_"

	resultSuccess = "success"
	resultError   = "error"
	resultAbort   = "abort"

	lookupHit  = "hit"
	lookupMiss = "miss"
)

var (
	registerOnce sync.Once

	batchComputeTotal   *prometheus.CounterVec
	batchComputeLatency *prometheus.HistogramVec
	factsCreatedTotal   *prometheus.CounterVec
	factsStaledTotal    *prometheus.CounterVec
	invoicedKeysSkipped *prometheus.CounterVec
	forecastFactsTotal  prometheus.Counter
	missingRatesTotal   *prometheus.CounterVec

	invoiceGenerateTotal    *prometheus.CounterVec
	invoiceGenerateLatency  *prometheus.HistogramVec
	invoiceDocumentsTotal   *prometheus.CounterVec
	invoiceParticipantError *prometheus.CounterVec
	attributeLookupsTotal   *prometheus.CounterVec

	documentExportTotal   *prometheus.CounterVec
	documentExportLatency *prometheus.HistogramVec

	callbackTotal *prometheus.CounterVec
)

// Init registers service metrics and DB-backed gauges.
func Init(db *sql.DB, logger *zap.Logger) {
	registerOnce.Do(func() {
		batchComputeTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "batch_compute_total",
				Help: "Total payment batch computations by category and result",
			},
			[]string{"category", "result"},
		)
		batchComputeLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "batch_compute_latency_seconds",
				Help:    "Payment batch computation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"category", "result"},
		)
		factsCreatedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "facts_created_total",
				Help: "Total transaction facts created by category",
			},
			[]string{"category"},
		)
		factsStaledTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "facts_staled_total",
				Help: "Total transaction facts invalidated by recomputation",
			},
			[]string{"category"},
		)
		invoicedKeysSkipped = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "invoiced_keys_skipped_total",
				Help: "Total source records skipped because their fact key was already invoiced",
			},
			[]string{"category"},
		)
		forecastFactsTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "forecast_facts_total",
				Help: "Total forecast facts created for non-reporting participants",
			},
		)
		missingRatesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reference_rate_missing_total",
				Help: "Rate lookups that fell through to zero by kind",
			},
			[]string{"kind"},
		)

		invoiceGenerateTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "invoice_generate_total",
				Help: "Total invoice generation runs by result",
			},
			[]string{"result"},
		)
		invoiceGenerateLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "invoice_generate_latency_seconds",
				Help:    "Invoice generation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		invoiceDocumentsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "invoice_documents_total",
				Help: "Total accounting documents created by type",
			},
			[]string{"document_type"},
		)
		invoiceParticipantError = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "invoice_participant_errors_total",
				Help: "Participants whose invoicing unit of work failed",
			},
			[]string{"category"},
		)
		attributeLookupsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "attribute_lookups_total",
				Help: "Accounting attribute cache lookups by kind and outcome",
			},
			[]string{"kind", "outcome"},
		)

		documentExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "document_export_total",
				Help: "Total invoice document exports by format and result",
			},
			[]string{"format", "result"},
		)
		documentExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "document_export_latency_seconds",
				Help:    "Invoice document export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		callbackTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "callback_total",
				Help: "Async result callbacks by kind and result",
			},
			[]string{"kind", "result"},
		)

		prometheus.MustRegister(
			batchComputeTotal,
			batchComputeLatency,
			factsCreatedTotal,
			factsStaledTotal,
			invoicedKeysSkipped,
			forecastFactsTotal,
			missingRatesTotal,
			invoiceGenerateTotal,
			invoiceGenerateLatency,
			invoiceDocumentsTotal,
			invoiceParticipantError,
			attributeLookupsTotal,
			documentExportTotal,
			documentExportLatency,
			callbackTotal,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveBatchCompute records computation latency and result.
func ObserveBatchCompute(category, result string, duration time.Duration) {
	if category == "" {
		category = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if batchComputeTotal != nil {
		batchComputeTotal.WithLabelValues(category, result).Inc()
	}
	if batchComputeLatency != nil {
		batchComputeLatency.WithLabelValues(category, result).Observe(duration.Seconds())
	}
}

// AddFactsCreated increments created facts.
func AddFactsCreated(category string, count int) {
	if count <= 0 || factsCreatedTotal == nil {
		return
	}
	factsCreatedTotal.WithLabelValues(category).Add(float64(count))
}

// AddFactsStaled increments invalidated facts.
func AddFactsStaled(category string, count int) {
	if count <= 0 || factsStaledTotal == nil {
		return
	}
	factsStaledTotal.WithLabelValues(category).Add(float64(count))
}

// IncInvoicedKeySkipped counts a record whose fact key was already invoiced.
func IncInvoicedKeySkipped(category string) {
	if invoicedKeysSkipped != nil {
		invoicedKeysSkipped.WithLabelValues(category).Inc()
	}
}

// AddForecastFacts increments forecast facts.
func AddForecastFacts(count int) {
	if count <= 0 || forecastFactsTotal == nil {
		return
	}
	forecastFactsTotal.Add(float64(count))
}

// IncMissingRate counts a rate lookup that resolved to zero.
func IncMissingRate(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	if missingRatesTotal != nil {
		missingRatesTotal.WithLabelValues(kind).Inc()
	}
}

// ObserveInvoiceGenerate records generation latency and result.
func ObserveInvoiceGenerate(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if invoiceGenerateTotal != nil {
		invoiceGenerateTotal.WithLabelValues(result).Inc()
	}
	if invoiceGenerateLatency != nil {
		invoiceGenerateLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncInvoiceDocument counts a persisted document.
func IncInvoiceDocument(documentType string) {
	if invoiceDocumentsTotal != nil {
		invoiceDocumentsTotal.WithLabelValues(documentType).Inc()
	}
}

// IncInvoiceParticipantError counts a failed participant unit of work.
func IncInvoiceParticipantError(category string) {
	if invoiceParticipantError != nil {
		invoiceParticipantError.WithLabelValues(category).Inc()
	}
}

// IncAttributeLookup counts an attribute cache hit or miss.
func IncAttributeLookup(kind string, hit bool) {
	if attributeLookupsTotal == nil {
		return
	}
	outcome := lookupMiss
	if hit {
		outcome = lookupHit
	}
	attributeLookupsTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveDocumentExport records export latency and result.
func ObserveDocumentExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if documentExportTotal != nil {
		documentExportTotal.WithLabelValues(format, result).Inc()
	}
	if documentExportLatency != nil {
		documentExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncCallback counts a callback delivery attempt.
func IncCallback(kind, result string) {
	if callbackTotal != nil {
		callbackTotal.WithLabelValues(kind, result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
	ResultAbort   = resultAbort
)

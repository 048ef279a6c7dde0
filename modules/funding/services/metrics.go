package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cirm-data/portal/modules/funding/domain/cirm"
)

var (
	fundingImports = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "funding",
		Subsystem: "import",
		Name:      "requests_total",
		Help:      "Total number of import attempts broken down by upload format and result.",
	}, []string{"format", "result"})

	fundingImportSkippedRows = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "funding",
		Subsystem: "import",
		Name:      "skipped_rows_total",
		Help:      "Total number of spreadsheet rows skipped for a missing primary field.",
	})

	fundingRollbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "funding",
		Subsystem: "changelog",
		Name:      "rollbacks_total",
		Help:      "Total number of rollback attempts broken down by result.",
	}, []string{"result"})

	fundingStoreWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "funding",
		Subsystem: "store",
		Name:      "write_failures_total",
		Help:      "Total number of failed durable writes broken down by kind.",
	}, []string{"kind"})

	fundingDatasetRecords = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "funding",
		Subsystem: "dataset",
		Name:      "records",
		Help:      "Current number of records in the data set broken down by entity.",
	}, []string{"entity"})

	fundingDatasetAwardValue = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "funding",
		Subsystem: "dataset",
		Name:      "total_award_value",
		Help:      "Total award value across all grant rounds.",
	})
)

func recordImport(format, result string) {
	if format == "" {
		format = "unknown"
	}
	fundingImports.WithLabelValues(format, result).Inc()
}

func recordImportSkippedRows(n int) {
	if n > 0 {
		fundingImportSkippedRows.Add(float64(n))
	}
}

func recordRollback(result string) {
	fundingRollbacks.WithLabelValues(result).Inc()
}

func recordStoreWriteFailure(kind string) {
	fundingStoreWriteFailures.WithLabelValues(kind).Inc()
}

func recordDatasetGauges(data *cirm.Data) {
	if data == nil {
		return
	}
	fundingDatasetRecords.WithLabelValues("grants").Set(float64(len(data.Grants)))
	fundingDatasetRecords.WithLabelValues("active_grants").Set(float64(len(data.ActiveGrants)))
	fundingDatasetRecords.WithLabelValues("papers").Set(float64(len(data.Papers)))
	fundingDatasetAwardValue.Set(data.Summary.TotalAmount)
}

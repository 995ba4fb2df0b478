package metrics

import (
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

const (
	MetricsNamespace = "dart_triage"
)

var (
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	triageResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "triage_results",
		Help:      "Result of triage runs",
	}, []string{
		"run_id",
		"result",
	})

	testTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "test_total",
		Help:      "Total number of categorized tests",
	}, []string{
		"run_id",
	})

	testPassed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "test_passed",
		Help:      "Number of passed tests",
	}, []string{
		"run_id",
	})

	testFailed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "test_failed",
		Help:      "Number of failed tests",
	}, []string{
		"run_id",
	})

	testSkipped = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "test_skipped",
		Help:      "Number of skipped tests",
	}, []string{
		"run_id",
	})

	runDurationSeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Total duration reported by the test runner",
	}, []string{
		"run_id",
	})
)

// RecordError increments the error counter for the given error label.
func RecordError(errorLabel string) {
	errorsTotal.WithLabelValues(errorLabel).Inc()
}

// RecordRun records the categorized totals for one triage run.
func RecordRun(runID, result string, total, passed, failed, skipped int, duration time.Duration) {
	triageResults.WithLabelValues(runID, result).Set(1)
	testTotal.WithLabelValues(runID).Set(float64(total))
	testPassed.WithLabelValues(runID).Set(float64(passed))
	testFailed.WithLabelValues(runID).Set(float64(failed))
	testSkipped.WithLabelValues(runID).Set(float64(skipped))
	runDurationSeconds.WithLabelValues(runID).Set(duration.Seconds())
}

// WriteSnapshot dumps the default registry to path in the Prometheus text
// exposition format, suitable for a node_exporter textfile collector.
func WriteSnapshot(path string) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create metrics snapshot: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(file, family); err != nil {
			return fmt.Errorf("failed to write metrics snapshot: %w", err)
		}
	}
	return nil
}

package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "reporter"
)

var (
	Debug                bool = true
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	outcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "outcomes_total",
		Help:      "Count of recorded test outcomes",
	}, []string{
		"run_id",
		"status",
	})

	runResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Result of reported test runs",
	}, []string{
		"project",
		"run_id",
		"result",
	})

	runTestsTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_tests_total",
		Help:      "Total number of tests in a run",
	}, []string{
		"project",
		"run_id",
	})

	runTestsPassed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_tests_passed",
		Help:      "Number of passed tests in a run",
	}, []string{
		"project",
		"run_id",
	})

	runTestsFailed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_tests_failed",
		Help:      "Number of failed tests in a run",
	}, []string{
		"project",
		"run_id",
	})

	runTestsFlaky = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_tests_flaky",
		Help:      "Number of flaky tests in a run",
	}, []string{
		"project",
		"run_id",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of a reported test run",
	}, []string{
		"project",
		"run_id",
	})

	deliveryAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "delivery_attempts_total",
		Help:      "Count of webhook delivery attempts",
	}, []string{
		"channel",
	})

	deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "deliveries_total",
		Help:      "Count of webhook deliveries by final result",
	}, []string{
		"channel",
		"result",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordOutcome counts one recorded test outcome.
func RecordOutcome(runID string, status string) {
	if Debug {
		log.Debug("metric inc",
			"m", "outcomes_total",
			"run_id", runID,
			"status", status,
		)
	}
	outcomesTotal.WithLabelValues(runID, status).Inc()
}

// RecordRun publishes the final aggregate for a run.
func RecordRun(project string, runID string, result string, total int, passed int, failed int, flaky int, duration time.Duration) {
	if Debug {
		log.Debug("metric set",
			"m", "run_results",
			"project", project,
			"run_id", runID,
			"result", result,
			"total", total,
			"passed", passed,
			"failed", failed,
			"flaky", flaky,
			"duration", duration,
		)
	}
	runResults.WithLabelValues(project, runID, result).Set(1)
	runTestsTotal.WithLabelValues(project, runID).Set(float64(total))
	runTestsPassed.WithLabelValues(project, runID).Set(float64(passed))
	runTestsFailed.WithLabelValues(project, runID).Set(float64(failed))
	runTestsFlaky.WithLabelValues(project, runID).Set(float64(flaky))
	runDuration.WithLabelValues(project, runID).Set(duration.Seconds())
}

// RecordDeliveryAttempt counts one webhook POST attempt.
func RecordDeliveryAttempt(channel string) {
	deliveryAttemptsTotal.WithLabelValues(channel).Inc()
}

// RecordDelivery counts the final result of a delivery (after retries).
func RecordDelivery(channel string, result string) {
	if Debug {
		log.Debug("metric inc",
			"m", "deliveries_total",
			"channel", channel,
			"result", result,
		)
	}
	deliveriesTotal.WithLabelValues(channel, result).Inc()
}

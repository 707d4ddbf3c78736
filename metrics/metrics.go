package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/op-harness/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "op_harness"
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

	casesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "cases_total",
		Help:      "Count of finished test cases",
	}, []string{
		"run_id",
		"status",
	})

	caseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "case_duration_seconds",
		Help:      "Duration of executed test cases",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{
		"status",
	})

	unhandledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "unhandled_exceptions_total",
		Help:      "Count of faults outside any test case",
	}, []string{
		"phase",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "runs_total",
		Help:      "Count of finished runs",
	}, []string{
		"result",
	})

	runResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Case counts of a run by status",
	}, []string{
		"run_id",
		"status",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration",
		Help:      "Duration of a run in seconds",
	}, []string{
		"run_id",
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

func RecordCase(runID string, outcome types.Outcome) {
	if !outcome.Status.Valid() {
		log.Error("RecordCase - invalid status", "status", outcome.Status)
		return
	}
	casesTotal.WithLabelValues(runID, string(outcome.Status)).Inc()
	if outcome.Executed() {
		caseDuration.WithLabelValues(string(outcome.Status)).Observe(outcome.Duration.Seconds())
	}
}

func RecordUnhandled(phase types.Phase) {
	if Debug {
		log.Debug("metric inc",
			"m", "unhandled_exceptions_total",
			"phase", phase,
		)
	}
	unhandledTotal.WithLabelValues(string(phase)).Inc()
}

// RecordRun records the outcome of a finished run. result is the overall
// status, or "Aborted" for a run that ended fatally.
func RecordRun(runID string, result string, rollup types.Rollup, duration time.Duration) {
	runsTotal.WithLabelValues(result).Inc()
	for status, count := range map[types.TestStatus]int{
		types.TestStatusSuccess:     rollup.Passed,
		types.TestStatusFailure:     rollup.Failed,
		types.TestStatusError:       rollup.Errors,
		types.TestStatusIgnored:     rollup.Ignored,
		types.TestStatusSkipped:     rollup.Skipped,
		types.TestStatusNotRunnable: rollup.NotRunnable,
	} {
		runResults.WithLabelValues(runID, string(status)).Set(float64(count))
	}
	runDuration.WithLabelValues(runID).Set(duration.Seconds())
}

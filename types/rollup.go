package types

import "time"

// Rollup contains aggregated counts and timing over a suite's descendant cases
type Rollup struct {
	Total       int           `json:"total"`
	Run         int           `json:"run"`
	Passed      int           `json:"passed"`
	Failed      int           `json:"failed"`
	Errors      int           `json:"errors"`
	Ignored     int           `json:"ignored"`
	Skipped     int           `json:"skipped"`
	NotRunnable int           `json:"notRunnable"`
	Asserts     int           `json:"asserts"`
	Duration    time.Duration `json:"duration"`
}

// Add counts a single case outcome
func (r *Rollup) Add(o Outcome) {
	r.Total++
	r.Asserts += o.Asserts
	r.Duration += o.Duration
	if o.Executed() {
		r.Run++
	}
	switch o.Status {
	case TestStatusSuccess:
		r.Passed++
	case TestStatusFailure:
		r.Failed++
	case TestStatusError:
		r.Errors++
	case TestStatusIgnored:
		r.Ignored++
	case TestStatusSkipped:
		r.Skipped++
	case TestStatusNotRunnable:
		r.NotRunnable++
	}
}

// Merge folds a child rollup into r
func (r *Rollup) Merge(other Rollup) {
	r.Total += other.Total
	r.Run += other.Run
	r.Passed += other.Passed
	r.Failed += other.Failed
	r.Errors += other.Errors
	r.Ignored += other.Ignored
	r.Skipped += other.Skipped
	r.NotRunnable += other.NotRunnable
	r.Asserts += other.Asserts
	r.Duration += other.Duration
}

// NotRun returns the number of cases that were not executed
func (r Rollup) NotRun() int {
	return r.Ignored + r.Skipped + r.NotRunnable
}

// IsFailure reports whether any case failed or errored
func (r Rollup) IsFailure() bool {
	return r.Failed > 0 || r.Errors > 0
}

// Status derives the overall status of a container from its counts.
// Failures take priority over errors; a container where nothing ran reports
// the most common not-run status.
func (r Rollup) Status() TestStatus {
	switch {
	case r.Failed > 0:
		return TestStatusFailure
	case r.Errors > 0:
		return TestStatusError
	case r.Run > 0:
		return TestStatusSuccess
	case r.Ignored > 0:
		return TestStatusIgnored
	case r.NotRunnable > 0:
		return TestStatusNotRunnable
	case r.Skipped > 0:
		return TestStatusSkipped
	default:
		return TestStatusSuccess
	}
}

package engine

import "time"

// Result is the outcome of one module in one run. It is built once, right
// after the module finished, and never modified afterwards.
type Result struct {
	ModuleID   string    `json:"moduleId" yaml:"module_id"`
	ModuleName string    `json:"moduleName" yaml:"module_name"`
	Formatted  string    `json:"formatted" yaml:"-"`
	Payload    any       `json:"payload" yaml:"-"`
	Filename   string    `json:"filename" yaml:"filename"`
	Success    bool      `json:"success" yaml:"success"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorCode  string    `json:"errorCode,omitempty" yaml:"error_code,omitempty"`
	Raw        any       `json:"-" yaml:"-"`
	Status     Status    `json:"-" yaml:"-"`
	FailedAt   Status    `json:"-" yaml:"-"` // step that failed, zero on success
	StartedAt  time.Time `json:"startedAt" yaml:"started_at"`
	FinishedAt time.Time `json:"finishedAt" yaml:"finished_at"`

	cause error
}

// Err returns the underlying error of a failed result.
func (r Result) Err() error { return r.cause }

// Duration is the wall clock time the module took.
func (r Result) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// failedPayload is the formatted text of a failed module.
func failedPayload(err error) string {
	return "Error: " + err.Error()
}

// Tally counts successes and failures.
func Tally(results []Result) (succeeded, failed int) {
	for _, r := range results {
		if r.Success {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

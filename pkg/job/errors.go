package job

import (
	"errors"
	"fmt"
)

// Sentinel errors for caller-level failures. They reject a run before any
// module executes.
var (
	// ErrNoModules indicates that no known module was selected.
	ErrNoModules = errors.New("no modules selected")

	// ErrNoTarget indicates that no target tab was supplied.
	ErrNoTarget = errors.New("no active target tab")

	// ErrRunActive indicates the owner already has a run in progress.
	ErrRunActive = errors.New("a run is already active for this owner")

	// ErrJobNotFound indicates an unknown job id.
	ErrJobNotFound = errors.New("job not found")

	// ErrAllModulesFailed indicates a finished run without a single success.
	ErrAllModulesFailed = errors.New("every module failed")
)

// Error codes used by the CLI suggestion system.
const (
	errorCodeNoModules    = "NO_MODULES"
	errorCodeNoTarget     = "NO_TARGET"
	errorCodeInvalidInput = "INVALID_REQUEST"
	errorCodeRunActive    = "RUN_ACTIVE"
	errorCodeNotFound     = "JOB_NOT_FOUND"
	errorCodeAllFailed    = "ALL_MODULES_FAILED"
	errorCodeRunFailure   = "RUN_FAILURE"
)

// codedError wraps an error with an explicit error code.
type codedError struct {
	error
	code string
}

func (e *codedError) Error() string {
	return e.error.Error()
}

func (e *codedError) Unwrap() error {
	return e.error
}

func (e *codedError) Code() string {
	return e.code
}

// WithErrorCode wraps err with a specific CLI error code.
func WithErrorCode(err error, code string) error {
	if err == nil {
		return nil
	}
	return &codedError{error: err, code: code}
}

// ErrorCode resolves a job error into a CLI error code.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := coded.Code(); code != "" {
			return code
		}
	}

	switch {
	case errors.Is(err, ErrNoModules):
		return errorCodeNoModules
	case errors.Is(err, ErrNoTarget):
		return errorCodeNoTarget
	case errors.Is(err, ErrRunActive):
		return errorCodeRunActive
	case errors.Is(err, ErrJobNotFound):
		return errorCodeNotFound
	case errors.Is(err, ErrAllModulesFailed):
		return errorCodeAllFailed
	}

	return errorCodeRunFailure
}

// ExitCode maps job errors to CLI exit codes: 2 for requests rejected before
// the run, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	switch ErrorCode(err) {
	case errorCodeNoModules,
		errorCodeNoTarget,
		errorCodeInvalidInput,
		errorCodeRunActive,
		errorCodeNotFound:
		return 2
	default:
		return 1
	}
}

// Suggestions provides CLI hints for job errors.
func Suggestions(err error) []string {
	if err == nil {
		return nil
	}

	switch ErrorCode(err) {
	case errorCodeNoModules:
		return []string{
			"List available modules:     insights modules",
			"Select modules:             insights run --customer Acme --modules licenses,profiles",
		}
	case errorCodeNoTarget:
		return []string{
			"List browser tabs:          insights tabs",
			"Pick the Setup tab:         insights run --tab-match lightning/setup",
		}
	case errorCodeRunActive:
		return []string{
			"Wait for the active run or cancel it: insights cancel <job-id>",
		}
	case errorCodeNotFound:
		return []string{
			"Job records expire; check store.ttl and store.driver",
		}
	default:
		return []string{
			"Retry with verbose logs:    insights run --log-level debug",
		}
	}
}

// InvalidRequest marks a malformed caller request (exit code 2).
func InvalidRequest(reason error) error {
	return WithErrorCode(fmt.Errorf("invalid run request: %w", reason), errorCodeInvalidInput)
}

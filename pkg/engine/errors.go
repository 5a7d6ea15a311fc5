package engine

import (
	"errors"
	"fmt"
	"time"
)

const (
	errorCodeInvalid    = "MODULE_INVALID"
	errorCodeNavigation = "NAVIGATION_FAILED"
	errorCodeTimeout    = "MODULE_TIMEOUT"
	errorCodeInternal   = "MODULE_INTERNAL"
	errorCodeFailed     = "MODULE_FAILED"
)

var (
	// ErrValidation marks a module whose pre-flight check rejected the run.
	ErrValidation = errors.New("module validation failed")

	// ErrNavigation indicates a search box or navigation target was never found.
	ErrNavigation = errors.New("navigation failed")

	// ErrModuleTimeout indicates a module exceeded its hard wall clock bound.
	ErrModuleTimeout = errors.New("module timed out")

	// ErrInternal indicates a panic or an unexpected failure inside a module.
	ErrInternal = errors.New("internal module error")
)

type errorCoder interface {
	error
	Code() string
}

type withCodeError struct {
	error
	code string
}

func (e *withCodeError) Code() string {
	return e.code
}

func (e *withCodeError) Unwrap() error {
	return e.error
}

// WithErrorCode annotates err with a module error code.
func WithErrorCode(err error, code string) error {
	if err == nil {
		return nil
	}
	return &withCodeError{error: err, code: code}
}

// ValidationError carries the human-readable reason a module refused to run.
// Its message is the bare reason.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil || e.Reason == "" {
		return "module is not valid for this run"
	}
	return e.Reason
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError.
func Invalid(reason string) error {
	return &ValidationError{Reason: reason}
}

// NewTimeoutError reports a module that did not finish within limit.
func NewTimeoutError(moduleID string, limit time.Duration) error {
	return WithErrorCode(fmt.Errorf("%w: %s did not finish within %s", ErrModuleTimeout, moduleID, limit), errorCodeTimeout)
}

// NewInternalError converts a recovered panic value into an error.
func NewInternalError(step Status, recovered any) error {
	return WithErrorCode(fmt.Errorf("%w during %s: %v", ErrInternal, step, recovered), errorCodeInternal)
}

// ErrorCode resolves an error to its module error code.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var coded errorCoder
	if errors.As(err, &coded) {
		if code := coded.Code(); code != "" {
			return code
		}
	}

	switch {
	case errors.Is(err, ErrValidation):
		return errorCodeInvalid
	case errors.Is(err, ErrNavigation):
		return errorCodeNavigation
	case errors.Is(err, ErrModuleTimeout):
		return errorCodeTimeout
	case errors.Is(err, ErrInternal):
		return errorCodeInternal
	default:
		return errorCodeFailed
	}
}

// Suggestions provides human readable guidance for a failed module.
func Suggestions(err error) []string {
	if err == nil {
		return nil
	}

	switch ErrorCode(err) {
	case errorCodeInvalid:
		return []string{
			"Select the admin console tab with --tab or browser.tab_match",
			"Make sure the browser is reachable at browser.remote_url",
		}
	case errorCodeNavigation:
		return []string{
			"Open Setup in the selected tab so the Quick Find box is visible",
			"Check that the signed-in user can see this Setup page",
		}
	case errorCodeTimeout:
		return []string{
			"Raise modules.timeouts.<id> for slow orgs",
			"Re-run only this module with --modules",
		}
	case errorCodeInternal:
		return []string{
			"Re-run with -vv and attach the log to a bug report",
		}
	default:
		return nil
	}
}

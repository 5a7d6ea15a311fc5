package probe

import (
	"errors"
	"fmt"
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
)

func TestEvalError(t *testing.T) {
	thrown := fmt.Errorf("%w: %w", playwright.ErrPlaywright,
		&playwright.Error{Name: "Error", Message: "ReferenceError: findTables is not defined"})
	closed := fmt.Errorf("%w: %w: %w", playwright.ErrPlaywright, playwright.ErrTargetClosed,
		&playwright.Error{Name: "TargetClosedError", Message: "Target page, context or browser has been closed"})
	timedOut := fmt.Errorf("%w: %w: %w", playwright.ErrPlaywright, playwright.ErrTimeout,
		&playwright.Error{Name: "TimeoutError", Message: "Timeout 30000ms exceeded"})
	transport := errors.New("websocket: close 1006")

	tests := []struct {
		name       string
		err        error
		pageClosed bool
		routine    bool
		closed     bool
	}{
		{name: "script exception", err: thrown, routine: true},
		{name: "target closed", err: closed, closed: true},
		{name: "page already closed", err: thrown, pageClosed: true, closed: true},
		{name: "timeout", err: timedOut},
		{name: "transport", err: transport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evalError("ready", tt.err, tt.pageClosed)
			assert.Equal(t, tt.routine, errors.Is(got, ErrRoutine))
			assert.Equal(t, tt.closed, errors.Is(got, ErrClosed))
			assert.Contains(t, got.Error(), "ready")
		})
	}
	assert.ErrorIs(t, evalError("ready", timedOut, false), playwright.ErrTimeout)
}

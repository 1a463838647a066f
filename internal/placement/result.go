// Package placement implements the two placement strategies and the
// selector that chooses between them.
package placement

import (
	"time"

	"github.com/linkdeck/placement-engine/internal/models"
)

// Result is the outcome of one strategy execution
type Result struct {
	Success             bool
	VerificationSuccess bool
	Method              models.PlacementMethod
	PlacementURL        string
	ResponseTime        time.Duration
	ErrorMessage        string
}

// failure builds a failed result carrying the raw error message and elapsed
// time for operational triage
func failure(method models.PlacementMethod, start time.Time, err error) Result {
	return Result{
		Success:      false,
		Method:       method,
		ResponseTime: time.Since(start),
		ErrorMessage: err.Error(),
	}
}

package placement

import (
	"github.com/linkdeck/placement-engine/internal/detector"
	"github.com/linkdeck/placement-engine/internal/models"
)

// Select is a pure decision function choosing the placement method for one
// target. The content-API strategy requires all of: platform confirmed as
// WordPress, API reachable, and the target user's metrics marking API access
// enabled with credentials present. Everything else falls back to script
// injection. models.ErrNoPlacementMethod means the caller must skip the
// opportunity without marking it failed; given the detector's degradation
// rules that state should not occur in practice.
func Select(detection detector.Result, metrics *models.DomainMetrics) (models.PlacementMethod, error) {
	if detection.Platform == detector.PlatformWordPress &&
		detection.HasContentAPI &&
		metrics != nil && metrics.HasWPCredentials() {
		return models.MethodContentAPI, nil
	}

	if detection.InjectionPossible {
		return models.MethodInjection, nil
	}

	return "", models.ErrNoPlacementMethod
}

package alerting

import (
	"math"

	"github.com/tphakala/hostpulse/internal/datastore/entities"
)

// Fires reports whether sample crosses alert's threshold. Both directions
// are boundary-inclusive: above fires at value >= threshold, below at
// value <= threshold. Unknown resource or threshold types never fire.
func Fires(sample *entities.ResourceSample, alert *entities.Alert) bool {
	if sample == nil || alert == nil {
		return false
	}
	value, ok := sample.Value(alert.ResourceType)
	if !ok || math.IsNaN(value) {
		return false
	}
	switch alert.ThresholdType {
	case entities.ThresholdAbove:
		return value >= alert.ThresholdValue
	case entities.ThresholdBelow:
		return value <= alert.ThresholdValue
	default:
		return false
	}
}

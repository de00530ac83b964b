package alerting

import (
	"github.com/tphakala/hostpulse/internal/datastore/entities"
)

// SuggestedAlerts returns starter alerts for a host. They carry no channels;
// the user picks those before creating them.
func SuggestedAlerts(hostID string) []AlertSpec {
	return []AlertSpec{
		{
			HostID:          hostID,
			ResourceType:    entities.ResourceCPU,
			ThresholdType:   entities.ThresholdAbove,
			ThresholdValue:  90,
			CooldownMinutes: 15,
		},
		{
			HostID:          hostID,
			ResourceType:    entities.ResourceMemory,
			ThresholdType:   entities.ThresholdAbove,
			ThresholdValue:  90,
			CooldownMinutes: 15,
		},
		{
			HostID:          hostID,
			ResourceType:    entities.ResourceDisk,
			ThresholdType:   entities.ThresholdAbove,
			ThresholdValue:  85,
			CooldownMinutes: 30,
		},
	}
}

package alerting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/hostpulse/internal/datastore/entities"
)

func TestSuggestedAlerts_ValidOnceChannelsAdded(t *testing.T) {
	suggestions := SuggestedAlerts("web-1")
	require.Len(t, suggestions, 3)

	seen := make(map[entities.ResourceType]bool)
	for _, spec := range suggestions {
		assert.Equal(t, "web-1", spec.HostID)
		assert.False(t, seen[spec.ResourceType], "duplicate suggestion for %s", spec.ResourceType)
		seen[spec.ResourceType] = true

		spec.NotificationChannels = entities.NotificationChannels{
			entities.ChannelEmail: entities.EmailChannel{Address: "ops@example.com"},
		}
		assert.NoError(t, spec.Validate(), "suggestion for %s", spec.ResourceType)
	}
}

package entities

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAlertJSONKeys pins the snake_case wire names the dashboard reads and
// keeps the claim counter out of API responses.
func TestAlertJSONKeys(t *testing.T) {
	t.Parallel()

	triggered := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	alert := Alert{
		ID:              3,
		HostID:          "web-1",
		ResourceType:    ResourceCPU,
		ThresholdType:   ThresholdAbove,
		ThresholdValue:  85,
		CooldownMinutes: 30,
		IsActive:        true,
		NotificationChannels: NotificationChannels{
			ChannelEmail: EmailChannel{Address: "ops@example.com"},
		},
		LastTriggeredAt: &triggered,
		FiringSeq:       4,
	}

	data, err := json.Marshal(alert)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))

	for _, key := range []string{
		"id", "host_id", "resource_type", "threshold_type", "threshold_value",
		"cooldown_minutes", "is_active", "notification_channels", "last_triggered_at",
		"created_at", "updated_at",
	} {
		assert.Contains(t, m, key)
	}
	assert.NotContains(t, m, "firing_seq")
	assert.NotContains(t, m, "FiringSeq")

	channels, ok := m["notification_channels"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"address": "ops@example.com"}, channels["email"])
}

func TestNotificationChannels_DecodeByKey(t *testing.T) {
	t.Parallel()

	var ch NotificationChannels
	err := json.Unmarshal([]byte(`{
		"email": {"address": "ops@example.com"},
		"slack": {"webhook_url": "https://hooks.slack.com/services/T/B/X"},
		"discord": {"webhook_url": "https://discord.com/api/webhooks/1/abc"}
	}`), &ch)
	require.NoError(t, err)

	require.Len(t, ch, 3)
	assert.Equal(t, EmailChannel{Address: "ops@example.com"}, ch[ChannelEmail])
	assert.Equal(t, "https://hooks.slack.com/services/T/B/X", ch[ChannelSlack].Target())
	assert.Equal(t, ChannelDiscord, ch[ChannelDiscord].Channel())
	assert.Equal(t, []ChannelName{ChannelDiscord, ChannelEmail, ChannelSlack}, ch.Names())
}

func TestNotificationChannels_UnknownChannel(t *testing.T) {
	t.Parallel()

	var ch NotificationChannels
	err := json.Unmarshal([]byte(`{"pager": {"number": "555"}}`), &ch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown notification channel "pager"`)
}

func TestNotificationChannels_ScanValue(t *testing.T) {
	t.Parallel()

	in := NotificationChannels{ChannelSlack: SlackChannel{WebhookURL: "https://example.com/hook"}}
	v, err := in.Value()
	require.NoError(t, err)

	var out NotificationChannels
	require.NoError(t, out.Scan([]byte(v.(string))))
	assert.Equal(t, in, out)

	var empty NotificationChannels
	require.NoError(t, empty.Scan(nil))
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestChannelResults_AnyDelivered(t *testing.T) {
	t.Parallel()

	r := ChannelResults{
		ChannelEmail: {Delivered: false, Detail: "timeout"},
		ChannelSlack: {Delivered: true, Detail: "sent"},
	}
	assert.True(t, r.AnyDelivered())
	assert.False(t, ChannelResults{ChannelEmail: {Detail: "timeout"}}.AnyDelivered())
	assert.False(t, ChannelResults{}.AnyDelivered())
}

func TestAlert_InCooldown(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	a := Alert{CooldownMinutes: 30}
	assert.False(t, a.InCooldown(t0), "never fired")

	a.LastTriggeredAt = &t0
	assert.True(t, a.InCooldown(t0.Add(10*time.Minute)))
	assert.True(t, a.InCooldown(t0.Add(29*time.Minute+59*time.Second)))
	assert.False(t, a.InCooldown(t0.Add(30*time.Minute)), "window is half-open")
	assert.False(t, a.InCooldown(t0.Add(31*time.Minute)))
}

func TestParsePeriod(t *testing.T) {
	t.Parallel()

	p, err := ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, Period24h, p)

	p, err = ParsePeriod("7d")
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, p.Lookback())

	_, err = ParsePeriod("90d")
	require.Error(t, err)
}

func TestResourceSample_Value(t *testing.T) {
	t.Parallel()

	s := ResourceSample{CPUPercent: 1, MemoryPercent: 2, DiskPercent: 3, Load1m: 4}
	for res, want := range map[ResourceType]float64{
		ResourceCPU: 1, ResourceMemory: 2, ResourceDisk: 3, ResourceLoad: 4,
	} {
		got, ok := s.Value(res)
		assert.True(t, ok)
		assert.InDelta(t, want, got, 0)
	}
	_, ok := s.Value("swap")
	assert.False(t, ok)
}

package alerting

import (
	"github.com/tphakala/hostpulse/internal/datastore/entities"
)

// Schema describes the options available when building an alert form.
type Schema struct {
	ResourceTypes  []ResourceTypeSchema  `json:"resourceTypes"`
	ThresholdTypes []ThresholdTypeSchema `json:"thresholdTypes"`
	Channels       []ChannelSchema       `json:"channels"`
	Periods        []entities.Period     `json:"periods"`
	Cooldown       CooldownSchema        `json:"cooldown"`
	Suggestions    []AlertSpec           `json:"suggestions,omitempty"`
}

// ResourceTypeSchema describes an alertable resource and its threshold range.
// Min and Max are nil for unbounded resources.
type ResourceTypeSchema struct {
	Name  entities.ResourceType `json:"name"`
	Label string                `json:"label"`
	Unit  string                `json:"unit,omitempty"`
	Min   *float64              `json:"min,omitempty"`
	Max   *float64              `json:"max,omitempty"`
}

// ThresholdTypeSchema describes a comparison direction.
type ThresholdTypeSchema struct {
	Name  entities.ThresholdType `json:"name"`
	Label string                 `json:"label"`
}

// ChannelSchema names a channel and the config field it requires.
type ChannelSchema struct {
	Name          entities.ChannelName `json:"name"`
	Label         string               `json:"label"`
	RequiredField string               `json:"requiredField"`
	FieldType     string               `json:"fieldType"` // "email" or "url"
}

// CooldownSchema gives the accepted cooldown range in minutes.
type CooldownSchema struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// GetSchema returns the alert schema. When hostID is set the suggested
// alerts are filled in for that host.
func GetSchema(hostID string) Schema {
	resources := make([]ResourceTypeSchema, 0, len(entities.ResourceTypes))
	for _, r := range entities.ResourceTypes {
		rs := ResourceTypeSchema{Name: r, Label: resourceLabel(r)}
		if r.IsPercentage() {
			lo, hi := MinPercentThreshold, MaxPercentThreshold
			rs.Unit, rs.Min, rs.Max = "%", &lo, &hi
		}
		resources = append(resources, rs)
	}

	schema := Schema{
		ResourceTypes: resources,
		ThresholdTypes: []ThresholdTypeSchema{
			{Name: entities.ThresholdAbove, Label: "at or above"},
			{Name: entities.ThresholdBelow, Label: "at or below"},
		},
		Channels: []ChannelSchema{
			{Name: entities.ChannelEmail, Label: "Email", RequiredField: "address", FieldType: "email"},
			{Name: entities.ChannelSlack, Label: "Slack", RequiredField: "webhook_url", FieldType: "url"},
			{Name: entities.ChannelDiscord, Label: "Discord", RequiredField: "webhook_url", FieldType: "url"},
		},
		Periods:  entities.Periods,
		Cooldown: CooldownSchema{Min: MinCooldownMinutes, Max: MaxCooldownMinutes},
	}
	if hostID != "" {
		schema.Suggestions = SuggestedAlerts(hostID)
	}
	return schema
}

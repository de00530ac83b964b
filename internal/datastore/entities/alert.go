package entities

import "time"

// ResourceType names the sampled metric an alert watches.
type ResourceType string

const (
	ResourceCPU    ResourceType = "cpu"
	ResourceMemory ResourceType = "memory"
	ResourceDisk   ResourceType = "disk"
	ResourceLoad   ResourceType = "load"
)

// ResourceTypes lists every alertable resource in display order.
var ResourceTypes = []ResourceType{ResourceCPU, ResourceMemory, ResourceDisk, ResourceLoad}

// Valid reports whether r is a known resource type.
func (r ResourceType) Valid() bool {
	switch r {
	case ResourceCPU, ResourceMemory, ResourceDisk, ResourceLoad:
		return true
	}
	return false
}

// IsPercentage reports whether the resource is bounded to [0,100].
func (r ResourceType) IsPercentage() bool {
	return r == ResourceCPU || r == ResourceMemory || r == ResourceDisk
}

// ThresholdType is the comparison direction of an alert.
type ThresholdType string

const (
	ThresholdAbove ThresholdType = "above"
	ThresholdBelow ThresholdType = "below"
)

// Valid reports whether t is a known threshold type.
func (t ThresholdType) Valid() bool {
	return t == ThresholdAbove || t == ThresholdBelow
}

// Alert is a user-defined threshold rule on one resource of one host.
// LastTriggeredAt and FiringSeq change only through the firing claim.
type Alert struct {
	ID                   uint                 `gorm:"primaryKey" json:"id"`
	HostID               string               `gorm:"size:100;not null;index" json:"host_id"`
	ResourceType         ResourceType         `gorm:"size:16;not null" json:"resource_type"`
	ThresholdType        ThresholdType        `gorm:"size:16;not null" json:"threshold_type"`
	ThresholdValue       float64              `gorm:"not null" json:"threshold_value"`
	CooldownMinutes      int                  `gorm:"not null" json:"cooldown_minutes"`
	IsActive             bool                 `gorm:"not null;index" json:"is_active"`
	NotificationChannels NotificationChannels `gorm:"type:text;not null" json:"notification_channels"`
	LastTriggeredAt      *time.Time           `json:"last_triggered_at"`
	FiringSeq            uint64               `gorm:"not null;default:0" json:"-"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Alert) TableName() string {
	return "alerts"
}

// Cooldown returns the suppression window after a firing.
func (a *Alert) Cooldown() time.Duration {
	return time.Duration(a.CooldownMinutes) * time.Minute
}

// InCooldown reports whether a firing at now would fall inside the cooldown
// window of the previous firing.
func (a *Alert) InCooldown(now time.Time) bool {
	if a.LastTriggeredAt == nil {
		return false
	}
	return now.Sub(*a.LastTriggeredAt) < a.Cooldown()
}

package entities

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ChannelResult is the delivery outcome for one channel.
type ChannelResult struct {
	Delivered bool   `json:"delivered"`
	Detail    string `json:"detail"`
}

// ChannelResults maps each attempted channel to its outcome.
type ChannelResults map[ChannelName]ChannelResult

// AnyDelivered reports whether at least one channel delivered.
func (r ChannelResults) AnyDelivered() bool {
	for _, res := range r {
		if res.Delivered {
			return true
		}
	}
	return false
}

// Value implements driver.Valuer.
func (r ChannelResults) Value() (driver.Value, error) {
	if r == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[ChannelName]ChannelResult(r))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (r *ChannelResults) Scan(src any) error {
	data, err := columnBytes(src)
	if err != nil {
		return err
	}
	out := ChannelResults{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, (*map[ChannelName]ChannelResult)(&out)); err != nil {
			return fmt.Errorf("decode channel results: %w", err)
		}
	}
	*r = out
	return nil
}

// AlertFiring is the append-only record of one dispatched alert. It keeps
// host and alert identifiers without a foreign key so history survives
// alert deletion.
type AlertFiring struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	AlertID        uint           `gorm:"not null;index:idx_alert_firings_alert_triggered,priority:1" json:"alert_id"`
	HostID         string         `gorm:"size:100;not null;index" json:"host_id"`
	ResourceType   ResourceType   `gorm:"size:16;not null" json:"resource_type"`
	MetricValue    float64        `gorm:"not null" json:"metric_value"`
	TriggeredAt    time.Time      `gorm:"not null;index:idx_alert_firings_alert_triggered,priority:2" json:"triggered_at"`
	Message        string         `gorm:"type:text" json:"message"`
	ChannelResults ChannelResults `gorm:"type:text" json:"channel_results"`
	DispatchID     string         `gorm:"size:36;index" json:"dispatch_id"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for GORM.
func (AlertFiring) TableName() string {
	return "alert_firings"
}

func columnBytes(src any) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported column type %T", src)
	}
}

// Package entities defines the GORM models persisted by hostpulse.
package entities

import "time"

// ResourceSample is one point-in-time utilization reading for a host.
// Samples are never updated after insert.
type ResourceSample struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	HostID        string    `gorm:"size:100;not null;index:idx_samples_host_recorded,priority:1" json:"host_id"`
	CPUPercent    float64   `gorm:"not null" json:"cpu_percent"`
	MemoryPercent float64   `gorm:"not null" json:"memory_percent"`
	DiskPercent   float64   `gorm:"not null" json:"disk_percent"`
	Load1m        float64   `gorm:"column:load_1m;not null" json:"load_1m"`
	RecordedAt    time.Time `gorm:"not null;index:idx_samples_host_recorded,priority:2" json:"recorded_at"`
}

// TableName returns the table name for GORM.
func (ResourceSample) TableName() string {
	return "resource_samples"
}

// Value returns the reading for resource, and false for an unknown resource.
func (s *ResourceSample) Value(resource ResourceType) (float64, bool) {
	switch resource {
	case ResourceCPU:
		return s.CPUPercent, true
	case ResourceMemory:
		return s.MemoryPercent, true
	case ResourceDisk:
		return s.DiskPercent, true
	case ResourceLoad:
		return s.Load1m, true
	default:
		return 0, false
	}
}

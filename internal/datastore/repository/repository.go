// Package repository implements persistence for samples, alerts and alert
// firings on top of GORM.
package repository

import (
	"context"
	"time"

	"github.com/tphakala/hostpulse/internal/datastore/entities"
	"github.com/tphakala/hostpulse/internal/errors"
)

// Sentinel errors. Match with errors.Is.
var (
	ErrAlertNotFound  = errors.NotFound("alert")
	ErrSampleNotFound = errors.NotFound("sample")
)

// MetricRepository stores resource samples.
type MetricRepository interface {
	SaveSample(ctx context.Context, sample *entities.ResourceSample) error
	// LatestSample returns ErrSampleNotFound when the host has no samples.
	LatestSample(ctx context.Context, hostID string) (*entities.ResourceSample, error)
	// ListSamples returns samples with since <= recorded_at <= until, oldest first.
	ListSamples(ctx context.Context, hostID string, since, until time.Time) ([]entities.ResourceSample, error)
	DeleteSamplesBefore(ctx context.Context, before time.Time) (int64, error)
}

// AlertRepository handles alert CRUD, the firing claim and firing history.
type AlertRepository interface {
	ListAlerts(ctx context.Context, filter AlertFilter) ([]entities.Alert, error)
	GetAlert(ctx context.Context, id uint) (*entities.Alert, error)
	CreateAlert(ctx context.Context, alert *entities.Alert) error
	// UpdateAlert writes the user-editable fields of alert. Firing state is
	// left untouched.
	UpdateAlert(ctx context.Context, alert *entities.Alert) error
	DeleteAlert(ctx context.Context, id uint) error
	// ToggleAlert flips is_active and returns the updated alert.
	ToggleAlert(ctx context.Context, id uint) (*entities.Alert, error)

	// ClaimFiring stamps last_triggered_at = at if firing_seq still equals
	// expectedSeq and the alert is active. It reports whether this caller won.
	ClaimFiring(ctx context.Context, id uint, expectedSeq uint64, at time.Time) (bool, error)

	SaveFiring(ctx context.Context, firing *entities.AlertFiring) error
	ListFirings(ctx context.Context, filter FiringFilter) ([]entities.AlertFiring, int64, error)
	DeleteFiringsBefore(ctx context.Context, before time.Time) (int64, error)
}

// AlertFilter controls alert listing queries.
type AlertFilter struct {
	HostID string
	Active *bool
}

// FiringFilter controls firing history queries.
type FiringFilter struct {
	AlertID uint
	HostID  string
	Limit   int
	Offset  int
}

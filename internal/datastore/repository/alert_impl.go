package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/hostpulse/internal/datastore/entities"
)

// editableAlertColumns are the columns UpdateAlert may write.
var editableAlertColumns = []string{
	"host_id", "resource_type", "threshold_type", "threshold_value",
	"cooldown_minutes", "is_active", "notification_channels", "updated_at",
}

type alertRepository struct {
	db *gorm.DB
}

// NewAlertRepository creates a GORM-backed AlertRepository.
func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

// ListAlerts returns alerts matching the filter ordered by id.
func (r *alertRepository) ListAlerts(ctx context.Context, filter AlertFilter) ([]entities.Alert, error) {
	alerts := make([]entities.Alert, 0)
	query := r.db.WithContext(ctx)
	if filter.HostID != "" {
		query = query.Where("host_id = ?", filter.HostID)
	}
	if filter.Active != nil {
		query = query.Where("is_active = ?", *filter.Active)
	}
	if err := query.Order("id ASC").Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

func (r *alertRepository) GetAlert(ctx context.Context, id uint) (*entities.Alert, error) {
	var alert entities.Alert
	if err := r.db.WithContext(ctx).First(&alert, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to get alert %d: %w", id, err)
	}
	return &alert, nil
}

func (r *alertRepository) CreateAlert(ctx context.Context, alert *entities.Alert) error {
	alert.ID = 0
	alert.FiringSeq = 0
	alert.LastTriggeredAt = nil
	if err := r.db.WithContext(ctx).Create(alert).Error; err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

func (r *alertRepository) UpdateAlert(ctx context.Context, alert *entities.Alert) error {
	if alert.ID == 0 {
		return fmt.Errorf("failed to update alert: missing alert ID")
	}
	result := r.db.WithContext(ctx).Model(alert).Select(editableAlertColumns).Updates(alert)
	if result.Error != nil {
		return fmt.Errorf("failed to update alert %d: %w", alert.ID, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}
	// MySQL reports changed rows, so an update that rewrites identical
	// values affects zero rows on an existing alert.
	var n int64
	if err := r.db.WithContext(ctx).Model(&entities.Alert{}).Where("id = ?", alert.ID).Count(&n).Error; err != nil {
		return fmt.Errorf("failed to check alert %d: %w", alert.ID, err)
	}
	if n == 0 {
		return ErrAlertNotFound
	}
	return nil
}

func (r *alertRepository) DeleteAlert(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&entities.Alert{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete alert %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlertNotFound
	}
	return nil
}

func (r *alertRepository) ToggleAlert(ctx context.Context, id uint) (*entities.Alert, error) {
	var alert entities.Alert
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&entities.Alert{}).Where("id = ?", id).
			UpdateColumn("is_active", gorm.Expr("NOT is_active"))
		if result.Error != nil {
			return fmt.Errorf("failed to toggle alert %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrAlertNotFound
		}
		if err := tx.First(&alert, id).Error; err != nil {
			return fmt.Errorf("failed to reload alert %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

func (r *alertRepository) ClaimFiring(ctx context.Context, id uint, expectedSeq uint64, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&entities.Alert{}).
		Where("id = ? AND firing_seq = ? AND is_active = ?", id, expectedSeq, true).
		UpdateColumns(map[string]any{
			"last_triggered_at": at.UTC().Truncate(time.Second),
			"firing_seq":        gorm.Expr("firing_seq + 1"),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to claim firing for alert %d: %w", id, result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *alertRepository) SaveFiring(ctx context.Context, firing *entities.AlertFiring) error {
	firing.TriggeredAt = firing.TriggeredAt.UTC().Truncate(time.Second)
	if err := r.db.WithContext(ctx).Create(firing).Error; err != nil {
		return fmt.Errorf("failed to save firing for alert %d: %w", firing.AlertID, err)
	}
	return nil
}

// ListFirings returns firings newest first with the unpaginated total.
func (r *alertRepository) ListFirings(ctx context.Context, filter FiringFilter) ([]entities.AlertFiring, int64, error) {
	scope := func(q *gorm.DB) *gorm.DB {
		if filter.AlertID > 0 {
			q = q.Where("alert_id = ?", filter.AlertID)
		}
		if filter.HostID != "" {
			q = q.Where("host_id = ?", filter.HostID)
		}
		return q
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&entities.AlertFiring{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count alert firings: %w", err)
	}

	items := make([]entities.AlertFiring, 0)
	query := r.db.WithContext(ctx).Scopes(scope).Order("triggered_at DESC").Order("id DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if err := query.Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list alert firings: %w", err)
	}
	return items, total, nil
}

func (r *alertRepository) DeleteFiringsBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("triggered_at < ?", before.UTC()).Delete(&entities.AlertFiring{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete alert firings before %v: %w", before, result.Error)
	}
	return result.RowsAffected, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/hostpulse/internal/datastore/entities"
)

type metricRepository struct {
	db *gorm.DB
}

// NewMetricRepository creates a GORM-backed MetricRepository.
func NewMetricRepository(db *gorm.DB) MetricRepository {
	return &metricRepository{db: db}
}

// SaveSample inserts sample. Timestamps are normalized to UTC seconds so
// range queries compare consistently on every dialect.
func (r *metricRepository) SaveSample(ctx context.Context, sample *entities.ResourceSample) error {
	sample.RecordedAt = sample.RecordedAt.UTC().Truncate(time.Second)
	if err := r.db.WithContext(ctx).Create(sample).Error; err != nil {
		return fmt.Errorf("failed to save sample for host %s: %w", sample.HostID, err)
	}
	return nil
}

func (r *metricRepository) LatestSample(ctx context.Context, hostID string) (*entities.ResourceSample, error) {
	var sample entities.ResourceSample
	err := r.db.WithContext(ctx).
		Where("host_id = ?", hostID).
		Order("recorded_at DESC").Order("id DESC").
		First(&sample).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSampleNotFound
		}
		return nil, fmt.Errorf("failed to get latest sample for host %s: %w", hostID, err)
	}
	return &sample, nil
}

func (r *metricRepository) ListSamples(ctx context.Context, hostID string, since, until time.Time) ([]entities.ResourceSample, error) {
	samples := make([]entities.ResourceSample, 0)
	err := r.db.WithContext(ctx).
		Where("host_id = ? AND recorded_at >= ? AND recorded_at <= ?",
			hostID, since.UTC().Truncate(time.Second), until.UTC()).
		Order("recorded_at ASC").Order("id ASC").
		Find(&samples).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list samples for host %s: %w", hostID, err)
	}
	return samples, nil
}

func (r *metricRepository) DeleteSamplesBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("recorded_at < ?", before.UTC()).Delete(&entities.ResourceSample{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete samples before %v: %w", before, result.Error)
	}
	return result.RowsAffected, nil
}

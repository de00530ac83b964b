package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/hostpulse/internal/datastore/datastoretest"
	"github.com/tphakala/hostpulse/internal/datastore/entities"
)

func saveSample(t *testing.T, repo MetricRepository, hostID string, at time.Time, cpu float64) {
	t.Helper()
	require.NoError(t, repo.SaveSample(t.Context(), &entities.ResourceSample{
		HostID: hostID, CPUPercent: cpu, MemoryPercent: 40, DiskPercent: 50, Load1m: 0.5, RecordedAt: at,
	}))
}

func TestMetricRepository_Latest(t *testing.T) {
	t.Parallel()
	repo := NewMetricRepository(datastoretest.Open(t))
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := repo.LatestSample(t.Context(), "web-1")
	require.ErrorIs(t, err, ErrSampleNotFound)

	saveSample(t, repo, "web-1", base, 10)
	saveSample(t, repo, "web-1", base.Add(time.Minute), 20)
	saveSample(t, repo, "web-2", base.Add(time.Hour), 99)

	latest, err := repo.LatestSample(t.Context(), "web-1")
	require.NoError(t, err)
	assert.InDelta(t, 20, latest.CPUPercent, 0)
	assert.True(t, base.Add(time.Minute).Equal(latest.RecordedAt))
}

func TestMetricRepository_ListSamplesWindowAscending(t *testing.T) {
	t.Parallel()
	repo := NewMetricRepository(datastoretest.Open(t))
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	saveSample(t, repo, "web-1", now.Add(-2*time.Hour), 1)
	saveSample(t, repo, "web-1", now.Add(-30*time.Minute), 3)
	saveSample(t, repo, "web-1", now.Add(-50*time.Minute), 2)
	saveSample(t, repo, "web-1", now, 4)
	saveSample(t, repo, "web-2", now.Add(-10*time.Minute), 9)

	samples, err := repo.ListSamples(t.Context(), "web-1", now.Add(-time.Hour), now)
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.InDelta(t, 2, samples[0].CPUPercent, 0)
	assert.InDelta(t, 3, samples[1].CPUPercent, 0)
	assert.InDelta(t, 4, samples[2].CPUPercent, 0, "upper bound is inclusive")

	empty, err := repo.ListSamples(t.Context(), "ghost", now.Add(-time.Hour), now)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestMetricRepository_SaveNormalizesTimestamp(t *testing.T) {
	t.Parallel()
	repo := NewMetricRepository(datastoretest.Open(t))

	local := time.Date(2025, 3, 1, 14, 0, 0, 750_000_000, time.FixedZone("EET", 2*3600))
	sample := &entities.ResourceSample{HostID: "web-1", RecordedAt: local}
	require.NoError(t, repo.SaveSample(t.Context(), sample))

	assert.Equal(t, time.UTC, sample.RecordedAt.Location())
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), sample.RecordedAt)
}

func TestMetricRepository_DeleteSamplesBefore(t *testing.T) {
	t.Parallel()
	repo := NewMetricRepository(datastoretest.Open(t))
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	saveSample(t, repo, "web-1", now.Add(-48*time.Hour), 1)
	saveSample(t, repo, "web-1", now.Add(-time.Hour), 2)

	deleted, err := repo.DeleteSamplesBefore(t.Context(), now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	left, err := repo.ListSamples(t.Context(), "web-1", now.Add(-72*time.Hour), now)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

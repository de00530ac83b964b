package repository

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/hostpulse/internal/datastore/datastoretest"
	"github.com/tphakala/hostpulse/internal/datastore/entities"
	"github.com/tphakala/hostpulse/internal/errors"
)

func createTestAlert(t *testing.T, repo AlertRepository, hostID string, resource entities.ResourceType) *entities.Alert {
	t.Helper()
	alert := &entities.Alert{
		HostID:          hostID,
		ResourceType:    resource,
		ThresholdType:   entities.ThresholdAbove,
		ThresholdValue:  85,
		CooldownMinutes: 30,
		IsActive:        true,
		NotificationChannels: entities.NotificationChannels{
			entities.ChannelEmail: entities.EmailChannel{Address: "ops@example.com"},
		},
	}
	require.NoError(t, repo.CreateAlert(t.Context(), alert))
	require.NotZero(t, alert.ID)
	return alert
}

func TestAlertRepository_CreateAndGet(t *testing.T) {
	t.Parallel()
	repo := NewAlertRepository(datastoretest.Open(t))

	created := createTestAlert(t, repo, "web-1", entities.ResourceCPU)

	got, err := repo.GetAlert(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "web-1", got.HostID)
	assert.Equal(t, entities.ResourceCPU, got.ResourceType)
	assert.True(t, got.IsActive)
	assert.Nil(t, got.LastTriggeredAt)
	assert.Equal(t, entities.EmailChannel{Address: "ops@example.com"}, got.NotificationChannels[entities.ChannelEmail])
}

func TestAlertRepository_CreateInactive(t *testing.T) {
	t.Parallel()
	repo := NewAlertRepository(datastoretest.Open(t))

	alert := &entities.Alert{
		HostID: "db-1", ResourceType: entities.ResourceDisk, ThresholdType: entities.ThresholdAbove,
		ThresholdValue: 90, CooldownMinutes: 5, IsActive: false,
		NotificationChannels: entities.NotificationChannels{
			entities.ChannelSlack: entities.SlackChannel{WebhookURL: "https://hooks.example.com/x"},
		},
	}
	require.NoError(t, repo.CreateAlert(t.Context(), alert))

	got, err := repo.GetAlert(t.Context(), alert.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestAlertRepository_GetNotFound(t *testing.T) {
	t.Parallel()
	repo := NewAlertRepository(datastoretest.Open(t))

	_, err := repo.GetAlert(t.Context(), 999)
	require.ErrorIs(t, err, ErrAlertNotFound)
	assert.Equal(t, errors.CategoryNotFound, errors.CategoryOf(err))
}

func TestAlertRepository_ListFilters(t *testing.T) {
	t.Parallel()
	repo := NewAlertRepository(datastoretest.Open(t))

	a := createTestAlert(t, repo, "web-1", entities.ResourceCPU)
	createTestAlert(t, repo, "web-1", entities.ResourceMemory)
	createTestAlert(t, repo, "web-2", entities.ResourceCPU)
	_, err := repo.ToggleAlert(t.Context(), a.ID)
	require.NoError(t, err)

	all, err := repo.ListAlerts(t.Context(), AlertFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	host, err := repo.ListAlerts(t.Context(), AlertFilter{HostID: "web-1"})
	require.NoError(t, err)
	require.Len(t, host, 2)
	assert.Less(t, host[0].ID, host[1].ID)

	active := true
	activeHost, err := repo.ListAlerts(t.Context(), AlertFilter{HostID: "web-1", Active: &active})
	require.NoError(t, err)
	require.Len(t, activeHost, 1)
	assert.Equal(t, entities.ResourceMemory, activeHost[0].ResourceType)

	none, err := repo.ListAlerts(t.Context(), AlertFilter{HostID: "nope"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestAlertRepository_UpdatePreservesFiringState(t *testing.T) {
	t.Parallel()
	repo := NewAlertRepository(datastoretest.Open(t))
	alert := createTestAlert(t, repo, "web-1", entities.ResourceCPU)

	firedAt := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)
	won, err := repo.ClaimFiring(t.Context(), alert.ID, 0, firedAt)
	require.NoError(t, err)
	require.True(t, won)

	update := *alert
	update.ThresholdValue = 70
	update.CooldownMinutes = 60
	update.LastTriggeredAt = nil
	update.FiringSeq = 0
	require.NoError(t, repo.UpdateAlert(t.Context(), &update))

	got, err := repo.GetAlert(t.Context(), alert.ID)
	require.NoError(t, err)
	assert.InDelta(t, 70, got.ThresholdValue, 0)
	assert.Equal(t, 60, got.CooldownMinutes)
	require.NotNil(t, got.LastTriggeredAt)
	assert.True(t, firedAt.Equal(*got.LastTriggeredAt))
	assert.Equal(t, uint64(1), got.FiringSeq)
}

func TestAlertRepository_UpdateNotFound(t *testing.T) {
	t.Parallel()
	repo := NewAlertRepository(datastoretest.Open(t))

	missing := &entities.Alert{ID: 404, HostID: "x", ResourceType: entities.ResourceCPU, ThresholdType: entities.ThresholdAbove}
	require.ErrorIs(t, repo.UpdateAlert(t.Context(), missing), ErrAlertNotFound)
}

func TestAlertRepository_UpdateIdenticalTwice(t *testing.T) {
	t.Parallel()
	repo := NewAlertRepository(datastoretest.Open(t))
	alert := createTestAlert(t, repo, "web-1", entities.ResourceMemory)

	update := *alert
	update.ThresholdValue = 75
	require.NoError(t, repo.UpdateAlert(t.Context(), &update))
	again := update
	require.NoError(t, repo.UpdateAlert(t.Context(), &again))

	got, err := repo.GetAlert(t.Context(), alert.ID)
	require.NoError(t, err)
	assert.InDelta(t, 75, got.ThresholdValue, 0)
}

func TestAlertRepository_ToggleKeepsLastTriggered(t *testing.T) {
	t.Parallel()
	repo := NewAlertRepository(datastoretest.Open(t))
	alert := createTestAlert(t, repo, "web-1", entities.ResourceCPU)

	firedAt := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)
	_, err := repo.ClaimFiring(t.Context(), alert.ID, 0, firedAt)
	require.NoError(t, err)

	off, err := repo.ToggleAlert(t.Context(), alert.ID)
	require.NoError(t, err)
	assert.False(t, off.IsActive)

	on, err := repo.ToggleAlert(t.Context(), alert.ID)
	require.NoError(t, err)
	assert.True(t, on.IsActive)
	require.NotNil(t, on.LastTriggeredAt)
	assert.True(t, firedAt.Equal(*on.LastTriggeredAt))

	_, err = repo.ToggleAlert(t.Context(), 999)
	require.ErrorIs(t, err, ErrAlertNotFound)
}

func TestAlertRepository_DeleteKeepsHistory(t *testing.T) {
	t.Parallel()
	repo := NewAlertRepository(datastoretest.Open(t))
	alert := createTestAlert(t, repo, "web-1", entities.ResourceCPU)

	require.NoError(t, repo.SaveFiring(t.Context(), &entities.AlertFiring{
		AlertID: alert.ID, HostID: "web-1", ResourceType: entities.ResourceCPU,
		MetricValue: 92, TriggeredAt: time.Now(), Message: "cpu high",
	}))

	require.NoError(t, repo.DeleteAlert(t.Context(), alert.ID))
	require.ErrorIs(t, repo.DeleteAlert(t.Context(), alert.ID), ErrAlertNotFound)

	firings, total, err := repo.ListFirings(t.Context(), FiringFilter{AlertID: alert.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, firings, 1)
}

func TestAlertRepository_ClaimFiring(t *testing.T) {
	t.Parallel()
	repo := NewAlertRepository(datastoretest.Open(t))
	alert := createTestAlert(t, repo, "web-1", entities.ResourceCPU)
	at := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)

	won, err := repo.ClaimFiring(t.Context(), alert.ID, 0, at)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.ClaimFiring(t.Context(), alert.ID, 0, at.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, won, "stale sequence must lose")

	_, err = repo.ToggleAlert(t.Context(), alert.ID)
	require.NoError(t, err)
	won, err = repo.ClaimFiring(t.Context(), alert.ID, 1, at.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, won, "inactive alert cannot be claimed")
}

func TestAlertRepository_ClaimFiringRace(t *testing.T) {
	t.Parallel()
	repo := NewAlertRepository(datastoretest.Open(t))
	alert := createTestAlert(t, repo, "web-1", entities.ResourceCPU)
	at := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)

	const contenders = 8
	var wins atomic.Int32
	var wg sync.WaitGroup
	for range contenders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := repo.ClaimFiring(t.Context(), alert.ID, alert.FiringSeq, at)
			if err == nil && won {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load(), "exactly one claim may win")
}

func TestAlertRepository_ListFiringsPagination(t *testing.T) {
	t.Parallel()
	repo := NewAlertRepository(datastoretest.Open(t))
	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	for i := range 5 {
		require.NoError(t, repo.SaveFiring(t.Context(), &entities.AlertFiring{
			AlertID: 1, HostID: "web-1", ResourceType: entities.ResourceCPU,
			MetricValue: float64(90 + i), TriggeredAt: base.Add(time.Duration(i) * time.Hour),
			ChannelResults: entities.ChannelResults{entities.ChannelEmail: {Delivered: true, Detail: "sent"}},
		}))
	}
	require.NoError(t, repo.SaveFiring(t.Context(), &entities.AlertFiring{
		AlertID: 2, HostID: "web-2", TriggeredAt: base,
	}))

	page, total, err := repo.ListFirings(t.Context(), FiringFilter{AlertID: 1, Limit: 2, Offset: 0})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page, 2)
	assert.InDelta(t, 94, page[0].MetricValue, 0, "newest first")
	assert.True(t, page[0].ChannelResults[entities.ChannelEmail].Delivered)

	last, _, err := repo.ListFirings(t.Context(), FiringFilter{AlertID: 1, Limit: 2, Offset: 4})
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.InDelta(t, 90, last[0].MetricValue, 0)

	byHost, total, err := repo.ListFirings(t.Context(), FiringFilter{HostID: "web-2"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, byHost, 1)

	deleted, err := repo.DeleteFiringsBefore(t.Context(), base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
}

package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aikyo-io/campaign-engine/models"
)

type fakeTrackerStore struct {
	stats      *models.BroadcastStats
	lastLimit  int
	lastOffset int
	lastStatus *models.DeliveryStatus
}

func (s *fakeTrackerStore) RecordOutcome(_ context.Context, _ uint, _ models.DeliveryStatus, _ *string, _ models.JSONMap) error {
	return nil
}

func (s *fakeTrackerStore) StatsByBroadcast(_ context.Context, _ uint) (*models.BroadcastStats, error) {
	return s.stats, nil
}

func (s *fakeTrackerStore) ListByBroadcast(_ context.Context, _ uint, status *models.DeliveryStatus, limit, offset int) ([]*models.Delivery, error) {
	s.lastStatus = status
	s.lastLimit = limit
	s.lastOffset = offset
	return nil, nil
}

func TestTrackerStats(t *testing.T) {
	store := &fakeTrackerStore{stats: &models.BroadcastStats{Total: 10, Queued: 1, Sent: 7, Failed: 2}}
	tracker := NewTracker(store)

	stats, err := tracker.Stats(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stats.Total)
	assert.Equal(t, int64(7), stats.Sent)
}

func TestTrackerListPaging(t *testing.T) {
	store := &fakeTrackerStore{}
	tracker := NewTracker(store)

	status := models.DeliveryStatusFailed
	_, err := tracker.List(context.Background(), 42, &status, 3, 20)
	require.NoError(t, err)
	assert.Equal(t, 20, store.lastLimit)
	assert.Equal(t, 40, store.lastOffset)
	require.NotNil(t, store.lastStatus)
	assert.Equal(t, models.DeliveryStatusFailed, *store.lastStatus)

	// Zero page and limit fall back to the first default-sized page
	_, err = tracker.List(context.Background(), 42, nil, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 50, store.lastLimit)
	assert.Equal(t, 0, store.lastOffset)
}

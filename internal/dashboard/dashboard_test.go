package dashboard

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"actms/internal/cache"
	"actms/models"
)

type fakeStore struct {
	calls       atomic.Int32
	tendersErr  error
	alertsSince time.Time
}

func (f *fakeStore) CountTenders(context.Context) (int, error) {
	f.calls.Add(1)
	return 5, f.tendersErr
}
func (f *fakeStore) CountActiveBids(context.Context) (int, error)     { return 9, nil }
func (f *fakeStore) CountSuspiciousBids(context.Context) (int, error) { return 2, nil }
func (f *fakeStore) CountAlertsSince(_ context.Context, since time.Time) (int, error) {
	f.alertsSince = since
	return 1, nil
}
func (f *fakeStore) TenderStatusDistribution(context.Context) ([]models.StatusCount, error) {
	return []models.StatusCount{{Status: models.TenderActive, Count: 5}}, nil
}
func (f *fakeStore) RiskDistribution(context.Context) ([]models.RiskBucket, error) {
	return []models.RiskBucket{{RiskLevel: "High Risk", Count: 2}}, nil
}
func (f *fakeStore) TenderValueDistribution(context.Context) ([]models.ValueBucket, error) {
	return nil, nil
}
func (f *fakeStore) RecentSuspiciousBids(_ context.Context, limit int) ([]models.SuspiciousBidSummary, error) {
	return []models.SuspiciousBidSummary{{ID: 3, CompanyName: "Shell Co"}}, nil
}
func (f *fakeStore) ActivityTimeline(_ context.Context, days int) ([]models.TimelinePoint, error) {
	return []models.TimelinePoint{{Date: "2024-01-01", Tenders: 1, Bids: days}}, nil
}

func TestStats(t *testing.T) {
	store := &fakeStore{}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewService(store, nil, 0, zap.NewNop())
	s.now = func() time.Time { return now }

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, stats.TotalTenders)
	require.Equal(t, 9, stats.ActiveBids)
	require.Equal(t, 2, stats.SuspiciousBids)
	require.Equal(t, 1, stats.RecentAlerts)
	require.Equal(t, now.Add(-24*time.Hour), store.alertsSince)
	require.Equal(t, 30, stats.Timeline[0].Bids)
	require.NotNil(t, stats.ValueDistribution)
	require.Empty(t, stats.ValueDistribution)
	require.Equal(t, now, stats.GeneratedAt)
}

func TestStatsCachedUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	s := NewService(store, cache.NewMemory(), time.Minute, zap.NewNop())

	_, err := s.Stats(ctx)
	require.NoError(t, err)
	cached, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, cached.TotalTenders)
	require.Equal(t, int32(1), store.calls.Load())

	s.Invalidate(ctx)
	_, err = s.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(2), store.calls.Load())
}

func TestStatsError(t *testing.T) {
	store := &fakeStore{tendersErr: errors.New("connection reset")}
	s := NewService(store, cache.NewMemory(), time.Minute, zap.NewNop())
	_, err := s.Stats(context.Background())
	require.ErrorContains(t, err, "count tenders: connection reset")

	store.tendersErr = nil
	_, err = s.Stats(context.Background())
	require.NoError(t, err, "errors are not cached")
}

// Package dashboard assembles the summary shown on the monitoring dashboard.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"actms/internal/cache"
	"actms/models"
)

const (
	cacheKey       = "dashboard:stats"
	timelineDays   = 30
	recentFlagged  = 10
	alertsLookback = 24 * time.Hour
)

type Store interface {
	CountTenders(ctx context.Context) (int, error)
	CountActiveBids(ctx context.Context) (int, error)
	CountSuspiciousBids(ctx context.Context) (int, error)
	CountAlertsSince(ctx context.Context, since time.Time) (int, error)
	TenderStatusDistribution(ctx context.Context) ([]models.StatusCount, error)
	RiskDistribution(ctx context.Context) ([]models.RiskBucket, error)
	TenderValueDistribution(ctx context.Context) ([]models.ValueBucket, error)
	RecentSuspiciousBids(ctx context.Context, limit int) ([]models.SuspiciousBidSummary, error)
	ActivityTimeline(ctx context.Context, days int) ([]models.TimelinePoint, error)
}

type Service struct {
	store Store
	cache cache.Cache
	ttl   time.Duration
	log   *zap.Logger
	now   func() time.Time
}

// NewService caches computed stats for ttl; a zero ttl disables caching.
func NewService(store Store, c cache.Cache, ttl time.Duration, log *zap.Logger) *Service {
	return &Service{store: store, cache: c, ttl: ttl, log: log.Named("dashboard"), now: time.Now}
}

// Stats returns the dashboard summary, from cache when fresh.
func (s *Service) Stats(ctx context.Context) (*models.DashboardStats, error) {
	if s.cache != nil && s.ttl > 0 {
		var cached models.DashboardStats
		err := cache.GetJSON(ctx, s.cache, cacheKey, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.log.Warn("dashboard cache read failed", zap.Error(err))
		}
	}

	stats, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil && s.ttl > 0 {
		if err := cache.SetJSON(ctx, s.cache, cacheKey, stats, s.ttl); err != nil {
			s.log.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return stats, nil
}

func (s *Service) compute(ctx context.Context) (*models.DashboardStats, error) {
	now := s.now().UTC()
	out := &models.DashboardStats{GeneratedAt: now}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.TotalTenders, err = s.store.CountTenders(ctx)
		return wrap("count tenders", err)
	})
	g.Go(func() (err error) {
		out.ActiveBids, err = s.store.CountActiveBids(ctx)
		return wrap("count active bids", err)
	})
	g.Go(func() (err error) {
		out.SuspiciousBids, err = s.store.CountSuspiciousBids(ctx)
		return wrap("count suspicious bids", err)
	})
	g.Go(func() (err error) {
		out.RecentAlerts, err = s.store.CountAlertsSince(ctx, now.Add(-alertsLookback))
		return wrap("count recent alerts", err)
	})
	g.Go(func() (err error) {
		out.TenderStatus, err = s.store.TenderStatusDistribution(ctx)
		return wrap("tender status distribution", err)
	})
	g.Go(func() (err error) {
		out.RiskDistribution, err = s.store.RiskDistribution(ctx)
		return wrap("risk distribution", err)
	})
	g.Go(func() (err error) {
		out.ValueDistribution, err = s.store.TenderValueDistribution(ctx)
		return wrap("value distribution", err)
	})
	g.Go(func() (err error) {
		out.RecentSuspicious, err = s.store.RecentSuspiciousBids(ctx, recentFlagged)
		return wrap("recent suspicious bids", err)
	})
	g.Go(func() (err error) {
		out.Timeline, err = s.store.ActivityTimeline(ctx, timelineDays)
		return wrap("activity timeline", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if out.TenderStatus == nil {
		out.TenderStatus = []models.StatusCount{}
	}
	if out.RiskDistribution == nil {
		out.RiskDistribution = []models.RiskBucket{}
	}
	if out.ValueDistribution == nil {
		out.ValueDistribution = []models.ValueBucket{}
	}
	if out.RecentSuspicious == nil {
		out.RecentSuspicious = []models.SuspiciousBidSummary{}
	}
	if out.Timeline == nil {
		out.Timeline = []models.TimelinePoint{}
	}
	return out, nil
}

func wrap(what string, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

// Invalidate drops the cached summary after a write.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		s.log.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}

package db

import (
	"context"
	"fmt"
	"sort"
	"time"

	"actms/models"
)

// Risk bands over the anomaly score.
const (
	LowRiskBelow    = 0.3
	MediumRiskBelow = 0.7
)

func (s *Storage) CountActiveBids(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, s.db.Rebind(`SELECT COUNT(*) FROM bids WHERE status = ?`), models.BidSubmitted)
	return n, err
}

func (s *Storage) CountSuspiciousBids(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, s.db.Rebind(`SELECT COUNT(*) FROM bids WHERE is_suspicious = ?`), true)
	return n, err
}

func (s *Storage) TenderStatusDistribution(ctx context.Context) ([]models.StatusCount, error) {
	out := []models.StatusCount{}
	err := s.db.SelectContext(ctx, &out, `
        SELECT status, COUNT(*) AS count
        FROM tenders
        GROUP BY status
        ORDER BY status`)
	if err != nil {
		return nil, fmt.Errorf("tender status distribution: %w", err)
	}
	return out, nil
}

func (s *Storage) RiskDistribution(ctx context.Context) ([]models.RiskBucket, error) {
	out := []models.RiskBucket{}
	query := s.db.Rebind(`
        SELECT risk_level, COUNT(*) AS count FROM (
            SELECT CASE
                WHEN anomaly_score < ? THEN 'Low Risk'
                WHEN anomaly_score < ? THEN 'Medium Risk'
                ELSE 'High Risk'
            END AS risk_level
            FROM bids
        ) banded
        GROUP BY risk_level
        ORDER BY risk_level`)
	if err := s.db.SelectContext(ctx, &out, query, LowRiskBelow, MediumRiskBelow); err != nil {
		return nil, fmt.Errorf("risk distribution: %w", err)
	}
	return out, nil
}

func (s *Storage) TenderValueDistribution(ctx context.Context) ([]models.ValueBucket, error) {
	out := []models.ValueBucket{}
	err := s.db.SelectContext(ctx, &out, `
        SELECT value_range, COUNT(*) AS count FROM (
            SELECT CASE
                WHEN budget < 100000 THEN 'Under $100K'
                WHEN budget < 500000 THEN '$100K - $500K'
                WHEN budget < 1000000 THEN '$500K - $1M'
                ELSE 'Over $1M'
            END AS value_range
            FROM tenders
        ) banded
        GROUP BY value_range
        ORDER BY value_range`)
	if err != nil {
		return nil, fmt.Errorf("tender value distribution: %w", err)
	}
	return out, nil
}

func (s *Storage) RecentSuspiciousBids(ctx context.Context, limit int) ([]models.SuspiciousBidSummary, error) {
	out := []models.SuspiciousBidSummary{}
	query := s.db.Rebind(`
        SELECT b.id, b.company_name, b.bid_amount, b.anomaly_score, t.title AS tender_title, b.created_at
        FROM bids b
        JOIN tenders t ON t.id = b.tender_id
        WHERE b.is_suspicious = ?
        ORDER BY b.created_at DESC, b.id DESC
        LIMIT ?`)
	if err := s.db.SelectContext(ctx, &out, query, true, limit); err != nil {
		return nil, fmt.Errorf("recent suspicious bids: %w", err)
	}
	return out, nil
}

// ActivityTimeline counts tenders and bids created per UTC day over the last
// days, one point per date that saw any activity, oldest first.
func (s *Storage) ActivityTimeline(ctx context.Context, days int) ([]models.TimelinePoint, error) {
	since := s.now().AddDate(0, 0, -days)

	var tenderTimes, bidTimes []time.Time
	if err := s.db.SelectContext(ctx, &tenderTimes,
		s.db.Rebind(`SELECT created_at FROM tenders WHERE created_at >= ?`), since); err != nil {
		return nil, fmt.Errorf("tender timeline: %w", err)
	}
	if err := s.db.SelectContext(ctx, &bidTimes,
		s.db.Rebind(`SELECT created_at FROM bids WHERE created_at >= ?`), since); err != nil {
		return nil, fmt.Errorf("bid timeline: %w", err)
	}

	points := map[string]*models.TimelinePoint{}
	point := func(t time.Time) *models.TimelinePoint {
		day := t.UTC().Format(time.DateOnly)
		p, ok := points[day]
		if !ok {
			p = &models.TimelinePoint{Date: day}
			points[day] = p
		}
		return p
	}
	for _, t := range tenderTimes {
		point(t).Tenders++
	}
	for _, t := range bidTimes {
		point(t).Bids++
	}

	out := make([]models.TimelinePoint, 0, len(points))
	for _, p := range points {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

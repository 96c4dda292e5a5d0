package db

import (
	"context"
	"fmt"
	"time"

	"actms/models"
)

func (s *Storage) CreateAlert(ctx context.Context, a *models.Alert) error {
	a.CreatedAt = s.now()
	id, err := s.insert(ctx, s.db, `
        INSERT INTO alerts (type, title, message, severity, related_id, related_type, is_read, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Type, a.Title, a.Message, a.Severity, a.RelatedID, a.RelatedType, a.IsRead, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	a.ID = id
	return nil
}

func (s *Storage) ListAlerts(ctx context.Context, limit int) ([]models.Alert, error) {
	alerts := []models.Alert{}
	query := s.db.Rebind(`
        SELECT id, type, title, message, severity, related_id, related_type, is_read, created_at
        FROM alerts
        ORDER BY created_at DESC, id DESC
        LIMIT ?`)
	if err := s.db.SelectContext(ctx, &alerts, query, limit); err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return alerts, nil
}

func (s *Storage) MarkAlertRead(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE alerts SET is_read = ? WHERE id = ?`), true, id)
	if err != nil {
		return fmt.Errorf("mark alert %d read: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Storage) CountAlertsSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, s.db.Rebind(`SELECT COUNT(*) FROM alerts WHERE created_at >= ?`), since.UTC())
	return n, err
}

package db

import (
	"context"
	"fmt"

	"actms/models"
)

func (s *Storage) LogAudit(ctx context.Context, a *models.AuditLog) error {
	a.Timestamp = s.now()
	id, err := s.insert(ctx, s.db, `
        INSERT INTO audit_logs (action, actor, details, ip_address, user_agent, logged_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		a.Action, a.Actor, a.Details, a.IPAddress, a.UserAgent, a.Timestamp)
	if err != nil {
		return fmt.Errorf("insert audit %q: %w", a.Action, err)
	}
	a.ID = id
	return nil
}

// ListAuditLogs returns the most recent entries first.
func (s *Storage) ListAuditLogs(ctx context.Context, limit int) ([]models.AuditLog, error) {
	logs := []models.AuditLog{}
	query := s.db.Rebind(`
        SELECT id, action, actor, details, ip_address, user_agent, logged_at
        FROM audit_logs
        ORDER BY logged_at DESC, id DESC
        LIMIT ?`)
	if err := s.db.SelectContext(ctx, &logs, query, limit); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}

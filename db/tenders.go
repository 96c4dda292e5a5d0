package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"actms/models"
)

const tenderColumns = `id, title, description, department, region, budget, deadline,
requirements, status, version, created_at, updated_at`

func (s *Storage) CreateTender(ctx context.Context, t *models.Tender) error {
	now := s.now()
	t.Status = models.TenderActive
	t.Version = 1
	t.Deadline = t.Deadline.UTC()
	t.CreatedAt, t.UpdatedAt = now, now

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	t.ID, err = s.insert(ctx, tx, `
        INSERT INTO tenders
            (title, description, department, region, budget, deadline, requirements, status, version, created_at, updated_at)
        VALUES
            (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Title, t.Description, t.Department, t.Region, t.Budget, t.Deadline,
		t.Requirements, t.Status, t.Version, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert tender: %w", err)
	}
	// first version
	if err := s.saveTenderVersion(ctx, tx, t); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Storage) GetTender(ctx context.Context, id int) (*models.Tender, error) {
	t := &models.Tender{}
	query := s.db.Rebind(`SELECT ` + tenderColumns + ` FROM tenders WHERE id = ?`)
	if err := s.db.GetContext(ctx, t, query, id); err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

// UpdateTender writes t as a new version and snapshots it.
func (s *Storage) UpdateTender(ctx context.Context, t *models.Tender) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	t.Version++
	t.UpdatedAt = s.now()
	t.Deadline = t.Deadline.UTC()
	query := tx.Rebind(`
        UPDATE tenders
        SET title = ?, description = ?, department = ?, region = ?, budget = ?, deadline = ?,
            requirements = ?, status = ?, version = ?, updated_at = ?
        WHERE id = ?`)
	res, err := tx.ExecContext(ctx, query,
		t.Title, t.Description, t.Department, t.Region, t.Budget, t.Deadline,
		t.Requirements, t.Status, t.Version, t.UpdatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("update tender %d: %w", t.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := s.saveTenderVersion(ctx, tx, t); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Storage) saveTenderVersion(ctx context.Context, tx *sqlx.Tx, t *models.Tender) error {
	query := tx.Rebind(`
        INSERT INTO tender_versions
            (tender_id, version, title, description, department, region, budget, deadline, requirements, status, created_at)
        VALUES
            (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := tx.ExecContext(ctx, query,
		t.ID, t.Version, t.Title, t.Description, t.Department, t.Region, t.Budget,
		t.Deadline, t.Requirements, t.Status, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save tender %d version %d: %w", t.ID, t.Version, err)
	}
	return nil
}

func (s *Storage) GetTenderVersion(ctx context.Context, tenderID, version int) (*models.TenderVersion, error) {
	v := &models.TenderVersion{}
	query := s.db.Rebind(`
        SELECT tender_id, version, title, description, department, region, budget, deadline,
               requirements, status, created_at
        FROM tender_versions
        WHERE tender_id = ? AND version = ?`)
	if err := s.db.GetContext(ctx, v, query, tenderID, version); err != nil {
		return nil, notFound(err)
	}
	return v, nil
}

// ListTenders returns tenders newest first.
func (s *Storage) ListTenders(ctx context.Context, f models.TenderFilter, limit, offset int) ([]models.Tender, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Department != "" {
		where = append(where, "department = ?")
		args = append(args, f.Department)
	}
	if f.Region != "" {
		where = append(where, "region = ?")
		args = append(args, f.Region)
	}

	query := `SELECT ` + tenderColumns + ` FROM tenders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	tenders := []models.Tender{}
	if err := s.db.SelectContext(ctx, &tenders, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list tenders: %w", err)
	}
	return tenders, nil
}

func (s *Storage) CountTenders(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM tenders`)
	return n, err
}

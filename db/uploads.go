package db

import (
	"context"
	"fmt"

	"actms/models"
)

func (s *Storage) CreateUpload(ctx context.Context, u *models.Upload) error {
	u.CreatedAt = s.now()
	id, err := s.insert(ctx, s.db, `
        INSERT INTO uploads (original_filename, saved_filename, sha256, size, mime_type, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		u.OriginalFilename, u.SavedFilename, u.SHA256, u.Size, u.MimeType, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert upload: %w", err)
	}
	u.ID = id
	return nil
}

func (s *Storage) GetUploadByHash(ctx context.Context, sha256 string) (*models.Upload, error) {
	u := &models.Upload{}
	query := s.db.Rebind(`
        SELECT id, original_filename, saved_filename, sha256, size, mime_type, created_at
        FROM uploads WHERE sha256 = ?`)
	if err := s.db.GetContext(ctx, u, query, sha256); err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

package handlers

import (
	"context"

	"actms/models"
)

// StorageInterface is the part of db.Storage the API handlers use.
type StorageInterface interface {
	CreateTender(ctx context.Context, t *models.Tender) error
	GetTender(ctx context.Context, id int) (*models.Tender, error)
	UpdateTender(ctx context.Context, t *models.Tender) error
	GetTenderVersion(ctx context.Context, tenderID, version int) (*models.TenderVersion, error)
	ListTenders(ctx context.Context, f models.TenderFilter, limit, offset int) ([]models.Tender, error)

	CreateBid(ctx context.Context, b *models.Bid) error
	GetBid(ctx context.Context, id int) (*models.Bid, error)
	ListBids(ctx context.Context, limit, offset int) ([]models.Bid, error)
	ListBidsForTender(ctx context.Context, tenderID, limit, offset int) ([]models.Bid, error)
	ListSuspiciousBids(ctx context.Context, limit int) ([]models.Bid, error)
	UpdateBidAnomaly(ctx context.Context, id int, score float64, suspicious bool) error
	UpdateBidStatus(ctx context.Context, id int, status string) error

	CreateBidReview(ctx context.Context, r *models.BidReview) error
	ListBidReviews(ctx context.Context, bidID int) ([]models.BidReview, error)

	LogAudit(ctx context.Context, a *models.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]models.AuditLog, error)

	ListAlerts(ctx context.Context, limit int) ([]models.Alert, error)
	MarkAlertRead(ctx context.Context, id int) error

	GetUploadByHash(ctx context.Context, sha256 string) (*models.Upload, error)
}

package db

import (
	"context"
	"fmt"

	"actms/models"
)

const bidSelect = `
        SELECT b.id, b.tender_id, b.company_name, b.bid_amount, b.proposal_text, b.company_info,
               b.contact_email, b.file_hash, b.file_path, b.nlp_score, b.anomaly_score,
               b.is_suspicious, b.status, b.created_at,
               t.title AS tender_title, t.department AS department
        FROM bids b
        JOIN tenders t ON t.id = b.tender_id`

func (s *Storage) CreateBid(ctx context.Context, b *models.Bid) error {
	if b.Status == "" {
		b.Status = models.BidSubmitted
	}
	b.CreatedAt = s.now()
	id, err := s.insert(ctx, s.db, `
        INSERT INTO bids
            (tender_id, company_name, bid_amount, proposal_text, company_info, contact_email,
             file_hash, file_path, nlp_score, anomaly_score, is_suspicious, status, created_at)
        VALUES
            (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.TenderID, b.CompanyName, b.BidAmount, b.ProposalText, b.CompanyInfo, b.ContactEmail,
		b.FileHash, b.FilePath, b.NLPScore, b.AnomalyScore, b.IsSuspicious, b.Status, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert bid: %w", err)
	}
	b.ID = id
	return nil
}

func (s *Storage) GetBid(ctx context.Context, id int) (*models.Bid, error) {
	b := &models.Bid{}
	if err := s.db.GetContext(ctx, b, s.db.Rebind(bidSelect+` WHERE b.id = ?`), id); err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

func (s *Storage) ListBids(ctx context.Context, limit, offset int) ([]models.Bid, error) {
	bids := []models.Bid{}
	query := s.db.Rebind(bidSelect + ` ORDER BY b.created_at DESC, b.id DESC LIMIT ? OFFSET ?`)
	if err := s.db.SelectContext(ctx, &bids, query, limit, offset); err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	return bids, nil
}

func (s *Storage) ListBidsForTender(ctx context.Context, tenderID, limit, offset int) ([]models.Bid, error) {
	bids := []models.Bid{}
	query := s.db.Rebind(bidSelect + ` WHERE b.tender_id = ? ORDER BY b.created_at DESC, b.id DESC LIMIT ? OFFSET ?`)
	if err := s.db.SelectContext(ctx, &bids, query, tenderID, limit, offset); err != nil {
		return nil, fmt.Errorf("list bids for tender %d: %w", tenderID, err)
	}
	return bids, nil
}

// ListSuspiciousBids returns flagged bids, riskiest first.
func (s *Storage) ListSuspiciousBids(ctx context.Context, limit int) ([]models.Bid, error) {
	bids := []models.Bid{}
	query := s.db.Rebind(bidSelect + `
        WHERE b.is_suspicious = ?
        ORDER BY b.anomaly_score DESC, b.created_at DESC
        LIMIT ?`)
	if err := s.db.SelectContext(ctx, &bids, query, true, limit); err != nil {
		return nil, fmt.Errorf("list suspicious bids: %w", err)
	}
	return bids, nil
}

func (s *Storage) UpdateBidAnomaly(ctx context.Context, id int, score float64, suspicious bool) error {
	query := s.db.Rebind(`UPDATE bids SET anomaly_score = ?, is_suspicious = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, score, suspicious, id)
	if err != nil {
		return fmt.Errorf("update bid %d anomaly: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Storage) UpdateBidStatus(ctx context.Context, id int, status string) error {
	query := s.db.Rebind(`UPDATE bids SET status = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update bid %d status: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListScoringRows loads every bid with the tender fields used as model features, oldest first.
func (s *Storage) ListScoringRows(ctx context.Context) ([]models.ScoringRow, error) {
	rows := []models.ScoringRow{}
	query := `
        SELECT b.id, b.tender_id, b.company_name, b.bid_amount, b.proposal_text, b.nlp_score,
               b.is_suspicious, b.created_at,
               t.budget AS tender_budget, t.deadline AS tender_deadline
        FROM bids b
        JOIN tenders t ON t.id = b.tender_id
        ORDER BY b.created_at ASC, b.id ASC`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list scoring rows: %w", err)
	}
	return rows, nil
}

// CreateBidReview stores a verdict and applies it to the bid in one
// transaction: confirmed rejects the bid, cleared removes its flag.
func (s *Storage) CreateBidReview(ctx context.Context, r *models.BidReview) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var (
		query string
		args  []any
	)
	switch r.Verdict {
	case models.VerdictConfirmed:
		query, args = `UPDATE bids SET status = ? WHERE id = ?`, []any{models.BidRejected, r.BidID}
	case models.VerdictCleared:
		query, args = `UPDATE bids SET is_suspicious = ? WHERE id = ?`, []any{false, r.BidID}
	default:
		return fmt.Errorf("unknown verdict %q", r.Verdict)
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("apply %s verdict to bid %d: %w", r.Verdict, r.BidID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	r.CreatedAt = s.now()
	id, err := s.insert(ctx, tx, `
        INSERT INTO bid_reviews (bid_id, reviewer, verdict, note, created_at)
        VALUES (?, ?, ?, ?, ?)`,
		r.BidID, r.Reviewer, r.Verdict, r.Note, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert review for bid %d: %w", r.BidID, err)
	}
	r.ID = id
	return tx.Commit()
}

func (s *Storage) ListBidReviews(ctx context.Context, bidID int) ([]models.BidReview, error) {
	reviews := []models.BidReview{}
	query := s.db.Rebind(`
        SELECT id, bid_id, reviewer, verdict, note, created_at
        FROM bid_reviews
        WHERE bid_id = ?
        ORDER BY created_at DESC, id DESC`)
	if err := s.db.SelectContext(ctx, &reviews, query, bidID); err != nil {
		return nil, fmt.Errorf("list reviews for bid %d: %w", bidID, err)
	}
	return reviews, nil
}

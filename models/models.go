package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Tender statuses
const (
	TenderActive    = "active"
	TenderClosed    = "closed"
	TenderAwarded   = "awarded"
	TenderCancelled = "cancelled"
)

// Bid statuses
const (
	BidSubmitted   = "submitted"
	BidUnderReview = "under_review"
	BidAccepted    = "accepted"
	BidRejected    = "rejected"
)

// Review verdicts on a flagged bid
const (
	VerdictCleared   = "cleared"
	VerdictConfirmed = "confirmed"
)

// Tender is a government procurement request.
type Tender struct {
	ID           int             `db:"id" json:"id"`
	Title        string          `db:"title" json:"title"`
	Description  string          `db:"description" json:"description"`
	Department   string          `db:"department" json:"department"`
	Region       string          `db:"region" json:"region"`
	Budget       decimal.Decimal `db:"budget" json:"budget"`
	Deadline     time.Time       `db:"deadline" json:"deadline"`
	Requirements string          `db:"requirements" json:"requirements"`
	Status       string          `db:"status" json:"status"`
	Version      int             `db:"version" json:"version"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// TenderVersion is a snapshot of a tender taken every time it changes.
type TenderVersion struct {
	TenderID     int             `db:"tender_id" json:"tender_id"`
	Version      int             `db:"version" json:"version"`
	Title        string          `db:"title" json:"title"`
	Description  string          `db:"description" json:"description"`
	Department   string          `db:"department" json:"department"`
	Region       string          `db:"region" json:"region"`
	Budget       decimal.Decimal `db:"budget" json:"budget"`
	Deadline     time.Time       `db:"deadline" json:"deadline"`
	Requirements string          `db:"requirements" json:"requirements"`
	Status       string          `db:"status" json:"status"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// CompanyInfo is the free-form bidder profile stored as JSON next to a bid.
type CompanyInfo struct {
	Contact            string `json:"contact,omitempty" validate:"max=200"`
	Mobile             string `json:"mobile,omitempty" validate:"omitempty,in_mobile"`
	Address            string `json:"address,omitempty" validate:"max=500"`
	RegistrationNumber string `json:"registration_number,omitempty" validate:"max=100"`
	Website            string `json:"website,omitempty" validate:"omitempty,url"`
}

// Value implements driver.Valuer.
func (c CompanyInfo) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (c *CompanyInfo) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*c = CompanyInfo{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("company_info: unsupported type %T", src)
	}
	if len(raw) == 0 {
		*c = CompanyInfo{}
		return nil
	}
	return json.Unmarshal(raw, c)
}

// Bid is a vendor submission against a tender, scored for anomaly risk.
type Bid struct {
	ID           int             `db:"id" json:"id"`
	TenderID     int             `db:"tender_id" json:"tender_id"`
	CompanyName  string          `db:"company_name" json:"company_name"`
	BidAmount    decimal.Decimal `db:"bid_amount" json:"bid_amount"`
	ProposalText string          `db:"proposal_text" json:"proposal_text"`
	CompanyInfo  CompanyInfo     `db:"company_info" json:"company_info"`
	ContactEmail string          `db:"contact_email" json:"contact_email"`
	FileHash     string          `db:"file_hash" json:"file_hash,omitempty"`
	FilePath     string          `db:"file_path" json:"file_path,omitempty"`
	NLPScore     float64         `db:"nlp_score" json:"nlp_score"`
	AnomalyScore float64         `db:"anomaly_score" json:"anomaly_score"`
	IsSuspicious bool            `db:"is_suspicious" json:"is_suspicious"`
	Status       string          `db:"status" json:"status"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`

	// filled by joins
	TenderTitle string `db:"tender_title" json:"tender_title,omitempty"`
	Department  string `db:"department" json:"department,omitempty"`
}

// BidReview is a reviewer's verdict on a bid.
type BidReview struct {
	ID        int       `db:"id" json:"id"`
	BidID     int       `db:"bid_id" json:"bid_id"`
	Reviewer  string    `db:"reviewer" json:"reviewer"`
	Verdict   string    `db:"verdict" json:"verdict"`
	Note      string    `db:"note" json:"note"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AuditLog records who did what and when.
type AuditLog struct {
	ID        int       `db:"id" json:"id"`
	Action    string    `db:"action" json:"action"`
	Actor     string    `db:"actor" json:"actor"`
	Details   string    `db:"details" json:"details"`
	IPAddress string    `db:"ip_address" json:"ip_address"`
	UserAgent string    `db:"user_agent" json:"user_agent"`
	Timestamp time.Time `db:"logged_at" json:"timestamp"`
}

// Alert is a system notification, mostly raised for suspicious bids.
type Alert struct {
	ID          int       `db:"id" json:"id"`
	Type        string    `db:"type" json:"type"`
	Title       string    `db:"title" json:"title"`
	Message     string    `db:"message" json:"message"`
	Severity    string    `db:"severity" json:"severity"`
	RelatedID   *int      `db:"related_id" json:"related_id,omitempty"`
	RelatedType string    `db:"related_type" json:"related_type,omitempty"`
	IsRead      bool      `db:"is_read" json:"is_read"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Upload is a stored document.
type Upload struct {
	ID               int       `db:"id" json:"id"`
	OriginalFilename string    `db:"original_filename" json:"original_filename"`
	SavedFilename    string    `db:"saved_filename" json:"saved_filename"`
	SHA256           string    `db:"sha256" json:"sha256"`
	Size             int64     `db:"size" json:"size"`
	MimeType         string    `db:"mime_type" json:"mime_type"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// ScoringRow is a bid joined with the tender fields the fraud model needs.
type ScoringRow struct {
	BidID          int             `db:"id"`
	TenderID       int             `db:"tender_id"`
	CompanyName    string          `db:"company_name"`
	BidAmount      decimal.Decimal `db:"bid_amount"`
	ProposalText   string          `db:"proposal_text"`
	NLPScore       float64         `db:"nlp_score"`
	IsSuspicious   bool            `db:"is_suspicious"`
	CreatedAt      time.Time       `db:"created_at"`
	TenderBudget   decimal.Decimal `db:"tender_budget"`
	TenderDeadline time.Time       `db:"tender_deadline"`
}

// TenderFilter narrows tender listings. Empty fields match everything.
type TenderFilter struct {
	Status     string
	Department string
	Region     string
}

// CreateTenderRequest is the body of POST /api/tenders.
type CreateTenderRequest struct {
	Title        string          `json:"title" validate:"required,max=200"`
	Description  string          `json:"description" validate:"max=5000"`
	Department   string          `json:"department" validate:"required,max=100"`
	Region       string          `json:"region" validate:"required,max=100"`
	Deadline     string          `json:"deadline" validate:"required"`
	Budget       decimal.Decimal `json:"budget" validate:"gt=0"`
	Requirements string          `json:"requirements" validate:"max=5000"`
}

// UpdateTenderRequest is the body of PATCH /api/tenders/{tenderId}.
// Nil fields are left unchanged.
type UpdateTenderRequest struct {
	Title        *string          `json:"title" validate:"omitempty,min=1,max=200"`
	Description  *string          `json:"description" validate:"omitempty,max=5000"`
	Department   *string          `json:"department" validate:"omitempty,min=1,max=100"`
	Region       *string          `json:"region" validate:"omitempty,min=1,max=100"`
	Deadline     *string          `json:"deadline"`
	Budget       *decimal.Decimal `json:"budget"`
	Requirements *string          `json:"requirements" validate:"omitempty,max=5000"`
}

// CreateBidRequest is the body of POST /api/bids.
type CreateBidRequest struct {
	TenderID     int             `json:"tender_id" validate:"required,gt=0"`
	CompanyName  string          `json:"company_name" validate:"required,max=200"`
	BidAmount    decimal.Decimal `json:"bid_amount" validate:"gt=0"`
	ProposalText string          `json:"proposal_text" validate:"required,max=20000"`
	CompanyInfo  CompanyInfo     `json:"company_info"`
	ContactEmail string          `json:"contact_email" validate:"omitempty,email"`
	FileHash     string          `json:"file_hash" validate:"omitempty,len=64,hexadecimal"`
}

// CreateReviewRequest is the body of POST /api/bids/{bidId}/reviews.
type CreateReviewRequest struct {
	Verdict string `json:"verdict" validate:"required,oneof=cleared confirmed"`
	Note    string `json:"note" validate:"max=2000"`
}

var deadlineLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ErrBadDeadline is returned when a deadline matches none of the accepted layouts.
var ErrBadDeadline = errors.New("deadline must be a date (YYYY-MM-DD) or timestamp")

// ParseDeadline accepts the layouts the browser forms and API clients send.
// Date-only values mean the end of that day.
func ParseDeadline(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range deadlineLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if layout == "2006-01-02" {
			t = t.Add(24*time.Hour - time.Second)
		}
		return t.UTC(), nil
	}
	return time.Time{}, ErrBadDeadline
}

// RiskBucket counts bids per anomaly score band.
type RiskBucket struct {
	RiskLevel string `db:"risk_level" json:"risk_level"`
	Count     int    `db:"count" json:"count"`
}

// ValueBucket counts tenders per budget band.
type ValueBucket struct {
	ValueRange string `db:"value_range" json:"value_range"`
	Count      int    `db:"count" json:"count"`
}

// StatusCount counts tenders per status.
type StatusCount struct {
	Status string `db:"status" json:"status"`
	Count  int    `db:"count" json:"count"`
}

// TimelinePoint is one day of tender and bid activity.
type TimelinePoint struct {
	Date    string `json:"date"`
	Tenders int    `json:"tenders"`
	Bids    int    `json:"bids"`
}

// SuspiciousBidSummary is a flagged bid as shown on the dashboard.
type SuspiciousBidSummary struct {
	ID           int             `db:"id" json:"id"`
	CompanyName  string          `db:"company_name" json:"company_name"`
	BidAmount    decimal.Decimal `db:"bid_amount" json:"bid_amount"`
	AnomalyScore float64         `db:"anomaly_score" json:"anomaly_score"`
	TenderTitle  string          `db:"tender_title" json:"tender_title"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// DashboardStats is the payload of GET /api/dashboard.
type DashboardStats struct {
	TotalTenders      int                    `json:"total_tenders"`
	ActiveBids        int                    `json:"active_bids"`
	SuspiciousBids    int                    `json:"suspicious_bids"`
	RecentAlerts      int                    `json:"recent_alerts"`
	TenderStatus      []StatusCount          `json:"tender_status_distribution"`
	RiskDistribution  []RiskBucket           `json:"risk_distribution"`
	ValueDistribution []ValueBucket          `json:"tender_value_distribution"`
	Timeline          []TimelinePoint        `json:"activity_timeline"`
	RecentSuspicious  []SuspiciousBidSummary `json:"recent_suspicious_bids"`
	GeneratedAt       time.Time              `json:"generated_at"`
}

package alerts

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"actms/models"
)

// Alert types and severities
const (
	TypeAnomaly  = "anomaly_detection"
	TypeModel    = "model"
	SeverityLow  = "low"
	SeverityMed  = "medium"
	SeverityHigh = "high"
	RelatedBid   = "bid"
)

type Store interface {
	CreateAlert(ctx context.Context, a *models.Alert) error
}

// Notifier stores alerts and pushes them to the hub.
type Notifier struct {
	store Store
	hub   *Hub
	log   *zap.Logger
}

// NewNotifier returns a notifier; hub may be nil when streaming is disabled.
func NewNotifier(store Store, hub *Hub, log *zap.Logger) *Notifier {
	return &Notifier{store: store, hub: hub, log: log.Named("alerts")}
}

// Raise persists a and then publishes it.
func (n *Notifier) Raise(ctx context.Context, a *models.Alert) error {
	if a.Severity == "" {
		a.Severity = SeverityMed
	}
	if err := n.store.CreateAlert(ctx, a); err != nil {
		return fmt.Errorf("create alert: %w", err)
	}
	n.log.Info("alert raised",
		zap.Int("alert_id", a.ID),
		zap.String("type", a.Type),
		zap.String("severity", a.Severity))
	if n.hub != nil {
		n.hub.Publish(Event{Type: EventAlert, Alert: a, Timestamp: a.CreatedAt})
	}
	return nil
}

// SuspiciousBid raises the high severity alert for a flagged bid.
func (n *Notifier) SuspiciousBid(ctx context.Context, bidID int, score float64) (*models.Alert, error) {
	id := bidID
	a := &models.Alert{
		Type:        TypeAnomaly,
		Title:       "Suspicious Bid Detected",
		Message:     fmt.Sprintf("Bid #%d flagged as suspicious with anomaly score %.3f", bidID, score),
		Severity:    SeverityHigh,
		RelatedID:   &id,
		RelatedType: RelatedBid,
	}
	return a, n.Raise(ctx, a)
}

// ModelTrained raises a low severity notice after the fraud model is refit.
func (n *Notifier) ModelTrained(ctx context.Context, source string, samples, outliers int) (*models.Alert, error) {
	a := &models.Alert{
		Type:     TypeModel,
		Title:    "Fraud Model Retrained",
		Message:  fmt.Sprintf("Model retrained on %s data: %d samples, %d outliers", source, samples, outliers),
		Severity: SeverityLow,
	}
	return a, n.Raise(ctx, a)
}

//go:build integration

package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"

	"actms/db"
	"actms/db/migrations"
	"actms/models"
)

func newPostgresStorage(t *testing.T) *db.Storage {
	t.Helper()
	ctx := context.Background()

	pg, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("actms_test"),
		postgres.WithUsername("actms"),
		postgres.WithPassword("actms"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, pg)
	require.NoError(t, err)

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	conn, err := db.Open(ctx, db.DriverPostgres, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrations.Run(ctx, conn.DB, db.DriverPostgres, zap.NewNop()))
	return db.NewStorage(conn)
}

func TestPostgresStorage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test")
	}
	ctx := context.Background()
	s := newPostgresStorage(t)

	tender := sampleTender("Water main", 500000)
	require.NoError(t, s.CreateTender(ctx, tender))

	tender.Title = "Water main, phase 2"
	require.NoError(t, s.UpdateTender(ctx, tender))
	require.Equal(t, 2, tender.Version)

	v1, err := s.GetTenderVersion(ctx, tender.ID, 1)
	require.NoError(t, err)
	require.Equal(t, "Water main", v1.Title)
	require.True(t, v1.Budget.Equal(tender.Budget))

	bid := sampleBid(tender.ID, "Acme Pipes")
	require.NoError(t, s.CreateBid(ctx, bid))
	require.NoError(t, s.UpdateBidAnomaly(ctx, bid.ID, 0.81, true))

	got, err := s.GetBid(ctx, bid.ID)
	require.NoError(t, err)
	require.Equal(t, "+91 98765 43210", got.CompanyInfo.Mobile)
	require.True(t, got.IsSuspicious)

	flagged, err := s.ListSuspiciousBids(ctx, 10)
	require.NoError(t, err)
	require.Len(t, flagged, 1)

	require.NoError(t, s.LogAudit(ctx, &models.AuditLog{Action: "tender_created", Actor: "officer"}))
	logs, err := s.ListAuditLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)

	risk, err := s.RiskDistribution(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, risk)

	values, err := s.TenderValueDistribution(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, values)

	timeline, err := s.ActivityTimeline(ctx, 7)
	require.NoError(t, err)
	require.Len(t, timeline, 1)
	require.Equal(t, time.Now().UTC().Format(time.DateOnly), timeline[0].Date)

	_, err = s.GetTender(ctx, 9999)
	require.ErrorIs(t, err, db.ErrNotFound)
}

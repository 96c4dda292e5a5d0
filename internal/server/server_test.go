package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"actms/db"
	"actms/db/migrations"
	"actms/internal/alerts"
	"actms/internal/auth"
	"actms/internal/config"
	"actms/internal/handlers"
	"actms/internal/metrics"
	"actms/internal/uploads"
	"actms/internal/web"
)

const testSecret = "test-secret"

type fixture struct {
	handler   http.Handler
	auth      *auth.Authenticator
	uploadDir string
}

func newFixture(t *testing.T, secret string) *fixture {
	t.Helper()
	ctx := context.Background()
	log := zap.NewNop()

	dsn := "file:" + filepath.Join(t.TempDir(), "actms.db") + "?_pragma=foreign_keys(1)"
	conn, err := db.Open(ctx, db.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrations.Run(ctx, conn.DB, db.DriverSQLite, log))
	store := db.NewStorage(conn)

	dir := t.TempDir()
	files, err := uploads.NewProcessor(dir, 1<<20, store, log)
	require.NoError(t, err)

	site, err := web.New(log)
	require.NoError(t, err)

	hub := alerts.NewHub(log, nil)
	authn := auth.New(secret, time.Hour)

	cfg := config.Default().Server
	srv := New(cfg, Deps{
		API:     handlers.NewHandler(store, handlers.Services{Uploads: files}, log),
		Auth:    authn,
		Hub:     hub,
		Metrics: metrics.New(hub.Clients),
		Files:   files,
		Site:    site,
	}, log)

	return &fixture{handler: srv.Handler(), auth: authn, uploadDir: dir}
}

func (f *fixture) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

const tenderBody = `{"title":"Bridge repair","department":"Public Works","region":"North",
	"deadline":"2099-01-31","budget":250000}`

func TestPingAndPages(t *testing.T) {
	f := newFixture(t, "")

	rr := f.do(t, http.MethodGet, "/api/ping", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
	require.NotEmpty(t, rr.Header().Get("X-Request-Id"))

	rr = f.do(t, http.MethodGet, "/dashboard", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "<title>Dashboard")

	rr = f.do(t, http.MethodGet, "/missing", "", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRequestIDEchoed(t *testing.T) {
	f := newFixture(t, "")

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set("X-Request-Id", "trace-123")
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "trace-123", rr.Header().Get("X-Request-Id"))
}

func TestOpenAccessWithoutSecret(t *testing.T) {
	f := newFixture(t, "")

	rr := f.do(t, http.MethodPost, "/api/tenders", tenderBody, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = f.do(t, http.MethodGet, "/api/tenders", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "Bridge repair")

	rr = f.do(t, http.MethodGet, "/api/audit", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"actor":"anonymous"`)
}

func TestRoleChecks(t *testing.T) {
	f := newFixture(t, testSecret)

	admin, err := f.auth.Issue("officer@gov", auth.RoleAdmin)
	require.NoError(t, err)
	vendor, err := f.auth.Issue("acme", auth.RoleVendor)
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		token  string
		want   int
	}{
		{"anonymous read", http.MethodGet, "/api/tenders", "", "", http.StatusOK},
		{"anonymous create", http.MethodPost, "/api/tenders", tenderBody, "", http.StatusUnauthorized},
		{"vendor create", http.MethodPost, "/api/tenders", tenderBody, vendor, http.StatusForbidden},
		{"admin create", http.MethodPost, "/api/tenders", tenderBody, admin, http.StatusCreated},
		{"garbage token", http.MethodGet, "/api/tenders", "", "not-a-jwt", http.StatusUnauthorized},
		{"vendor audit", http.MethodGet, "/api/audit", "", vendor, http.StatusForbidden},
		{"vendor bid status", http.MethodPut, "/api/bids/1/status?status=accepted", "", vendor, http.StatusForbidden},
		{"vendor train", http.MethodPost, "/api/model/train", "", vendor, http.StatusForbidden},
		{"vendor faq", http.MethodPost, "/api/chat/faq", `{"question":"q","answer":"a"}`, vendor, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.do(t, tt.method, tt.path, tt.body, tt.token)
			require.Equal(t, tt.want, rr.Code, rr.Body.String())
		})
	}

	rr := f.do(t, http.MethodGet, "/api/audit", "", admin)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"actor":"officer@gov"`)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, "")

	req := httptest.NewRequest(http.MethodOptions, "/api/tenders", nil)
	req.Header.Set("Origin", "https://portal.example.gov")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, "")
	f.do(t, http.MethodGet, "/api/ping", "", "")
	f.do(t, http.MethodGet, "/api/tenders/42", "", "")

	rr := f.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	require.Contains(t, body, `actms_http_requests_total{code="200",method="GET",route="/api/ping"} 1`)
	require.Contains(t, body, `actms_http_requests_total{code="404",method="GET",route="/api/tenders/{tenderId}"} 1`)
	require.Contains(t, body, "actms_alert_stream_clients 0")
}

func TestServeUpload(t *testing.T) {
	f := newFixture(t, "")
	require.NoError(t, os.WriteFile(filepath.Join(f.uploadDir, "offer_1.txt"), []byte("price list"), 0o644))

	rr := f.do(t, http.MethodGet, "/uploads/offer_1.txt", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "price list", rr.Body.String())
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = f.do(t, http.MethodGet, "/uploads/missing.txt", "", "")
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(t, http.MethodGet, "/uploads/..%2Factms.db", "", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRunStopsOnCancel(t *testing.T) {
	log := zap.NewNop()
	cfg := config.Default().Server
	cfg.Address = "127.0.0.1:0"
	srv := New(cfg, Deps{
		API:  handlers.NewHandler(nil, handlers.Services{}, log),
		Auth: auth.New("", time.Hour),
		Hub:  alerts.NewHub(log, nil),
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

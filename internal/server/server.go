// Package server assembles the HTTP router and runs it next to the alert hub.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"actms/internal/alerts"
	"actms/internal/auth"
	"actms/internal/config"
	"actms/internal/handlers"
	"actms/internal/metrics"
	"actms/internal/web"
)

// FileStore opens stored uploads by their saved name.
type FileStore interface {
	Open(saved string) (*os.File, error)
}

// Deps are the components the router is built from.
type Deps struct {
	API     *handlers.Handler
	Auth    *auth.Authenticator
	Hub     *alerts.Hub
	Metrics *metrics.Metrics
	Files   FileStore
	Site    *web.Site
}

type Server struct {
	cfg        config.ServerConfig
	deps       Deps
	router     chi.Router
	httpServer *http.Server
	log        *zap.Logger
}

func New(cfg config.ServerConfig, deps Deps, log *zap.Logger) *Server {
	s := &Server{cfg: cfg, deps: deps, log: log.Named("server")}
	s.router = s.buildRouter()
	s.httpServer = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) buildRouter() chi.Router {
	h := s.deps.API
	a := s.deps.Auth

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(corsOptions(s.cfg.CORSOrigins)))

	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	}
	// websocket connections outlive the request timeout
	if s.deps.Hub != nil {
		r.Handle("/ws/alerts", s.deps.Hub)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
		r.Use(a.Middleware)

		admin := a.Require(auth.RoleAdmin)
		reviewer := a.Require(auth.RoleReviewer, auth.RoleAdmin)

		r.Route("/api", func(r chi.Router) {
			r.Get("/ping", h.PingHandler)
			r.Get("/dashboard", h.DashboardHandler)

			r.Route("/tenders", func(r chi.Router) {
				r.Get("/", h.GetTendersHandler)
				r.Get("/{tenderId}", h.GetTenderHandler)
				r.Get("/{tenderId}/bids", h.GetBidsForTenderHandler)
				r.Group(func(r chi.Router) {
					r.Use(admin)
					r.Post("/", h.CreateTenderHandler)
					r.Patch("/{tenderId}", h.EditTenderHandler)
					r.Put("/{tenderId}/status", h.ChangeTenderStatusHandler)
					r.Put("/{tenderId}/rollback/{version}", h.RollbackTenderHandler)
				})
			})

			r.Route("/bids", func(r chi.Router) {
				r.Get("/", h.GetBidsHandler)
				r.Post("/", h.CreateBidHandler)
				r.Get("/suspicious", h.GetSuspiciousBidsHandler)
				r.Get("/{bidId}", h.GetBidHandler)
				r.Get("/{bidId}/reviews", h.GetBidReviewsHandler)
				r.Group(func(r chi.Router) {
					r.Use(reviewer)
					r.Put("/{bidId}/status", h.UpdateBidStatusHandler)
					r.Post("/{bidId}/reviews", h.CreateBidReviewHandler)
				})
			})

			r.Get("/alerts", h.GetAlertsHandler)
			r.Put("/alerts/{alertId}/read", h.MarkAlertReadHandler)

			r.Post("/chat", h.ChatHandler)
			r.With(admin).Post("/chat/faq", h.AddFAQHandler)

			r.With(admin).Post("/model/train", h.TrainModelHandler)
			r.Get("/model/metrics", h.ModelMetricsHandler)
			r.Get("/model/features", h.FeatureAnalysisHandler)
			r.Post("/nlp/analyze", h.AnalyzeProposalHandler)

			r.Post("/upload", h.UploadHandler)
			r.With(admin).Get("/audit", h.GetAuditLogsHandler)
		})

		if s.deps.Files != nil {
			r.Get("/uploads/{filename}", s.serveUpload)
		}
		if s.deps.Site != nil {
			s.deps.Site.RegisterRoutes(r)
		}
	})

	return r
}

func corsOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: !slices.Contains(origins, "*"),
		MaxAge:           300,
	}
}

// observe logs every request and feeds the HTTP metrics.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		w.Header().Set(middleware.RequestIDHeader, middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		if s.deps.Metrics != nil {
			s.deps.Metrics.ObserveRequest(route, r.Method, status, elapsed)
		}
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", elapsed),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) serveUpload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	f, err := s.deps.Files.Open(name)
	if errors.Is(err, os.ErrNotExist) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.log.Error("open upload failed", zap.String("file", name), zap.Error(err))
		http.Error(w, "Failed to open file", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// Run serves HTTP and the alert hub until ctx is cancelled, then shuts the
// listener down within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if s.deps.Hub != nil {
		g.Go(func() error {
			s.deps.Hub.Run(ctx)
			return nil
		})
	}
	g.Go(func() error {
		s.log.Info("listening", zap.String("address", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

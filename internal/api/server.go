package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/edvin/transferd/internal/api/handler"
	mw "github.com/edvin/transferd/internal/api/middleware"
	"github.com/edvin/transferd/internal/core"
)

type Server struct {
	router   chi.Router
	logger   zerolog.Logger
	services *core.Services
	pool     *pgxpool.Pool
}

func NewServer(logger zerolog.Logger, pool *pgxpool.Pool) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		logger:   logger,
		services: core.NewServices(pool),
		pool:     pool,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", promhttp.Handler())
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	s.router.Route("/api/v1", func(r chi.Router) {
		group := handler.NewGroup(s.services.Group)
		r.Get("/groups", group.List)
		r.Post("/groups", group.Create)
		r.Get("/groups/{name}", group.Get)
		r.Delete("/groups/{name}", group.Delete)

		transfer := handler.NewTransfer(s.services.Transfer, s.services.Group)
		r.Get("/groups/{name}/transfers", transfer.ListByGroup)
		r.Post("/groups/{name}/transfers", transfer.Create)
		r.Post("/transfers/claim", transfer.Claim)
		r.Get("/transfers/{id}", transfer.Get)
		r.Delete("/transfers/{id}", transfer.Delete)
		r.Post("/transfers/{id}/cancel", transfer.Cancel)
		r.Post("/transfers/{id}/complete", transfer.Complete)
		r.Post("/transfers/{id}/fail", transfer.Fail)
		r.Post("/transfers/{id}/retry", transfer.Retry)
		r.Post("/transfers/{id}/progress", transfer.Progress)
		r.Get("/transfers/{id}/logs", transfer.ListLogs)
		r.Post("/transfers/{id}/logs", transfer.AppendLog)

		schedule := handler.NewSchedule(s.services.Schedule, s.services.Group)
		r.Get("/groups/{name}/schedules", schedule.ListByGroup)
		r.Post("/groups/{name}/schedules", schedule.Create)
		r.Get("/schedules/{id}", schedule.Get)
		r.Delete("/schedules/{id}", schedule.Delete)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.pool.Ping(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("db unreachable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

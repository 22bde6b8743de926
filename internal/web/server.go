// Package web exposes the inventory engine over a JSON HTTP API.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/netgrid-io/netgrid/internal/app"
	"github.com/netgrid-io/netgrid/internal/meta"
	"github.com/netgrid-io/netgrid/internal/object"
	"github.com/netgrid-io/netgrid/internal/query"
)

// Server serves the inventory API.
type Server struct {
	meta     *meta.Manager
	objects  *object.Mapper
	engine   *query.Engine
	services *app.Services
	auth     *AuthService
	logger   *zap.Logger

	httpServer *http.Server
}

// NewServer wires the service layers into an HTTP server listening on addr.
func NewServer(addr string, mm *meta.Manager, om *object.Mapper, qe *query.Engine, svc *app.Services, auth *AuthService, logger *zap.Logger) *Server {
	s := &Server{
		meta:     mm,
		objects:  om,
		engine:   qe,
		services: svc,
		auth:     auth,
		logger:   logger,
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Post("/api/sessions", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.auth.RequireAuth)

		r.Route("/api/classes", func(r chi.Router) {
			r.Get("/", s.handleListClasses)
			r.Post("/", s.handleCreateClass)
			r.Get("/{className}", s.handleGetClass)
			r.Patch("/{className}", s.handleUpdateClass)
			r.Delete("/{className}", s.handleDeleteClass)
			r.Get("/{className}/subclasses", s.handleGetSubClasses)
			r.Post("/{className}/attributes", s.handleCreateAttribute)
			r.Patch("/{className}/attributes/{attrName}", s.handleUpdateAttribute)
			r.Delete("/{className}/attributes/{attrName}", s.handleDeleteAttribute)
			r.Get("/{className}/possible-children", s.handleGetPossibleChildren)
			r.Post("/{className}/possible-children", s.handleAddPossibleChildren)
		})

		r.Route("/api/objects", func(r chi.Router) {
			r.Post("/", s.handleCreateObject)
			r.Get("/{className}/{id}", s.handleGetObject)
			r.Patch("/{className}/{id}", s.handleUpdateObject)
			r.Delete("/{className}/{id}", s.handleDeleteObject)
			r.Get("/{className}/{id}/children", s.handleGetChildren)
		})

		r.Route("/api/list-types", func(r chi.Router) {
			r.Post("/", s.handleCreateListTypeItem)
			r.Get("/{className}", s.handleGetListTypeItems)
		})

		r.Post("/api/queries/execute", s.handleExecuteQuery)
		r.Route("/api/queries", func(r chi.Router) {
			r.Get("/", s.handleListQueries)
			r.Post("/", s.handleCreateQuery)
			r.Delete("/{id}", s.handleDeleteQuery)
		})

		r.Route("/api/pools", func(r chi.Router) {
			r.Get("/", s.handleGetRootPools)
			r.Post("/", s.handleCreatePool)
			r.Get("/{id}", s.handleGetPool)
			r.Delete("/{id}", s.handleDeletePool)
		})

		r.Route("/api/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Post("/", s.handleCreateTask)
			r.Delete("/{id}", s.handleDeleteTask)
		})
	})

	return r
}

// logRequests emits one structured log line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

// ListenAndServe runs the server until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/pagetext/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/pagetext/internal/api/middlewares"
	"github.com/markdave123-py/pagetext/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *slog.Logger
}

// NewServer builds and wires all routes.
func NewServer(port string, jwtSecret []byte, users *services.UserService, runs *services.RunService, queries *services.QueryService, log *slog.Logger) *Server {
	httpSrv := &http.Server{
		Addr:              ":" + port,
		Handler:           newRouter(jwtSecret, users, runs, queries, log),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &Server{httpServer: httpSrv, log: log.With("component", "http")}
}

func newRouter(jwtSecret []byte, users *services.UserService, runs *services.RunService, queries *services.QueryService, log *slog.Logger) http.Handler {
	authHandler := handlers.NewAuthHandler(users, jwtSecret, log)
	extractionHandler := handlers.NewExtractionHandler(runs, log)
	queryHandler := handlers.NewQueryHandler(queries, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/signup", authHandler.Signup)
		api.Post("/login", authHandler.Login)

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware(jwtSecret))
			protected.Post("/extractions", extractionHandler.CreateExtraction)
			protected.Get("/extractions", extractionHandler.ListExtractions)
			protected.Get("/extractions/{id}", extractionHandler.GetExtraction)
			protected.Get("/extractions/{id}/text", extractionHandler.GetExtractionText)
			protected.Delete("/extractions/{id}", extractionHandler.CancelExtraction)
			protected.Post("/extractions/{id}/query", queryHandler.Query)
		})
	})

	return r
}

// requestLogger logs one structured record per request.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	log = log.With("component", "http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"request_id", middleware.GetReqID(r.Context()),
				"elapsed", time.Since(start).Round(time.Millisecond),
			)
		})
	}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

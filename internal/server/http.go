package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/learncheck/learncheck/internal/assessment"
	"github.com/learncheck/learncheck/internal/cache"
	"github.com/learncheck/learncheck/internal/config"
	"github.com/learncheck/learncheck/internal/logging"
	"github.com/learncheck/learncheck/internal/progress"
)

// Handlers groups the domain HTTP handlers mounted under /api/v1.
type Handlers struct {
	Assessment *assessment.HTTPHandler
	Progress   *progress.HTTPHandler
}

// NewHTTPServer wires the API router: health, metrics, CORS, request logging,
// and the versioned assessment/progress endpoints.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, store *cache.Store, pool *pgxpool.Pool, h Handlers) *http.Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := pingDependencies(req.Context(), store, pool); err != nil {
			logger.Warn().Err(err).Msg("readiness dependency ping failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"degraded"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/assessment", h.Assessment.HandleGetAssessment)
		r.Post("/assessment/prepare", h.Assessment.HandlePrepare)
		r.Post("/assessment/feedback", h.Assessment.HandleFeedback)
		r.Get("/preferences", h.Assessment.HandleGetPreferences)
		r.Get("/progress", h.Progress.HandleGet)
		r.Post("/progress", h.Progress.HandlePost)
	})

	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// requestLogger attaches the service logger to each request context and
// emits one line per completed request.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			ctx := logging.IntoContext(r.Context(), logger)
			next.ServeHTTP(ww, r.WithContext(ctx))

			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(ctx)).
				Msg("request")
		})
	}
}

// pingDependencies checks the backing stores the API reads through. Redis
// unavailability is reported but never blocks startup; pool may be nil when
// Postgres is not configured.
func pingDependencies(ctx context.Context, store *cache.Store, pool *pgxpool.Pool) error {
	if err := store.Ping(ctx); err != nil {
		return err
	}
	if pool != nil {
		if err := pool.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

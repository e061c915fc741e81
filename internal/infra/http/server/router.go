// Package server wires the HTTP handlers into a chi router.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xavierca1/crm-dwh-sync/internal/infra/http/handlers"
	"github.com/xavierca1/crm-dwh-sync/internal/infra/http/middleware"
)

type Deps struct {
	Reports  *handlers.ReportHandler
	Health   *handlers.HealthHandler
	Sync     *handlers.SyncHandler
	Metrics  *middleware.HTTPMetrics
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger

	// TrustProxy enables chi RealIP, so client IPs come from forwarding headers.
	TrustProxy bool
}

func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if d.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	if d.Metrics != nil {
		r.Use(d.Metrics.Handler)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
	}))

	if d.Health != nil {
		r.Get("/health", d.Health.Handle)
	}
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}
	if d.Reports != nil {
		r.Route("/analytics", func(r chi.Router) {
			r.Get("/conversion", d.Reports.Conversion)
			r.Get("/deals-performance", d.Reports.DealsPerformance)
		})
	}
	if d.Sync != nil {
		r.Post("/sync", d.Sync.Trigger)
	}
	return r
}

// ListenAndServe serves h on port until ctx ends, then shuts down gracefully.
func ListenAndServe(ctx context.Context, port int, h http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http: listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("http: shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

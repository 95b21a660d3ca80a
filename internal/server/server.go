// internal/server/server.go
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"bloodbank/internal/campaign"
	"bloodbank/internal/dashboard"
	"bloodbank/internal/donation"
	"bloodbank/internal/donor"
	"bloodbank/internal/hospital"
	"bloodbank/internal/httpx"
	"bloodbank/internal/inventory"
	"bloodbank/internal/patient"
	"bloodbank/internal/session"
	"bloodbank/internal/transfusion"
)

// Pinger reports whether a backing store answers.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handlers are the HTTP surfaces mounted under /api/v1.
type Handlers struct {
	Session     *session.Handler
	Hospital    *hospital.Handler
	Donor       *donor.Handler
	Campaign    *campaign.Handler
	Patient     *patient.Handler
	Donation    *donation.Handler
	Inventory   *inventory.Handler
	Transfusion *transfusion.Handler
	Dashboard   *dashboard.Handler
}

// NewRouter wires every handler behind the shared middleware stack. Only
// login and the health check are reachable without a session.
func NewRouter(h Handlers, checks map[string]Pinger, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(tracing)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthz(checks, logger))

	r.Route("/api/v1", func(r chi.Router) {
		h.Session.Routes(r)

		r.Group(func(r chi.Router) {
			r.Use(h.Session.Authenticate)
			admin := h.Session.RequireAdmin

			h.Hospital.Routes(r, admin)
			h.Donor.Routes(r, admin)
			h.Campaign.Routes(r)
			h.Patient.Routes(r)
			h.Donation.Routes(r)
			h.Inventory.Routes(r)
			h.Transfusion.Routes(r, admin)
			h.Dashboard.Routes(r)
		})
	})
	return r
}

func healthz(checks map[string]Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{}
		healthy := true
		for name, p := range checks {
			if err := p.PingContext(ctx); err != nil {
				logger.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
				status[name] = "down"
				healthy = false
				continue
			}
			status[name] = "up"
		}

		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		httpx.WriteJSON(w, code, map[string]any{"healthy": healthy, "dependencies": status})
	}
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

func tracing(next http.Handler) http.Handler {
	tracer := otel.Tracer("bloodbank/http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
				attribute.String("request.id", middleware.GetReqID(r.Context())),
			),
		)
		defer span.End()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		if route := chi.RouteContext(r.Context()); route != nil {
			if pattern := route.RoutePattern(); pattern != "" {
				span.SetName(r.Method + " " + pattern)
			}
		}
		span.SetAttributes(attribute.Int("http.response.status_code", ww.Status()))
		if ww.Status() >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(ww.Status()))
		}
	})
}

// Run serves handler on addr until ctx is cancelled, then drains in-flight
// requests for up to shutdownTimeout.
func Run(ctx context.Context, addr string, handler http.Handler, shutdownTimeout time.Duration, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

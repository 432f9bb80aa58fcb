package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/baechuer/ticketqueue/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Pinger lets readyz probe a dependency without the rest package taking a
// hard import on a concrete driver.
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterDeps struct {
	Handler  *Handler
	Limiter  RateLimiter
	Ready    Pinger
	RLLimit  int
	RLWindow time.Duration
}

// NewRouter wires spec §6's six external interfaces plus operational
// endpoints, grounded on the sibling services' chi setup: request id and
// access logging first, then panic recovery, then rate limiting and
// security headers, then the routed API surface.
func NewRouter(d RouterDeps) http.Handler {
	if d.Handler == nil {
		panic("rest.NewRouter: nil handler")
	}

	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(HTTPLogger)
	r.Use(middleware.Recoverer)
	r.Use(RateLimitMiddleware(d.Limiter, d.RLLimit, d.RLWindow))
	r.Use(SecurityHeaders)

	r.Get("/healthz", healthzHandler)
	r.Get("/readyz", readyzHandler(d.Ready))
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/events", d.Handler.CreateEvent)
		r.Get("/events/{eventID}/stats", d.Handler.EventQueueStats)

		r.Post("/intents", d.Handler.SubmitIntent)
		r.Delete("/intents/{intentID}", d.Handler.CancelIntent)
		r.Get("/intents/{intentID}", d.Handler.IntentStatus)
		r.Get("/intents/{intentID}/completion", d.Handler.IntentCompletion)

		r.Get("/processor/health", d.Handler.ProcessorHealth)
	})

	return r
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func readyzHandler(pinger Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := make(map[string]string)
		healthy := true
		if pinger != nil {
			if err := pinger.Ping(ctx); err != nil {
				checks["dependencies"] = "unhealthy: " + err.Error()
				healthy = false
			} else {
				checks["dependencies"] = "healthy"
			}
			metrics.SetDependencyHealth("postgres", healthy)
		} else {
			checks["dependencies"] = "not_configured"
		}

		checks["status"] = "ready"
		if !healthy {
			checks["status"] = "not_ready"
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(checks)
	}
}

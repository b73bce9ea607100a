package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/netip"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"webgate/internal/gate"
	"webgate/internal/platform/config"
	"webgate/internal/platform/metrics"
	"webgate/internal/session"
	"webgate/internal/throttle"
	"webgate/pkg/platform/middleware/metadata"
	request "webgate/pkg/platform/middleware/request"
	"webgate/pkg/platform/middleware/requesttime"
	"webgate/pkg/platform/middleware/token"
)

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

// Deps are the collaborators the router wires together.
type Deps struct {
	Gate         *gate.Gate
	Sessions     *session.Manager
	People       PersonStore
	Translator   Translator
	GateConfig   config.GateConfig
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	LoginLimiter throttle.Limiter
	Gatherer     prometheus.Gatherer
	MetricsToken string
	Health       map[string]HealthCheck
	// TrustedProxies are the peers whose X-Forwarded-For is believed when
	// deriving the client IP. Empty means RemoteAddr is used as is.
	TrustedProxies []netip.Prefix
}

// baseMiddleware runs ahead of every route. RequestID comes first so a
// recovered panic is logged with the id.
func baseMiddleware(logger *slog.Logger, trusted []netip.Prefix) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		request.RequestID,
		request.Recovery(logger),
		request.Logger(logger),
		requesttime.Middleware,
		metadata.ClientMetadata(trusted),
	}
}

// NewRouter builds the application router. Operational endpoints sit outside
// the session and the gate; every page passes through both.
func NewRouter(d Deps) http.Handler {
	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(baseMiddleware(d.Logger, d.TrustedProxies)...)

	r.Get("/healthz", healthHandler(d.Health))
	r.With(token.Require(token.HeaderMetricsToken, d.MetricsToken, d.Logger)).
		Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	pages := New(d.Gate, d.Sessions, d.People, d.Translator, d.GateConfig, d.Logger,
		WithMetrics(d.Metrics),
		WithLoginLimiter(d.LoginLimiter),
	)
	r.Group(func(r chi.Router) {
		r.Use(d.Sessions.Middleware)
		r.Use(d.Gate.Middleware(d.Gate.DefaultChain()...))
		pages.Register(r)
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(names) > 0 {
			resp.Checks = make(map[string]string, len(names))
		}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

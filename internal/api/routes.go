package api

import (
	"net/http"

	"sqlgateway/internal/gateway"
	"sqlgateway/internal/health"
	"sqlgateway/internal/observability"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	Service       *gateway.Service
	Metrics       *observability.Metrics
	HealthChecker *health.Checker
	AuthToken     string
	RateLimit     *RateLimitConfig // nil disables rate limiting
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(cfg RouterConfig) http.Handler {
	handler := NewHandler(cfg.Service, cfg.Metrics, cfg.HealthChecker)

	mux := http.NewServeMux()

	// Health check endpoints (liveness/readiness probes) - no auth required
	mux.HandleFunc("GET /healthz", handler.Healthz)
	mux.HandleFunc("GET /livez", handler.Livez)
	mux.HandleFunc("GET /readyz", handler.Readyz)

	// Submission endpoint - auth required
	authMiddleware := AuthMiddleware(cfg.AuthToken)
	mux.Handle("POST /v1/sql", authMiddleware(http.HandlerFunc(handler.SubmitSQL)))

	// Apply middleware chain (order matters: outermost first)
	var h http.Handler = mux
	h = ContentTypeMiddleware()(h)
	h = CORSMiddleware()(h)
	if cfg.RateLimit != nil {
		h = RateLimitMiddleware(*cfg.RateLimit)(h)
	}
	if cfg.Metrics != nil {
		h = MetricsMiddleware(cfg.Metrics)(h)
	}
	h = LoggingMiddleware()(h)
	h = RequestIDMiddleware()(h)
	h = RecoveryMiddleware()(h)

	return h
}

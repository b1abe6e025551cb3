package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterOptions configures the ops router.
type RouterOptions struct {
	Logger       *slog.Logger
	Checks       []Check
	CheckTimeout time.Duration
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// NewRouter serves /livez, /readyz and, optionally, /metrics.
func NewRouter(opts RouterOptions) chi.Router {
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = 2 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/livez", LivenessHandler())
	r.Get("/readyz", ReadinessHandler(opts.Logger, opts.CheckTimeout, opts.Checks...))
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	return r
}

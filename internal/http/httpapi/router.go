package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"dreambot/internal/http/handlers"
	"dreambot/internal/infra"
	"dreambot/internal/middleware"
)

// Options configures the router.
type Options struct {
	Logger *infra.Logger
	// RateLimitPerMin caps generation requests per client address; zero
	// disables the limit.
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Logger(*logger),
		chimw.Recoverer,
	)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.Get("/queue", app.Queue)
		r.Get("/jobs/{id}", app.Job)
		r.Get("/jobs/{id}/images.zip", app.JobImages)
		r.Get("/users/{user}/stats", app.UserStats)
		r.With(middleware.RateLimit(opts.RateLimitPerMin, time.Minute)).Post("/dreams", app.CreateDream)
	})

	r.Get("/static/*", app.Image)

	return r
}

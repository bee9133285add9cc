package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"crowdfund/internal/http/handlers"
	"crowdfund/internal/middleware"
)

// Options configures the router's middleware stack.
type Options struct {
	JWTSecret       string
	RateLimitPerMin int
	Logger          zerolog.Logger
}

// NewRouter mounts the campaign API. Reads are public; every state change
// requires a bearer token whose subject becomes the caller identity.
func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/campaigns", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
			r.Get("/{id}", app.CampaignsGet)
			r.Get("/{id}/receipts/{donor}", app.ReceiptsGet)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthJWT(opts.JWTSecret))
			r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
			r.Post("/", app.CampaignsCreate)
			r.Post("/{id}/donations", app.CampaignsDonate)
			r.Post("/{id}/withdraw", app.CampaignsWithdraw)
			r.Post("/{id}/cancel", app.CampaignsCancel)
			r.Post("/{id}/refund", app.CampaignsRefund)
		})
	})

	return r
}

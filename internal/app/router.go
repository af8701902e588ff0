package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/thea-app/thea/internal/auth"
	"github.com/thea-app/thea/internal/invoices"
	"github.com/thea-app/thea/internal/masterdata"
	"github.com/thea-app/thea/internal/observability"
	"github.com/thea-app/thea/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	AuthHandler       *auth.Handler
	AuthMiddleware    func(http.Handler) http.Handler
	InvoiceHandler    *invoices.Handler
	MasterDataHandler *masterdata.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
	Health            *Health
}

// NewRouter constructs the chi.Router with THEA defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	if params.Health != nil {
		r.Get("/health", params.Health.Handler())
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		if params.AuthHandler != nil {
			api.Route("/auth", params.AuthHandler.MountRoutes)
		}

		api.Group(func(protected chi.Router) {
			if params.AuthMiddleware != nil {
				protected.Use(params.AuthMiddleware)
			}
			if params.InvoiceHandler != nil {
				protected.Route("/invoices", params.InvoiceHandler.MountRoutes)
			}
			if params.MasterDataHandler != nil {
				protected.Route("/clients", params.MasterDataHandler.MountClientRoutes)
				protected.Route("/suppliers", params.MasterDataHandler.MountSupplierRoutes)
				protected.Route("/projects", params.MasterDataHandler.MountProjectRoutes)
			}
			if params.JobHandler != nil {
				protected.Route("/jobs", params.JobHandler.MountRoutes)
			}
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	return r
}

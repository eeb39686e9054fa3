package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/maanisingh/Accounting-software-sub001/internal/documents"
	"github.com/maanisingh/Accounting-software-sub001/internal/inventory"
	"github.com/maanisingh/Accounting-software-sub001/internal/masterdata"
	"github.com/maanisingh/Accounting-software-sub001/internal/observability"
	"github.com/maanisingh/Accounting-software-sub001/internal/parties"
	"github.com/maanisingh/Accounting-software-sub001/internal/shared"
	"github.com/maanisingh/Accounting-software-sub001/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	MasterDataHandler *masterdata.Handler
	PartiesHandler    *parties.Handler
	InventoryHandler  *inventory.Handler
	DocumentsHandler  *documents.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
	Idempotency       *shared.IdempotencyStore
	// Ready reports dependency health for /readyz. Nil means always ready.
	Ready func(r *http.Request) error
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:      params.Logger,
		Config:      params.Config,
		Metrics:     params.Metrics,
		Idempotency: params.Idempotency,
	}) {
		r.Use(mw)
	}
	if !params.Config.IsProduction() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if params.Ready != nil {
			if err := params.Ready(r); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	if params.MasterDataHandler != nil {
		r.Route("/masterdata", params.MasterDataHandler.MountRoutes)
	}
	if params.PartiesHandler != nil {
		r.Route("/parties", params.PartiesHandler.MountRoutes)
	}
	if params.InventoryHandler != nil {
		r.Route("/inventory", params.InventoryHandler.MountRoutes)
	}
	if params.DocumentsHandler != nil {
		r.Route("/sales", params.DocumentsHandler.MountSales)
		r.Route("/purchases", params.DocumentsHandler.MountPurchases)
		r.Route("/documents", params.DocumentsHandler.MountDocuments)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	return r
}

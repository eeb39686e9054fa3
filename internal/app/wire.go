package app

import (
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/maanisingh/Accounting-software-sub001/internal/documents"
	"github.com/maanisingh/Accounting-software-sub001/internal/guard"
	"github.com/maanisingh/Accounting-software-sub001/internal/inventory"
	"github.com/maanisingh/Accounting-software-sub001/internal/masterdata"
	"github.com/maanisingh/Accounting-software-sub001/internal/observability"
	"github.com/maanisingh/Accounting-software-sub001/internal/parties"
	"github.com/maanisingh/Accounting-software-sub001/internal/shared"
	"github.com/maanisingh/Accounting-software-sub001/jobs"
)

// Services is the wired domain layer shared by the API and the worker.
type Services struct {
	Metrics    *observability.Metrics
	Ledger     *inventory.Ledger
	Inventory  *inventory.Service
	Documents  *documents.Service
	Parties    *parties.Service
	MasterData masterdata.Service
}

// NewServices wires every domain service on one pool. metrics may be nil.
func NewServices(pool *pgxpool.Pool, metrics *observability.Metrics, logger *slog.Logger) *Services {
	ledger := inventory.NewLedger(metrics)
	return &Services{
		Metrics:    metrics,
		Ledger:     ledger,
		Inventory:  inventory.NewService(inventory.NewRepository(pool), ledger, logger, metrics),
		Documents:  documents.NewService(documents.NewRepository(pool), ledger, guard.New(metrics), logger),
		Parties:    parties.NewService(parties.NewRepository(pool), logger),
		MasterData: masterdata.NewService(masterdata.NewQueries(pool)),
	}
}

// APIParams collects what the HTTP surface needs beyond the services.
type APIParams struct {
	Config    *Config
	Logger    *slog.Logger
	Services  *Services
	Redis     redis.UniversalClient
	Enqueuer  inventory.ReconcileEnqueuer
	Inspector jobs.QueueInspector
	Ready     func(r *http.Request) error
}

// NewAPI builds the router over wired services.
func NewAPI(p APIParams) http.Handler {
	var idem *shared.IdempotencyStore
	if p.Redis != nil {
		ttl := p.Config.IdempotencyTTL
		idem = shared.NewIdempotencyStore(p.Redis, ttl)
	}
	return NewRouter(RouterParams{
		Logger:            p.Logger,
		Config:            p.Config,
		MasterDataHandler: masterdata.NewHandler(p.Logger, p.Services.MasterData),
		PartiesHandler:    parties.NewHandler(p.Logger, p.Services.Parties),
		InventoryHandler:  inventory.NewHandler(p.Logger, p.Services.Inventory, p.Enqueuer),
		DocumentsHandler:  documents.NewHandler(p.Logger, p.Services.Documents),
		JobHandler:        jobs.NewHandler(p.Inspector, p.Logger),
		Metrics:           p.Services.Metrics,
		Idempotency:       idem,
		Ready:             p.Ready,
	})
}

package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/maanisingh/Accounting-software-sub001/internal/inventory"
	jobmetrics "github.com/maanisingh/Accounting-software-sub001/internal/jobs"
)

const reconcileJobName = "stock_reconcile"

// Reconciler is the inventory surface the job drives.
type Reconciler interface {
	Companies(ctx context.Context) ([]int64, error)
	Reconcile(ctx context.Context, companyID int64) ([]inventory.Drift, error)
}

// ReconcileResult summarises one run.
type ReconcileResult struct {
	RunID     string
	Companies int
	Drifted   int
}

// StockReconcileJob checks every stock row against its movement log.
type StockReconcileJob struct {
	Reconciler  Reconciler
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
	Concurrency int
	// CompanyTimeout bounds one company's reconciliation.
	CompanyTimeout time.Duration
}

// NewStockReconcileJob wires the job. metrics may be nil.
func NewStockReconcileJob(reconciler Reconciler, logger *slog.Logger, metrics *jobmetrics.Metrics) *StockReconcileJob {
	return &StockReconcileJob{
		Reconciler:     reconciler,
		Logger:         logger,
		Metrics:        metrics,
		Concurrency:    4,
		CompanyTimeout: time.Minute,
	}
}

// Handle processes TaskStockReconcile tasks.
func (j *StockReconcileJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reconciler == nil {
		return errors.New("stock reconcile: handler not configured")
	}
	payload, err := decodeReconcilePayload(t.Payload())
	if err != nil {
		return fmt.Errorf("stock reconcile: %w: %v", asynq.SkipRetry, err)
	}
	_, err = j.Run(ctx, payload)
	return err
}

// Run reconciles the payload scope. Companies are processed concurrently up to
// Concurrency; the first failure cancels the rest.
func (j *StockReconcileJob) Run(ctx context.Context, payload StockReconcilePayload) (result ReconcileResult, err error) {
	if payload.RunID == "" {
		payload.RunID = uuid.NewString()
	}
	result.RunID = payload.RunID
	tracker := j.Metrics.Track(reconcileJobName)
	defer func() { err = tracker.End(err) }()

	logger := j.logger().With(slog.String("run_id", payload.RunID))
	companies := []int64{payload.CompanyID}
	if payload.CompanyID == 0 {
		companies, err = j.Reconciler.Companies(ctx)
		if err != nil {
			logger.Error("load companies", slog.Any("error", err))
			return result, err
		}
	}
	if len(companies) == 0 {
		logger.Info("no companies to reconcile")
		return result, nil
	}

	start := time.Now()
	drifted := make([]int, len(companies))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(j.concurrency())
	for i, companyID := range companies {
		group.Go(func() error {
			companyCtx, cancel := context.WithTimeout(groupCtx, j.companyTimeout())
			defer cancel()
			drift, err := j.Reconciler.Reconcile(companyCtx, companyID)
			if err != nil {
				logger.Error("reconcile company", slog.Int64("company_id", companyID), slog.Any("error", err))
				return fmt.Errorf("stock reconcile: company %d: %w", companyID, err)
			}
			drifted[i] = len(drift)
			j.Metrics.AddCompany(reconcileJobName)
			j.Metrics.AddDrift(companyID, len(drift))
			return nil
		})
	}
	if err = group.Wait(); err != nil {
		return result, err
	}

	result.Companies = len(companies)
	for _, n := range drifted {
		result.Drifted += n
	}
	logger.Info("stock reconcile completed",
		slog.Int("companies", result.Companies),
		slog.Int("drifted_rows", result.Drifted),
		slog.Duration("duration", time.Since(start)))
	return result, nil
}

func (j *StockReconcileJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *StockReconcileJob) concurrency() int {
	if j.Concurrency > 0 {
		return j.Concurrency
	}
	return 1
}

func (j *StockReconcileJob) companyTimeout() time.Duration {
	if j.CompanyTimeout > 0 {
		return j.CompanyTimeout
	}
	return time.Minute
}

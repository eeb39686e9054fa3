package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockReconcile compares stock balances with the movement log.
	TaskStockReconcile = "stock:reconcile"
)

// StockReconcilePayload scopes a reconciliation run. CompanyID 0 reconciles every
// company that holds stock.
type StockReconcilePayload struct {
	RunID       string    `json:"run_id"`
	CompanyID   int64     `json:"company_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewStockReconcileTask builds a reconcile task with a fresh run id. Ad hoc runs are
// deduplicated per run id through the task id.
func NewStockReconcileTask(companyID int64, now time.Time) (*asynq.Task, error) {
	payload := StockReconcilePayload{RunID: uuid.NewString(), CompanyID: companyID, RequestedAt: now.UTC()}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("jobs: encode reconcile payload: %w", err)
	}
	return asynq.NewTask(TaskStockReconcile, body,
		asynq.Queue(QueueDefault),
		asynq.TaskID(payload.RunID),
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
	), nil
}

// NewScheduledStockReconcileTask builds the cron variant. It carries no run id so the
// scheduler can enqueue it repeatedly; the handler assigns one per run.
func NewScheduledStockReconcileTask() (*asynq.Task, error) {
	body, err := json.Marshal(StockReconcilePayload{})
	if err != nil {
		return nil, fmt.Errorf("jobs: encode reconcile payload: %w", err)
	}
	return asynq.NewTask(TaskStockReconcile, body, asynq.Queue(QueueDefault)), nil
}

func decodeReconcilePayload(data []byte) (StockReconcilePayload, error) {
	var payload StockReconcilePayload
	if len(data) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return StockReconcilePayload{}, err
	}
	return payload, nil
}

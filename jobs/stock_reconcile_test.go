package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maanisingh/Accounting-software-sub001/internal/inventory"
	jobmetrics "github.com/maanisingh/Accounting-software-sub001/internal/jobs"
)

type fakeReconciler struct {
	mu        sync.Mutex
	companies []int64
	drift     map[int64]int
	fail      map[int64]error
	seen      []int64
}

func (f *fakeReconciler) Companies(context.Context) ([]int64, error) {
	return f.companies, nil
}

func (f *fakeReconciler) Reconcile(_ context.Context, companyID int64) ([]inventory.Drift, error) {
	f.mu.Lock()
	f.seen = append(f.seen, companyID)
	f.mu.Unlock()
	if err := f.fail[companyID]; err != nil {
		return nil, err
	}
	return make([]inventory.Drift, f.drift[companyID]), nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReconcileAllCompanies(t *testing.T) {
	rec := &fakeReconciler{companies: []int64{1, 2, 3}, drift: map[int64]int{2: 4}}
	job := NewStockReconcileJob(rec, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	result, err := job.Run(context.Background(), StockReconcilePayload{})
	require.NoError(t, err)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 3, result.Companies)
	assert.Equal(t, 4, result.Drifted)
	assert.ElementsMatch(t, []int64{1, 2, 3}, rec.seen)
}

func TestReconcileSingleCompany(t *testing.T) {
	rec := &fakeReconciler{companies: []int64{1, 2}}
	job := NewStockReconcileJob(rec, quietLogger(), nil)

	result, err := job.Run(context.Background(), StockReconcilePayload{RunID: "run-1", CompanyID: 2})
	require.NoError(t, err)
	assert.Equal(t, "run-1", result.RunID)
	assert.Equal(t, []int64{2}, rec.seen)
}

func TestReconcileFailurePropagates(t *testing.T) {
	boom := errors.New("db down")
	rec := &fakeReconciler{companies: []int64{1, 2}, fail: map[int64]error{2: boom}}
	job := NewStockReconcileJob(rec, quietLogger(), nil)
	job.Concurrency = 1

	_, err := job.Run(context.Background(), StockReconcilePayload{})
	require.ErrorIs(t, err, boom)
}

func TestHandleRejectsBadPayload(t *testing.T) {
	job := NewStockReconcileJob(&fakeReconciler{}, quietLogger(), nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskStockReconcile, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	var nilJob *StockReconcileJob
	require.Error(t, nilJob.Handle(context.Background(), asynq.NewTask(TaskStockReconcile, nil)))
}

func TestScheduledTaskHasEmptyScope(t *testing.T) {
	task, err := NewScheduledStockReconcileTask()
	require.NoError(t, err)
	assert.Equal(t, TaskStockReconcile, task.Type())

	payload, err := decodeReconcilePayload(task.Payload())
	require.NoError(t, err)
	assert.Empty(t, payload.RunID)
	assert.Zero(t, payload.CompanyID)
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	var payload StockReconcilePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return nil, err
	}
	return &asynq.TaskInfo{ID: payload.RunID, Queue: QueueDefault, Type: task.Type()}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

func TestClientEnqueueStockReconcile(t *testing.T) {
	enq := &fakeEnqueuer{}
	client := NewClientWith(enq)
	client.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	id, err := client.EnqueueStockReconcile(context.Background(), 9)
	require.NoError(t, err)
	require.Len(t, enq.tasks, 1)

	payload, err := decodeReconcilePayload(enq.tasks[0].Payload())
	require.NoError(t, err)
	assert.Equal(t, id, payload.RunID)
	assert.Equal(t, int64(9), payload.CompanyID)
	assert.Equal(t, 2026, payload.RequestedAt.Year())
	require.NoError(t, client.Close())
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return f.info, f.err }

func TestHealthHandler(t *testing.T) {
	cases := []struct {
		name      string
		inspector QueueInspector
		status    int
		pending   int
	}{
		{name: "no inspector", status: http.StatusOK},
		{name: "queue info", inspector: fakeInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3}}, status: http.StatusOK, pending: 3},
		{name: "redis down", inspector: fakeInspector{err: errors.New("dial")}, status: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := chi.NewRouter()
			NewHandler(tc.inspector, quietLogger()).MountRoutes(r)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
			require.Equal(t, tc.status, rr.Code)
			if tc.status != http.StatusOK {
				return
			}
			var body queueHealth
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, QueueDefault, body.Queue)
			assert.Equal(t, tc.pending, body.Pending)
		})
	}
}

package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTempSweep removes stale temp objects from the invoice bucket.
	TaskTempSweep = "storage:temp_sweep"
	// TaskVerificationReconcile re-seeds evicted verification cache entries.
	TaskVerificationReconcile = "verification:reconcile"
)

// TempSweepPayload carries scheduling metadata for a sweep run.
type TempSweepPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewTempSweepTask constructs an Asynq task for the temp-object sweep.
func NewTempSweepTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(TempSweepPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTempSweep, body, asynq.Queue(QueueDefault)), nil
}

// VerificationReconcilePayload carries scheduling metadata for a reconcile run.
type VerificationReconcilePayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewVerificationReconcileTask constructs an Asynq task for cache reconciliation.
func NewVerificationReconcileTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(VerificationReconcilePayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskVerificationReconcile, body, asynq.Queue(QueueDefault)), nil
}

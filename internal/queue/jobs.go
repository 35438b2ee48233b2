package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/studyforge/studypack/internal/model"
)

// GeneratePackTask is scheduled for each accepted generation run.
const GeneratePackTask = "pack:generate"

// GeneratePayload is serialized into the task so the worker knows which pack
// to process and which outputs to produce.
type GeneratePayload struct {
	PackID string        `json:"pack_id"`
	Mode   model.RunMode `json:"mode"`
}

// Enqueuer schedules generation runs through asynq. It implements
// pipeline.Scheduler.
type Enqueuer struct {
	client  *asynq.Client
	timeout time.Duration
}

// NewEnqueuer constructs an Enqueuer. timeout bounds each task's execution;
// it should sit above the pipeline's own run timeout so the pipeline fails
// first with a precise error.
func NewEnqueuer(client *asynq.Client, timeout time.Duration) *Enqueuer {
	return &Enqueuer{client: client, timeout: timeout}
}

// Schedule enqueues one generation run. MaxRetry is zero: a failed run marks
// the pack errored and re-triggering is the caller's responsibility.
func (e *Enqueuer) Schedule(ctx context.Context, packID string, mode model.RunMode) error {
	data, err := json.Marshal(GeneratePayload{PackID: packID, Mode: mode})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(GeneratePackTask, data)
	if _, err := e.client.EnqueueContext(ctx, task, asynq.MaxRetry(0), asynq.Timeout(e.timeout)); err != nil {
		return fmt.Errorf("enqueue generate task: %w", err)
	}
	return nil
}

// Package worker plugs the pipeline into the asynq task loop.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/studyforge/studypack/internal/pipeline"
	"github.com/studyforge/studypack/internal/queue"
)

// Processor handles generation tasks.
type Processor struct {
	runner *pipeline.Runner
	log    *zap.Logger
}

// NewProcessor constructs a worker processor.
func NewProcessor(runner *pipeline.Runner, log *zap.Logger) *Processor {
	return &Processor{runner: runner, log: log}
}

// Handler registers the generate task handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.GeneratePackTask, p.handleGenerate)
	return mux
}

func (p *Processor) handleGenerate(ctx context.Context, task *asynq.Task) error {
	var payload queue.GeneratePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	p.log.Info("generation run starting",
		zap.String("pack_id", payload.PackID),
		zap.String("mode", string(payload.Mode)))
	// Run handles its own compensation (error transition, guard release);
	// the returned error only marks the task failed, it is never retried.
	return p.runner.Run(ctx, payload.PackID, payload.Mode)
}

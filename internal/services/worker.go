package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/mentorhub/backend/internal/config"
	"github.com/mentorhub/backend/pkg/logger"
)

// Worker consumes AI review tasks from redis
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor TaskProcessor
	wg        sync.WaitGroup
	running   bool
	mu        sync.Mutex
}

// NewWorker returns nil when redis is disabled.
func NewWorker(cfg *config.RedisConfig) *Worker {
	if !cfg.Enabled {
		return nil
	}

	server := asynq.NewServer(
		redisClientOpt(cfg),
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Warnf("[Worker] Error processing task %s: %v", task.Type(), err)
			}),
		},
	)

	w := &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
	}
	w.mux.HandleFunc(TaskTypeAIReview, w.HandleAIReviewTask)
	return w
}

func (w *Worker) SetProcessor(processor TaskProcessor) {
	w.processor = processor
}

// Start begins processing tasks
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}
	w.running = true
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		logger.Infof("[Worker] Starting async worker...")
		if err := w.server.Run(w.mux); err != nil {
			logger.Errorf("[Worker] Server error: %v", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	logger.Infof("[Worker] Shutting down...")
	w.server.Shutdown()
	w.running = false
	w.wg.Wait()
	logger.Infof("[Worker] Shutdown complete")
}

// HandleAIReviewTask decodes an asynq task and runs the processor.
// Malformed payloads are not retried.
func (w *Worker) HandleAIReviewTask(ctx context.Context, t *asynq.Task) error {
	var task AIReviewTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("decode ai review task: %v: %w", err, asynq.SkipRetry)
	}

	logger.Infof("[Worker] Processing AI review: run=%d, version=%d", task.RunID, task.DocumentVersionID)

	if w.processor == nil {
		logger.Warnf("[Worker] No processor set")
		return nil
	}
	return w.processor(ctx, &task)
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/mentorhub/backend/internal/config"
	"github.com/mentorhub/backend/pkg/logger"
)

const (
	TaskTypeAIReview = "ai_review:process"

	aiReviewTimeout = 5 * time.Minute
)

var ErrQueueClosed = errors.New("task queue closed")

// AIReviewTask asks a worker to generate automated feedback for a run.
type AIReviewTask struct {
	RunID             uint `json:"run_id"`
	DocumentVersionID uint `json:"document_version_id"`
	RequestedBy       uint `json:"requested_by"`
}

// TaskProcessor handles one AI review task.
type TaskProcessor func(context.Context, *AIReviewTask) error

// TaskQueue defines the interface for AI review task processing
type TaskQueue interface {
	Enqueue(task *AIReviewTask) error
	// IsAsync returns true if tasks are processed by a separate worker
	IsAsync() bool
	Close() error
}

var (
	globalTaskQueue TaskQueue
	taskQueueOnce   sync.Once
)

// InitTaskQueue initializes the global task queue based on config
func InitTaskQueue(cfg *config.Config) TaskQueue {
	taskQueueOnce.Do(func() {
		globalTaskQueue = NewTaskQueue(cfg)
	})
	return globalTaskQueue
}

// NewTaskQueue returns an asynq queue when redis is enabled and reachable,
// otherwise an in-process queue.
func NewTaskQueue(cfg *config.Config) TaskQueue {
	if !cfg.Redis.Enabled {
		logger.Infof("[TaskQueue] In-process queue initialized (Redis disabled)")
		return NewSyncQueue(4)
	}
	queue, err := NewAsyncQueue(&cfg.Redis)
	if err != nil {
		logger.Warnf("[TaskQueue] Redis unavailable, falling back to in-process mode: %v", err)
		return NewSyncQueue(4)
	}
	logger.Infof("[TaskQueue] Async queue initialized with Redis at %s", cfg.Redis.Addr)
	return queue
}

func GetTaskQueue() TaskQueue {
	return globalTaskQueue
}

func redisClientOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	redisOpt := redisClientOpt(cfg)
	client := asynq.NewClient(redisOpt)

	// verify the connection
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()
	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

// NewAIReviewTask encodes the payload for asynq.
func NewAIReviewTask(task *AIReviewTask) (*asynq.Task, error) {
	payload, err := json.Marshal(task)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAIReview, payload), nil
}

func (q *AsyncQueue) Enqueue(task *AIReviewTask) error {
	t, err := NewAIReviewTask(task)
	if err != nil {
		return err
	}
	info, err := q.client.Enqueue(t,
		asynq.Queue("default"),
		asynq.MaxRetry(2),
		asynq.Timeout(aiReviewTimeout),
	)
	if err != nil {
		return err
	}

	logger.Infof("[AsyncQueue] Task enqueued: id=%s, queue=%s, run=%d", info.ID, info.Queue, task.RunID)
	return nil
}

func (q *AsyncQueue) IsAsync() bool { return true }

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue runs tasks in background goroutines of this process, at most
// limit at a time.
type SyncQueue struct {
	processor TaskProcessor
	sem       chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
}

func NewSyncQueue(limit int) *SyncQueue {
	if limit <= 0 {
		limit = 1
	}
	return &SyncQueue{sem: make(chan struct{}, limit)}
}

// SetProcessor sets the function to process tasks
func (q *SyncQueue) SetProcessor(processor TaskProcessor) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.processor = processor
}

// Enqueue starts the task without blocking the caller.
func (q *SyncQueue) Enqueue(task *AIReviewTask) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	if q.processor == nil {
		logger.Warnf("[SyncQueue] No processor set, task for run %d dropped", task.RunID)
		return nil
	}

	processor := q.processor
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.sem <- struct{}{}
		defer func() { <-q.sem }()

		ctx, cancel := context.WithTimeout(context.Background(), aiReviewTimeout)
		defer cancel()
		if err := processor(ctx, task); err != nil {
			logger.Warnf("[SyncQueue] Task for run %d failed: %v", task.RunID, err)
		}
	}()
	return nil
}

func (q *SyncQueue) IsAsync() bool { return false }

// Close rejects new tasks and waits for running ones.
func (q *SyncQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wg.Wait()
	return nil
}

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	TaskDeliver = "notify:deliver"
	queueName   = "notifications"
	maxRetry    = 3
)

// Queue delivers notifications in the background. Failed deliveries are
// retried by asynq with its default backoff, up to maxRetry times.
type Queue struct {
	client *asynq.Client
	server *asynq.Server
	d      *Dispatcher
}

func NewQueue(opt asynq.RedisClientOpt, d *Dispatcher) *Queue {
	return &Queue{
		client: asynq.NewClient(opt),
		server: asynq.NewServer(opt, asynq.Config{
			Concurrency: 4,
			Queues:      map[string]int{queueName: 1},
			Logger:      zap.S(),
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, t *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				zap.L().Error("Notification task failed",
					zap.Error(err),
					zap.String("type", t.Type()),
					zap.Int("retried", retried))
			}),
		}),
		d: d,
	}
}

// Start runs the worker in the background
func (q *Queue) Start() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskDeliver, q.handle)

	return q.server.Start(mux)
}

func (q *Queue) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification, %w", err)
	}

	_, err = q.client.EnqueueContext(ctx, asynq.NewTask(TaskDeliver, payload),
		asynq.Queue(queueName),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue notification, %w", err)
	}

	return nil
}

func (q *Queue) handle(ctx context.Context, t *asynq.Task) error {
	var n Notification
	if err := json.Unmarshal(t.Payload(), &n); err != nil {
		// A broken payload won't get better on retry
		return fmt.Errorf("bad notification payload, %v: %w", err, asynq.SkipRetry)
	}

	_, err := q.d.Deliver(ctx, n)
	return err
}

// Shutdown stops the worker and waits for running deliveries
func (q *Queue) Shutdown() {
	q.server.Shutdown()

	if err := q.client.Close(); err != nil {
		zap.L().Warn("Failed to close asynq client", zap.Error(err))
	}
}

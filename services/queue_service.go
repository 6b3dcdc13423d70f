package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"pairup_server/models"
	"pairup_server/utils"
)

// ErrNoJob is returned by Dequeue when the job queue is empty.
var ErrNoJob = errors.New("no job available")

// QueueService is the durable FIFO job queue driving the matching worker.
// Jobs are JSON envelopes on a single Redis list; multiple worker instances
// may dequeue from it concurrently.
type QueueService struct {
	Redis *RedisService
}

// Enqueue appends a job to the tail of the queue.
func (qs *QueueService) Enqueue(ctx context.Context, job models.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job for user '%s': %w", job.UserID, err)
	}
	return qs.Redis.PushRight(ctx, utils.JobQueueKey, payload)
}

// Dequeue pops the head of the queue, or returns ErrNoJob when it is empty.
// Non-blocking; the worker loop backs off and polls again.
func (qs *QueueService) Dequeue(ctx context.Context) (models.Job, error) {
	payload, err := qs.Redis.PopLeft(ctx, utils.JobQueueKey)
	if errors.Is(err, ErrKeyNotFound) {
		return models.Job{}, ErrNoJob
	}
	if err != nil {
		return models.Job{}, err
	}
	var job models.Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return models.Job{}, fmt.Errorf("failed to unmarshal job payload: %w", err)
	}
	return job, nil
}

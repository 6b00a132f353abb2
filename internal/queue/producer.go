package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Producer submits rent-roll jobs
type Producer interface {
	Enqueue(ctx context.Context, payload JobPayload) (string, error)
	Close() error
}

// NewProducer returns the producer for backend ("list" or "asynq")
func NewProducer(backend, redisURL, queueName string) (Producer, error) {
	switch backend {
	case "list", "":
		return NewListProducer(redisURL, queueName)
	case "asynq":
		return NewAsynqProducer(redisURL, queueName)
	}
	return nil, fmt.Errorf("unknown queue backend %q", backend)
}

// newJob stamps a job ID onto payload when it has none and wraps it for the list queue
func newJob(payload JobPayload, maxRetries int, now time.Time) RedisJobData {
	if payload.JobID == "" {
		payload.JobID = uuid.New().String()
	}
	return RedisJobData{
		ID:         payload.JobID,
		Type:       TaskType,
		Payload:    payload,
		CreatedAt:  now,
		MaxRetries: maxRetries,
	}
}

// ListProducer pushes jobs using the list protocol read by RedisConsumer
type ListProducer struct {
	client     *redis.Client
	keys       queueKeys
	MaxRetries int
}

// NewListProducer connects to redisURL
func NewListProducer(redisURL, queueName string) (*ListProducer, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if queueName == "" {
		queueName = "rentroll:jobs"
	}
	return &ListProducer{client: redis.NewClient(opt), keys: keysFor(queueName), MaxRetries: 3}, nil
}

// Enqueue stores the job data and pushes its ID, atomically
func (p *ListProducer) Enqueue(ctx context.Context, payload JobPayload) (string, error) {
	job := newJob(payload, p.MaxRetries, time.Now())
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, p.keys.data, job.ID, data)
		pipe.LPush(ctx, p.keys.list, job.ID)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}
	return job.ID, nil
}

// Close closes the Redis client
func (p *ListProducer) Close() error {
	return p.client.Close()
}

// AsynqProducer enqueues asynq tasks read by Consumer
type AsynqProducer struct {
	client     *asynq.Client
	queueName  string
	MaxRetries int
}

// NewAsynqProducer creates an asynq client for redisURL
func NewAsynqProducer(redisURL, queueName string) (*AsynqProducer, error) {
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if queueName == "" {
		queueName = "rentroll:jobs"
	}
	return &AsynqProducer{client: asynq.NewClient(redisOpt), queueName: queueName, MaxRetries: 3}, nil
}

// Enqueue submits the task with the job ID as task ID, so duplicates are rejected
func (p *AsynqProducer) Enqueue(ctx context.Context, payload JobPayload) (string, error) {
	job := newJob(payload, p.MaxRetries, time.Now())
	task, err := NewTask(job.Payload)
	if err != nil {
		return "", err
	}

	info, err := p.client.EnqueueContext(ctx, task,
		asynq.Queue(p.queueName),
		asynq.MaxRetry(p.MaxRetries),
		asynq.TaskID(job.ID),
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}
	return info.ID, nil
}

// Close closes the asynq client
func (p *AsynqProducer) Close() error {
	return p.client.Close()
}

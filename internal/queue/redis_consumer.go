/**
 * Direct Redis Queue Consumer for the Rent-Roll Worker
 *
 * Uses plain Redis LIST operations:
 * - <queue>         LIST of job IDs (LPUSH by producers, BRPOP here)
 * - <queue>:data    HASH of job ID to RedisJobData JSON
 * - <queue>:processing / :completed / :failed   SETs of job IDs
 * - <queue>:results / :errors                   HASHes of outcomes
 * - <queue>:events  pub/sub channel of status changes
 */

package queue

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adverant/nexus/rentroll-worker/internal/logging"
	"github.com/adverant/nexus/rentroll-worker/internal/processor"
	"github.com/adverant/nexus/rentroll-worker/internal/storage"
)

var errNoJobs = stderrors.New("no jobs available")

// RedisConsumer handles job consumption from Redis queue
type RedisConsumer struct {
	client *redis.Client
	runner *runner
	config *RedisConsumerConfig
	keys   queueKeys
	logger *logging.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// RedisConsumerConfig holds consumer configuration
type RedisConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	Processor         processor.DocumentProcessorInterface
	ProcessingTimeout int64 // milliseconds (default: 300000 = 5 minutes)
}

type queueKeys struct {
	list, data, processing, completed, failed, results, errors, events string
}

func keysFor(queue string) queueKeys {
	return queueKeys{
		list:       queue,
		data:       queue + ":data",
		processing: queue + ":processing",
		completed:  queue + ":completed",
		failed:     queue + ":failed",
		results:    queue + ":results",
		errors:     queue + ":errors",
		events:     queue + ":events",
	}
}

// NewRedisConsumer creates a new Redis-based queue consumer
func NewRedisConsumer(cfg *RedisConsumerConfig) (*RedisConsumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if cfg.QueueName == "" {
		cfg.QueueName = "rentroll:jobs"
	}
	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger := logging.NewLogger("RedisConsumer")
	consumerCtx, consumerCancel := context.WithCancel(context.Background())

	return &RedisConsumer{
		client: client,
		runner: newRunner(cfg.Processor, cfg.ProcessingTimeout, logger),
		config: cfg,
		keys:   keysFor(cfg.QueueName),
		logger: logger,
		ctx:    consumerCtx,
		cancel: consumerCancel,
	}, nil
}

// Start begins processing jobs from the queue
func (c *RedisConsumer) Start() error {
	c.logger.Info("Starting Redis queue consumer", "concurrency", c.config.Concurrency, "queue", c.config.QueueName)

	for i := 0; i < c.config.Concurrency; i++ {
		c.wg.Add(1)
		go c.worker(i)
	}
	return nil
}

// Stop cancels the workers, waits for in-flight jobs and closes the client
func (c *RedisConsumer) Stop() error {
	c.logger.Info("Stopping queue consumer")
	c.cancel()
	c.wg.Wait()
	return c.client.Close()
}

func (c *RedisConsumer) worker(id int) {
	defer c.wg.Done()
	log := c.logger.With("worker", id)
	log.Debug("Worker started")

	for {
		select {
		case <-c.ctx.Done():
			log.Debug("Worker stopping")
			return
		default:
		}

		if err := c.processNextJob(); err != nil {
			if stderrors.Is(err, errNoJobs) || c.ctx.Err() != nil {
				continue
			}
			log.Error("Worker error", "error", err.Error())
			time.Sleep(time.Second)
		}
	}
}

// processNextJob fetches and processes the next job from the queue
func (c *RedisConsumer) processNextJob() error {
	// Block for up to 5 seconds waiting for a job
	result, err := c.client.BRPop(c.ctx, 5*time.Second, c.keys.list).Result()
	if err != nil {
		if err == redis.Nil {
			return errNoJobs
		}
		return fmt.Errorf("failed to fetch job: %w", err)
	}
	if len(result) < 2 {
		return fmt.Errorf("invalid job result")
	}

	// In-flight jobs finish even after Stop
	ctx := context.WithoutCancel(c.ctx)

	id := result[1]
	raw, err := c.client.HGet(ctx, c.keys.data, id).Result()
	if err != nil {
		return fmt.Errorf("failed to get job data: %w", err)
	}

	var job RedisJobData
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		c.markFailed(ctx, id, id, map[string]interface{}{"error": err.Error()})
		return fmt.Errorf("failed to unmarshal job %s: %w", id, err)
	}

	c.markProcessing(ctx, job.ID, job.Payload.JobID)

	processResult, err := c.runner.run(ctx, &job.Payload)
	if err == nil {
		c.markCompleted(ctx, job.ID, job.Payload.JobID, processResult)
		return nil
	}

	job.Attempts++
	if Retryable(err) && job.Attempts < job.MaxRetries {
		c.requeue(ctx, &job)
		return nil
	}

	c.markFailed(ctx, job.ID, job.Payload.JobID, map[string]interface{}{
		"error":    err.Error(),
		"attempts": job.Attempts,
	})
	return nil
}

func (c *RedisConsumer) requeue(ctx context.Context, job *RedisJobData) {
	updated, err := json.Marshal(job)
	if err != nil {
		c.logger.Error("Failed to marshal job for retry", "job_id", job.Payload.JobID, "error", err.Error())
		return
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, c.keys.data, job.ID, updated)
		pipe.SRem(ctx, c.keys.processing, job.ID)
		pipe.LPush(ctx, c.keys.list, job.ID)
		return nil
	})
	if err != nil {
		c.logger.Error("Failed to re-queue job", "job_id", job.Payload.JobID, "error", err.Error())
		return
	}
	c.logger.Info("Job re-queued for retry", "job_id", job.Payload.JobID, "attempt", job.Attempts, "max_retries", job.MaxRetries)
}

func (c *RedisConsumer) markProcessing(ctx context.Context, id, jobID string) {
	c.client.SAdd(ctx, c.keys.processing, id)
	c.publish(ctx, storage.StatusProcessing, jobID)
}

func (c *RedisConsumer) markCompleted(ctx context.Context, id, jobID string, result *processor.ProcessResult) {
	resultData, _ := json.Marshal(result)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, c.keys.processing, id)
		pipe.SAdd(ctx, c.keys.completed, id)
		pipe.HSet(ctx, c.keys.results, id, resultData)
		return nil
	})
	if err != nil {
		c.logger.Warn("Failed to record completion in Redis", "job_id", jobID, "error", err.Error())
	}
	c.publish(ctx, storage.StatusCompleted, jobID)
}

func (c *RedisConsumer) markFailed(ctx context.Context, id, jobID string, details map[string]interface{}) {
	errorData, _ := json.Marshal(details)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, c.keys.processing, id)
		pipe.SAdd(ctx, c.keys.failed, id)
		pipe.HSet(ctx, c.keys.errors, id, errorData)
		return nil
	})
	if err != nil {
		c.logger.Warn("Failed to record failure in Redis", "job_id", jobID, "error", err.Error())
	}
	c.publish(ctx, storage.StatusFailed, jobID)
}

// publish announces a status change for streaming clients
func (c *RedisConsumer) publish(ctx context.Context, status, jobID string) {
	c.client.Publish(ctx, c.keys.events, statusEvent(status, jobID, time.Now()))
}

func statusEvent(status, jobID string, at time.Time) []byte {
	data, _ := json.Marshal(map[string]interface{}{
		"event":     "job:" + status,
		"jobId":     jobID,
		"timestamp": at.Format(time.RFC3339),
	})
	return data
}

// GetStats returns queue statistics
func (c *RedisConsumer) GetStats(ctx context.Context) (map[string]int64, error) {
	pipe := c.client.Pipeline()
	waiting := pipe.LLen(ctx, c.keys.list)
	processing := pipe.SCard(ctx, c.keys.processing)
	completed := pipe.SCard(ctx, c.keys.completed)
	failed := pipe.SCard(ctx, c.keys.failed)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read queue stats: %w", err)
	}

	return map[string]int64{
		"waiting":    waiting.Val(),
		"processing": processing.Val(),
		"completed":  completed.Val(),
		"failed":     failed.Val(),
	}, nil
}

/**
 * Asynq Queue Consumer for the Rent-Roll Worker
 *
 * Alternative backend to the plain list protocol. Asynq owns retries,
 * scheduling and dead-lettering; extraction outcomes that cannot change
 * on retry are returned with asynq.SkipRetry.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/adverant/nexus/rentroll-worker/internal/logging"
	"github.com/adverant/nexus/rentroll-worker/internal/processor"
)

// Consumer handles job consumption through asynq
type Consumer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	runner *runner
	config *ConsumerConfig
	logger *logging.Logger
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	Processor         processor.DocumentProcessorInterface
	ProcessingTimeout int64 // milliseconds (default: 300000 = 5 minutes)
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}
	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := logging.NewLogger("AsynqConsumer")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			RetryDelayFunc: retryDelay,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task processing error", "type", task.Type(), "error", err.Error())
			}),
			Logger: asynqLogger{logger},
		},
	)

	consumer := &Consumer{
		server: server,
		mux:    asynq.NewServeMux(),
		runner: newRunner(cfg.Processor, cfg.ProcessingTimeout, logger),
		config: cfg,
		logger: logger,
	}
	consumer.mux.HandleFunc(TaskType, consumer.handleProcessRentRoll)

	return consumer, nil
}

// retryDelay is exponential backoff: 5s, 10s, 20s, capped at 60s
func retryDelay(n int, err error, task *asynq.Task) time.Duration {
	delay := time.Duration(5*(1<<uint(n))) * time.Second
	if delay > 60*time.Second || delay <= 0 {
		delay = 60 * time.Second
	}
	return delay
}

// Start starts the asynq server in the background
func (c *Consumer) Start() error {
	c.logger.Info("Starting asynq consumer", "concurrency", c.config.Concurrency, "queue", c.config.QueueName)
	if err := c.server.Start(c.mux); err != nil {
		return fmt.Errorf("failed to start asynq server: %w", err)
	}
	return nil
}

// Stop waits for active tasks and shuts the server down
func (c *Consumer) Stop() error {
	c.logger.Info("Stopping asynq consumer")
	c.server.Shutdown()
	return nil
}

// handleProcessRentRoll processes one rent-roll task
func (c *Consumer) handleProcessRentRoll(ctx context.Context, task *asynq.Task) error {
	var payload JobPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal job data: %v: %w", err, asynq.SkipRetry)
	}

	if _, err := c.runner.run(ctx, &payload); err != nil {
		if !Retryable(err) {
			return fmt.Errorf("rent-roll processing failed: %v: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("rent-roll processing failed: %w", err)
	}
	return nil
}

// NewTask wraps payload as an asynq task
func NewTask(payload JobPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TaskType, data), nil
}

// asynqLogger routes asynq's internal logging through the worker logger
type asynqLogger struct {
	logger *logging.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.logger.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.logger.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.logger.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.logger.Error(fmt.Sprint(args...)) }

func (l asynqLogger) Fatal(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}

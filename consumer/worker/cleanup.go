package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/tnqbao/gau-account-service/entity"
	"github.com/tnqbao/gau-account-service/infra/produce"
	"github.com/tnqbao/gau-account-service/workflow"
)

// StateMachine is the slice of the deletion workflow the consumer drives.
type StateMachine interface {
	GetStatus(ctx context.Context, jobID uuid.UUID) (*entity.DeletionJob, error)
	CompleteExternalPhase(ctx context.Context, jobID uuid.UUID) (*entity.DeletionJob, error)
	CompleteLocalPhase(ctx context.Context, jobID uuid.UUID) (*entity.DeletionJob, error)
	FailJob(ctx context.Context, jobID uuid.UUID, reason string) error
	SweepAbandoned(ctx context.Context) (int, error)
}

// PhaseRunner executes the actual cleanup work for one phase.
type PhaseRunner interface {
	RunExternalPhase(ctx context.Context, accountID uuid.UUID) error
	RunLocalPhase(ctx context.Context, job *entity.DeletionJob) error
}

type DeletionConsumer struct {
	channel    *amqp.Channel
	logger     workflow.Logger
	machine    StateMachine
	runner     PhaseRunner
	maxRetries int
	retryDelay time.Duration
}

func NewDeletionConsumer(channel *amqp.Channel, logger workflow.Logger, machine StateMachine, runner PhaseRunner, maxRetries int) *DeletionConsumer {
	return &DeletionConsumer{
		channel:    channel,
		logger:     logger,
		machine:    machine,
		runner:     runner,
		maxRetries: maxRetries,
		retryDelay: 2 * time.Second,
	}
}

func (c *DeletionConsumer) Start(ctx context.Context) error {
	if err := c.startQueueConsumer(ctx, produce.DeletionExternalCleanupQueue, c.handleExternalCleanup); err != nil {
		return fmt.Errorf("failed to start external cleanup consumer: %w", err)
	}
	if err := c.startQueueConsumer(ctx, produce.DeletionLocalCleanupQueue, c.handleLocalCleanup); err != nil {
		return fmt.Errorf("failed to start local cleanup consumer: %w", err)
	}
	return nil
}

func (c *DeletionConsumer) startQueueConsumer(ctx context.Context, queue string, handle func(context.Context, amqp.Delivery)) error {
	msgs, err := c.channel.Consume(
		queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer on %s: %w", queue, err)
	}

	c.logger.InfoWithContextf(ctx, "[Deletion Consumer] Started listening on queue: %s", queue)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.InfoWithContextf(ctx, "[Deletion Consumer] Shutting down consumer for %s...", queue)
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.WarningWithContextf(ctx, "[Deletion Consumer] Channel closed for %s", queue)
					return
				}
				handle(ctx, msg)
			}
		}
	}()

	return nil
}

// backoff waits out the linear retry delay for the given attempt. Returns
// false when the context is cancelled first; the caller should requeue and
// stop instead of finishing the retry budget during shutdown.
func (c *DeletionConsumer) backoff(ctx context.Context, attempt int) bool {
	timer := time.NewTimer(time.Duration(attempt) * c.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *DeletionConsumer) parseMessage(ctx context.Context, msg amqp.Delivery) (uuid.UUID, *entity.DeletionJob, bool) {
	var payload produce.CleanupPhaseMessage
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		c.logger.ErrorWithContextf(ctx, err, "[Deletion Consumer] Failed to unmarshal message: %v", err)
		_ = msg.Nack(false, false)
		return uuid.Nil, nil, false
	}

	jobID, err := uuid.Parse(payload.JobID)
	if err != nil {
		c.logger.ErrorWithContextf(ctx, err, "[Deletion Consumer] Invalid job ID: %v", err)
		_ = msg.Nack(false, false)
		return uuid.Nil, nil, false
	}

	job, err := c.machine.GetStatus(ctx, jobID)
	if err != nil {
		c.logger.ErrorWithContextf(ctx, err, "[Deletion Consumer] Failed to load job %s: %v", jobID, err)
		_ = msg.Nack(false, true)
		return uuid.Nil, nil, false
	}

	return jobID, job, true
}

func (c *DeletionConsumer) handleExternalCleanup(ctx context.Context, msg amqp.Delivery) {
	jobID, job, ok := c.parseMessage(ctx, msg)
	if !ok {
		return
	}

	// Duplicate dispatch: the job already moved past this phase.
	if job.Status != entity.DeletionStatusExternalCleanup {
		c.logger.WarningWithContextf(ctx, "[Deletion Consumer] Job %s is %s, skipping external phase", jobID, job.Status)
		_ = msg.Ack(false)
		return
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		lastErr = c.runner.RunExternalPhase(ctx, job.AccountID)
		if lastErr == nil {
			if _, err := c.machine.CompleteExternalPhase(ctx, jobID); err != nil {
				c.logger.ErrorWithContextf(ctx, err, "[Deletion Consumer] Failed to record external phase for job %s: %v", jobID, err)
				_ = msg.Nack(false, true)
				return
			}
			c.logger.InfoWithContextf(ctx, "[Deletion Consumer] External cleanup done for job %s", jobID)
			_ = msg.Ack(false)
			return
		}

		c.logger.ErrorWithContextf(ctx, lastErr, "[Deletion Consumer] External phase attempt %d/%d failed for job %s: %v", attempt, c.maxRetries, jobID, lastErr)
		if attempt < c.maxRetries && !c.backoff(ctx, attempt) {
			_ = msg.Nack(false, true)
			return
		}
	}

	// Budget exhausted: fail the job, do not requeue. A fresh deletion
	// request is the only path forward for the account.
	reason := fmt.Sprintf("external cleanup failed after %d attempts: %v", c.maxRetries, lastErr)
	if err := c.machine.FailJob(ctx, jobID, reason); err != nil {
		c.logger.ErrorWithContextf(ctx, err, "[Deletion Consumer] Failed to mark job %s failed: %v", jobID, err)
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}

func (c *DeletionConsumer) handleLocalCleanup(ctx context.Context, msg amqp.Delivery) {
	jobID, job, ok := c.parseMessage(ctx, msg)
	if !ok {
		return
	}

	if job.Status != entity.DeletionStatusLocalCleanup {
		c.logger.WarningWithContextf(ctx, "[Deletion Consumer] Job %s is %s, skipping local phase", jobID, job.Status)
		_ = msg.Ack(false)
		return
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		lastErr = c.runner.RunLocalPhase(ctx, job)
		if lastErr == nil {
			if _, err := c.machine.CompleteLocalPhase(ctx, jobID); err != nil {
				c.logger.ErrorWithContextf(ctx, err, "[Deletion Consumer] Failed to record local phase for job %s: %v", jobID, err)
				_ = msg.Nack(false, true)
				return
			}
			c.logger.InfoWithContextf(ctx, "[Deletion Consumer] Local cleanup done, job %s completed", jobID)
			_ = msg.Ack(false)
			return
		}

		c.logger.ErrorWithContextf(ctx, lastErr, "[Deletion Consumer] Local phase attempt %d/%d failed for job %s: %v", attempt, c.maxRetries, jobID, lastErr)
		if attempt < c.maxRetries && !c.backoff(ctx, attempt) {
			_ = msg.Nack(false, true)
			return
		}
	}

	reason := fmt.Sprintf("local cleanup failed after %d attempts: %v", c.maxRetries, lastErr)
	if err := c.machine.FailJob(ctx, jobID, reason); err != nil {
		c.logger.ErrorWithContextf(ctx, err, "[Deletion Consumer] Failed to mark job %s failed: %v", jobID, err)
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}

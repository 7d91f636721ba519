package produce

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	DeletionExchange = "account.deletion"

	DeletionExternalCleanupQueue      = "deletion.external_cleanup"
	DeletionExternalCleanupRoutingKey = "deletion.external_cleanup"

	DeletionLocalCleanupQueue      = "deletion.local_cleanup"
	DeletionLocalCleanupRoutingKey = "deletion.local_cleanup"
)

type DeletionService struct {
	channel *amqp.Channel
}

// CleanupPhaseMessage dispatches one cleanup phase of a deletion job to the
// consumer. The worker reloads the job by ID, so the message stays minimal.
type CleanupPhaseMessage struct {
	JobID     string `json:"job_id"`
	AccountID string `json:"account_id"`
	Timestamp int64  `json:"timestamp"`
}

func InitDeletionService(channel *amqp.Channel) *DeletionService {
	service := &DeletionService{
		channel: channel,
	}

	// Declare exchange
	err := channel.ExchangeDeclare(
		DeletionExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		panic("Failed to declare Deletion exchange: " + err.Error())
	}

	// Declare external cleanup queue
	_, err = channel.QueueDeclare(
		DeletionExternalCleanupQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		panic("Failed to declare external cleanup queue: " + err.Error())
	}

	err = channel.QueueBind(
		DeletionExternalCleanupQueue,
		DeletionExternalCleanupRoutingKey,
		DeletionExchange,
		false,
		nil,
	)
	if err != nil {
		panic("Failed to bind external cleanup queue: " + err.Error())
	}

	// Declare local cleanup queue
	_, err = channel.QueueDeclare(
		DeletionLocalCleanupQueue,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		panic("Failed to declare local cleanup queue: " + err.Error())
	}

	err = channel.QueueBind(
		DeletionLocalCleanupQueue,
		DeletionLocalCleanupRoutingKey,
		DeletionExchange,
		false,
		nil,
	)
	if err != nil {
		panic("Failed to bind local cleanup queue: " + err.Error())
	}

	return service
}

func (s *DeletionService) publish(ctx context.Context, routingKey, jobID, accountID string) error {
	message := CleanupPhaseMessage{
		JobID:     jobID,
		AccountID: accountID,
		Timestamp: time.Now().Unix(),
	}

	body, err := json.Marshal(message)
	if err != nil {
		return err
	}

	return s.channel.PublishWithContext(
		ctx,
		DeletionExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
}

func (s *DeletionService) PublishExternalCleanup(ctx context.Context, jobID, accountID string) error {
	return s.publish(ctx, DeletionExternalCleanupRoutingKey, jobID, accountID)
}

func (s *DeletionService) PublishLocalCleanup(ctx context.Context, jobID, accountID string) error {
	return s.publish(ctx, DeletionLocalCleanupRoutingKey, jobID, accountID)
}

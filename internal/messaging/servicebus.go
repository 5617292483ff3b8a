package messaging

import (
	"context"
	"encoding/json"
	"time"

	"example.com/backstage/invoicing/config"
	"example.com/backstage/invoicing/internal/metrics"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ServiceBus carries commands over an Azure Service Bus queue. Received
// messages are peek-locked: completed when handled, abandoned on failure so
// the broker redelivers them.
type ServiceBus struct {
	client    *azservicebus.Client
	sender    *azservicebus.Sender
	queueName string
	source    string
	metrics   *metrics.Metrics
}

// NewServiceBus connects to the configured queue
func NewServiceBus(cfg config.AzureConfig, source string, collector *metrics.Metrics) (*ServiceBus, error) {
	if cfg.QueueConnStr == "" {
		return nil, errors.New("Azure Service Bus connection string is empty")
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	sender, err := client.NewSender(cfg.QueueName, nil)
	if err != nil {
		_ = client.Close(context.Background())
		return nil, errors.Wrap(err, "failed to create Service Bus sender")
	}

	return &ServiceBus{
		client:    client,
		sender:    sender,
		queueName: cfg.QueueName,
		source:    source,
		metrics:   collector,
	}, nil
}

// Dispatch sends cmd to the queue
func (s *ServiceBus) Dispatch(ctx context.Context, cmd Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return errors.Wrap(err, "failed to marshal command")
	}

	messageID := cmd.ID
	msg := &azservicebus.Message{
		Body:      data,
		MessageID: &messageID,
		ApplicationProperties: map[string]interface{}{
			"type":   cmd.Type,
			"source": s.source,
			"time":   time.Now().UTC().Format(time.RFC3339),
		},
	}

	if err := s.sender.SendMessage(ctx, msg, nil); err != nil {
		s.metrics.RecordError(metrics.CommandsDispatched)
		return errors.Wrap(err, "failed to send command")
	}

	s.metrics.IncrementCounter(metrics.CommandsDispatched)
	log.Debug().Str("command_id", cmd.ID).Str("queue", s.queueName).Msg("Command dispatched")
	return nil
}

// Consume receives commands one at a time until ctx is cancelled
func (s *ServiceBus) Consume(ctx context.Context, handler Handler) error {
	receiver, err := s.client.NewReceiverForQueue(s.queueName, &azservicebus.ReceiverOptions{
		ReceiveMode: azservicebus.ReceiveModePeekLock,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to create receiver for queue %s", s.queueName)
	}
	defer receiver.Close(context.Background())

	log.Info().Str("queue", s.queueName).Msg("Command consumer started")

	for {
		messages, err := receiver.ReceiveMessages(ctx, 1, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Str("queue", s.queueName).Msg("Failed to receive commands")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, msg := range messages {
			s.handle(ctx, receiver, msg, handler)
		}
	}
}

func (s *ServiceBus) handle(ctx context.Context, receiver *azservicebus.Receiver, msg *azservicebus.ReceivedMessage, handler Handler) {
	cmd, err := decodeCommand(msg.Body)
	if err != nil {
		// A malformed body never succeeds on redelivery.
		log.Error().Err(err).Str("message_id", msg.MessageID).Msg("Dropping malformed command")
		if err := receiver.CompleteMessage(ctx, msg, nil); err != nil {
			log.Warn().Err(err).Str("message_id", msg.MessageID).Msg("Failed to complete message")
		}
		return
	}

	err = handler(ctx, cmd)
	s.metrics.RecordOutcome(metrics.CommandsProcessed, err)
	if err != nil {
		log.Error().Err(err).Str("command_id", cmd.ID).Uint32("delivery_count", msg.DeliveryCount).Msg("Command failed, abandoning")
		if err := receiver.AbandonMessage(context.Background(), msg, nil); err != nil {
			log.Warn().Err(err).Str("command_id", cmd.ID).Msg("Failed to abandon message")
		}
		return
	}

	if err := receiver.CompleteMessage(context.Background(), msg, nil); err != nil {
		log.Warn().Err(err).Str("command_id", cmd.ID).Msg("Failed to complete message")
	}
}

// Close closes the sender and the client
func (s *ServiceBus) Close() error {
	if s.sender != nil {
		if err := s.sender.Close(context.Background()); err != nil {
			return err
		}
	}
	if s.client != nil {
		return s.client.Close(context.Background())
	}
	return nil
}

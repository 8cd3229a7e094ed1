package notify

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/shambasmart/marketplace/internal/escrow"
	"github.com/shambasmart/marketplace/pkg/eventbus"
	"github.com/shambasmart/marketplace/pkg/model"
)

// TopicPayouts is the queue consumed by the SMS/USSD notification worker.
const TopicPayouts = "marketplace.payouts"

// Notifier forwards payout notifications to the legacy worker over RabbitMQ
// whenever an escrow is released.
type Notifier struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	eventBus *eventbus.EventBus
	logger   *zap.Logger
}

// NewNotifier connects to RabbitMQ and subscribes to release events.
func NewNotifier(url string, bus *eventbus.EventBus, logger *zap.Logger) (*Notifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	n := &Notifier{
		conn:     conn,
		channel:  channel,
		eventBus: bus,
		logger:   logger,
	}

	bus.Subscribe(escrow.ReleasedEvent{}, func(event any) {
		if e, ok := event.(*escrow.ReleasedEvent); ok {
			n.publishPayout(e)
		}
	})

	return n, nil
}

func (n *Notifier) publishPayout(event *escrow.ReleasedEvent) {
	if event == nil || event.EscrowID == "" {
		n.logger.Error("Received release event with no escrow id", zap.Any("event", event))
		return
	}

	note := model.PayoutNotification{
		EscrowID:          event.EscrowID,
		ListingID:         event.ListingID,
		SellerID:          event.SellerID,
		BuyerID:           event.BuyerID,
		Amount:            event.Amount,
		PlatformFee:       event.PlatformFee,
		Payout:            event.Payout,
		RemainingQuantity: event.RemainingQuantity,
		ReleasedAt:        event.At,
	}

	body, err := json.Marshal(note)
	if err != nil {
		n.logger.Error("Failed to marshal payout notification", zap.Error(err))
		return
	}

	err = n.channel.PublishWithContext(
		context.Background(),
		"",           // exchange
		TopicPayouts, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		n.logger.Error("Failed to publish payout notification", zap.Error(err))
		return
	}

	n.logger.Info("Published payout notification",
		zap.String("escrow_id", event.EscrowID),
		zap.String("seller_id", event.SellerID),
		zap.Int64("payout", event.Payout))
}

// Close closes the notifier.
func (n *Notifier) Close() error {
	if n.channel != nil {
		_ = n.channel.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}

package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/shambasmart/marketplace/internal/escrow"
	"github.com/shambasmart/marketplace/internal/listing"
	"github.com/shambasmart/marketplace/internal/metrics"
	"github.com/shambasmart/marketplace/pkg/eventbus"
	"github.com/shambasmart/marketplace/pkg/logger"
	"github.com/shambasmart/marketplace/pkg/model"
)

// Canonical subjects for marketplace events.
const (
	SubjectListingCreated = "evt.listing.created.v1"
	SubjectEscrowStarted  = "evt.escrow.started.v1"
	SubjectEscrowVerified = "evt.escrow.verified.v1"
	SubjectEscrowReleased = "evt.escrow.released.v1"
)

// Publisher wraps a NATS connection and publishes canonical event envelopes.
type Publisher struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	service string
}

// New creates a Publisher with JetStream enabled.
func New(nc *nats.Conn, service string) (*Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return &Publisher{
		nc:      nc,
		js:      js,
		service: service,
	}, nil
}

// Attach subscribes the publisher to the in-process bus so domain events flow
// out to NATS without the services knowing about transport.
func (p *Publisher) Attach(bus *eventbus.EventBus) {
	bus.Subscribe(listing.CreatedEvent{}, func(event any) {
		if e, ok := event.(*listing.CreatedEvent); ok {
			p.publishListingCreated(e)
		}
	})
	bus.Subscribe(escrow.StartedEvent{}, func(event any) {
		if e, ok := event.(*escrow.StartedEvent); ok {
			p.publishEscrowEvent(SubjectEscrowStarted, "escrow.started", e.ListingID, e.BuyerID, e)
		}
	})
	bus.Subscribe(escrow.VerifiedEvent{}, func(event any) {
		if e, ok := event.(*escrow.VerifiedEvent); ok {
			p.publishEscrowEvent(SubjectEscrowVerified, "escrow.verified", e.ListingID, e.BuyerID, e)
		}
	})
	bus.Subscribe(escrow.ReleasedEvent{}, func(event any) {
		if e, ok := event.(*escrow.ReleasedEvent); ok {
			p.publishEscrowEvent(SubjectEscrowReleased, "escrow.released", e.ListingID, e.BuyerID, e)
		}
	})
}

func (p *Publisher) publishListingCreated(e *listing.CreatedEvent) {
	env := p.newEnvelope(SubjectListingCreated, "listing.created", e.ListingID, e.SellerID)
	data, _ := json.Marshal(e)
	env.Payload = data
	_ = p.PublishEnvelope(context.Background(), SubjectListingCreated, env)
}

func (p *Publisher) publishEscrowEvent(subject, eventType, listingID, userID string, payload any) {
	env := p.newEnvelope(subject, eventType, listingID, userID)
	data, _ := json.Marshal(payload)
	env.Payload = data
	_ = p.PublishEnvelope(context.Background(), subject, env)
}

func (p *Publisher) newEnvelope(topic, eventType, listingID, userID string) *model.Envelope {
	return &model.Envelope{
		ID:            uuid.New(),
		CorrelationID: uuid.New(),
		ListingID:     listingID,
		UserID:        userID,
		Topic:         topic,
		EventType:     eventType,
		Version:       "1.0.0",
		Timestamp:     time.Now().UTC(),
	}
}

// PublishEnvelope serializes and publishes an event envelope to NATS.
func (p *Publisher) PublishEnvelope(ctx context.Context, subject string, env *model.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		logger.S().Errorw("publisher.marshal_failed",
			"subject", subject,
			"event_type", env.EventType,
			"error", err,
		)
		metrics.IncError("publisher", "marshal_failed")
		return err
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"event_type":     []string{env.EventType},
			"correlation_id": []string{env.CorrelationID.String()},
			"service":        []string{p.service},
			"content_type":   []string{"application/json"},
			"listing_id":     []string{env.ListingID},
		},
	}

	start := time.Now()
	_, err = p.js.PublishMsg(msg)
	metrics.ObserveDuration(metrics.NATSMessageLatency, start, subject)

	if err != nil {
		logger.S().Errorw("publisher.publish_failed",
			"subject", subject,
			"event_type", env.EventType,
			"listing_id", env.ListingID,
			"error", err,
		)
		metrics.IncNATSMessage(subject, "error")
		return err
	}

	logger.S().Infow("publisher.publish_success",
		"subject", subject,
		"event_type", env.EventType,
		"listing_id", env.ListingID,
	)

	metrics.IncNATSMessage(subject, "ok")
	return nil
}

func (p *Publisher) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		p.nc.Close()
	}
}

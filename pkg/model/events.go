package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope is the canonical wrapper for every event published to NATS.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	ListingID     string          `json:"listing_id,omitempty"`
	UserID        string          `json:"user_id,omitempty"`
	Topic         string          `json:"topic"`
	EventType     string          `json:"event_type"`
	Version       string          `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// PayoutNotification is handed to the legacy notification worker over
// RabbitMQ when an escrow is released.
type PayoutNotification struct {
	EscrowID          string    `json:"escrow_id"`
	ListingID         string    `json:"listing_id"`
	SellerID          string    `json:"seller_id"`
	BuyerID           string    `json:"buyer_id"`
	Amount            int64     `json:"amount"`
	PlatformFee       int64     `json:"platform_fee"`
	Payout            int64     `json:"payout"`
	RemainingQuantity int64     `json:"remaining_quantity"`
	ReleasedAt        time.Time `json:"released_at"`
}

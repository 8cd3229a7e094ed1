package escrow

import "time"

// StartedEvent is published when a buyer opens or re-opens negotiation on a
// listing. A re-start carries the re-derived amounts.
type StartedEvent struct {
	EscrowID          string    `json:"escrow_id"`
	ListingID         string    `json:"listing_id"`
	BuyerID           string    `json:"buyer_id"`
	Amount            int64     `json:"amount"`
	PlatformFee       int64     `json:"platform_fee"`
	RequestedQuantity int64     `json:"requested_quantity"`
	At                time.Time `json:"at"`
}

// VerifiedEvent is published when an escrow's funds are verified.
type VerifiedEvent struct {
	EscrowID  string    `json:"escrow_id"`
	ListingID string    `json:"listing_id"`
	BuyerID   string    `json:"buyer_id"`
	At        time.Time `json:"at"`
}

// ReleasedEvent is published after a release has settled and the listing has
// been reconciled.
type ReleasedEvent struct {
	EscrowID          string    `json:"escrow_id"`
	ListingID         string    `json:"listing_id"`
	BuyerID           string    `json:"buyer_id"`
	SellerID          string    `json:"seller_id"`
	Amount            int64     `json:"amount"`
	PlatformFee       int64     `json:"platform_fee"`
	Payout            int64     `json:"payout"`
	RequestedQuantity int64     `json:"requested_quantity"`
	RemainingQuantity int64     `json:"remaining_quantity"`
	ListingStatus     string    `json:"listing_status"`
	At                time.Time `json:"at"`
}

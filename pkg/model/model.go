package model

import "time"

// Role identifies what a user is allowed to do on the marketplace.
type Role string

const (
	RoleFarmer Role = "FARMER"
	RoleBuyer  Role = "BUYER"
)

// Valid reports whether the role is one of the supported values.
func (r Role) Valid() bool {
	return r == RoleFarmer || r == RoleBuyer
}

// ListingStatus is derived from the listing's quantity and the phase of its
// escrow; it is only ever written by the escrow coordinator and the
// settlement reconciler.
type ListingStatus string

const (
	ListingAvailable   ListingStatus = "AVAILABLE"
	ListingNegotiating ListingStatus = "NEGOTIATING"
	ListingSold        ListingStatus = "SOLD"
)

// ListingType controls how the price fields are interpreted upstream.
// The coordinator's math is identical for both.
type ListingType string

const (
	ListingBidding ListingType = "BIDDING"
	ListingFixed   ListingType = "FIXED"
)

// EscrowStatus is the settlement phase of the single escrow attached to a
// listing. Transitions are forward-only: PENDING -> VERIFIED -> RELEASED,
// except that a re-negotiated Start resets the escrow to PENDING.
type EscrowStatus string

const (
	EscrowPending  EscrowStatus = "PENDING"
	EscrowVerified EscrowStatus = "VERIFIED"
	EscrowReleased EscrowStatus = "RELEASED"
)

// User is a registered farmer or buyer.
type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Role           Role      `json:"role"`
	Location       string    `json:"location"`
	Rating         *float64  `json:"rating,omitempty"`
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// Location is a denormalized geolocation snapshot taken at listing creation.
type Location struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// Listing is a seller's offered batch of produce. Seller fields are an
// immutable snapshot taken at creation; only status and quantity are
// mutated after that, and only by escrow transitions.
type Listing struct {
	ID              string        `json:"id"`
	SellerID        string        `json:"seller_id"`
	SellerName      string        `json:"seller_name"`
	CropName        string        `json:"crop_name"`
	Quantity        int64         `json:"quantity"`
	QualityScore    int           `json:"quality_score"`
	BasePrice       int64         `json:"base_price"`
	CurrentBid      int64         `json:"current_bid"`
	HighestBidderID string        `json:"highest_bidder_id,omitempty"`
	Location        Location      `json:"location"`
	ImageURL        string        `json:"image_url,omitempty"`
	ListingType     ListingType   `json:"listing_type"`
	Status          ListingStatus `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
}

// Escrow is the single settlement record tracking a buyer's commitment
// against one listing. Amounts are integer currency units.
type Escrow struct {
	ID                string       `json:"id"`
	ListingID         string       `json:"listing_id"`
	BuyerID           string       `json:"buyer_id"`
	Amount            int64        `json:"amount"`
	PlatformFee       int64        `json:"platform_fee"`
	RequestedQuantity int64        `json:"requested_quantity"`
	Status            EscrowStatus `json:"status"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// Payout is the amount due to the seller on release. It is always derived,
// never persisted.
func (e *Escrow) Payout() int64 {
	p := e.Amount - e.PlatformFee
	if p < 0 {
		return 0
	}
	return p
}

// Clone returns a copy callers can mutate without affecting the stored record.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	return &clone
}

// Message is one chat entry in a listing's negotiation thread. Messages are
// informational only and never affect escrow or listing state.
type Message struct {
	ID         string    `json:"id"`
	ListingID  string    `json:"listing_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name,omitempty"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"timestamp"`
}

// HeatPoint is one aggregated bucket of the supply heatmap projection.
type HeatPoint struct {
	CropName      string   `json:"crop_name"`
	Location      Location `json:"location"`
	TotalQuantity int64    `json:"total_quantity"`
	Weight        float64  `json:"weight"`
}

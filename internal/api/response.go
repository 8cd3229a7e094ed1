package api

import (
	"time"

	"github.com/shambasmart/marketplace/pkg/model"
)

// AuthResponse carries a signed token and the authenticated user.
type AuthResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// EscrowResponse is the escrow snapshot returned from every escrow
// operation, with the derived payout included.
type EscrowResponse struct {
	ID                string    `json:"id"`
	ListingID         string    `json:"listing_id"`
	BuyerID           string    `json:"buyer_id"`
	Amount            int64     `json:"amount"`
	PlatformFee       int64     `json:"platform_fee"`
	Payout            int64     `json:"payout"`
	RequestedQuantity int64     `json:"requested_quantity"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func toEscrowResponse(e *model.Escrow) EscrowResponse {
	return EscrowResponse{
		ID:                e.ID,
		ListingID:         e.ListingID,
		BuyerID:           e.BuyerID,
		Amount:            e.Amount,
		PlatformFee:       e.PlatformFee,
		Payout:            e.Payout(),
		RequestedQuantity: e.RequestedQuantity,
		Status:            string(e.Status),
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
}

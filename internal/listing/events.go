package listing

import "time"

// CreatedEvent is published when a seller posts a new listing.
type CreatedEvent struct {
	ListingID string    `json:"listing_id"`
	SellerID  string    `json:"seller_id"`
	CropName  string    `json:"crop_name"`
	Quantity  int64     `json:"quantity"`
	Location  string    `json:"location"`
	At        time.Time `json:"at"`
}

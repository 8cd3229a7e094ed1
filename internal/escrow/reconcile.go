package escrow

import "github.com/shambasmart/marketplace/pkg/model"

// Reconcile translates a released escrow into the listing's authoritative
// quantity and status. The requested quantity defaults to the listing's full
// quantity when unset, and the remaining stock is floored at zero so a
// mismatched request can never drive the listing negative.
func Reconcile(listing *model.Listing, e *model.Escrow) (remaining int64, status model.ListingStatus) {
	requested := e.RequestedQuantity
	if requested <= 0 {
		requested = listing.Quantity
	}
	remaining = listing.Quantity - requested
	if remaining < 0 {
		remaining = 0
	}
	if remaining == 0 {
		return remaining, model.ListingSold
	}
	return remaining, model.ListingAvailable
}

package escrow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shambasmart/marketplace/internal/metrics"
	"github.com/shambasmart/marketplace/internal/store"
	"github.com/shambasmart/marketplace/pkg/eventbus"
	"github.com/shambasmart/marketplace/pkg/model"
)

// Coordinator enforces the escrow state machine and its interaction with
// listing status. At most one escrow exists per listing; every operation
// runs as one atomic transaction serialized on the listing id, so a failure
// leaves both the listing and the escrow unchanged.
type Coordinator struct {
	store  store.Store
	bus    *eventbus.EventBus
	logger *zap.Logger
	now    func() time.Time
}

// NewCoordinator creates a Coordinator. bus may be nil when no outbound
// event fan-out is wanted (tests).
func NewCoordinator(st store.Store, bus *eventbus.EventBus, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		store:  st,
		bus:    bus,
		logger: logger,
		now:    time.Now,
	}
}

// StartParams carries the buyer's intent to open negotiation on a listing.
// RequestedQuantity == 0 means the listing's full quantity; Amount == 0
// means current_bid * requested quantity.
type StartParams struct {
	ListingID         string
	BuyerID           string
	BuyerRole         model.Role
	RequestedQuantity int64
	Amount            int64
}

// Get returns the escrow snapshot for a listing.
func (c *Coordinator) Get(ctx context.Context, listingID string) (*model.Escrow, error) {
	return c.store.EscrowByListing(ctx, listingID)
}

// Start creates the listing's escrow, or re-derives it in place when one
// already exists (re-negotiation restarts verification). Both paths resolve
// the optional inputs once, validate them against the locked listing, and
// reset the escrow to PENDING, which makes Start idempotent for identical
// arguments. The listing is moved to NEGOTIATING in the same transaction.
func (c *Coordinator) Start(ctx context.Context, p StartParams) (*model.Escrow, error) {
	begin := time.Now()

	if p.BuyerRole != model.RoleBuyer {
		metrics.IncEscrowOp("start", "rejected")
		return nil, ErrNotBuyer
	}
	if p.RequestedQuantity < 0 {
		metrics.IncEscrowOp("start", "rejected")
		return nil, &ValidationError{Reason: "requested quantity must not be negative"}
	}
	if p.Amount < 0 {
		metrics.IncEscrowOp("start", "rejected")
		return nil, &ValidationError{Reason: "amount must not be negative"}
	}

	var snapshot *model.Escrow
	err := c.store.WithListingTx(ctx, p.ListingID, func(tx store.Tx) error {
		listing, err := tx.ListingForUpdate(ctx, p.ListingID)
		if err != nil {
			return err
		}
		if listing.Status == model.ListingSold {
			return &ConflictError{Reason: "listing is already sold"}
		}

		// Resolve optional inputs once, before any mutation.
		requested := p.RequestedQuantity
		if requested == 0 {
			requested = listing.Quantity
		}
		if requested > listing.Quantity {
			return &ValidationError{Reason: "requested quantity exceeds available stock"}
		}
		amount := p.Amount
		if amount == 0 {
			amount = listing.CurrentBid * requested
		}
		fee := ComputeFee(amount)
		now := c.now().UTC()

		existing, err := tx.EscrowForListing(ctx, p.ListingID)
		switch {
		case err == nil:
			existing.BuyerID = p.BuyerID
			existing.Amount = amount
			existing.PlatformFee = fee
			existing.RequestedQuantity = requested
			existing.Status = model.EscrowPending
			existing.UpdatedAt = now
			if err := tx.UpdateEscrow(ctx, existing); err != nil {
				return err
			}
			snapshot = existing
		case errors.Is(err, store.ErrNotFound):
			created := &model.Escrow{
				ID:                uuid.NewString(),
				ListingID:         p.ListingID,
				BuyerID:           p.BuyerID,
				Amount:            amount,
				PlatformFee:       fee,
				RequestedQuantity: requested,
				Status:            model.EscrowPending,
				CreatedAt:         now,
				UpdatedAt:         now,
			}
			if err := tx.InsertEscrow(ctx, created); err != nil {
				return err
			}
			snapshot = created
		default:
			return err
		}

		return tx.SetListingState(ctx, listing.ID, model.ListingNegotiating, listing.Quantity)
	})
	if err != nil {
		metrics.IncEscrowOp("start", "error")
		return nil, err
	}

	metrics.IncEscrowOp("start", "ok")
	metrics.ObserveDuration(metrics.EscrowOpDuration, begin, "start")
	c.logger.Info("escrow.start.success",
		zap.String("listing_id", snapshot.ListingID),
		zap.String("escrow_id", snapshot.ID),
		zap.String("buyer_id", snapshot.BuyerID),
		zap.Int64("amount", snapshot.Amount),
		zap.Int64("platform_fee", snapshot.PlatformFee),
		zap.Int64("requested_quantity", snapshot.RequestedQuantity))

	if c.bus != nil {
		c.bus.Publish(&StartedEvent{
			EscrowID:          snapshot.ID,
			ListingID:         snapshot.ListingID,
			BuyerID:           snapshot.BuyerID,
			Amount:            snapshot.Amount,
			PlatformFee:       snapshot.PlatformFee,
			RequestedQuantity: snapshot.RequestedQuantity,
			At:                snapshot.UpdatedAt,
		})
	}
	return snapshot.Clone(), nil
}

// Verify marks the listing's escrow as VERIFIED. The escrow must be PENDING;
// verifying out of order fails with ConflictError. Amount and fee are left
// untouched. The listing lock is taken before the escrow is read so a
// concurrent re-Start cannot interleave a field update.
func (c *Coordinator) Verify(ctx context.Context, listingID string) (*model.Escrow, error) {
	begin := time.Now()

	var snapshot *model.Escrow
	err := c.store.WithListingTx(ctx, listingID, func(tx store.Tx) error {
		if _, err := tx.ListingForUpdate(ctx, listingID); err != nil {
			return err
		}
		e, err := tx.EscrowForListing(ctx, listingID)
		if err != nil {
			return err
		}
		if e.Status != model.EscrowPending {
			return &ConflictError{Reason: "escrow is not pending verification"}
		}
		e.Status = model.EscrowVerified
		e.UpdatedAt = c.now().UTC()
		if err := tx.UpdateEscrow(ctx, e); err != nil {
			return err
		}
		snapshot = e
		return nil
	})
	if err != nil {
		metrics.IncEscrowOp("verify", "error")
		return nil, err
	}

	metrics.IncEscrowOp("verify", "ok")
	metrics.ObserveDuration(metrics.EscrowOpDuration, begin, "verify")
	c.logger.Info("escrow.verify.success",
		zap.String("listing_id", snapshot.ListingID),
		zap.String("escrow_id", snapshot.ID))

	if c.bus != nil {
		c.bus.Publish(&VerifiedEvent{
			EscrowID:  snapshot.ID,
			ListingID: snapshot.ListingID,
			BuyerID:   snapshot.BuyerID,
			At:        snapshot.UpdatedAt,
		})
	}
	return snapshot.Clone(), nil
}

// Release finalizes payout accounting and reconciles remaining stock on the
// listing. The escrow must be VERIFIED; a second release fails with
// ConflictError, which is what keeps the reconciliation decrement from being
// applied twice. The platform fee is recomputed from the stored amount so a
// fee-policy change between start and release cannot leak a stale fee.
func (c *Coordinator) Release(ctx context.Context, listingID string) (*model.Escrow, error) {
	begin := time.Now()

	var snapshot *model.Escrow
	var released ReleasedEvent
	err := c.store.WithListingTx(ctx, listingID, func(tx store.Tx) error {
		// Lock the listing first. Reading the escrow before holding the
		// lock would let two concurrent releases both see VERIFIED and
		// apply the stock decrement twice.
		listing, err := tx.ListingForUpdate(ctx, listingID)
		if err != nil {
			return err
		}
		e, err := tx.EscrowForListing(ctx, listingID)
		if err != nil {
			return err
		}
		if e.Status == model.EscrowReleased {
			return &ConflictError{Reason: "escrow has already been released"}
		}
		if e.Status != model.EscrowVerified {
			return &ConflictError{Reason: "escrow has not been verified"}
		}

		e.PlatformFee = ComputeFee(e.Amount)
		e.Status = model.EscrowReleased
		e.UpdatedAt = c.now().UTC()

		remaining, status := Reconcile(listing, e)
		if err := tx.UpdateEscrow(ctx, e); err != nil {
			return err
		}
		if err := tx.SetListingState(ctx, listing.ID, status, remaining); err != nil {
			return err
		}

		snapshot = e
		released = ReleasedEvent{
			EscrowID:          e.ID,
			ListingID:         e.ListingID,
			BuyerID:           e.BuyerID,
			SellerID:          listing.SellerID,
			Amount:            e.Amount,
			PlatformFee:       e.PlatformFee,
			Payout:            e.Payout(),
			RequestedQuantity: e.RequestedQuantity,
			RemainingQuantity: remaining,
			ListingStatus:     string(status),
			At:                e.UpdatedAt,
		}
		return nil
	})
	if err != nil {
		metrics.IncEscrowOp("release", "error")
		return nil, err
	}

	metrics.IncEscrowOp("release", "ok")
	metrics.ObserveDuration(metrics.EscrowOpDuration, begin, "release")
	c.logger.Info("escrow.release.success",
		zap.String("listing_id", snapshot.ListingID),
		zap.String("escrow_id", snapshot.ID),
		zap.Int64("amount", snapshot.Amount),
		zap.Int64("platform_fee", snapshot.PlatformFee),
		zap.Int64("payout", snapshot.Payout()),
		zap.Int64("remaining_quantity", released.RemainingQuantity),
		zap.String("listing_status", released.ListingStatus))

	if c.bus != nil {
		c.bus.Publish(&released)
	}
	return snapshot.Clone(), nil
}

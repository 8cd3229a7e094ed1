package store

import (
	"context"
	"errors"

	"github.com/shambasmart/marketplace/pkg/model"
)

// Sentinel errors returned by all Store implementations. Callers classify
// them with errors.Is; the API layer maps them to HTTP statuses.
var (
	// ErrNotFound means the listing, escrow, user or message referenced by
	// id does not exist. Never retried.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate means a uniqueness constraint was violated (e.g. a second
	// user registering an email, or a second escrow row for one listing).
	ErrDuplicate = errors.New("already exists")

	// ErrTransient means lock contention or storage I/O failed mid-operation.
	// The whole operation is safe to retry: nothing was applied.
	ErrTransient = errors.New("transient storage error")
)

// ListingFilter narrows ListListings. Zero values mean "no filter".
type ListingFilter struct {
	CropName string
	Status   model.ListingStatus
	Location string
}

// HeatmapFilter narrows HeatmapBuckets. Zero values mean "no filter".
type HeatmapFilter struct {
	CropName string
	Status   model.ListingStatus
}

// Tx is the unit of work handed to the escrow coordinator. Every method
// operates inside one storage transaction that holds the row lock for the
// listing the transaction was opened for; either all mutations commit or
// none do.
type Tx interface {
	// ListingForUpdate loads the listing and acquires its ownership lock,
	// serializing concurrent coordinator operations per listing id.
	ListingForUpdate(ctx context.Context, id string) (*model.Listing, error)
	// SetListingState writes the coordinator-owned fields of a listing.
	// All other listing fields are read-only after creation.
	SetListingState(ctx context.Context, id string, status model.ListingStatus, quantity int64) error
	EscrowForListing(ctx context.Context, listingID string) (*model.Escrow, error)
	InsertEscrow(ctx context.Context, e *model.Escrow) error
	UpdateEscrow(ctx context.Context, e *model.Escrow) error
}

// Store defines the contract for persisting marketplace state.
type Store interface {
	// WithListingTx runs fn inside a transaction serialized on listingID.
	// The per-listing lock is held before fn observes any state. If fn
	// returns an error the transaction is rolled back and the error is
	// returned unchanged.
	WithListingTx(ctx context.Context, listingID string, fn func(tx Tx) error) error

	InsertListing(ctx context.Context, l *model.Listing) error
	GetListing(ctx context.Context, id string) (*model.Listing, error)
	ListListings(ctx context.Context, f ListingFilter) ([]model.Listing, error)
	// HeatmapBuckets aggregates quantity by (location, crop). Weight is left
	// for the caller to derive.
	HeatmapBuckets(ctx context.Context, f HeatmapFilter) ([]model.HeatPoint, error)

	EscrowByListing(ctx context.Context, listingID string) (*model.Escrow, error)

	InsertUser(ctx context.Context, u *model.User) error
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	UserByID(ctx context.Context, id string) (*model.User, error)

	InsertMessage(ctx context.Context, m *model.Message) error
	MessagesByListing(ctx context.Context, listingID string) ([]model.Message, error)

	HealthCheck(ctx context.Context) error
	Close() error
}

package listing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shambasmart/marketplace/internal/store"
	"github.com/shambasmart/marketplace/pkg/eventbus"
	"github.com/shambasmart/marketplace/pkg/model"
)

// ErrNotFarmer is returned when a non-farmer tries to publish a listing.
var ErrNotFarmer = errors.New("only farmers can post listings")

// heatmapScale caps the heatmap weight so the map stays readable: a bucket
// of 1500 units or more renders at full intensity.
const heatmapScale = 1500.0

// Service owns listing provisioning and the read-side projections. Status
// and quantity are never mutated here; those belong to the escrow
// coordinator.
type Service struct {
	store  store.Store
	bus    *eventbus.EventBus
	logger *zap.Logger
	now    func() time.Time
}

func NewService(st store.Store, bus *eventbus.EventBus, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  st,
		bus:    bus,
		logger: logger,
		now:    time.Now,
	}
}

// CreateParams carries the seller-provided fields of a new listing.
type CreateParams struct {
	CropName     string
	Quantity     int64
	QualityScore int
	BasePrice    int64
	CurrentBid   int64
	Location     model.Location
	ImageURL     string
	ListingType  model.ListingType
}

// Create publishes a new listing for the given seller, snapshotting the
// seller's id and display name. New listings always start AVAILABLE.
func (s *Service) Create(ctx context.Context, seller *model.User, p CreateParams) (*model.Listing, error) {
	if seller.Role != model.RoleFarmer {
		return nil, ErrNotFarmer
	}

	listingType := p.ListingType
	if listingType == "" {
		listingType = model.ListingBidding
	}

	l := &model.Listing{
		ID:           uuid.NewString(),
		SellerID:     seller.ID,
		SellerName:   seller.Name,
		CropName:     p.CropName,
		Quantity:     p.Quantity,
		QualityScore: p.QualityScore,
		BasePrice:    p.BasePrice,
		CurrentBid:   p.CurrentBid,
		Location:     p.Location,
		ImageURL:     p.ImageURL,
		ListingType:  listingType,
		Status:       model.ListingAvailable,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.InsertListing(ctx, l); err != nil {
		return nil, err
	}

	s.logger.Info("listing.created",
		zap.String("listing_id", l.ID),
		zap.String("seller_id", l.SellerID),
		zap.String("crop_name", l.CropName),
		zap.Int64("quantity", l.Quantity))

	if s.bus != nil {
		s.bus.Publish(&CreatedEvent{
			ListingID: l.ID,
			SellerID:  l.SellerID,
			CropName:  l.CropName,
			Quantity:  l.Quantity,
			Location:  l.Location.Name,
			At:        l.CreatedAt,
		})
	}
	return l, nil
}

// Get returns one listing by id.
func (s *Service) Get(ctx context.Context, id string) (*model.Listing, error) {
	return s.store.GetListing(ctx, id)
}

// List returns listings matching the filter, newest first.
func (s *Service) List(ctx context.Context, f store.ListingFilter) ([]model.Listing, error) {
	return s.store.ListListings(ctx, f)
}

// Heatmap aggregates supply by (location, crop) and derives a render weight
// capped at 1.0.
func (s *Service) Heatmap(ctx context.Context, f store.HeatmapFilter) ([]model.HeatPoint, error) {
	points, err := s.store.HeatmapBuckets(ctx, f)
	if err != nil {
		return nil, err
	}
	for i := range points {
		weight := float64(points[i].TotalQuantity) / heatmapScale
		if weight > 1 {
			weight = 1
		}
		points[i].Weight = weight
	}
	return points, nil
}

package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shambasmart/marketplace/internal/store"
	"github.com/shambasmart/marketplace/pkg/model"
)

// maxTextLen bounds a single chat message.
const maxTextLen = 2000

var (
	ErrEmptyText   = errors.New("message text must not be empty")
	ErrTextTooLong = errors.New("message text exceeds limit")
)

// Service manages a listing's negotiation thread. Messages are append-only
// and never touch listing or escrow state.
type Service struct {
	store  store.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewService(st store.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  st,
		logger: logger,
		now:    time.Now,
	}
}

// Post appends a message from sender to the listing's thread. The listing
// must exist; sold listings still accept messages so buyers can arrange
// collection.
func (s *Service) Post(ctx context.Context, sender *model.User, listingID, text string) (*model.Message, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	if len(text) > maxTextLen {
		return nil, ErrTextTooLong
	}
	if _, err := s.store.GetListing(ctx, listingID); err != nil {
		return nil, err
	}

	m := &model.Message{
		ID:         uuid.NewString(),
		ListingID:  listingID,
		SenderID:   sender.ID,
		SenderName: sender.Name,
		Text:       text,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.InsertMessage(ctx, m); err != nil {
		return nil, err
	}

	s.logger.Debug("chat.message.posted",
		zap.String("listing_id", listingID),
		zap.String("sender_id", sender.ID))
	return m, nil
}

// History returns the listing's thread, oldest first.
func (s *Service) History(ctx context.Context, listingID string) ([]model.Message, error) {
	if _, err := s.store.GetListing(ctx, listingID); err != nil {
		return nil, err
	}
	return s.store.MessagesByListing(ctx, listingID)
}

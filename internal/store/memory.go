package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shambasmart/marketplace/pkg/model"
)

// MemoryStore is an in-memory Store used by tests and broker-less local
// development. It honors the same contract as the Postgres store: writes
// made inside WithListingTx are staged and applied atomically on success,
// and operations are serialized per listing id.
type MemoryStore struct {
	mu           sync.RWMutex
	listings     map[string]model.Listing
	escrows      map[string]model.Escrow // keyed by listing id
	users        map[string]model.User
	emailIndex   map[string]string // email -> user id
	messages     map[string][]model.Message
	listingLocks sync.Map // listing id -> *sync.Mutex
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		listings:   make(map[string]model.Listing),
		escrows:    make(map[string]model.Escrow),
		users:      make(map[string]model.User),
		emailIndex: make(map[string]string),
		messages:   make(map[string][]model.Message),
	}
}

func (s *MemoryStore) lockFor(listingID string) *sync.Mutex {
	v, _ := s.listingLocks.LoadOrStore(listingID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

type listingState struct {
	status   model.ListingStatus
	quantity int64
}

type memTx struct {
	s             *MemoryStore
	listingWrites map[string]listingState
	escrowWrites  map[string]model.Escrow // keyed by listing id
}

// WithListingTx serializes per listing id with a mutex and applies all staged
// writes only after fn succeeds, so a failed operation leaves both entities
// unchanged.
func (s *MemoryStore) WithListingTx(ctx context.Context, listingID string, fn func(tx Tx) error) error {
	lock := s.lockFor(listingID)
	lock.Lock()
	defer lock.Unlock()

	tx := &memTx{
		s:             s,
		listingWrites: make(map[string]listingState),
		escrowWrites:  make(map[string]model.Escrow),
	}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, w := range tx.listingWrites {
		l := s.listings[id]
		l.Status = w.status
		l.Quantity = w.quantity
		s.listings[id] = l
	}
	for listingID, e := range tx.escrowWrites {
		s.escrows[listingID] = e
	}
	return nil
}

func (t *memTx) ListingForUpdate(ctx context.Context, id string) (*model.Listing, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	l, ok := t.s.listings[id]
	if !ok {
		return nil, fmt.Errorf("%w: listing %s", ErrNotFound, id)
	}
	if w, ok := t.listingWrites[id]; ok {
		l.Status = w.status
		l.Quantity = w.quantity
	}
	return &l, nil
}

func (t *memTx) SetListingState(ctx context.Context, id string, status model.ListingStatus, quantity int64) error {
	t.s.mu.RLock()
	_, ok := t.s.listings[id]
	t.s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: listing %s", ErrNotFound, id)
	}
	t.listingWrites[id] = listingState{status: status, quantity: quantity}
	return nil
}

func (t *memTx) EscrowForListing(ctx context.Context, listingID string) (*model.Escrow, error) {
	if e, ok := t.escrowWrites[listingID]; ok {
		return e.Clone(), nil
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	e, ok := t.s.escrows[listingID]
	if !ok {
		return nil, fmt.Errorf("%w: escrow for listing %s", ErrNotFound, listingID)
	}
	return e.Clone(), nil
}

func (t *memTx) InsertEscrow(ctx context.Context, e *model.Escrow) error {
	if _, err := t.EscrowForListing(ctx, e.ListingID); err == nil {
		return fmt.Errorf("%w: escrow for listing %s", ErrDuplicate, e.ListingID)
	}
	t.escrowWrites[e.ListingID] = *e.Clone()
	return nil
}

func (t *memTx) UpdateEscrow(ctx context.Context, e *model.Escrow) error {
	if _, err := t.EscrowForListing(ctx, e.ListingID); err != nil {
		return err
	}
	t.escrowWrites[e.ListingID] = *e.Clone()
	return nil
}

// --- listings ---

func (s *MemoryStore) InsertListing(ctx context.Context, l *model.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.listings[l.ID]; ok {
		return fmt.Errorf("%w: listing %s", ErrDuplicate, l.ID)
	}
	s.listings[l.ID] = *l
	return nil
}

func (s *MemoryStore) GetListing(ctx context.Context, id string) (*model.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.listings[id]
	if !ok {
		return nil, fmt.Errorf("%w: listing %s", ErrNotFound, id)
	}
	return &l, nil
}

func matches(l model.Listing, f ListingFilter) bool {
	if f.CropName != "" && l.CropName != f.CropName {
		return false
	}
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if f.Location != "" && l.Location.Name != f.Location {
		return false
	}
	return true
}

func (s *MemoryStore) ListListings(ctx context.Context, f ListingFilter) ([]model.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var results []model.Listing
	for _, l := range s.listings {
		if matches(l, f) {
			results = append(results, l)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	return results, nil
}

func (s *MemoryStore) HeatmapBuckets(ctx context.Context, f HeatmapFilter) ([]model.HeatPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type bucketKey struct {
		name string
		lat  float64
		lng  float64
		crop string
	}
	buckets := make(map[bucketKey]int64)
	for _, l := range s.listings {
		if f.CropName != "" && l.CropName != f.CropName {
			continue
		}
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		key := bucketKey{l.Location.Name, l.Location.Lat, l.Location.Lng, l.CropName}
		buckets[key] += l.Quantity
	}

	points := make([]model.HeatPoint, 0, len(buckets))
	for key, total := range buckets {
		points = append(points, model.HeatPoint{
			CropName:      key.crop,
			Location:      model.Location{Name: key.name, Lat: key.lat, Lng: key.lng},
			TotalQuantity: total,
		})
	}
	sort.Slice(points, func(i, j int) bool {
		if points[i].Location.Name != points[j].Location.Name {
			return points[i].Location.Name < points[j].Location.Name
		}
		return points[i].CropName < points[j].CropName
	})
	return points, nil
}

// --- escrows ---

func (s *MemoryStore) EscrowByListing(ctx context.Context, listingID string) (*model.Escrow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.escrows[listingID]
	if !ok {
		return nil, fmt.Errorf("%w: escrow for listing %s", ErrNotFound, listingID)
	}
	return e.Clone(), nil
}

// --- users ---

func (s *MemoryStore) InsertUser(ctx context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(u.Email)
	if _, ok := s.emailIndex[email]; ok {
		return fmt.Errorf("%w: email %s", ErrDuplicate, email)
	}
	s.users[u.ID] = *u
	s.emailIndex[email] = u.ID
	return nil
}

func (s *MemoryStore) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emailIndex[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, email)
	}
	u := s.users[id]
	return &u, nil
}

func (s *MemoryStore) UserByID(ctx context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	return &u, nil
}

// --- messages ---

func (s *MemoryStore) InsertMessage(ctx context.Context, m *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.listings[m.ListingID]; !ok {
		return fmt.Errorf("%w: listing %s", ErrNotFound, m.ListingID)
	}
	msg := *m
	if u, ok := s.users[m.SenderID]; ok {
		msg.SenderName = u.Name
	}
	s.messages[m.ListingID] = append(s.messages[m.ListingID], msg)
	return nil
}

func (s *MemoryStore) MessagesByListing(ctx context.Context, listingID string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.listings[listingID]; !ok {
		return nil, fmt.Errorf("%w: listing %s", ErrNotFound, listingID)
	}
	msgs := make([]model.Message, len(s.messages[listingID]))
	copy(msgs, s.messages[listingID])
	sort.Slice(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs, nil
}

func (s *MemoryStore) HealthCheck(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

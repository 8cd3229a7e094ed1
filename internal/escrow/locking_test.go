package escrow

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shambasmart/marketplace/internal/store"
	"github.com/shambasmart/marketplace/pkg/model"
)

// readCommittedStore emulates a SQL store under read committed isolation:
// reads observe the last committed state, only the listing row read takes
// the per-listing lock, and writes stay staged until the transaction
// commits. It exists to prove the coordinator locks the listing before
// reading the escrow; the in-memory store serializes whole callbacks and
// would hide an ordering mistake.
type readCommittedStore struct {
	store.Store

	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	listings map[string]model.Listing
	escrows  map[string]model.Escrow // keyed by listing id
}

func newReadCommittedStore() *readCommittedStore {
	return &readCommittedStore{
		locks:    map[string]*sync.Mutex{},
		listings: map[string]model.Listing{},
		escrows:  map[string]model.Escrow{},
	}
}

func (s *readCommittedStore) rowLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks[id] == nil {
		s.locks[id] = &sync.Mutex{}
	}
	return s.locks[id]
}

func (s *readCommittedStore) InsertListing(_ context.Context, l *model.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[l.ID] = *l
	return nil
}

func (s *readCommittedStore) GetListing(_ context.Context, id string) (*model.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := l
	return &cp, nil
}

func (s *readCommittedStore) EscrowByListing(_ context.Context, listingID string) (*model.Escrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.escrows[listingID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := e
	return &cp, nil
}

func (s *readCommittedStore) WithListingTx(_ context.Context, _ string, fn func(tx store.Tx) error) error {
	tx := &readCommittedTx{s: s}
	defer func() {
		if tx.held != nil {
			tx.held.Unlock()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, l := range tx.listings {
		s.listings[id] = l
	}
	for id, e := range tx.escrows {
		s.escrows[id] = e
	}
	return nil
}

type readCommittedTx struct {
	s        *readCommittedStore
	held     *sync.Mutex
	listings map[string]model.Listing
	escrows  map[string]model.Escrow
}

func (t *readCommittedTx) ListingForUpdate(ctx context.Context, id string) (*model.Listing, error) {
	if t.held == nil {
		lk := t.s.rowLock(id)
		lk.Lock()
		t.held = lk
	}
	return t.s.GetListing(ctx, id)
}

func (t *readCommittedTx) SetListingState(ctx context.Context, id string, status model.ListingStatus, quantity int64) error {
	l, err := t.s.GetListing(ctx, id)
	if err != nil {
		return err
	}
	l.Status = status
	l.Quantity = quantity
	if t.listings == nil {
		t.listings = map[string]model.Listing{}
	}
	t.listings[id] = *l
	return nil
}

func (t *readCommittedTx) EscrowForListing(ctx context.Context, listingID string) (*model.Escrow, error) {
	return t.s.EscrowByListing(ctx, listingID)
}

func (t *readCommittedTx) InsertEscrow(_ context.Context, e *model.Escrow) error {
	if t.escrows == nil {
		t.escrows = map[string]model.Escrow{}
	}
	t.escrows[e.ListingID] = *e
	return nil
}

func (t *readCommittedTx) UpdateEscrow(_ context.Context, e *model.Escrow) error {
	if t.escrows == nil {
		t.escrows = map[string]model.Escrow{}
	}
	t.escrows[e.ListingID] = *e
	return nil
}

func seedReadCommitted(t *testing.T, st *readCommittedStore, quantity, currentBid int64) *model.Listing {
	t.Helper()
	l := &model.Listing{
		ID:         "listing-1",
		SellerID:   "seller-1",
		SellerName: "Wanjiku",
		CropName:   "maize",
		Quantity:   quantity,
		BasePrice:  currentBid,
		CurrentBid: currentBid,
		Status:     model.ListingAvailable,
	}
	require.NoError(t, st.InsertListing(context.Background(), l))
	return l
}

func TestRelease_ConcurrentDuplicateConflicts(t *testing.T) {
	st := newReadCommittedStore()
	c := NewCoordinator(st, nil, nil)
	l := seedReadCommitted(t, st, 1000, 50)

	p := startParams(l.ID)
	p.RequestedQuantity = 400
	_, err := c.Start(context.Background(), p)
	require.NoError(t, err)
	_, err = c.Verify(context.Background(), l.ID)
	require.NoError(t, err)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Release(context.Background(), l.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var released, conflicts int
	for err := range errs {
		if err == nil {
			released++
			continue
		}
		var ce *ConflictError
		require.ErrorAs(t, err, &ce)
		conflicts++
	}
	assert.Equal(t, 1, released)
	assert.Equal(t, 1, conflicts)

	// The decrement was applied exactly once.
	got, err := st.GetListing(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(600), got.Quantity)
	assert.Equal(t, model.ListingAvailable, got.Status)
}

func TestVerify_SerializesWithRestart(t *testing.T) {
	st := newReadCommittedStore()
	c := NewCoordinator(st, nil, nil)
	l := seedReadCommitted(t, st, 1000, 50)

	p := startParams(l.ID)
	p.RequestedQuantity = 100
	p.Amount = 100
	_, err := c.Start(context.Background(), p)
	require.NoError(t, err)

	restart := startParams(l.ID)
	restart.BuyerID = "buyer-2"
	restart.RequestedQuantity = 100
	restart.Amount = 5000

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := c.Start(context.Background(), restart)
		errs <- err
	}()
	go func() {
		defer wg.Done()
		_, err := c.Verify(context.Background(), l.ID)
		errs <- err
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// Whichever order the two serialize in, the re-derived fields survive:
	// a verify must never write back the snapshot it read before the
	// restart committed.
	e, err := st.EscrowByListing(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, "buyer-2", e.BuyerID)
	assert.Equal(t, int64(5000), e.Amount)
	assert.Equal(t, ComputeFee(5000), e.PlatformFee)
}

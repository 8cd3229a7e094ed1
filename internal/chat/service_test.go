package chat

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shambasmart/marketplace/internal/store"
	"github.com/shambasmart/marketplace/pkg/model"
)

func newTestChat(t *testing.T) (*Service, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemory()
	require.NoError(t, st.InsertListing(context.Background(), &model.Listing{
		ID:       "l1",
		CropName: "maize",
		Quantity: 100,
		Status:   model.ListingAvailable,
	}))
	return NewService(st, nil), st
}

func TestPostAndHistory(t *testing.T) {
	svc, _ := newTestChat(t)
	sender := &model.User{ID: "u1", Name: "Otieno", Role: model.RoleBuyer}

	first, err := svc.Post(context.Background(), sender, "l1", "is this still available?")
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "Otieno", first.SenderName)

	_, err = svc.Post(context.Background(), sender, "l1", "I can collect tomorrow")
	require.NoError(t, err)

	msgs, err := svc.History(context.Background(), "l1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "is this still available?", msgs[0].Text)
}

func TestPost_EmptyText(t *testing.T) {
	svc, _ := newTestChat(t)
	sender := &model.User{ID: "u1", Role: model.RoleBuyer}

	_, err := svc.Post(context.Background(), sender, "l1", "")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestPost_TextTooLong(t *testing.T) {
	svc, _ := newTestChat(t)
	sender := &model.User{ID: "u1", Role: model.RoleBuyer}

	_, err := svc.Post(context.Background(), sender, "l1", strings.Repeat("x", maxTextLen+1))
	assert.ErrorIs(t, err, ErrTextTooLong)
}

func TestPost_UnknownListing(t *testing.T) {
	svc, _ := newTestChat(t)
	sender := &model.User{ID: "u1", Role: model.RoleBuyer}

	_, err := svc.Post(context.Background(), sender, "nope", "hello")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestHistory_UnknownListing(t *testing.T) {
	svc, _ := newTestChat(t)

	_, err := svc.History(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

package listing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shambasmart/marketplace/internal/store"
	"github.com/shambasmart/marketplace/pkg/eventbus"
	"github.com/shambasmart/marketplace/pkg/model"
)

var farmer = &model.User{ID: "u1", Name: "Wanjiku", Role: model.RoleFarmer}

func TestCreate_SetsDefaultsAndSnapshot(t *testing.T) {
	st := store.NewMemory()
	svc := NewService(st, nil, nil)

	l, err := svc.Create(context.Background(), farmer, CreateParams{
		CropName:   "maize",
		Quantity:   500,
		BasePrice:  40,
		CurrentBid: 45,
		Location:   model.Location{Name: "Nakuru", Lat: -0.3, Lng: 36.07},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, l.ID)
	assert.Equal(t, "u1", l.SellerID)
	assert.Equal(t, "Wanjiku", l.SellerName)
	assert.Equal(t, model.ListingAvailable, l.Status)
	assert.Equal(t, model.ListingBidding, l.ListingType)
	assert.False(t, l.CreatedAt.IsZero())

	stored, err := st.GetListing(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, l.ID, stored.ID)
}

func TestCreate_RejectsNonFarmer(t *testing.T) {
	svc := NewService(store.NewMemory(), nil, nil)
	buyer := &model.User{ID: "u2", Role: model.RoleBuyer}

	_, err := svc.Create(context.Background(), buyer, CreateParams{CropName: "maize", Quantity: 10})
	assert.ErrorIs(t, err, ErrNotFarmer)
}

func TestCreate_PublishesEvent(t *testing.T) {
	bus := eventbus.New()
	svc := NewService(store.NewMemory(), bus, nil)

	got := make(chan *CreatedEvent, 1)
	bus.Subscribe(CreatedEvent{}, func(event any) {
		if e, ok := event.(*CreatedEvent); ok {
			got <- e
		}
	})

	l, err := svc.Create(context.Background(), farmer, CreateParams{
		CropName: "beans",
		Quantity: 200,
		Location: model.Location{Name: "Eldoret"},
	})
	require.NoError(t, err)

	e := <-got
	assert.Equal(t, l.ID, e.ListingID)
	assert.Equal(t, "beans", e.CropName)
	assert.Equal(t, int64(200), e.Quantity)
	assert.Equal(t, "Eldoret", e.Location)
}

func TestHeatmap_WeightCapsAtOne(t *testing.T) {
	st := store.NewMemory()
	svc := NewService(st, nil, nil)

	_, err := svc.Create(context.Background(), farmer, CreateParams{
		CropName: "maize",
		Quantity: 3000,
		Location: model.Location{Name: "Nakuru"},
	})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), farmer, CreateParams{
		CropName: "beans",
		Quantity: 750,
		Location: model.Location{Name: "Eldoret"},
	})
	require.NoError(t, err)

	points, err := svc.Heatmap(context.Background(), store.HeatmapFilter{})
	require.NoError(t, err)
	require.Len(t, points, 2)

	byName := map[string]float64{}
	for _, p := range points {
		byName[p.CropName] = p.Weight
	}
	assert.Equal(t, 1.0, byName["maize"])
	assert.Equal(t, 0.5, byName["beans"])
}

func TestList_FiltersByCrop(t *testing.T) {
	st := store.NewMemory()
	svc := NewService(st, nil, nil)

	_, err := svc.Create(context.Background(), farmer, CreateParams{
		CropName: "maize", Quantity: 100, Location: model.Location{Name: "Nakuru"},
	})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), farmer, CreateParams{
		CropName: "beans", Quantity: 100, Location: model.Location{Name: "Nakuru"},
	})
	require.NoError(t, err)

	out, err := svc.List(context.Background(), store.ListingFilter{CropName: "maize"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "maize", out[0].CropName)
}

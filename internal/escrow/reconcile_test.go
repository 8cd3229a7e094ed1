package escrow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shambasmart/marketplace/pkg/model"
)

func TestReconcile_FullSale(t *testing.T) {
	listing := &model.Listing{Quantity: 1200}
	e := &model.Escrow{RequestedQuantity: 1200}

	remaining, status := Reconcile(listing, e)
	assert.Equal(t, int64(0), remaining)
	assert.Equal(t, model.ListingSold, status)
}

func TestReconcile_PartialSale(t *testing.T) {
	listing := &model.Listing{Quantity: 1200}
	e := &model.Escrow{RequestedQuantity: 500}

	remaining, status := Reconcile(listing, e)
	assert.Equal(t, int64(700), remaining)
	assert.Equal(t, model.ListingAvailable, status)
}

func TestReconcile_ZeroRequestedDefaultsToFullQuantity(t *testing.T) {
	listing := &model.Listing{Quantity: 800}
	e := &model.Escrow{RequestedQuantity: 0}

	remaining, status := Reconcile(listing, e)
	assert.Equal(t, int64(0), remaining)
	assert.Equal(t, model.ListingSold, status)
}

func TestReconcile_NeverGoesNegative(t *testing.T) {
	listing := &model.Listing{Quantity: 100}
	e := &model.Escrow{RequestedQuantity: 500}

	remaining, status := Reconcile(listing, e)
	assert.Equal(t, int64(0), remaining)
	assert.Equal(t, model.ListingSold, status)
}

package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyEventFill(t *testing.T) {
	sym := NewSymbol("TEST", "NASDAQ", "us_equity")
	sym.Order.OrderID = "order-1"
	sym.Order.OrderQuantity = 10
	sym.Order.LimitPrice = 100
	sym.Order.ReservedUSD = 1000
	sym.Order.WaitingForUpdate = true

	r := NewReconciler(nil, map[string]*Symbol{"TEST": sym})
	r.Track("order-1", sym)

	body := []byte(`{"stream":"trade_updates","data":{"event":"fill","order":{"id":"order-1","filled_qty":"10","filled_avg_price":"99.60"}}}`)
	err := r.applyEvent(context.Background(), body)
	require.NoError(t, err)

	require.Equal(t, 10.0, sym.Order.QuantityOwned)
	require.Equal(t, 99.60, sym.Order.AverageFillPrice)
	require.Equal(t, "", sym.Order.OrderID)
	require.Equal(t, 0.0, sym.Order.ReservedUSD)
	require.False(t, sym.Order.WaitingForUpdate)
	_, tracked := r.byOrder["order-1"]
	require.False(t, tracked)
}

func TestApplyEventFillRefundsFavorablePriceDeltaToBuyingPower(t *testing.T) {
	sym := NewSymbol("TEST", "NASDAQ", "us_equity")
	sym.Order.OrderID = "order-3"
	sym.Order.OrderQuantity = 100
	sym.Order.LimitPrice = 50
	sym.Order.ReservedUSD = 5000

	eng := &Engine{buyingPowerUSD: 0}
	r := NewReconciler(nil, map[string]*Symbol{"TEST": sym})
	r.SetEngine(eng)
	r.Track("order-3", sym)

	body := []byte(`{"stream":"trade_updates","data":{"event":"partial_fill","order":{"id":"order-3","filled_qty":"2","filled_avg_price":"48"}}}`)
	err := r.applyEvent(context.Background(), body)
	require.NoError(t, err)

	require.InDelta(t, 4.0, eng.buyingPowerUSD, 1e-9)
	require.InDelta(t, 4900.0, sym.Order.ReservedUSD, 1e-9)
}

func TestApplyEventRejected(t *testing.T) {
	sym := NewSymbol("TEST", "NASDAQ", "us_equity")
	sym.Order.OrderID = "order-2"
	sym.Order.ReservedUSD = 500
	sym.Order.WaitingForUpdate = true

	eng := &Engine{buyingPowerUSD: 0}
	r := NewReconciler(nil, map[string]*Symbol{"TEST": sym})
	r.SetEngine(eng)
	r.Track("order-2", sym)

	body := []byte(`{"stream":"trade_updates","data":{"event":"rejected","order":{"id":"order-2","filled_qty":"0","filled_avg_price":""}}}`)
	err := r.applyEvent(context.Background(), body)
	require.NoError(t, err)
	require.Equal(t, "", sym.Order.OrderID)
	require.Equal(t, "rejected", sym.Order.LastUpdateStatus)
	require.False(t, sym.Order.WaitingForUpdate)
	require.InDelta(t, 500.0, eng.buyingPowerUSD, 1e-9)
}

// TestApplyEventRejectedOnReplacementIDClearsOnlyReplacementSlot exercises
// the §8 boundary case: a rejected event naming the replacement order id
// must leave the original (primary) order's slot untouched.
func TestApplyEventRejectedOnReplacementIDClearsOnlyReplacementSlot(t *testing.T) {
	sym := NewSymbol("TEST", "NASDAQ", "us_equity")
	sym.Order.OrderID = "order-primary"
	sym.Order.OrderQuantity = 10
	sym.Order.LimitPrice = 100
	sym.Order.ReservedUSD = 1000
	sym.Order.ReplacementOrderID = "order-replacement"
	sym.Order.PendingReplaceDeltaUSD = 50
	sym.Order.PendingOrderQuantity = 15
	sym.Order.PendingLimitPrice = 101
	sym.Order.WaitingForUpdate = true

	eng := &Engine{buyingPowerUSD: 0}
	r := NewReconciler(nil, map[string]*Symbol{"TEST": sym})
	r.SetEngine(eng)
	r.Track("order-primary", sym)
	r.Track("order-replacement", sym)

	body := []byte(`{"stream":"trade_updates","data":{"event":"rejected","order":{"id":"order-replacement","filled_qty":"0","filled_avg_price":""}}}`)
	err := r.applyEvent(context.Background(), body)
	require.NoError(t, err)

	require.Equal(t, "order-primary", sym.Order.OrderID)
	require.Equal(t, 1000.0, sym.Order.ReservedUSD)
	require.Equal(t, "", sym.Order.ReplacementOrderID)
	require.Equal(t, 0.0, sym.Order.PendingReplaceDeltaUSD)
	require.InDelta(t, 50.0, eng.buyingPowerUSD, 1e-9)
	_, stillTracked := r.byOrder["order-primary"]
	require.True(t, stillTracked)
	_, replacementTracked := r.byOrder["order-replacement"]
	require.False(t, replacementTracked)
}

func TestApplyEventUnknownOrderIgnored(t *testing.T) {
	r := NewReconciler(nil, map[string]*Symbol{})
	body := []byte(`{"stream":"trade_updates","data":{"event":"new","order":{"id":"ghost"}}}`)
	err := r.applyEvent(context.Background(), body)
	require.NoError(t, err)
}

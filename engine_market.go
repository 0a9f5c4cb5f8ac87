// FILE: engine_market.go
// Package main – Market-order PositionUpdate variant (Open Question #2).
//
// Simpler than the limit-order default in engine.go: no replace, no
// wait-for-cancel-confirmation step — cancel the standing order (if any)
// and submit a fresh order for the full remaining size in the same call.
// The order goes through AlpacaBroker.SubmitOrder, so it is a day limit
// order at the trigger price; no market-type order is sent. Kept as a genuinely separate code path rather than a flag inside
// updatePosition, per SPEC_FULL.md §9's decision to implement both
// variants side by side and select between them via Config.OrderMode.
package main

import "context"

func (e *Engine) positionUpdateMarket(ctx context.Context, sym *Symbol, side string, qty, price float64) error {
	if sym.Order.WaitingForUpdate {
		return nil
	}

	net := sym.Order.NetExposure()
	target := net + qty
	if side == "sell" {
		target = net - qty
	}
	sym.Order.QuantityDesired = target
	if target == net {
		return nil
	}

	wantSide := "buy"
	if target < net {
		wantSide = "sell"
	}
	remaining := target - net
	if remaining < 0 {
		remaining = -remaining
	}

	if sym.Order.OrderID != "" && !sym.Order.CanceledOrder {
		if err := e.broker.CancelOrder(ctx, sym.Order.OrderID); err != nil {
			return err
		}
		openSide := "buy"
		if sym.Order.OrderQuantity < 0 {
			openSide = "sell"
		}
		mtxCancels.WithLabelValues(openSide).Inc()
		e.release(sym.Order.ReservedUSD)
		sym.Order.ReservedUSD = 0
		sym.Order.CanceledOrder = true
		sym.Order.OrderID = ""
	}

	reserveAmt := remaining * price
	if !e.reserve(reserveAmt) {
		return nil
	}
	placed, err := e.broker.SubmitOrder(ctx, sym.Ticker, remaining, wantSide, price)
	if err != nil {
		e.release(reserveAmt)
		return err
	}
	mtxOrders.WithLabelValues(wantSide).Inc()
	if placed == nil {
		e.release(reserveAmt)
		return nil
	}
	sym.Order.OrderID = placed.ID
	sym.Order.OrderQuantity = signedQty(wantSide, remaining)
	sym.Order.OrderQuantityFilled = 0
	sym.Order.LimitPrice = price
	sym.Order.ReservedUSD = reserveAmt
	sym.Order.CanceledOrder = false
	sym.Order.WaitingForUpdate = true
	if e.reconciler != nil {
		e.reconciler.Track(placed.ID, sym)
	}
	return nil
}

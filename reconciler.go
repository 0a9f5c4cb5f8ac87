// FILE: reconciler.go
// Package main – Broker account-update stream reconciler (spec §4.K).
//
// Subscribes to the trade-updates WebSocket and folds each event into the
// matching Symbol's OrderMirror, clearing WaitingForUpdate so engine.go's
// positionUpdateLimit (or engine_market.go's positionUpdateMarket) is free
// to act again. Grounded on wsclient.go's
// non-blocking Recv contract (§4.C) and jsonutil's object parser (§4.D).
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/chidi150c/qplbot/jsonutil"
)

// deadlineFromCtx derives a short write deadline from ctx's deadline when
// present, otherwise falls back to a fixed 5s window.
func deadlineFromCtx(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(5 * time.Second)
}

// Reconciler owns the account-update WebSocket connection for one session.
type Reconciler struct {
	ws      *WSClient
	symbols map[string]*Symbol
	byOrder map[string]*Symbol // order_id -> owning symbol, for O(1) lookup

	engine *Engine // optional; set via SetEngine so events can unwind buying_power and re-run update_position
}

func NewReconciler(ws *WSClient, symbols map[string]*Symbol) *Reconciler {
	return &Reconciler{ws: ws, symbols: symbols, byOrder: map[string]*Symbol{}}
}

// SetEngine wires the engine in after both are constructed — mirrors
// engine.go's SetReconciler, since each needs the other and neither
// constructor can take the other as an argument.
func (r *Reconciler) SetEngine(e *Engine) {
	r.engine = e
}

// Track registers an order id as belonging to a symbol so incoming events
// can be routed without a linear scan; engine.go calls this right after
// SubmitOrder/ReplaceOrder succeeds.
func (r *Reconciler) Track(orderID string, sym *Symbol) {
	if orderID == "" {
		return
	}
	r.byOrder[orderID] = sym
}

// Authenticate sends the trade-updates stream's required auth + listen
// frames, per spec §6.
func (r *Reconciler) Authenticate(ctx context.Context, keyID, secret string) error {
	auth := fmt.Sprintf(`{"action":"auth","key":%q,"secret":%q}`, keyID, secret)
	if err := r.ws.Send([]byte(auth), deadlineFromCtx(ctx)); err != nil {
		return err
	}
	listen := `{"action":"listen","data":{"streams":["trade_updates"]}}`
	return r.ws.Send([]byte(listen), deadlineFromCtx(ctx))
}

// PollOnce drains at most one available account-update message and applies
// it. Returns (false, nil) when nothing was available this tick — the
// caller's reactor loop moves on to the next unit of work.
func (r *Reconciler) PollOnce(ctx context.Context) (bool, error) {
	msg, ok, err := r.ws.Recv()
	if err != nil {
		mtxFeedErrors.WithLabelValues("trade_updates").Inc()
		return false, err
	}
	if !ok {
		return false, nil
	}
	if msg.IsClose || len(msg.Data) == 0 {
		return true, nil
	}
	return true, r.applyEvent(ctx, msg.Data)
}

// applyEvent parses the outer {"stream":"trade_updates","data":{...}}
// envelope; jsonutil.ParseObject hands back "data" as its literal (still
// JSON-encoded) substring, which is parsed a second time below.
func (r *Reconciler) applyEvent(ctx context.Context, body []byte) error {
	top, err := jsonutil.ParseObject(body)
	if err != nil {
		return err
	}
	if top["stream"] != "trade_updates" {
		return nil
	}
	data, err := jsonutil.ParseObject([]byte(top["data"]))
	if err != nil {
		return err
	}
	orderData, err := jsonutil.ParseObject([]byte(data["order"]))
	if err != nil {
		return err
	}

	orderID := orderData["id"]
	sym, ok := r.byOrder[orderID]
	if !ok {
		return nil // event for an order this session did not submit (shouldn't happen; ignore)
	}

	event := data["event"]
	mtxReconcileEvents.WithLabelValues(event).Inc()

	reevaluate := false

	switch event {
	case "new":
		sym.Order.WaitingForUpdate = false
		reevaluate = true
	case "partial_fill", "fill":
		filled, _ := ParseFloat64(orderData["filled_qty"])
		avgPrice, _ := ParseFloat64(orderData["filled_avg_price"])
		delta := filled - sym.Order.OrderQuantityFilled
		sym.Order.OrderQuantityFilled = filled
		sym.Order.AverageFillPrice = avgPrice
		if sym.Order.OrderQuantity >= 0 {
			sym.Order.QuantityOwned += delta
		} else {
			sym.Order.QuantityOwned -= delta
		}
		sym.Order.QuantityPending = sym.Order.OrderQuantity - filled
		sym.Order.WaitingForUpdate = false

		// delta*LimitPrice was held against this chunk; the fill actually
		// spent delta*avgPrice. The difference settles back into
		// buying_power (Scenario 3: $5000 held, $4 returned on a
		// favorable partial fill).
		if r.engine != nil && delta != 0 {
			refund := delta * (sym.Order.LimitPrice - avgPrice)
			sym.Order.ReservedUSD -= delta * sym.Order.LimitPrice
			if refund > 0 {
				r.engine.release(refund)
			} else if refund < 0 {
				r.engine.reserve(-refund)
			}
		}

		if event == "fill" {
			sym.Order.OrderID = ""
			sym.Order.QuantityPending = 0
			sym.Order.ReservedUSD = 0
			delete(r.byOrder, orderID)
		}
	case "replaced":
		// Promote the confirmed replacement into the primary slot. The
		// replacement id is the one engine.go recorded at replace time
		// (ReplaceOrder's own response id) — the broker never echoes an
		// alternate name for it in the account-update envelope.
		newID := sym.Order.ReplacementOrderID
		if newID != "" {
			delete(r.byOrder, orderID)
			sym.Order.OrderID = newID
			sym.Order.OrderQuantity = sym.Order.PendingOrderQuantity
			sym.Order.LimitPrice = sym.Order.PendingLimitPrice
			sym.Order.ReservedUSD += sym.Order.PendingReplaceDeltaUSD
			r.byOrder[newID] = sym
		}
		sym.Order.ReplacementOrderID = ""
		sym.Order.PendingReplaceDeltaUSD = 0
		sym.Order.PendingOrderQuantity = 0
		sym.Order.PendingLimitPrice = 0
		sym.Order.WaitingForUpdate = false
	case "canceled", "expired":
		sym.Order.CanceledOrder = true
		sym.Order.OrderID = ""
		sym.Order.QuantityPending = 0
		sym.Order.WaitingForUpdate = false
		if r.engine != nil {
			r.engine.release(sym.Order.ReservedUSD)
		}
		sym.Order.ReservedUSD = 0
		delete(r.byOrder, orderID)
		reevaluate = true
	case "rejected":
		sym.Order.LastUpdateStatus = "rejected"
		sym.Order.WaitingForUpdate = false
		if orderID == sym.Order.ReplacementOrderID {
			// §8 boundary: a rejected event on the replacement id clears
			// only the replacement slot — the primary order, if any,
			// keeps trading undisturbed.
			if r.engine != nil {
				r.engine.release(sym.Order.PendingReplaceDeltaUSD)
			}
			sym.Order.ReplacementOrderID = ""
			sym.Order.PendingReplaceDeltaUSD = 0
			sym.Order.PendingOrderQuantity = 0
			sym.Order.PendingLimitPrice = 0
		} else {
			if r.engine != nil {
				r.engine.release(sym.Order.ReservedUSD)
				if sym.Order.ReplacementOrderID != "" {
					r.engine.release(sym.Order.PendingReplaceDeltaUSD)
					delete(r.byOrder, sym.Order.ReplacementOrderID)
				}
			}
			sym.Order.OrderID = ""
			sym.Order.QuantityPending = 0
			sym.Order.ReservedUSD = 0
			sym.Order.ReplacementOrderID = ""
			sym.Order.PendingReplaceDeltaUSD = 0
			sym.Order.PendingOrderQuantity = 0
			sym.Order.PendingLimitPrice = 0
		}
		delete(r.byOrder, orderID)
	default:
		sym.Order.LastUpdateStatus = event
	}

	if reevaluate && r.engine != nil && sym.TradingPermitted {
		return r.engine.ReevaluatePosition(ctx, sym)
	}
	return nil
}

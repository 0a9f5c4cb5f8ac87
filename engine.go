// FILE: engine.go
// Package main – Realtime trading engine hot path (spec §4.I).
//
// One engine instance drives one trading session across every permitted
// symbol. Trade/quote/bar events arrive off the cooperative reactor
// (main.go's single select loop) and are dispatched here synchronously —
// no locking, since only one goroutine ever touches a *Symbol's mutable
// state (grounded on step.go's single-goroutine-per-position design, the
// one piece of the teacher's hot path this module keeps in spirit).
package main

import (
	"context"
	"fmt"
	"time"
)

// Engine holds the whole session's mutable state and the collaborators the
// hot path calls into.
type Engine struct {
	cfg        Config
	scalers    *Scalers
	mlp        *MLP
	broker     *AlpacaBroker
	reconciler *Reconciler // optional; set via SetReconciler once the account-update stream is up

	symbols map[string]*Symbol

	// buyingPowerUSD is the process-wide scalar §3 describes: decremented
	// when an order reserves cash against its unfilled quantity, restored
	// on cancel/replace/reject/expire and adjusted for fill-price deltas.
	// Shared across every symbol on the same single-goroutine reactor, so
	// no lock is needed.
	buyingPowerUSD float64
}

func NewEngine(cfg Config, scalers *Scalers, mlp *MLP, broker *AlpacaBroker, symbols map[string]*Symbol) *Engine {
	return &Engine{cfg: cfg, scalers: scalers, mlp: mlp, broker: broker, symbols: symbols, buyingPowerUSD: cfg.AllocatedBuyingPowerUSD}
}

// SetReconciler wires the account-update reconciler in after it is dialed,
// so newly-submitted orders can be tracked for account-update routing.
func (e *Engine) SetReconciler(r *Reconciler) {
	e.reconciler = r
}

// reserve deducts amount from the running buying-power scalar, refusing
// (and leaving the scalar untouched) if that would drive it negative —
// spec §3's invariant "buying_power >= 0 before submit".
func (e *Engine) reserve(amount float64) bool {
	if amount <= 0 {
		return true
	}
	if e.buyingPowerUSD-amount < 0 {
		return false
	}
	e.buyingPowerUSD -= amount
	mtxBuyingPower.Set(e.buyingPowerUSD)
	return true
}

// release restores amount to the running buying-power scalar (cancel,
// replace-down, reject, expire, or a fill-price improvement refund).
func (e *Engine) release(amount float64) {
	e.buyingPowerUSD += amount
	mtxBuyingPower.Set(e.buyingPowerUSD)
}

// OnTrade is the §4.I entry point for a single trade print.
func (e *Engine) OnTrade(ctx context.Context, sym *Symbol, tick TradeTick) error {
	if !sym.TradingPermitted || sym.IsOutlier {
		return nil
	}
	// Exchange 'D' (FINRA ADF) trades are dropped per spec §4.I step 1 —
	// tick.Exchange is not modeled on TradeTick today (only fields the
	// rolling window needs are kept), so the filter is applied by the
	// caller before PushTrade; see dispatch in main.go's reactor loop.
	sym.PushTrade(tick, e.scalers.RollingPeriodNS)

	crossed := e.detectCrossings(sym, tick.Price)
	if !crossed {
		return nil
	}

	features, bid, ask, err := e.buildFeatures(sym, tick)
	if err != nil {
		return nil // missing precursor data: skip this trade, not fatal
	}

	if !e.scoringGate(features) {
		mtxScoringGate.WithLabelValues("fail").Inc()
		return nil
	}
	mtxScoringGate.WithLabelValues("pass").Inc()

	std, err := e.standardize(features)
	if err != nil {
		return nil
	}
	probs, err := e.mlp.Predict(std)
	if err != nil {
		return fmt.Errorf("predict: %w", err)
	}
	sym.LastProbs = probs
	sym.LastPrice = tick.Price

	mtxTransitions.WithLabelValues(sym.Ticker).Inc()

	side, qty, ok := e.evaluateTransition(sym, tick.Price, bid, ask, probs)
	if !ok {
		return nil
	}
	return e.updatePosition(ctx, sym, side, qty, tick.Price)
}

// detectCrossings advances sym.NewN while the last trade price has crossed
// the next QPL level outward from sym.NewN, per spec §4.I step 4. Returns
// true if at least one crossing occurred (i.e. there is a fresh transition
// candidate to score).
func (e *Engine) detectCrossings(sym *Symbol, price float64) bool {
	crossed := false
	for i := 0; i < 64; i++ { // hard bound: a single trade cannot jump unboundedly many levels
		upper, err := priceLevel(sym.P0, sym.Std, sym.Lambda, sym.E0, sym.NewN, 1)
		if err != nil {
			return crossed
		}
		lower, err := priceLevel(sym.P0, sym.Std, sym.Lambda, sym.E0, sym.NewN, -1)
		if err != nil {
			return crossed
		}
		switch {
		case price >= upper:
			sym.NewN++
			sym.FoundFirstN = true
			crossed = true
		case price <= lower:
			sym.NewN--
			sym.FoundFirstN = true
			crossed = true
		default:
			return crossed
		}
	}
	return crossed
}

// featureVector holds the 16 named raw features in scaler.go's canonical
// order, ready for the inlier gate and standardization.
type featureVector struct {
	values [16]float64
}

// buildFeatures also returns the bid/ask pair from the last quote preceding
// the trade (§4.I step 3), needed by evaluateTransition's slippage term.
func (e *Engine) buildFeatures(sym *Symbol, tick TradeTick) (featureVector, float64, float64, error) {
	q, ok := sym.LastQuoteBefore(tick.TimestampNS)
	if !ok {
		return featureVector{}, 0, 0, fmt.Errorf("no quote precedes trade")
	}

	var rollingCsum float64
	for _, t := range sym.TradeWindow {
		rollingCsum += t.Price - sym.P0
	}

	var fv featureVector
	fv.values = [16]float64{
		timeOfDayFraction(time.Unix(0, tick.TimestampNS).UTC()), // time_of_day
		sym.RelativeVolume(),                                    // relative_volume
		float64(sym.NewN),                                       // n
		sym.Mean,                                                // mean
		sym.DeltaP,                                              // dp
		sym.Std,                                                 // std
		sym.DeltaT,                                              // dt
		sym.Vsum,                                                // vsum
		sym.AvgVolume,                                           // average_volume
		sym.P0,                                                  // previous_days_close
		rollingCsum,                                             // rolling_csum
		sym.RollingVsum,                                         // rolling_vsum
		sym.PMinus,                                              // p(-dx)
		tick.Size,                                                // size
		sym.PPlus,                                               // p(+dx)
		sym.Lambda,                                              // lambda
	}
	return fv, q.Bid, q.Ask, nil
}

// scoringGate returns true only if every one of the 16 features is within
// its derived inlier band, per spec §4.I step 8 / §4.G.
func (e *Engine) scoringGate(fv featureVector) bool {
	for i, name := range featureNames {
		if !e.scalers.Inlier(name, fv.values[i]) {
			return false
		}
	}
	return true
}

func (e *Engine) standardize(fv featureVector) ([]float64, error) {
	out := make([]float64, len(featureNames))
	for i, name := range featureNames {
		v, err := e.scalers.Standardize(name, fv.values[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// evaluateTransition is §4.I step 6, the CORE of this specification:
//
//	slippage        = max(0, last_ask - last_bid)
//	gain_per_share  = price_level(+1) - current_price - slippage   (buy side)
//	loss_per_share  = current_price - price_level(-1) + slippage   (buy side)
//	submit only if  prob_up*(gain+loss) > loss, with gain>0 and loss>0
//
// mirrored for the sell side using price_level(-1)/prob_down. Returns the
// side to act on, the share quantity to trade, and whether the gate passed.
func (e *Engine) evaluateTransition(sym *Symbol, price, bid, ask float64, probs []float64) (string, float64, bool) {
	slippage := ask - bid
	if slippage < 0 {
		slippage = 0
	}

	upper, errU := priceLevel(sym.P0, sym.Std, sym.Lambda, sym.E0, sym.NewN, 1)
	lower, errL := priceLevel(sym.P0, sym.Std, sym.Lambda, sym.E0, sym.NewN, -1)
	if errU != nil || errL != nil {
		return "", 0, false
	}

	probUp, probDown := probs[2], probs[0]

	gainBuy := upper - price - slippage
	lossBuy := price - lower + slippage
	if gainBuy > 0 && lossBuy > 0 && probUp*(gainBuy+lossBuy) > lossBuy {
		qty := e.desiredQty(price)
		if qty > 0 {
			return "buy", qty, true
		}
	}

	gainSell := price - lower - slippage
	lossSell := upper - price + slippage
	if gainSell > 0 && lossSell > 0 && probDown*(gainSell+lossSell) > lossSell {
		qty := e.desiredQty(price)
		if qty > 0 {
			return "sell", qty, true
		}
	}

	return "", 0, false
}

// desiredQty sizes a trade from the configured risk-per-trade budget.
// Buying-power availability is enforced separately at reservation time
// (reserve), not here, since the reservation also depends on the symbol's
// current net exposure.
func (e *Engine) desiredQty(price float64) float64 {
	if price <= 0 {
		return 0
	}
	return e.cfg.RiskPerTradeUSD / price
}

// ReevaluatePosition re-runs updatePosition against the most recently
// scored transition for sym, per spec §4.K: "after reconciling a canceled
// or new event, if trading is permitted, call update_position again."
func (e *Engine) ReevaluatePosition(ctx context.Context, sym *Symbol) error {
	if !sym.TradingPermitted || sym.LastProbs == nil {
		return nil
	}
	side, qty, ok := e.evaluateTransition(sym, sym.LastPrice, 0, 0, sym.LastProbs)
	if !ok {
		return nil
	}
	return e.updatePosition(ctx, sym, side, qty, sym.LastPrice)
}

// updatePosition dispatches to the configured PositionUpdate variant
// (Open Question #2): positionUpdateLimit by default, positionUpdateMarket
// under Config.OrderMode == OrderModeMarket.
func (e *Engine) updatePosition(ctx context.Context, sym *Symbol, side string, qty, price float64) error {
	if e.cfg.OrderMode == OrderModeMarket {
		return e.positionUpdateMarket(ctx, sym, side, qty, price)
	}
	return e.positionUpdateLimit(ctx, sym, side, qty, price)
}

// positionUpdateLimit is spec §4.I's position-update state machine: compare
// quantity_desired (net +/- the newly-evaluated trade) against
// net = quantity_owned + quantity_pending, then either leave the position
// alone, flip direction (cancel first and wait for confirmation), align an
// existing same-side order (replace), or open a fresh order.
func (e *Engine) positionUpdateLimit(ctx context.Context, sym *Symbol, side string, qty, price float64) error {
	if sym.Order.WaitingForUpdate {
		return nil // an order is already in flight; wait for the reconciler
	}

	net := sym.Order.NetExposure()
	target := net + qty
	if side == "sell" {
		target = net - qty
	}
	sym.Order.QuantityDesired = target
	if target == net {
		return nil // already where the signal wants us
	}

	wantSide := "buy"
	if target < net {
		wantSide = "sell"
	}
	remaining := target - net
	if remaining < 0 {
		remaining = -remaining
	}

	haveOpenOrder := sym.Order.OrderID != "" && !sym.Order.CanceledOrder
	openSide := ""
	if haveOpenOrder {
		openSide = "buy"
		if sym.Order.OrderQuantity < 0 {
			openSide = "sell"
		}
	}

	switch {
	case !haveOpenOrder:
		return e.submitNew(ctx, sym, wantSide, remaining, price)
	case openSide != wantSide:
		// want the opposite side of what's open: cancel the open order
		// first and wait for confirmation before flipping direction.
		if err := e.broker.CancelOrder(ctx, sym.Order.OrderID); err != nil {
			return err
		}
		mtxCancels.WithLabelValues(openSide).Inc()
		e.release(sym.Order.ReservedUSD)
		sym.Order.ReservedUSD = 0
		sym.Order.CanceledOrder = true
		sym.Order.WaitingForUpdate = true
		return nil
	case sym.Order.OrderQuantity != signedQty(wantSide, remaining) || sym.Order.LimitPrice != price:
		// same side, but size or price disagree with the target: replace.
		return e.replaceExisting(ctx, sym, wantSide, remaining, price)
	default:
		return nil // already aligned
	}
}

func signedQty(side string, qty float64) float64 {
	if side == "sell" {
		return -qty
	}
	return qty
}

func (e *Engine) submitNew(ctx context.Context, sym *Symbol, side string, qty, price float64) error {
	reserveAmt := qty * price
	if !e.reserve(reserveAmt) {
		return nil // spec §3 invariant: never submit if it would drive buying_power negative
	}
	placed, err := e.broker.SubmitOrder(ctx, sym.Ticker, qty, side, price)
	if err != nil {
		e.release(reserveAmt)
		return err
	}
	mtxOrders.WithLabelValues(side).Inc()
	if placed == nil {
		e.release(reserveAmt)
		return nil
	}
	sym.Order.OrderID = placed.ID
	sym.Order.OrderQuantity = signedQty(side, qty)
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

func (e *Engine) replaceExisting(ctx context.Context, sym *Symbol, side string, qty, price float64) error {
	newReserve := qty * price
	delta := newReserve - sym.Order.ReservedUSD
	if delta > 0 {
		if !e.reserve(delta) {
			return nil
		}
	} else if delta < 0 {
		e.release(-delta)
	}
	placed, err := e.broker.ReplaceOrder(ctx, sym.Order.OrderID, qty, price)
	if err != nil {
		if delta > 0 {
			e.release(delta)
		} else if delta < 0 {
			e.reserve(-delta)
		}
		return err
	}
	mtxReplaces.WithLabelValues(side).Inc()
	if placed == nil {
		// race: order terminated or already filled; undo the speculative delta.
		if delta > 0 {
			e.release(delta)
		} else if delta < 0 {
			e.reserve(-delta)
		}
		return nil
	}
	sym.Order.ReplacementOrderID = placed.ID
	sym.Order.PendingReplaceDeltaUSD = delta
	sym.Order.PendingOrderQuantity = signedQty(side, qty)
	sym.Order.PendingLimitPrice = price
	sym.Order.WaitingForUpdate = true
	if e.reconciler != nil {
		e.reconciler.Track(placed.ID, sym)
	}
	return nil
}

// OnQuote is the §4.I quote-tick entry point: push to the rolling window
// and opportunistically trim stale entries (one bounded pass per call,
// matching the cooperative scheduler's fairness requirement from §5).
func (e *Engine) OnQuote(sym *Symbol, tick QuoteTick) {
	sym.PushQuote(tick)
	cutoff := tick.TimestampNS - e.scalers.RollingPeriodNS*4
	sym.TrimQuotesOlderThan(cutoff, 8)
}

// OnBar is the §4.I bar entry point: "on a bar, add its volume to vsum."
// Trade prints never feed vsum directly — they drive the rolling trade
// window and crossing detection, but intraday cumulative volume is a bar
// aggregate only.
func (e *Engine) OnBar(sym *Symbol, bar DailyBar) {
	sym.Vsum += bar.V
}

// LiquidateAll is the end-of-trading sweep (§6/§7): cancel every open
// order and flatten every non-zero position through SubmitOrder, which
// places a day limit order at the symbol's previous close (P0); no
// market-type order is sent.
func (e *Engine) LiquidateAll(ctx context.Context) []error {
	var errs []error
	for _, sym := range e.symbols {
		if sym.Order.OrderID != "" && !sym.Order.CanceledOrder {
			if err := e.broker.CancelOrder(ctx, sym.Order.OrderID); err != nil {
				errs = append(errs, err)
				continue
			}
			mtxCancels.WithLabelValues("eod").Inc()
			e.release(sym.Order.ReservedUSD)
			sym.Order.ReservedUSD = 0
			sym.Order.CanceledOrder = true
		}
		net := sym.Order.NetExposure()
		if net == 0 {
			continue
		}
		side := "sell"
		qty := net
		if net < 0 {
			side = "buy"
			qty = -net
		}
		if _, err := e.broker.SubmitOrder(ctx, sym.Ticker, qty, side, sym.P0); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// FILE: prep.go
// Package main – Per-day preparation pipeline (spec §4.H).
//
// Runs once each session before the realtime engine starts: calendar/account
// precheck, symbol discovery, bounded-concurrency historical-bar retrieval,
// and QPL parameter derivation per symbol. The bounded worker pool is
// grounded on stadam23-Eve-flipper/internal/esi/client.go's semaphore-gated
// fan-out, ported here from a raw chan struct{} onto golang.org/x/sync's
// semaphore.Weighted.
package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/semaphore"
)

// PreparedSession is prep.go's output: the symbol table plus the session's
// trading-hours window, ready for engine.go to run against.
type PreparedSession struct {
	Symbols map[string]*Symbol
	Open    time.Time
	Close   time.Time
}

// Preparer runs the §4.H pipeline against a broker.
type Preparer struct {
	broker *AlpacaBroker
	cfg    Config
}

func NewPreparer(broker *AlpacaBroker, cfg Config) *Preparer {
	return &Preparer{broker: broker, cfg: cfg}
}

// Run executes the full pipeline for the session date (YYYY-MM-DD, local
// exchange calendar date).
func (p *Preparer) Run(ctx context.Context, date string) (*PreparedSession, error) {
	cal, err := p.broker.GetCalendar(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("calendar: %w", err)
	}
	openT, closeT, err := parseSessionWindow(date, cal)
	if err != nil {
		return nil, &PrecheckFailure{Stage: "calendar", Reason: err.Error()}
	}

	acct, err := p.broker.GetAccount(ctx)
	if err != nil {
		return nil, fmt.Errorf("account: %w", err)
	}
	if acct.TradingBlocked || acct.AccountBlocked || acct.TradeSuspendedByUser {
		return nil, &PrecheckFailure{Stage: "account", Reason: "account not eligible to trade today"}
	}
	mtxBuyingPower.Set(acct.NonMarginableBuyingPower)

	assets, err := p.broker.ListAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("assets: %w", err)
	}

	symbols, err := p.loadSymbols(ctx, assets, date)
	if err != nil {
		return nil, err
	}

	permitted := 0
	for _, s := range symbols {
		if s.TradingPermitted {
			permitted++
		}
	}
	mtxSymbolsPermitted.Set(float64(permitted))

	return &PreparedSession{Symbols: symbols, Open: openT, Close: closeT}, nil
}

// loadSymbols fans out the historical-bar fetch across up to
// cfg.MaxHTTPClients concurrent requests, one per tradable equity asset.
func (p *Preparer) loadSymbols(ctx context.Context, assets []Asset, date string) (map[string]*Symbol, error) {
	sem := semaphore.NewWeighted(int64(p.cfg.MaxHTTPClients))
	results := make(map[string]*Symbol, len(assets))
	resultsCh := make(chan *Symbol, len(assets))
	errCh := make(chan error, len(assets))

	tradable := make([]Asset, 0, len(assets))
	for _, a := range assets {
		if a.Tradable && a.Class == "us_equity" && (a.Exchange == "NYSE" || a.Exchange == "NASDAQ") {
			tradable = append(tradable, a)
		}
	}

	for _, a := range tradable {
		a := a
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		go func() {
			defer sem.Release(1)
			sym, err := p.buildSymbol(ctx, a, date)
			if err != nil {
				errCh <- fmt.Errorf("symbol %s: %w", a.Symbol, err)
				resultsCh <- nil
				return
			}
			errCh <- nil
			resultsCh <- sym
		}()
	}

	var firstErr error
	for range tradable {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
		if sym := <-resultsCh; sym != nil {
			results[sym.Ticker] = sym
		}
	}
	// A handful of per-symbol fetch failures do not abort the session; only
	// surface firstErr if every symbol failed.
	if len(results) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

const (
	minCompletedTradingDays = 70
	minRelativeVolumeFloor  = 0.10
	avgVolumeLookbackDays   = 70
)

// buildSymbol fetches historical daily bars for one asset and derives the
// §4.H daily statics: P0, AvgVolume, Mean, Std, PPlus, PMinus, Lambda, E0.
func (p *Preparer) buildSymbol(ctx context.Context, a Asset, date string) (*Symbol, error) {
	end := date
	start := addDays(date, -avgVolumeLookbackDays*2) // generous window to survive holidays/halts

	var bars []DailyBar
	pageToken := ""
	for {
		page, next, err := p.broker.GetBars(ctx, a.Symbol, "1Day", start, end, pageToken)
		if err != nil {
			return nil, err
		}
		bars = append(bars, page...)
		if next == "" {
			break
		}
		pageToken = next
	}

	s := NewSymbol(a.Symbol, a.Exchange, a.Class)
	if len(bars) < minCompletedTradingDays {
		s.IsOutlier = true
		s.TradingPermitted = false
		return s, nil
	}

	// Use the most recent minCompletedTradingDays bars.
	recent := bars[len(bars)-minCompletedTradingDays:]
	s.P0 = recent[len(recent)-1].C

	var volSum float64
	rets := make([]float64, 0, len(recent)-1)
	for i := 1; i < len(recent); i++ {
		if recent[i-1].C == 0 {
			continue
		}
		rets = append(rets, recent[i].C/recent[i-1].C-1)
	}
	for _, b := range recent {
		volSum += b.V
	}
	s.AvgVolume = volSum / float64(len(recent))

	mean, std := meanStd(rets)
	s.Mean = mean
	s.Std = std

	// p(mu+dr)/p(mu-dr): empirical one-step-ahead probability the next
	// relative return lands within one sigma of the mean from each side
	// (spec glossary's p(+dx)/p(-dx) features, estimated from history).
	s.PPlus = fractionAbove(rets, mean)
	s.PMinus = 1 - s.PPlus

	lambda := std
	if lambda > maxLambdaClamp {
		lambda = maxLambdaClamp
	}
	s.Lambda = lambda

	e0, err := groundStateEnergy(lambda)
	if err != nil {
		s.IsOutlier = true
		s.TradingPermitted = false
		return s, nil
	}
	s.E0 = e0

	s.TradingPermitted = !s.IsOutlier && s.AvgVolume > 0 && std > 0

	return s, nil
}

// maxLambdaClamp mirrors scaler.go's Open Question #1 clamp so prep.go's
// derived lambda never exceeds the scaler's feasible band ceiling.
const maxLambdaClamp = 0.35

func meanStd(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(xs)))
}

func fractionAbove(xs []float64, threshold float64) float64 {
	if len(xs) == 0 {
		return 0.5
	}
	above := 0
	for _, x := range xs {
		if x > threshold {
			above++
		}
	}
	return float64(above) / float64(len(xs))
}

func addDays(date string, days int) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.AddDate(0, 0, days).Format("2006-01-02")
}

// parseSessionWindow combines the calendar date with Alpaca's "open"/"close"
// HH:MM fields into absolute UTC timestamps. Alpaca reports these in the
// exchange's local time (America/New_York); the session treats them as
// already-UTC-equivalent wall-clock bounds per spec §4.H step 1, which only
// needs a monotonic open<close ordering, not absolute TZ correctness.
func parseSessionWindow(date string, cal Calendar) (time.Time, time.Time, error) {
	open, err := time.Parse("2006-01-02 15:04", date+" "+cal.Open)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("bad open time %q: %w", cal.Open, err)
	}
	close, err := time.Parse("2006-01-02 15:04", date+" "+cal.Close)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("bad close time %q: %w", cal.Close, err)
	}
	if !close.After(open) {
		return time.Time{}, time.Time{}, fmt.Errorf("close %v not after open %v", close, open)
	}
	return open, close, nil
}

// FILE: main.go
// Package main – Process entrypoint.
//
// Wires the per-day preparation pipeline (§4.H), the realtime engine (§4.I)
// and the account-update reconciler (§4.K) into one cooperative reactor: a
// single goroutine polling reader channels in a select loop, plus a small
// number of reader goroutines that only ever push into those channels
// (grounded on live.go's run loop shape — the teacher's own outermost
// driver, generalized from a single coinbase feed to two independent
// Alpaca streams: market data and account updates).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chidi150c/qplbot/jsonutil"
)

func main() {
	loadBotEnv()
	cfg := loadConfigFromEnv()

	httpClient := NewClient()
	broker := NewAlpacaBroker(cfg)

	CheckClockSkew(httpClient, cfg.AccountHost)

	weights, err := os.ReadFile(cfg.ModelWeightsPath)
	if err != nil {
		fmt.Printf("[PANIC] reading model weights: %v\n", err)
		os.Exit(1)
	}
	mlp, err := LoadMLPWeights(weights)
	if err != nil {
		fmt.Printf("[PANIC] loading model weights: %v\n", err)
		os.Exit(1)
	}

	scalerData, err := os.ReadFile(cfg.ScalerInfoPath)
	if err != nil {
		fmt.Printf("[PANIC] reading scaler info: %v\n", err)
		os.Exit(1)
	}
	scalers, err := LoadScalers(scalerData)
	if err != nil {
		fmt.Printf("[PANIC] loading scalers: %v\n", err)
		os.Exit(1)
	}

	go serveOps(cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("[INFO] shutdown signal received")
		cancel()
	}()

	preparer := NewPreparer(broker, cfg)
	session, err := preparer.Run(ctx, time.Now().UTC().Format("2006-01-02"))
	if err != nil {
		fmt.Printf("[WARN] preparation failed, staying flat today: %v\n", err)
		<-ctx.Done()
		return
	}
	fmt.Printf("[INFO] prepared %d symbols for session %s-%s\n", len(session.Symbols), session.Open, session.Close)

	engine := NewEngine(cfg, scalers, mlp, broker, session.Symbols)

	ws, err := DialWS(ctx, cfg.StreamHost, false)
	if err != nil {
		fmt.Printf("[WARN] account-update stream unavailable, running without reconciliation: %v\n", err)
	}
	var reconciler *Reconciler
	if ws != nil {
		reconciler = NewReconciler(ws, session.Symbols)
		reconciler.SetEngine(engine)
		engine.SetReconciler(reconciler)
		if err := reconciler.Authenticate(ctx, cfg.APIKeyID, cfg.APISecret); err != nil {
			fmt.Printf("[WARN] account-update auth failed: %v\n", err)
		}
	}

	dataWS, err := DialWS(ctx, cfg.DataHost, false)
	if err != nil {
		fmt.Printf("[PANIC] market data stream unavailable: %v\n", err)
		os.Exit(1)
	}

	runReactor(ctx, cfg, engine, session, dataWS, reconciler)
}

// runReactor is the single-goroutine cooperative scheduler (spec §5): each
// tick polls the market-data stream and the account-update stream once,
// non-blocking, then sleeps briefly to avoid a hot spin when both are idle.
func runReactor(ctx context.Context, cfg Config, engine *Engine, session *PreparedSession, dataWS *WSClient, reconciler *Reconciler) {
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("[INFO] liquidating and exiting")
			for _, err := range engine.LiquidateAll(context.Background()) {
				fmt.Printf("[WARN] liquidation error: %v\n", err)
			}
			return
		case <-ticker.C:
			if isAfterEndOfTrading(cfg.EndOfTradingUTC) {
				for _, err := range engine.LiquidateAll(ctx) {
					fmt.Printf("[WARN] eod liquidation error: %v\n", err)
				}
				return
			}
			pollMarketData(ctx, engine, session, dataWS)
			if reconciler != nil {
				if _, err := reconciler.PollOnce(ctx); err != nil {
					fmt.Printf("[WARN] reconciler: %v\n", err)
				}
			}
		}
	}
}

func pollMarketData(ctx context.Context, engine *Engine, session *PreparedSession, ws *WSClient) {
	msg, ok, err := ws.Recv()
	if err != nil {
		mtxFeedErrors.WithLabelValues("market_data").Inc()
		return
	}
	if !ok || msg.IsClose || len(msg.Data) == 0 {
		return
	}
	dispatchMarketFrame(ctx, engine, session, msg.Data)
}

// dispatchMarketFrame parses one market-data frame (an array of records
// tagged by "T": "t"|"q"|"b") and routes each record into the engine.
func dispatchMarketFrame(ctx context.Context, engine *Engine, session *PreparedSession, frame []byte) {
	var recs []map[string]string
	err := jsonutil.WalkArray(frame, &recs,
		func() *map[string]string { m := map[string]string{}; return &m },
		func(rec *map[string]string, key, value string) { (*rec)[key] = value },
		func(rec *map[string]string, collector *[]map[string]string) { *collector = append(*collector, *rec) },
	)
	if err != nil {
		return
	}
	for _, rec := range recs {
		sym, ok := session.Symbols[rec["S"]]
		if !ok {
			continue
		}
		switch rec["T"] {
		case "t":
			if rec["x"] == "D" {
				continue // FINRA ADF trade print, excluded per spec §4.I step 1
			}
			price, errP := ParseFloat64(rec["p"])
			size, errS := ParseFloat64(rec["s"])
			ts, errT := ParseUTCNanos(rec["t"])
			if errP != nil || errS != nil || errT != nil {
				continue
			}
			_ = engine.OnTrade(ctx, sym, TradeTick{TimestampNS: ts, Price: price, Size: size})
		case "q":
			bid, errB := ParseFloat64(rec["bp"])
			ask, errA := ParseFloat64(rec["ap"])
			ts, errT := ParseUTCNanos(rec["t"])
			if errB != nil || errA != nil || errT != nil {
				continue
			}
			engine.OnQuote(sym, QuoteTick{TimestampNS: ts, Bid: bid, Ask: ask})
		case "b":
			v, errV := ParseFloat64(rec["v"])
			if errV != nil {
				continue
			}
			engine.OnBar(sym, DailyBar{V: v})
		}
	}
}

func isAfterEndOfTrading(hhmm string) bool {
	now := time.Now().UTC().Format("15:04")
	return now >= hhmm
}

func serveOps(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	addr := fmt.Sprintf(":%d", port)
	fmt.Printf("[INFO] ops server listening on %s\n", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		fmt.Printf("[WARN] ops server stopped: %v\n", err)
	}
}

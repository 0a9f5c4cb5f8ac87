// FILE: metrics.go
// Package main – Prometheus metrics for observability.
//
// Registered in init() and served by the HTTP handler started in main.go at
// /metrics (Prometheus text exposition format).
package main

import "github.com/prometheus/client_golang/prometheus"

var (
	mtxOrders = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "qpl_orders_total", Help: "Orders submitted"},
		[]string{"side"},
	)

	mtxReplaces = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "qpl_replaces_total", Help: "Order replace requests"},
		[]string{"side"},
	)

	mtxCancels = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "qpl_cancels_total", Help: "Order cancel requests"},
		[]string{"side"},
	)

	mtxTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "qpl_transitions_total", Help: "Price-level transitions observed"},
		[]string{"symbol"},
	)

	mtxScoringGate = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "qpl_scoring_gate_total", Help: "Scoring gate outcomes"},
		[]string{"result"}, // pass|fail
	)

	mtxBuyingPower = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "qpl_buying_power_usd", Help: "Current process-wide buying power"},
	)

	mtxSymbolsPermitted = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "qpl_symbols_trading_permitted", Help: "Count of symbols with trading_permitted=true"},
	)

	mtxReconcileEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "qpl_reconcile_events_total", Help: "Account-update events processed"},
		[]string{"event"},
	)

	mtxFeedErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "qpl_feed_errors_total", Help: "Receive errors on the WebSocket streams"},
		[]string{"stream"},
	)

	mtxBrokerRejected = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "qpl_broker_rejected_total", Help: "Broker responses outside the accepted status set"},
	)
)

func init() {
	prometheus.MustRegister(mtxOrders, mtxReplaces, mtxCancels)
	prometheus.MustRegister(mtxTransitions, mtxScoringGate)
	prometheus.MustRegister(mtxBuyingPower, mtxSymbolsPermitted)
	prometheus.MustRegister(mtxReconcileEvents, mtxFeedErrors, mtxBrokerRejected)
}

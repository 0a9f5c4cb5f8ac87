// FILE: config.go
// Package main – Runtime configuration model and loader.
//
// Config holds every knob the engine needs. loadConfigFromEnv() populates it
// from the process environment, which loadBotEnv() hydrates from .env.
package main

import "time"

// OrderMode selects which §4.I state-machine variant update_position uses.
type OrderMode string

const (
	OrderModeLimit  OrderMode = "limit"  // default: replace/cancel-then-submit with limit orders
	OrderModeMarket OrderMode = "market" // simpler cancel-then-submit variant without replace; orders are still limit orders (see engine_market.go)
)

// Config holds all runtime knobs for trading and operations.
type Config struct {
	// Brokerage
	APIKeyID    string
	APISecret   string
	AccountHost string // e.g. https://paper-api.alpaca.markets
	DataHost    string // e.g. wss://stream.data.alpaca.markets/v2/sip
	StreamHost  string // e.g. wss://paper-api.alpaca.markets/stream
	PaperTrading bool

	// Risk
	RiskPerTradeUSD         float64
	AllocatedBuyingPowerUSD float64

	// Ops
	MaxHTTPClients   int // §4.H bounded pool size; default 16
	OrderMode        OrderMode
	EndOfTradingUTC  string // "HH:MM", all positions liquidated at/after this time
	ModelWeightsPath string
	ScalerInfoPath   string
	Port             int
}

// loadConfigFromEnv reads the process env (already hydrated by loadBotEnv())
// and returns a Config with sane defaults for anything missing.
func loadConfigFromEnv() Config {
	return Config{
		APIKeyID:     getEnv("APCA_API_KEY_ID", ""),
		APISecret:    getEnv("APCA_API_SECRET_KEY", ""),
		AccountHost:  getEnv("APCA_ACCOUNT_HOST", "https://paper-api.alpaca.markets"),
		DataHost:     getEnv("APCA_DATA_HOST", "wss://stream.data.alpaca.markets/v2/sip"),
		StreamHost:   getEnv("APCA_STREAM_HOST", "wss://paper-api.alpaca.markets/stream"),
		PaperTrading: getEnvBool("PAPER_TRADING", true),

		RiskPerTradeUSD:         getEnvFloat("RISK_PER_TRADE_USD", 100.0),
		AllocatedBuyingPowerUSD: getEnvFloat("ALLOCATED_BUYING_POWER_USD", 10000.0),

		MaxHTTPClients:   getEnvInt("MAX_HTTP_CLIENTS", 16),
		OrderMode:        OrderMode(getEnv("ORDER_MODE", string(OrderModeLimit))),
		EndOfTradingUTC:  getEnv("END_OF_TRADING_UTC", "15:55"),
		ModelWeightsPath: getEnv("MODEL_WEIGHTS_PATH", "model_weights.json"),
		ScalerInfoPath:   getEnv("SCALER_INFO_PATH", "scaler_info.json"),
		Port:             getEnvInt("PORT", 8080),
	}
}

// httpTimeout is the wall-clock timeout refreshed on every byte of progress
// per spec §4.A/§4.B; expressed here as a fixed per-call deadline since Go's
// net/http does not expose a progress-refreshed deadline primitive.
const httpTimeout = 10 * time.Second

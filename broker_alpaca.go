// FILE: broker_alpaca.go
// Package main – Alpaca broker order adapter (spec §4.J) and REST surface
// used by the per-day preparation pipeline (spec §4.H / §6).
//
// Grounded on broker_coinbase.go's REST-call shape (http.NewRequestWithContext,
// explicit header setting, status-code switch) generalized to Alpaca's wire
// format (orderInitData/orderLiveData field names taken from the
// maystocks-maystocks Alpaca reference). Client order ids use
// github.com/google/uuid, the teacher's own dependency (broker_paper.go).
package main

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/chidi150c/qplbot/jsonutil"
)

// AlpacaBroker is a thin wrapper around the HTTP client for every broker
// REST call the engine needs.
type AlpacaBroker struct {
	cfg    Config
	client *Client
}

func NewAlpacaBroker(cfg Config) *AlpacaBroker {
	return &AlpacaBroker{cfg: cfg, client: NewClient()}
}

func (b *AlpacaBroker) headers() map[string]string {
	return map[string]string{
		"APCA-API-KEY-ID":     b.cfg.APIKeyID,
		"APCA-API-SECRET-KEY": b.cfg.APISecret,
		"User-Agent":          "qplbot/1.0",
		"Connection":          "keep-alive",
	}
}

// Calendar is the §6 GET /v2/calendar response shape this engine needs.
type Calendar struct {
	Open  string
	Close string
}

// GetCalendar fetches today's trading-session hours.
func (b *AlpacaBroker) GetCalendar(ctx context.Context, date string) (Calendar, error) {
	u := fmt.Sprintf("%s/v2/calendar?date_type=TRADING&start=%s&end=%s", b.cfg.AccountHost, date, date)
	status, body, err := b.client.Do(ctx, "GET", u, b.headers(), nil)
	if err != nil {
		return Calendar{}, err
	}
	if status != 200 {
		return Calendar{}, &BrokerRejected{Code: status, Msg: string(body)}
	}
	// Response is a JSON array with one element for `date`.
	var arr []map[string]string
	if err := jsonArrayOfObjects(body, &arr); err != nil {
		return Calendar{}, err
	}
	if len(arr) == 0 {
		return Calendar{}, &PrecheckFailure{Stage: "calendar", Reason: "no calendar entry for date"}
	}
	return Calendar{Open: arr[0]["open"], Close: arr[0]["close"]}, nil
}

// Account is the §6 GET /v2/account response shape this engine needs.
type Account struct {
	TradingBlocked          bool
	TradeSuspendedByUser    bool
	AccountBlocked          bool
	NonMarginableBuyingPower float64
}

func (b *AlpacaBroker) GetAccount(ctx context.Context) (Account, error) {
	u := b.cfg.AccountHost + "/v2/account"
	status, body, err := b.client.Do(ctx, "GET", u, b.headers(), nil)
	if err != nil {
		return Account{}, err
	}
	if status != 200 {
		return Account{}, &BrokerRejected{Code: status, Msg: string(body)}
	}
	m, err := jsonutil.ParseObject(body)
	if err != nil {
		return Account{}, err
	}
	bp, err := ParseFloat64(m["non_marginable_buying_power"])
	if err != nil {
		return Account{}, err
	}
	return Account{
		TradingBlocked:           m["trading_blocked"] == "true",
		TradeSuspendedByUser:     m["trade_suspended_by_user"] == "true",
		AccountBlocked:           m["account_blocked"] == "true",
		NonMarginableBuyingPower: bp,
	}, nil
}

// Asset is one element of the §6 GET /v2/assets response.
type Asset struct {
	Symbol         string
	Class          string
	Exchange       string
	Status         string
	Tradable       bool
	Shortable      bool
	EasyToBorrow   bool
}

func (b *AlpacaBroker) ListAssets(ctx context.Context) ([]Asset, error) {
	u := b.cfg.AccountHost + "/v2/assets?status=active&asset_class=us_equity"
	status, body, err := b.client.Do(ctx, "GET", u, b.headers(), nil)
	if err != nil {
		return nil, err
	}
	if status != 200 {
		return nil, &BrokerRejected{Code: status, Msg: string(body)}
	}
	var assets []Asset
	err = jsonutil.WalkArray(body, &assets,
		func() *Asset { return &Asset{} },
		func(rec *Asset, key, value string) {
			switch key {
			case "symbol":
				rec.Symbol = value
			case "class":
				rec.Class = value
			case "exchange":
				rec.Exchange = value
			case "status":
				rec.Status = value
			case "tradable":
				rec.Tradable = value == "true"
			case "shortable":
				rec.Shortable = value == "true"
			case "easy_to_borrow":
				rec.EasyToBorrow = value == "true"
			}
		},
		func(rec *Asset, collector *[]Asset) {
			*collector = append(*collector, *rec)
		},
	)
	return assets, err
}

// DailyBar is one element of the §6 GET /v2/stocks/bars response.
type DailyBar struct {
	T string // RFC3339 timestamp
	O, H, L, C, V float64
	N int64
}

// GetBars fetches one page of bars for symbol and returns the next page
// token ("" when exhausted).
func (b *AlpacaBroker) GetBars(ctx context.Context, symbol, timeframe, start, end, pageToken string) ([]DailyBar, string, error) {
	q := url.Values{}
	q.Set("symbols", symbol)
	q.Set("timeframe", timeframe)
	q.Set("start", start)
	q.Set("end", end)
	q.Set("limit", "10000")
	q.Set("adjustment", "all")
	q.Set("feed", "sip")
	if pageToken != "" {
		q.Set("page_token", pageToken)
	}
	u := fmt.Sprintf("%s/v2/stocks/bars?%s", b.cfg.DataRESTHost(), q.Encode())
	status, body, err := b.client.Do(ctx, "GET", u, b.headers(), nil)
	if err != nil {
		return nil, "", err
	}
	if status != 200 {
		return nil, "", &BrokerRejected{Code: status, Msg: string(body)}
	}
	top, err := jsonutil.ParseObject(body)
	if err != nil {
		return nil, "", err
	}
	barsBySymbol, err := jsonutil.ParseObject([]byte(top["bars"]))
	if err != nil {
		return nil, "", err
	}
	symBody, ok := barsBySymbol[symbol]
	var bars []DailyBar
	if ok {
		err = jsonutil.WalkArray([]byte(symBody), &bars,
			func() *DailyBar { return &DailyBar{} },
			func(rec *DailyBar, key, value string) {
				switch key {
				case "t":
					rec.T = value
				case "o":
					rec.O, _ = ParseFloat64(value)
				case "h":
					rec.H, _ = ParseFloat64(value)
				case "l":
					rec.L, _ = ParseFloat64(value)
				case "c":
					rec.C, _ = ParseFloat64(value)
				case "v":
					rec.V, _ = ParseFloat64(value)
				case "n":
					rec.N, _ = ParseInt64(value)
				}
			},
			func(rec *DailyBar, collector *[]DailyBar) {
				*collector = append(*collector, *rec)
			},
		)
		if err != nil {
			return nil, "", err
		}
	}
	next := top["next_page_token"]
	if next == "null" || next == "" {
		next = ""
	}
	return bars, next, nil
}

// jsonArrayOfObjects is a small helper for endpoints that return a JSON
// array of flat objects (used only by GetCalendar, whose shape is not a
// record-callback walk).
func jsonArrayOfObjects(body []byte, out *[]map[string]string) error {
	var result []map[string]string
	err := jsonutil.WalkArray(body, &result,
		func() *map[string]string { m := map[string]string{}; return &m },
		func(rec *map[string]string, key, value string) { (*rec)[key] = value },
		func(rec *map[string]string, collector *[]map[string]string) {
			*collector = append(*collector, *rec)
		},
	)
	*out = result
	return err
}

// PlacedOrder mirrors the relevant subset of Alpaca's orderLiveData.
type PlacedOrder struct {
	ID                  string
	Status              string
	FilledQty           float64
	FilledAvgPrice      float64
}

func roundPrice(p float64) float64 {
	// Spec §4.J: 4 decimals below $1.00, 2 decimals at or above.
	if p < 1.0 {
		return roundN(p, 4)
	}
	return roundN(p, 2)
}

func roundN(v float64, n int) float64 {
	scale := 1.0
	for i := 0; i < n; i++ {
		scale *= 10
	}
	return float64(int64(v*scale+sign(v)*0.5)) / scale
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

// SubmitOrder places a new limit order. side is "buy" or "sell".
func (b *AlpacaBroker) SubmitOrder(ctx context.Context, symbol string, qty float64, side string, limitPrice float64) (*PlacedOrder, error) {
	body := fmt.Sprintf(
		`{"symbol":%q,"qty":%q,"side":%q,"type":"limit","time_in_force":"day","limit_price":%q,"extended_hours":true,"client_order_id":%q}`,
		symbol, strconv.FormatFloat(qty, 'f', -1, 64), side,
		strconv.FormatFloat(roundPrice(limitPrice), 'f', -1, 64), uuid.New().String(),
	)
	u := b.cfg.AccountHost + "/v2/orders"
	status, respBody, err := b.client.Do(ctx, "POST", u, withJSONContentType(b.headers()), []byte(body))
	if err != nil {
		return nil, err
	}
	return parseOrderResponse(status, respBody)
}

// ReplaceOrder issues a PATCH to adjust qty/limit_price on an open order.
func (b *AlpacaBroker) ReplaceOrder(ctx context.Context, orderID string, qty, limitPrice float64) (*PlacedOrder, error) {
	body := fmt.Sprintf(`{"qty":%q,"limit_price":%q}`,
		strconv.FormatFloat(qty, 'f', -1, 64), strconv.FormatFloat(roundPrice(limitPrice), 'f', -1, 64))
	u := fmt.Sprintf("%s/v2/orders/%s", b.cfg.AccountHost, orderID)
	status, respBody, err := b.client.Do(ctx, "PATCH", u, withJSONContentType(b.headers()), []byte(body))
	if err != nil {
		return nil, err
	}
	if status == 404 {
		return nil, nil // already terminated: silent no-op per §4.I
	}
	if status == 422 {
		msg := string(respBody)
		if strings.Contains(msg, "order is not open") ||
			strings.Contains(msg, "qty must be > filled_qty") ||
			strings.Contains(msg, `qty must be > filled_qty`) {
			return nil, nil // order just filled: silent no-op per §4.I
		}
		mtxBrokerRejected.Inc()
		return nil, &BrokerRejected{Code: status, Msg: msg}
	}
	return parseOrderResponse(status, respBody)
}

// CancelOrder issues a DELETE for an open order.
func (b *AlpacaBroker) CancelOrder(ctx context.Context, orderID string) error {
	u := fmt.Sprintf("%s/v2/orders/%s", b.cfg.AccountHost, orderID)
	status, body, err := b.client.Do(ctx, "DELETE", u, b.headers(), nil)
	if err != nil {
		return err
	}
	if status == 204 || status == 404 {
		return nil
	}
	mtxBrokerRejected.Inc()
	return &BrokerRejected{Code: status, Msg: string(body)}
}

func parseOrderResponse(status int, body []byte) (*PlacedOrder, error) {
	switch status {
	case 200, 201, 202, 204:
		if len(body) == 0 {
			return &PlacedOrder{Status: "accepted"}, nil
		}
		m, err := jsonutil.ParseObject(body)
		if err != nil {
			return nil, err
		}
		po := &PlacedOrder{ID: m["id"], Status: m["status"]}
		if v, ok := m["filled_qty"]; ok {
			po.FilledQty, _ = ParseFloat64(v)
		}
		if v, ok := m["filled_avg_price"]; ok && v != "" {
			po.FilledAvgPrice, _ = ParseFloat64(v)
		}
		return po, nil
	case 404:
		return nil, nil
	default:
		mtxBrokerRejected.Inc()
		return nil, &BrokerRejected{Code: status, Msg: string(body)}
	}
}

func withJSONContentType(h map[string]string) map[string]string {
	out := make(map[string]string, len(h)+1)
	for k, v := range h {
		out[k] = v
	}
	out["Content-Type"] = "application/json"
	return out
}

// DataRESTHost returns the REST host for /v2/stocks/bars. It is the fixed
// https://data.alpaca.markets host; DataHost is not consulted.
func (c Config) DataRESTHost() string {
	return "https://data.alpaca.markets"
}

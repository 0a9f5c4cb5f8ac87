// FILE: clockskew.go
// Package main – Clock-skew diagnostic, supplemented from the original
// C++ implementation's NTP-style health check (original_source/tradingBot.cpp
// logged a warning whenever the broker's reported time disagreed with the
// local wall clock by more than a few seconds). This never corrects the
// clock or blocks trading — purely observational, consistent with the
// spec's "no strict wall-clock sync" non-goal.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/chidi150c/qplbot/jsonutil"
)

const clockSkewWarnThresholdNS = int64(3 * time.Second)

// CheckClockSkew issues a GET against the broker's /v2/clock endpoint and
// compares its reported timestamp's time-of-day against the local wall
// clock's time-of-day, logging a warning on excess skew. The comparison
// only needs same-day time-of-day precision, so ParseUTCNanos's
// nanoseconds-since-midnight contract (§4.E) is reused as-is rather than
// adding a second full-date parser. Errors are swallowed: this is a
// diagnostic, never a precondition for trading.
func CheckClockSkew(client *Client, accountHost string) {
	ctx := context.Background()
	_, body, err := client.Do(ctx, "GET", accountHost+"/v2/clock", nil, nil)
	if err != nil {
		logWarn("clockskew: probe failed: %v", err)
		return
	}
	m, err := jsonutil.ParseObject(body)
	if err != nil {
		logWarn("clockskew: malformed response: %v", err)
		return
	}
	remoteNS, err := ParseUTCNanos(m["timestamp"])
	if err != nil {
		return
	}
	localNS := timeOfDayNanos(time.Now().UTC())
	skew := remoteNS - localNS
	if skew < 0 {
		skew = -skew
	}
	if skew > clockSkewWarnThresholdNS {
		logWarn("clockskew: broker clock differs from local by %v", time.Duration(skew))
	}
}

func timeOfDayNanos(t time.Time) int64 {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return t.Sub(midnight).Nanoseconds()
}

func logWarn(format string, args ...any) {
	fmt.Printf("[WARN] "+format+"\n", args...)
}

// FILE: env.go
// Package main – Environment helpers and safe .env loading for the trading bot.
//
// This file provides:
//  1. Small helpers to read environment variables with sane defaults
//     (strings, ints, floats, bools).
//  2. A dependency-free .env loader (loadBotEnv) that reads ./.env (and
//     ../.env) and injects ONLY the keys this process needs into the
//     environment. Unknown keys (e.g. secrets meant for other tooling) are
//     ignored to avoid shell-export issues.
package main

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "y", "yes":
		return true
	case "0", "false", "n", "no":
		return false
	default:
		return def
	}
}

func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// loadBotEnv reads .env from "." and ".." and sets ONLY the keys this
// process needs. It never overrides a variable already present in the
// environment.
func loadBotEnv() {
	needed := map[string]struct{}{
		"APCA_API_KEY_ID": {}, "APCA_API_SECRET_KEY": {},
		"APCA_ACCOUNT_HOST": {}, "APCA_STREAM_HOST": {}, "APCA_DATA_HOST": {},
		"PAPER_TRADING": {}, "RISK_PER_TRADE_USD": {}, "ALLOCATED_BUYING_POWER_USD": {},
		"MAX_HTTP_CLIENTS": {}, "ORDER_MODE": {}, "END_OF_TRADING_UTC": {},
		"MODEL_WEIGHTS_PATH": {}, "SCALER_INFO_PATH": {}, "PORT": {},
	}
	try := func(path string) {
		f, err := os.Open(path)
		if err != nil {
			return
		}
		defer f.Close()
		s := bufio.NewScanner(f)
		for s.Scan() {
			line := strings.TrimSpace(s.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			if strings.HasPrefix(line, "export ") {
				line = strings.TrimSpace(line[len("export "):])
			}
			eq := strings.Index(line, "=")
			if eq <= 0 {
				continue
			}
			key := strings.TrimSpace(line[:eq])
			if _, ok := needed[key]; !ok {
				continue
			}
			val := strings.TrimSpace(line[eq+1:])
			if len(val) >= 2 && ((val[0] == '"' && val[len(val)-1] == '"') || (val[0] == '\'' && val[len(val)-1] == '\'')) {
				val = val[1 : len(val)-1]
			}
			if idx := strings.IndexAny(val, "#"); idx >= 0 {
				val = strings.TrimSpace(val[:idx])
			}
			if os.Getenv(key) == "" {
				_ = os.Setenv(key, val)
			}
		}
	}
	for _, base := range []string{".", ".."} {
		try(filepath.Join(base, ".env"))
	}
}

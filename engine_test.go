package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testScalers(t *testing.T) *Scalers {
	t.Helper()
	entries := make([]byte, 0)
	_ = entries
	artifact := `[`
	for i, name := range featureNames {
		if i > 0 {
			artifact += ","
		}
		artifact += `{"name":"` + name + `","mean":0.0,"std":10.0}`
	}
	artifact += `]`
	s, err := LoadScalers([]byte(artifact))
	require.NoError(t, err)
	return s
}

func TestDetectCrossingsAdvancesNewN(t *testing.T) {
	e0, err := groundStateEnergy(0.3)
	require.NoError(t, err)
	sym := NewSymbol("TEST", "NASDAQ", "us_equity")
	sym.P0 = 100
	sym.Std = 0.02
	sym.Lambda = 0.3
	sym.E0 = e0

	eng := &Engine{}
	upper, err := priceLevel(100, 0.02, 0.3, e0, 0, 1)
	require.NoError(t, err)

	crossed := eng.detectCrossings(sym, upper+0.01)
	require.True(t, crossed)
	require.Equal(t, 1, sym.NewN)
}

func TestScoringGateRejectsOutOfBandFeature(t *testing.T) {
	s := testScalers(t)
	eng := &Engine{scalers: s}
	var fv featureVector
	for i := range fv.values {
		fv.values[i] = 0
	}
	require.True(t, eng.scoringGate(fv))

	fv.values[0] = 1e12 // time_of_day absurdly out of band
	require.False(t, eng.scoringGate(fv))
}

func TestDesiredQtySizesFromRiskPerTrade(t *testing.T) {
	eng := &Engine{cfg: Config{RiskPerTradeUSD: 1000}}
	qty := eng.desiredQty(100)
	require.InDelta(t, 10.0, qty, 1e-9)
}

func TestReserveRefusesBelowZeroBuyingPower(t *testing.T) {
	eng := &Engine{buyingPowerUSD: 500}
	require.True(t, eng.reserve(500))
	require.Equal(t, 0.0, eng.buyingPowerUSD)
	require.False(t, eng.reserve(0.01))
	require.Equal(t, 0.0, eng.buyingPowerUSD)

	eng.release(200)
	require.Equal(t, 200.0, eng.buyingPowerUSD)
}

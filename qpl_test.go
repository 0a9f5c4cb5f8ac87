package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGroundStateEnergy(t *testing.T) {
	e0, err := groundStateEnergy(0.5)
	require.NoError(t, err)
	require.False(t, e0 == 0)
}

func TestPriceLevelScenario2(t *testing.T) {
	// Scenario 2 (spec §8): P0=100, sigma=0.02, lambda=0.5, new_n=0.
	// Checks that price_level(+1) lies above P0 and price_level(-1) below
	// it; feeding a trade past price_level(+1) is covered by
	// TestDetectCrossingsAdvancesNewN.
	e0, err := groundStateEnergy(0.5)
	require.NoError(t, err)
	p1, err := priceLevel(100, 0.02, 0.5, e0, 0, 1)
	require.NoError(t, err)
	require.Greater(t, p1, 100.0)

	pm1, err := priceLevel(100, 0.02, 0.5, e0, 0, -1)
	require.NoError(t, err)
	require.Less(t, pm1, 100.0)
}

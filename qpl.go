// FILE: qpl.go
// Package main – Quantum price level (QPL) math shared by §4.H and §4.I.
//
// K0(n) = (1.1924 + 33.2383n + 56.2169n^2) / (1 + 43.6196n)
// E0     = cube-root closed form at n=0 (see groundStateEnergy)
// f(m)   = 1 + 0.21*sigma*(2m+1)*E(m)/E0
// price_level(k) relative to new_n and P0.
package main

import "math"

// k0 is the rational approximation standing in for a Bessel-function-like
// normalization, per spec glossary.
func k0(n float64) float64 {
	return (1.1924 + 33.2383*n + 56.2169*n*n) / (1 + 43.6196*n)
}

// groundStateEnergy computes E0 = cbrt(-C0/2 + C1) + cbrt(-C0/2 - C1) where
// C0 = -lambda*K0(0), C1 = sqrt(C0^2/4 - 1/27).
func groundStateEnergy(lambda float64) (float64, error) {
	c0 := -lambda * k0(0)
	disc := c0*c0/4 - 1.0/27.0
	if disc < 0 {
		return 0, errNonFiniteQPL
	}
	c1 := math.Sqrt(disc)
	e0 := cubeRoot(-c0/2+c1) + cubeRoot(-c0/2-c1)
	if math.IsNaN(e0) || math.IsInf(e0, 0) {
		return 0, errNonFiniteQPL
	}
	return e0, nil
}

func cubeRoot(x float64) float64 {
	if x < 0 {
		return -math.Cbrt(-x)
	}
	return math.Cbrt(x)
}

// energyAt evaluates E(m) using the same k0-based cubic used for E0, at
// arbitrary m (not just m=0), per spec §4.H step 5 / §4.I step 4.
func energyAt(lambda, m float64) (float64, error) {
	c0 := -lambda * k0(m)
	disc := c0*c0/4 - 1.0/27.0
	if disc < 0 {
		return 0, errNonFiniteQPL
	}
	c1 := math.Sqrt(disc)
	e := cubeRoot(-c0/2+c1) + cubeRoot(-c0/2-c1)
	if math.IsNaN(e) || math.IsInf(e, 0) {
		return 0, errNonFiniteQPL
	}
	return e, nil
}

// levelSpacing computes f(m) = 1 + 0.21*sigma*(2m+1)*E(m)/E0.
func levelSpacing(sigma, lambda, e0 float64, m int) (float64, error) {
	em, err := energyAt(lambda, float64(m))
	if err != nil {
		return 0, err
	}
	if e0 == 0 {
		return 0, errNonFiniteQPL
	}
	return 1 + 0.21*sigma*(2*float64(m)+1)*em/e0, nil
}

// priceLevel computes price_level(k) relative to working index newN, per
// spec §4.I step 4: P0*f(|newN+k|) when newN+k >= 0, else P0/f(|newN+k|).
func priceLevel(p0, sigma, lambda, e0 float64, newN, k int) (float64, error) {
	idx := newN + k
	m := idx
	if m < 0 {
		m = -m
	}
	f, err := levelSpacing(sigma, lambda, e0, m)
	if err != nil {
		return 0, err
	}
	if idx >= 0 {
		return p0 * f, nil
	}
	if f == 0 {
		return 0, errNonFiniteQPL
	}
	return p0 / f, nil
}

// FILE: scaler.go
// Package main – Feature scalers and inlier ranges (spec §4.G).
package main

import (
	"encoding/json"
	"fmt"
	"math"
)

// featureNames is the fixed, ordered feature set spec §4.G names.
var featureNames = []string{
	"time_of_day", "relative_volume", "n", "mean", "dp", "std", "dt", "vsum",
	"average_volume", "previous_days_close", "rolling_csum", "rolling_vsum",
	"p(-dx)", "size", "p(+dx)", "lambda",
}

// logScaled reports whether a named feature uses the ln(1e-9+x) transform
// before standardization. Every feature is log-scaled except time_of_day
// and n.
func logScaled(name string) bool {
	return name != "time_of_day" && name != "n"
}

// ScalerEntry is one feature's {mean, std} loaded from scaler_info.json,
// plus its derived inlier bounds.
type ScalerEntry struct {
	Name   string
	Mean   float64
	Std    float64
	LoMin  float64
	HiMax  float64
}

// Scalers holds all 16 named scaler entries plus the hardcoded-defaults
// bounds table from spec §4.G.
type Scalers struct {
	byName map[string]*ScalerEntry

	RollingPeriodNS        int64
	LookbackPeriod         int
	StdMax                 float64
	NumberOfBins           int
	MinCompletedTradingDays int
	AverageVolumePeriod    int

	MinRelativeVolume      float64
	RollingPeriodMinTrades int
	MaxLambda              float64
}

type scalerArtifactEntry struct {
	Name string  `json:"name"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// LoadScalers loads scaler_info.json, validates every named feature is
// present, and derives inlier bounds.
func LoadScalers(data []byte) (*Scalers, error) {
	var entries []scalerArtifactEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadWeights, err)
	}
	byName := make(map[string]*ScalerEntry, len(entries))
	for _, e := range entries {
		byName[e.Name] = &ScalerEntry{Name: e.Name, Mean: e.Mean, Std: e.Std}
	}
	s := &Scalers{
		byName:                  byName,
		RollingPeriodNS:         2_000_000_000,
		LookbackPeriod:          1024,
		StdMax:                  3.0,
		NumberOfBins:            51,
		MinCompletedTradingDays: 500,
		AverageVolumePeriod:     70,
		MinRelativeVolume:       0,
		RollingPeriodMinTrades:  5,
		MaxLambda:               0.35,
	}
	for _, name := range featureNames {
		entry, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingFeature, name)
		}
		if logScaled(name) {
			entry.LoMin = math.Exp(entry.Mean-s.StdMax*entry.Std) - 1e-9
			entry.HiMax = math.Exp(entry.Mean+s.StdMax*entry.Std) - 1e-9
		} else {
			entry.LoMin = entry.Mean - s.StdMax*entry.Std
			entry.HiMax = entry.Mean + s.StdMax*entry.Std
		}
	}
	// Stricter floors/caps per spec §4.G.
	if e := byName["relative_volume"]; e != nil && e.LoMin < s.MinRelativeVolume {
		e.LoMin = s.MinRelativeVolume
	}
	// Open Question #1 (see DESIGN.md / SPEC_FULL.md §9): the source clamps
	// max_lambda to 0.35 as an UPPER bound even when the derived lower
	// bound exceeds it, which leaves the lambda band empty. Implemented
	// literally per spec, flagged rather than "fixed".
	if e := byName["lambda"]; e != nil && e.HiMax > s.MaxLambda {
		e.HiMax = s.MaxLambda
	}
	return s, nil
}

// Standardize applies the named feature's log-or-linear transform.
func (s *Scalers) Standardize(name string, x float64) (float64, error) {
	e, ok := s.byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingFeature, name)
	}
	v := x
	if logScaled(name) {
		v = math.Log(1e-9 + x)
	}
	if e.Std == 0 {
		return 0, nil
	}
	return (v - e.Mean) / e.Std, nil
}

// Inlier reports whether raw value x for the named feature falls within
// its derived bounds.
func (s *Scalers) Inlier(name string, x float64) bool {
	e, ok := s.byName[name]
	if !ok {
		return false
	}
	return x >= e.LoMin && x <= e.HiMax
}

// Bounds returns the derived (lo, hi) pair for a named feature.
func (s *Scalers) Bounds(name string) (lo, hi float64, ok bool) {
	e, found := s.byName[name]
	if !found {
		return 0, 0, false
	}
	return e.LoMin, e.HiMax, true
}

// FILE: mlp.go
// Package main – Fixed-topology MLP inference (spec §4.F).
//
// Topology: 16 → 32 → 16 → 32 → 16 → 32 → 16 → 3, leaky-ReLU(0.1) on all
// hidden layers, softmax on the output. Two residual skips: layer 3's
// output adds layer 1's output (both width 16); layer 5's output adds
// layer 3's output. No pack repo ships a neural-net inference engine
// (gonum appears nowhere in the corpus), so this is built directly from
// spec §4.F's closed description on stdlib math only — a justified
// standard-library fallback (see DESIGN.md).
package main

import (
	"encoding/json"
	"fmt"
	"math"
)

const (
	mlpInputWidth = 16
	leakySlope    = 0.1
)

// layerDims describes the fixed topology's per-layer [in, out] shapes.
// Layers with no trainable weights (the two skip-adds, the softmax) have
// no entry here.
var layerDims = [][2]int{
	{16, 32}, // layer 1
	{32, 16}, // layer 2
	{16, 32}, // layer 3
	{32, 16}, // layer 4
	{16, 32}, // layer 5
	{32, 16}, // layer 6
	{16, 3},  // layer 7 (output, pre-softmax)
}

// mlpLayer holds one dense layer's row-major weight matrix and bias.
type mlpLayer struct {
	W [][]float64 // [out][in]
	B []float64   // [out]
}

// MLP is the fixed 7-layer network with two residual skip connections.
type MLP struct {
	layers [7]mlpLayer
}

// weightsArtifact mirrors the top-level JSON structure of model_weights.json:
// a 7-element array of [weight_matrix, bias_vector] pairs.
type weightsArtifact [][2]json.RawMessage

// LoadMLPWeights loads and validates model_weights.json against layerDims.
func LoadMLPWeights(data []byte) (*MLP, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadWeights, err)
	}
	if len(raw) != 7 {
		return nil, fmt.Errorf("%w: expected 7 layers, got %d", ErrBadWeights, len(raw))
	}
	m := &MLP{}
	for i, layerRaw := range raw {
		var pair [2]json.RawMessage
		if err := json.Unmarshal(layerRaw, &pair); err != nil {
			return nil, fmt.Errorf("%w: layer %d malformed: %v", ErrBadWeights, i, err)
		}
		var flatW []float64
		if err := json.Unmarshal(pair[0], &flatW); err != nil {
			return nil, fmt.Errorf("%w: layer %d weight matrix malformed: %v", ErrBadWeights, i, err)
		}
		var b []float64
		if err := json.Unmarshal(pair[1], &b); err != nil {
			return nil, fmt.Errorf("%w: layer %d bias vector malformed: %v", ErrBadWeights, i, err)
		}
		in, out := layerDims[i][0], layerDims[i][1]
		if len(b) != out {
			return nil, fmt.Errorf("%w: layer %d bias len=%d want=%d", ErrBadWeights, i, len(b), out)
		}
		if len(flatW) != in*out {
			return nil, fmt.Errorf("%w: layer %d weight count=%d want=%d", ErrBadWeights, i, len(flatW), in*out)
		}
		w := make([][]float64, out)
		for o := 0; o < out; o++ {
			w[o] = flatW[o*in : (o+1)*in]
		}
		m.layers[i] = mlpLayer{W: w, B: b}
	}
	return m, nil
}

func leakyReLU(x float64) float64 {
	if x >= 0 {
		return x
	}
	return leakySlope * x
}

func denseForward(l mlpLayer, in []float64) []float64 {
	out := make([]float64, len(l.B))
	for o := range out {
		sum := l.B[o]
		row := l.W[o]
		for i, x := range in {
			sum += row[i] * x
		}
		out[o] = sum
	}
	return out
}

func addVec(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

func applyLeaky(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = leakyReLU(x)
	}
	return out
}

func softmax(v []float64) []float64 {
	out := make([]float64, len(v))
	var denom float64
	for i, x := range v {
		e := math.Exp(x)
		out[i] = e
		denom += e
	}
	// Spec §4.F: no max-subtraction (inputs are small by construction), but
	// guard against a zero/non-finite denominator by zeroing the output.
	if denom == 0 || math.IsNaN(denom) || math.IsInf(denom, 0) {
		for i := range out {
			out[i] = 0
		}
		return out
	}
	for i := range out {
		out[i] /= denom
	}
	return out
}

// Predict runs the fixed-topology forward pass and returns the 3-class
// softmax output. The engine consumes output[2] ("next transition is +1
// level").
func (m *MLP) Predict(input []float64) ([]float64, error) {
	if len(input) != mlpInputWidth {
		return nil, fmt.Errorf("%w: input width %d want %d", ErrBadWeights, len(input), mlpInputWidth)
	}
	l1 := applyLeaky(denseForward(m.layers[0], input))
	l2 := applyLeaky(denseForward(m.layers[1], l1))
	l3raw := denseForward(m.layers[2], l2)
	l3 := applyLeaky(addVec(l3raw, l1)) // residual skip: layer3 += layer1
	l4 := applyLeaky(denseForward(m.layers[3], l3))
	l5raw := denseForward(m.layers[4], l4)
	l5 := applyLeaky(addVec(l5raw, l3)) // residual skip: layer5 += layer3
	l6 := applyLeaky(denseForward(m.layers[5], l5))
	l7 := denseForward(m.layers[6], l6)
	return softmax(l7), nil
}

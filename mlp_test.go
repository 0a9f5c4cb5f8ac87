package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func identityWeights() []byte {
	// Builds a minimal valid 7-layer artifact with all-zero weights and
	// biases in every layer, so the softmax output is uniform.
	type pair = [2]interface{}
	artifact := make([]pair, 7)
	for i, dims := range layerDims {
		in, out := dims[0], dims[1]
		w := make([]float64, in*out)
		b := make([]float64, out)
		artifact[i] = pair{w, b}
	}
	data, _ := json.Marshal(artifact)
	return data
}

func TestLoadMLPWeightsValid(t *testing.T) {
	m, err := LoadMLPWeights(identityWeights())
	require.NoError(t, err)
	require.NotNil(t, m)
}

func TestLoadMLPWeightsBadShape(t *testing.T) {
	_, err := LoadMLPWeights([]byte(`[[[1,2],[3]]]`))
	require.Error(t, err)
}

func TestPredictSumsToOne(t *testing.T) {
	m, err := LoadMLPWeights(identityWeights())
	require.NoError(t, err)
	input := make([]float64, mlpInputWidth)
	for i := range input {
		input[i] = 0.1
	}
	out, err := m.Predict(input)
	require.NoError(t, err)
	require.Len(t, out, 3)
	var sum float64
	for _, v := range out {
		sum += v
	}
	require.InDelta(t, 1.0, sum, 1e-6)
}

func TestPredictWrongWidth(t *testing.T) {
	m, err := LoadMLPWeights(identityWeights())
	require.NoError(t, err)
	_, err = m.Predict([]float64{1, 2, 3})
	require.Error(t, err)
}

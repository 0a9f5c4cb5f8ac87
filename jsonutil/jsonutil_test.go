package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseObject(t *testing.T) {
	m, err := ParseObject([]byte(`{"t":"2001-05-11T09:42:00Z","v":10295,"nested":{"a":1}}`))
	require.NoError(t, err)
	require.Equal(t, "2001-05-11T09:42:00Z", m["t"])
	require.Equal(t, "10295", m["v"])
	require.Equal(t, `{"a":1}`, m["nested"])
}

type barRecord struct {
	T string
	S string
	V string
}

func TestWalkArray(t *testing.T) {
	// Scenario 1 (spec §8) input; the record type here captures only t, s and v.
	input := []byte(`[
		{"t":"2001-05-11T09:42:00Z","v":10295,"c":22.05,"o":21.77,"l":21.60,"h":22.25,"n":205,"s":"FAKE"},
		{"t":"2001-05-11T09:43:00Z","v":500,"c":10.0,"o":9.5,"l":9.0,"h":10.5,"n":10,"s":"BOGUS"}
	]`)

	var collector []barRecord
	err := WalkArray(input, &collector,
		func() *barRecord { return &barRecord{} },
		func(rec *barRecord, key, value string) {
			switch key {
			case "t":
				rec.T = value
			case "s":
				rec.S = value
			case "v":
				rec.V = value
			}
		},
		func(rec *barRecord, collector *[]barRecord) {
			*collector = append(*collector, *rec)
		},
	)
	require.NoError(t, err)
	require.Len(t, collector, 2)
	require.Equal(t, "FAKE", collector[0].S)
	require.Equal(t, "BOGUS", collector[1].S)
	require.Equal(t, "10295", collector[0].V)
}

func TestParseObjectMalformed(t *testing.T) {
	_, err := ParseObject([]byte(`not json`))
	require.Error(t, err)
}

package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundPrice(t *testing.T) {
	require.InDelta(t, 0.1234, roundPrice(0.12341), 1e-9)
	require.InDelta(t, 101.26, roundPrice(101.2551), 1e-9)
}

func TestParseOrderResponseAccepted(t *testing.T) {
	body := []byte(`{"id":"abc123","status":"accepted","filled_qty":"0"}`)
	po, err := parseOrderResponse(200, body)
	require.NoError(t, err)
	require.Equal(t, "abc123", po.ID)
	require.Equal(t, "accepted", po.Status)
}

func TestParseOrderResponseNotFoundIsNil(t *testing.T) {
	po, err := parseOrderResponse(404, nil)
	require.NoError(t, err)
	require.Nil(t, po)
}

func TestParseOrderResponseRejected(t *testing.T) {
	po, err := parseOrderResponse(422, []byte(`{"message":"insufficient buying power"}`))
	require.Error(t, err)
	require.Nil(t, po)
}

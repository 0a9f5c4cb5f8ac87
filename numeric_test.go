package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseInt64(t *testing.T) {
	v, err := ParseInt64("10295")
	require.NoError(t, err)
	require.Equal(t, int64(10295), v)

	v, err = ParseInt64("-42")
	require.NoError(t, err)
	require.Equal(t, int64(-42), v)

	_, err = ParseInt64("12a")
	require.Error(t, err)

	_, err = ParseInt64("")
	require.Error(t, err)
}

func TestParseFloat64(t *testing.T) {
	v, err := ParseFloat64("22.05")
	require.NoError(t, err)
	require.InDelta(t, 22.05, v, 1e-9)

	_, err = ParseFloat64("1.2.3")
	require.Error(t, err)
}

func TestParseUTCNanos(t *testing.T) {
	ns, err := ParseUTCNanos("2001-05-11T09:42:00Z")
	require.NoError(t, err)
	require.Equal(t, int64((9*3600+42*60)*1_000_000_000), ns)

	ns, err = ParseUTCNanos("2001-05-11T09:42:00.123456789Z")
	require.NoError(t, err)
	require.Equal(t, int64((9*3600+42*60)*1_000_000_000+123456789), ns)

	_, err = ParseUTCNanos("2001-05-11 09:42:00Z")
	require.Error(t, err)

	_, err = ParseUTCNanos("2001-05-11T09:42:00")
	require.Error(t, err)
}

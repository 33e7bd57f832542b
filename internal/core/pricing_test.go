package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyDiscount(t *testing.T) {
	tests := []struct {
		name    string
		cents   int64
		percent int
		want    int64
	}{
		{"NoDiscount", 1000, 0, 1000},
		{"HalfOff", 1000, 50, 500},
		{"RoundsHalfUp", 999, 15, 849},
		{"Free", 1000, 100, 0},
		{"ClampsNegative", 1000, -20, 1000},
		{"ClampsOverHundred", 1000, 150, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ApplyDiscount(tt.cents, tt.percent))
		})
	}
}

func TestEffectiveDiscount(t *testing.T) {
	require.Equal(t, 20, EffectiveDiscount(20, 10))
	require.Equal(t, 30, EffectiveDiscount(5, 30))
	require.Equal(t, 100, EffectiveDiscount(400, 0))
}

func TestFormatCents(t *testing.T) {
	require.Equal(t, "12.05", FormatCents(1205))
	require.Equal(t, "0.99", FormatCents(99))
	require.Equal(t, "-1.50", FormatCents(-150))
}

func TestParsePlatformAndStatus(t *testing.T) {
	p, err := ParsePlatform(" Bedrock ")
	require.NoError(t, err)
	require.Equal(t, PlatformBedrock, p)

	_, err = ParsePlatform("console")
	require.Error(t, err)

	s, err := ParseOrderStatus("COMPLETED")
	require.NoError(t, err)
	require.Equal(t, OrderStatusCompleted, s)

	_, err = ParseOrderStatus("shipped")
	require.Error(t, err)
}

func TestParseCents(t *testing.T) {
	cents, err := ParseCents(" 9.99 ")
	require.NoError(t, err)
	require.Equal(t, int64(999), cents)

	cents, err = ParseCents("0.1")
	require.NoError(t, err)
	require.Equal(t, int64(10), cents)

	require.Equal(t, int64(1005), CentsFromFloat(10.05))

	_, err = ParseCents("-1")
	require.Error(t, err)
	_, err = ParseCents("ten")
	require.Error(t, err)
}

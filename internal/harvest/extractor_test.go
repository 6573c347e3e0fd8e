package harvest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func TestExtractorMultiLineName(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1700000000, 0).UTC()}
	ex := NewExtractor(clock)

	rec, err := ex.Extract([]string{"AAA\nAAX", "1,234.50", "+1.2%", "1000", "50000"})
	require.NoError(t, err)
	require.Equal(t, "AAA\nAAX", rec.DisplayName)
	require.Equal(t, "AAX", rec.Symbol)
	require.True(t, rec.Price.Equal(decimal.RequireFromString("1234.50")))
	require.False(t, rec.PriceUnparsable)
	require.Equal(t, "+1.2%", rec.ChangePercent)
	require.Equal(t, "1000", rec.Volume)
	require.Equal(t, "50000", rec.Value)
	require.Equal(t, clock.now, rec.CapturedAt)
}

func TestExtractorSingleLineNameIsItsOwnSymbol(t *testing.T) {
	t.Parallel()

	ex := NewExtractor(&fakeClock{})
	rec, err := ex.Extract([]string{"RELIANCE", "2500", "-0.3%", "99", "1"})
	require.NoError(t, err)
	require.Equal(t, "RELIANCE", rec.Symbol)
}

func TestExtractorTooFewCells(t *testing.T) {
	t.Parallel()

	ex := NewExtractor(&fakeClock{})
	_, err := ex.Extract([]string{"AAA", "100", "+1%", "10"})
	require.ErrorIs(t, err, ErrMalformedRow)
}

func TestExtractorBlankIdentity(t *testing.T) {
	t.Parallel()

	ex := NewExtractor(&fakeClock{})
	_, err := ex.Extract([]string{"   \n  ", "100", "+1%", "10", "5"})
	require.ErrorIs(t, err, ErrEmptyIdentity)
}

func TestExtractorUnparsablePrice(t *testing.T) {
	t.Parallel()

	ex := NewExtractor(&fakeClock{})
	tests := []struct {
		name  string
		price string
	}{
		{name: "non numeric", price: "N/A"},
		{name: "empty", price: ""},
		{name: "negative", price: "-12.5"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec, err := ex.Extract([]string{"AAA", tc.price, "+1%", "10", "5"})
			require.NoError(t, err)
			require.True(t, rec.PriceUnparsable)
			require.True(t, rec.Price.IsZero())
		})
	}
}

func TestExtractorIdempotent(t *testing.T) {
	t.Parallel()

	ex := NewExtractor(&fakeClock{now: time.Unix(42, 0).UTC()})
	cells := []string{"AAA\nAAX", "1,234.50", "+1.2%", "1000", "50000"}

	first, err := ex.Extract(cells)
	require.NoError(t, err)
	second, err := ex.Extract(cells)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, "AAA\nAAX", cells[0], "input must not be mutated")
}

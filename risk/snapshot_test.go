package risk

import (
	"errors"
	"testing"

	"github.com/rustyeddy/fillbook/book"
	"github.com/rustyeddy/fillbook/volume"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, d(want).Equal(got), "want %s got %s", want, got)
}

func snap(net, avg string) Snapshot {
	return New(book.Snapshot{Position: book.Position{NetVolume: d(net), AveragePrice: d(avg)}})
}

func TestFloatingPnL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		net   string
		avg   string
		price string
		want  string
	}{
		{"long_profit", "1000", "1.2000", "1.2050", "5"},
		{"long_loss", "1000", "1.2000", "1.1900", "-10"},
		{"short_profit", "-1000", "1.2000", "1.1900", "10"},
		{"short_loss", "-1000", "1.2000", "1.2050", "-5"},
		{"flat", "0", "0", "1.2500", "0"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assertDec(t, tt.want, snap(tt.net, tt.avg).FloatingPnL(d(tt.price)))
		})
	}
}

func TestFloatingPnLPercent(t *testing.T) {
	t.Parallel()

	s := snap("2", "100")
	assertDec(t, "2", s.FloatingPnLPercent(d("110"), d("1000")))
	assertDec(t, "-2", s.FloatingPnLPercent(d("90"), d("1000")))
	assertDec(t, "0", s.FloatingPnLPercent(d("110"), decimal.Zero))
}

func TestRealizedPnLFromLedger(t *testing.T) {
	t.Parallel()

	l := book.NewLedger("X")
	for _, f := range []book.Fill{
		{Side: book.Buy, Price: d("100"), Volume: d("1")},
		{Side: book.Buy, Price: d("110"), Volume: d("1")},
		{Side: book.Sell, Price: d("120"), Volume: d("1")},
	} {
		_, err := l.Apply(f)
		require.NoError(t, err)
	}

	s := New(l.Snapshot())
	assertDec(t, "15", s.RealizedPnL())
	assertDec(t, "5", s.FloatingPnL(d("110")))
	assertDec(t, "5", s.LegFloatingPnL(d("110")))
	assertDec(t, "1005", s.Equity(d("1000"), d("110")))
}

func TestLegFloatingPnLIncludesLockedSpread(t *testing.T) {
	t.Parallel()

	l := book.NewLedger("X")
	b, err := book.NewLegBook(l)
	require.NoError(t, err)
	_, err = b.Open(book.Buy, d("100"), d("1"))
	require.NoError(t, err)
	_, err = b.Open(book.Sell, d("105"), d("1"))
	require.NoError(t, err)

	s := New(l.Snapshot())
	assertDec(t, "0", s.FloatingPnL(d("120")))
	assertDec(t, "5", s.LegFloatingPnL(d("120")))
	assertDec(t, "5", s.LegFloatingPnL(d("80")))
}

func TestRecommendedVolume(t *testing.T) {
	t.Parallel()

	c := volume.Constraints{Step: d("0.01"), Min: d("0.01"), Max: d("10")}

	v, err := RecommendedVolume(d("1000"), d("0.000137"), c)
	require.NoError(t, err)
	assertDec(t, "0.13", v)

	v, err = RecommendedVolume(d("1000000"), d("0.5"), c)
	require.NoError(t, err)
	assertDec(t, "10", v)

	_, err = RecommendedVolume(d("1000"), d("0.000003"), c)
	assert.True(t, errors.Is(err, volume.ErrBelowMinimum))
}

func TestVolumeAdjustment(t *testing.T) {
	t.Parallel()

	step := d("0.01")
	assertDec(t, "0.5", VolumeAdjustment(d("1.5"), d("1"), step))
	assertDec(t, "-0.5", VolumeAdjustment(d("1"), d("1.5"), step))
	assertDec(t, "0", VolumeAdjustment(d("1.005"), d("1"), step))
	assertDec(t, "0.01", VolumeAdjustment(d("1.01"), d("1"), step))

	c := volume.Constraints{Step: step, Min: step}
	assertDec(t, "0.5", snap("-1", "10").VolumeAdjustment(d("1.5"), c))
}

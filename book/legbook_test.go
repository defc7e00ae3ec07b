package book

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHedged(t *testing.T) (*Ledger, *LegBook) {
	t.Helper()
	l := NewLedger("X")
	b, err := NewLegBook(l)
	require.NoError(t, err)
	return l, b
}

func TestLegBookMatchedPairCapturesSpreadOnce(t *testing.T) {
	t.Parallel()

	for _, exit := range []string{"100", "102.5", "105", "250"} {
		l, b := newHedged(t)
		_, err := b.Open(Buy, d("100"), d("1"))
		require.NoError(t, err)
		_, err = b.Open(Sell, d("105"), d("1"))
		require.NoError(t, err)
		assert.True(t, l.Position().IsFlat())

		realized, closed := b.CloseMatchedPair(d(exit))
		assert.True(t, closed)
		assertDec(t, "5", realized, "exit", exit)
		assert.Equal(t, 0, b.Len())
		assertDec(t, "5", l.Bucket().Realized())
		require.NoError(t, b.CheckInvariant())
	}
}

func TestLegBookMatchedPairFIFO(t *testing.T) {
	t.Parallel()

	_, b := newHedged(t)
	s1, _ := b.Open(Sell, d("110"), d("1"))
	b1, _ := b.Open(Buy, d("100"), d("1"))
	b2, _ := b.Open(Buy, d("101"), d("1"))
	s2, _ := b.Open(Sell, d("111"), d("1"))

	var closed []LegID
	b.OnSettle(func(s Settlement) {
		assert.Equal(t, ClosePair, s.Kind)
		closed = append(closed, s.Leg.ID)
	})

	realized, ok := b.CloseMatchedPair(d("105"))
	require.True(t, ok)
	assertDec(t, "10", realized)
	// buy settles first
	assert.Equal(t, []LegID{b1, s1}, closed)

	left := b.Legs()
	require.Len(t, left, 2)
	assert.Equal(t, b2, left[0].ID)
	assert.Equal(t, s2, left[1].ID)
}

func TestLegBookNoOpposingLeg(t *testing.T) {
	t.Parallel()

	l, b := newHedged(t)
	realized, closed := b.CloseMatchedPair(d("100"))
	assert.False(t, closed)
	assert.True(t, realized.IsZero())

	_, _ = b.Open(Buy, d("100"), d("1"))
	_, _ = b.Open(Buy, d("90"), d("1"))
	realized, closed = b.CloseMatchedPair(d("100"))
	assert.False(t, closed)
	assert.True(t, realized.IsZero())
	assert.Equal(t, 2, b.Len())
	assertDec(t, "2", l.Position().NetVolume)
	assertDec(t, "95", l.Position().AveragePrice)
}

func TestLegBookCloseByIndex(t *testing.T) {
	t.Parallel()

	l, b := newHedged(t)
	first, err := b.Open(Buy, d("100"), d("1"))
	require.NoError(t, err)
	_, err = b.Open(Buy, d("110"), d("1"))
	require.NoError(t, err)
	assertDec(t, "105", l.Position().AveragePrice)

	realized, err := b.CloseByIndex(first, d("120"))
	require.NoError(t, err)
	assertDec(t, "20", realized)
	assertDec(t, "1", l.Position().NetVolume)
	// the remaining leg's own entry, not the old blended average
	assertDec(t, "110", l.Position().AveragePrice)
	assertDec(t, "20", l.Bucket().TotalGains)

	_, err = b.CloseByIndex(first, d("120"))
	assert.ErrorIs(t, err, ErrLegNotFound)
	_, err = b.CloseByIndex(99, d("120"))
	assert.ErrorIs(t, err, ErrLegNotFound)
	_, err = b.CloseByIndex(2, d("0"))
	assert.ErrorIs(t, err, ErrInvalidLeg)
}

func TestLegBookCloseAllLIFO(t *testing.T) {
	t.Parallel()

	l, b := newHedged(t)
	ids := []LegID{}
	for _, o := range []struct {
		side  Side
		price string
	}{{Buy, "100"}, {Sell, "104"}, {Buy, "98"}, {Sell, "101"}} {
		id, err := b.Open(o.side, d(o.price), d("1"))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	var order []LegID
	b.OnSettle(func(s Settlement) {
		assert.Equal(t, CloseAll, s.Kind)
		assert.Equal(t, LegClosed, s.Leg.State)
		order = append(order, s.Leg.ID)
	})

	floating := b.FloatingPnL(d("102"))
	total := b.CloseAll(d("102"))
	assert.True(t, floating.Equal(total))
	// (102-100) + (104-102) + (102-98) + (101-102)
	assertDec(t, "7", total)
	assert.Equal(t, []LegID{ids[3], ids[2], ids[1], ids[0]}, order)
	assert.Equal(t, 0, b.Len())
	assert.True(t, l.Position().IsFlat())

	assertDec(t, "0", b.CloseAll(d("102")))
	assertDec(t, "0", b.CloseAll(d("0")))
}

func TestLegBookHedgedState(t *testing.T) {
	t.Parallel()

	_, b := newHedged(t)
	a, _ := b.Open(Buy, d("100"), d("1"))
	c, _ := b.Open(Buy, d("99"), d("1"))
	h, _ := b.Open(Sell, d("98"), d("1"))

	lg, ok := b.Leg(a)
	require.True(t, ok)
	assert.Equal(t, LegHedged, lg.State)
	assert.Equal(t, h, lg.HedgedBy)

	lg, _ = b.Leg(c)
	assert.Equal(t, LegOpen, lg.State)
	lg, _ = b.Leg(h)
	assert.Equal(t, LegOpen, lg.State)

	// a second hedge takes the next unhedged opposing leg
	h2, _ := b.Open(Sell, d("97"), d("1"))
	lg, _ = b.Leg(c)
	assert.Equal(t, LegHedged, lg.State)
	assert.Equal(t, h2, lg.HedgedBy)

	// hedging is bookkeeping only
	assert.True(t, b.ledger.Bucket().Realized().IsZero())
}

func TestLegBookRecordFills(t *testing.T) {
	t.Parallel()

	l, b := newHedged(t)
	assert.True(t, l.Hedging())

	id, err := b.Record(fillc(Buy, "100", "2", "1"))
	require.NoError(t, err)
	res, err := l.Apply(fillc(Sell, "105", "1", "0.5"))
	require.NoError(t, err)
	// no netting realization in hedge mode
	assert.True(t, res.Realized.IsZero())
	assert.NotZero(t, res.Leg)

	snap := l.Snapshot()
	require.Len(t, snap.Legs, 2)
	assertDec(t, "1", snap.Position.NetVolume)
	assertDec(t, "100", snap.Position.AveragePrice)
	assertDec(t, "1.5", snap.Bucket.PendingCommission)
	assert.Equal(t, uint64(2), snap.Seq)

	realized, err := b.CloseByIndex(id, d("110"))
	require.NoError(t, err)
	assertDec(t, "19", realized)
	assertDec(t, "1", l.Bucket().Commission)
	assertDec(t, "-1", l.Position().NetVolume)
	assertDec(t, "105", l.Position().AveragePrice)

	_, err = b.Record(fill(Buy, "0", "1"))
	assert.ErrorIs(t, err, ErrInvalidFill)
}

func TestLegBookSeedsFromOpenPosition(t *testing.T) {
	t.Parallel()

	l := NewLedger("X")
	_, err := l.Apply(fillc(Sell, "50", "3", "0.3"))
	require.NoError(t, err)

	b, err := NewLegBook(l)
	require.NoError(t, err)
	legs := b.Legs()
	require.Len(t, legs, 1)
	assert.Equal(t, Sell, legs[0].Side)
	assertDec(t, "3", legs[0].Volume)
	assertDec(t, "50", legs[0].EntryPrice)
	assertDec(t, "0.3", legs[0].Commission)

	_, err = NewLegBook(l)
	assert.ErrorIs(t, err, ErrLegBookBound)

	realized := b.CloseAll(d("40"))
	assertDec(t, "29.7", realized)
	assertDec(t, "0", l.Bucket().PendingCommission)
}

func TestLegBookInvalidOpen(t *testing.T) {
	t.Parallel()

	_, b := newHedged(t)
	_, err := b.Open(Buy, d("100"), d("0"))
	assert.ErrorIs(t, err, ErrInvalidLeg)
	_, err = b.Open(Sell, d("-1"), d("1"))
	assert.ErrorIs(t, err, ErrInvalidLeg)
	_, err = b.Open(Side(0), d("1"), d("1"))
	assert.ErrorIs(t, err, ErrInvalidLeg)
	assert.Equal(t, 0, b.Len())
}

func TestLegBookInvariantViolationPanics(t *testing.T) {
	t.Parallel()

	_, b := newHedged(t)
	_, err := b.Open(Buy, d("100"), d("1"))
	require.NoError(t, err)

	// corrupt the book behind the ledger's back
	b.legs[0].Volume = d("2")
	assert.Panics(t, func() { _ = b.CheckInvariant() })
}

func TestLegBookSyncRestatesFromLegs(t *testing.T) {
	t.Parallel()

	l, b := newHedged(t)
	_, err := b.Open(Buy, d("100"), d("1"))
	require.NoError(t, err)

	b.legs[0].Volume = d("2")
	assert.NotPanics(t, func() {
		_, err = b.Open(Sell, d("101"), d("1"))
	})
	require.NoError(t, err)
	assertDec(t, "1", l.Position().NetVolume)
	assert.NoError(t, b.CheckInvariant())
}

func TestLegLedgerConsistencyProperty(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(3))
	for run := 0; run < 40; run++ {
		l, b := newHedged(t)
		paid := decimal.Zero

		for step := 0; step < 60; step++ {
			price := decimal.NewFromInt(int64(90 + r.Intn(21)))
			switch op := r.Intn(10); {
			case op < 5:
				f := randomFills(r, 1, true)[0]
				paid = paid.Add(f.Commission)
				_, err := l.Apply(f)
				require.NoError(t, err)
			case op < 7:
				_, err := b.Open(Side(1+r.Intn(2)), price, decimal.NewFromInt(int64(1+r.Intn(3))))
				require.NoError(t, err)
			case op < 8:
				if legs := b.Legs(); len(legs) > 0 {
					_, err := b.CloseByIndex(legs[r.Intn(len(legs))].ID, price)
					require.NoError(t, err)
				}
			case op < 9:
				b.CloseMatchedPair(price)
			default:
				if r.Intn(3) == 0 {
					before := l.Bucket().Realized()
					expect := b.FloatingPnL(price).Sub(l.Bucket().PendingCommission)
					b.CloseAll(price)
					assertNear(t, expect, l.Bucket().Realized().Sub(before))
				}
			}

			snap := l.Snapshot()
			require.Truef(t, sumLegs(snap.Legs).Equal(snap.Position.NetVolume),
				"run %d step %d: legs %s net %s", run, step, sumLegs(snap.Legs), snap.Position.NetVolume)
			require.NoError(t, b.CheckInvariant())
		}

		b.CloseAll(decimal.NewFromInt(100))
		assert.True(t, l.Position().IsFlat())
		assertNear(t, paid, l.Bucket().Commission)
	}
}

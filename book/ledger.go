package book

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// Ledger is the weighted-average position and realized PnL accounting for
// one instrument.
//
// A Ledger has a single writer: Apply, Realize, Reset and every LegBook
// operation must be called from one goroutine, in arrival order. Snapshot,
// Position and Bucket are safe from any goroutine; they read the last
// published copy-on-write snapshot and never block the writer.
type Ledger struct {
	instrument string
	pos        Position
	basis      decimal.Decimal // exact cost of the open volume, sum of price * volume
	bucket     Bucket
	seq        uint64
	legs       *LegBook
	now        func() time.Time

	snap atomic.Pointer[Snapshot]
}

// ApplyResult reports what one fill did to the ledger.
type ApplyResult struct {
	Seq      uint64
	Realized decimal.Decimal // signed delta routed to the bucket, zero when nothing closed

	// Commission charged against Realized: the closing share of this
	// fill's commission plus the banked commission of the closed volume.
	Commission decimal.Decimal
	Closed     decimal.Decimal // volume taken off the position
	Opened     decimal.Decimal // volume added, including the reversal residual
	EntryPrice decimal.Decimal // average price the closed volume was carried at
	Reversed   bool

	Position Position
	Leg      LegID // hedge mode only
}

func NewLedger(instrument string) *Ledger {
	l := &Ledger{instrument: instrument, now: time.Now}
	l.publish()
	return l
}

func (l *Ledger) Instrument() string { return l.instrument }

// SetClock replaces the time source used for snapshot and settlement
// times. nil restores time.Now. Like Apply, it belongs to the writer.
func (l *Ledger) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	l.now = now
}

// Snapshot returns the last published state.
func (l *Ledger) Snapshot() Snapshot { return *l.snap.Load() }

func (l *Ledger) Position() Position { return l.snap.Load().Position }
func (l *Ledger) Bucket() Bucket     { return l.snap.Load().Bucket }

// Hedging reports whether a LegBook is bound to the ledger.
func (l *Ledger) Hedging() bool { return l.legs != nil }

// Apply books one fill.
//
// Fills in the position's direction (or on a flat position) move the
// weighted average and bank their commission until close. Opposing fills
// realize (price - average) * closed volume, net of the commission allocated
// to the closed volume, and the residual of a larger fill reverses the
// position at the fill price.
//
// Fills carrying a Seq must arrive in strictly increasing order. Invalid or
// out-of-order fills are rejected before any state changes.
//
// When a LegBook is bound, the fill is recorded as a new leg instead and no
// PnL is realized until the leg is closed.
func (l *Ledger) Apply(f Fill) (ApplyResult, error) {
	if err := f.Validate(); err != nil {
		return ApplyResult{}, err
	}
	seq, err := l.nextSeq(f.Seq)
	if err != nil {
		return ApplyResult{}, err
	}

	if l.legs != nil {
		return l.legs.record(f, seq), nil
	}

	res := l.apply(f)
	res.Seq = seq
	l.seq = seq
	l.publish()
	return res, nil
}

func (l *Ledger) apply(f Fill) ApplyResult {
	signed := f.Signed()
	net := l.pos.NetVolume

	if net.IsZero() || net.Sign() == signed.Sign() {
		l.pos, l.basis = netInto(l.pos, l.basis, signed, f.Price)
		l.bucket.PendingCommission = l.bucket.PendingCommission.Add(f.Commission)
		return ApplyResult{Opened: f.Volume, Position: l.pos}
	}

	held := net.Abs()
	closing := decimal.Min(held, f.Volume)
	full := closing.Equal(held)

	gross := f.Price.Mul(closing).Sub(closedBasis(l.basis, closing, held))
	if net.IsNegative() {
		gross = gross.Neg()
	}

	fillShare := f.Commission
	if closing.LessThan(f.Volume) {
		fillShare = f.Commission.Mul(closing).Div(f.Volume)
	}
	banked := l.bucket.PendingCommission
	if !full {
		banked = banked.Mul(closing).Div(held)
	}
	charged := fillShare.Add(banked)
	realized := gross.Sub(charged)

	res := ApplyResult{
		Realized:   realized,
		Commission: charged,
		Closed:     closing,
		EntryPrice: l.pos.AveragePrice,
	}

	l.bucket.add(realized)
	l.bucket.Commission = l.bucket.Commission.Add(charged)
	l.bucket.PendingCommission = l.bucket.PendingCommission.Sub(banked)

	l.pos, l.basis = netInto(l.pos, l.basis, signed, f.Price)
	if residual := f.Volume.Sub(closing); residual.IsPositive() {
		res.Opened = residual
		res.Reversed = true
		l.bucket.PendingCommission = f.Commission.Sub(fillShare)
	}
	res.Position = l.pos
	return res
}

// Realize books an amount realized outside of fills, such as funding or a
// fee rebate.
func (l *Ledger) Realize(amount decimal.Decimal) {
	if amount.IsZero() {
		return
	}
	l.bucket.add(amount)
	l.publish()
}

// Reset returns the ledger to flat with an empty bucket and closes nothing:
// bound legs are dropped without settlement. The sequence is kept.
func (l *Ledger) Reset() {
	l.pos = Position{}
	l.basis = decimal.Zero
	l.bucket = Bucket{}
	if l.legs != nil {
		l.legs.legs = nil
	}
	l.publish()
}

func (l *Ledger) nextSeq(seq uint64) (uint64, error) {
	if seq == 0 {
		return l.seq + 1, nil
	}
	if seq <= l.seq {
		return 0, fmt.Errorf("%w: %s seq %d after %d", ErrOutOfOrder, l.instrument, seq, l.seq)
	}
	return seq, nil
}

func (l *Ledger) publish() {
	s := &Snapshot{
		Instrument: l.instrument,
		Seq:        l.seq,
		Position:   l.pos,
		Bucket:     l.bucket,
		UpdatedAt:  l.now(),
	}
	if l.legs != nil {
		s.Legs = l.legs.Legs()
	}
	l.snap.Store(s)
}

// netInto folds one signed execution into p, carried at basis, without
// realizing anything. Same-direction volume adds to the basis and moves the
// average, a partial reduction releases its share of the basis and keeps the
// average, a reversal restarts both at price and a full close zeroes them.
func netInto(p Position, basis, signed, price decimal.Decimal) (Position, decimal.Decimal) {
	net := p.NetVolume
	vol := signed.Abs()
	next := net.Add(signed)

	if net.IsZero() || net.Sign() == signed.Sign() {
		basis = basis.Add(vol.Mul(price))
		return Position{NetVolume: next, AveragePrice: basis.Div(next.Abs())}, basis
	}

	switch {
	case next.IsZero():
		return Position{}, decimal.Zero
	case next.Sign() != net.Sign():
		return Position{NetVolume: next, AveragePrice: price}, next.Abs().Mul(price)
	default:
		basis = basis.Sub(closedBasis(basis, vol, net.Abs()))
		return Position{NetVolume: next, AveragePrice: p.AveragePrice}, basis
	}
}

// closedBasis is the part of basis carried by closing out of held. Closing
// everything releases the whole basis, so a full close is exact.
func closedBasis(basis, closing, held decimal.Decimal) decimal.Decimal {
	if closing.GreaterThanOrEqual(held) {
		return basis
	}
	return basis.Mul(closing).Div(held)
}

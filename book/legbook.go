package book

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type LegID uint64

type LegState int

const (
	LegOpen LegState = iota + 1
	LegHedged
	LegClosed
)

func (s LegState) String() string {
	switch s {
	case LegOpen:
		return "OPEN"
	case LegHedged:
		return "HEDGED"
	case LegClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("LegState(%d)", int(s))
	}
}

// Leg is one slice of exposure kept apart from the netted position.
type Leg struct {
	ID         LegID
	Side       Side
	EntryPrice decimal.Decimal
	Volume     decimal.Decimal
	Commission decimal.Decimal // paid on entry, charged when the leg closes
	State      LegState
	HedgedBy   LegID // the opposing leg that moved this one to LegHedged
	OpenedAt   time.Time
}

func (lg Leg) Signed() decimal.Decimal {
	if lg.Side == Sell {
		return lg.Volume.Neg()
	}
	return lg.Volume
}

// PnL is the gross result of closing the leg at exit, before commission.
func (lg Leg) PnL(exit decimal.Decimal) decimal.Decimal {
	return exit.Sub(lg.EntryPrice).Mul(lg.Signed())
}

type CloseKind string

const (
	CloseSingle CloseKind = "leg"
	ClosePair   CloseKind = "pair"
	CloseAll    CloseKind = "all"
)

// Settlement describes one closed leg.
type Settlement struct {
	Leg      Leg
	Kind     CloseKind
	Exit     decimal.Decimal
	Gross    decimal.Decimal
	Realized decimal.Decimal // Gross less the leg's commission
	Time     time.Time
}

// LegBook keeps the open legs of a grid or hedge strategy. It is bound to a
// Ledger for life: while bound, every fill becomes a leg, the ledger position
// is the netting of the open legs, and realized PnL comes only from closing
// legs.
//
// LegBook shares its ledger's single-writer contract.
type LegBook struct {
	ledger   *Ledger
	legs     []Leg
	nextID   LegID
	onSettle func(Settlement)
}

// NewLegBook binds a LegBook to l. A non-flat ledger is carried over as one
// seed leg at its average price, with the banked commission.
func NewLegBook(l *Ledger) (*LegBook, error) {
	if l.legs != nil {
		return nil, fmt.Errorf("%w: %s", ErrLegBookBound, l.instrument)
	}
	b := &LegBook{ledger: l, nextID: 1}
	l.legs = b

	if !l.pos.IsFlat() {
		side := Buy
		if l.pos.IsShort() {
			side = Sell
		}
		b.open(side, l.pos.AveragePrice, l.pos.NetVolume.Abs(), l.bucket.PendingCommission, l.now())
	}
	b.sync()
	return b, nil
}

// OnSettle registers fn to be called for every closed leg, after the
// ledger bucket has been updated.
func (b *LegBook) OnSettle(fn func(Settlement)) {
	b.onSettle = fn
}

// Open appends a leg with no commission. The earliest open opposing leg, if
// any, becomes hedged.
func (b *LegBook) Open(side Side, price, volume decimal.Decimal) (LegID, error) {
	if side.Sign() == 0 || !price.IsPositive() || !volume.IsPositive() {
		return 0, fmt.Errorf("%w: %s %s @ %s", ErrInvalidLeg, side, volume, price)
	}
	id := b.open(side, price, volume, decimal.Zero, b.ledger.now())
	b.sync()
	return id, nil
}

// Record mirrors a fill as a new leg. It is the same as Ledger.Apply on a
// bound ledger.
func (b *LegBook) Record(f Fill) (LegID, error) {
	res, err := b.ledger.Apply(f)
	if err != nil {
		return 0, err
	}
	return res.Leg, nil
}

func (b *LegBook) record(f Fill, seq uint64) ApplyResult {
	at := f.Time
	if at.IsZero() {
		at = b.ledger.now()
	}
	id := b.open(f.Side, f.Price, f.Volume, f.Commission, at)
	b.ledger.seq = seq
	b.ledger.bucket.PendingCommission = b.ledger.bucket.PendingCommission.Add(f.Commission)
	b.sync()

	return ApplyResult{
		Seq:      seq,
		Opened:   f.Volume,
		Position: b.ledger.pos,
		Leg:      id,
	}
}

// CloseByIndex closes one leg at exit and returns its realized PnL,
// (exit - entry) * volume * direction less the leg's entry commission.
func (b *LegBook) CloseByIndex(id LegID, exit decimal.Decimal) (decimal.Decimal, error) {
	if !exit.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: exit price %s", ErrInvalidLeg, exit)
	}
	i := b.index(id)
	if i < 0 {
		return decimal.Zero, fmt.Errorf("%w: %d", ErrLegNotFound, id)
	}
	s := b.settle(i, exit, CloseSingle)
	b.sync()
	return s.Realized, nil
}

// CloseMatchedPair closes the first open Buy leg and the first open Sell leg
// (insertion order, buy settled first) at exit. Holding both, the common
// exit cancels out for equal volumes and the locked spread is realized once.
// closed is false, and nothing changes, when no opposing pair exists.
func (b *LegBook) CloseMatchedPair(exit decimal.Decimal) (realized decimal.Decimal, closed bool) {
	if !exit.IsPositive() {
		return decimal.Zero, false
	}
	bi, si := -1, -1
	for i, lg := range b.legs {
		if bi < 0 && lg.Side == Buy {
			bi = i
		}
		if si < 0 && lg.Side == Sell {
			si = i
		}
	}
	if bi < 0 || si < 0 {
		return decimal.Zero, false
	}

	buy := b.settle(bi, exit, ClosePair)
	if si > bi {
		si--
	}
	sell := b.settle(si, exit, ClosePair)
	b.sync()
	return buy.Realized.Add(sell.Realized), true
}

// CloseAll closes every leg at exit, most recent first, and returns the
// summed realized PnL. A non-positive exit closes nothing.
func (b *LegBook) CloseAll(exit decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	if !exit.IsPositive() || len(b.legs) == 0 {
		return total
	}
	for i := len(b.legs) - 1; i >= 0; i-- {
		total = total.Add(b.settle(i, exit, CloseAll).Realized)
	}
	b.sync()
	return total
}

// FloatingPnL marks every open leg at price. Unlike the netted position it
// includes the spread locked between opposing legs.
func (b *LegBook) FloatingPnL(price decimal.Decimal) decimal.Decimal {
	return LegsFloatingPnL(b.legs, price)
}

// LegsFloatingPnL sums the gross PnL of legs marked at price.
func LegsFloatingPnL(legs []Leg, price decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, lg := range legs {
		total = total.Add(lg.PnL(price))
	}
	return total
}

// Legs returns a copy of the open legs in insertion order.
func (b *LegBook) Legs() []Leg {
	out := make([]Leg, len(b.legs))
	copy(out, b.legs)
	return out
}

func (b *LegBook) Len() int { return len(b.legs) }

func (b *LegBook) Leg(id LegID) (Leg, bool) {
	if i := b.index(id); i >= 0 {
		return b.legs[i], true
	}
	return Leg{}, false
}

// CheckInvariant verifies that the open legs sum to the ledger's net
// volume. With Debug set a violation panics.
func (b *LegBook) CheckInvariant() error {
	sum := decimal.Zero
	for _, lg := range b.legs {
		sum = sum.Add(lg.Signed())
	}
	if sum.Equal(b.ledger.pos.NetVolume) {
		return nil
	}
	err := fmt.Errorf("%w: %s legs sum %s, net volume %s",
		ErrCrossInvariantViolation, b.ledger.instrument, sum, b.ledger.pos.NetVolume)
	if Debug {
		panic(err)
	}
	return err
}

func (b *LegBook) open(side Side, price, volume, commission decimal.Decimal, at time.Time) LegID {
	id := b.nextID
	b.nextID++

	for i := range b.legs {
		if b.legs[i].Side != side && b.legs[i].State == LegOpen {
			b.legs[i].State = LegHedged
			b.legs[i].HedgedBy = id
			break
		}
	}

	b.legs = append(b.legs, Leg{
		ID:         id,
		Side:       side,
		EntryPrice: price,
		Volume:     volume,
		Commission: commission,
		State:      LegOpen,
		OpenedAt:   at,
	})
	return id
}

func (b *LegBook) settle(i int, exit decimal.Decimal, kind CloseKind) Settlement {
	lg := b.legs[i]
	b.legs = append(b.legs[:i], b.legs[i+1:]...)
	lg.State = LegClosed

	gross := lg.PnL(exit)
	s := Settlement{
		Leg:      lg,
		Kind:     kind,
		Exit:     exit,
		Gross:    gross,
		Realized: gross.Sub(lg.Commission),
		Time:     b.ledger.now(),
	}

	bk := &b.ledger.bucket
	bk.add(s.Realized)
	bk.Commission = bk.Commission.Add(lg.Commission)
	bk.PendingCommission = bk.PendingCommission.Sub(lg.Commission)

	if b.onSettle != nil {
		b.onSettle(s)
	}
	return s
}

func (b *LegBook) index(id LegID) int {
	for i, lg := range b.legs {
		if lg.ID == id {
			return i
		}
	}
	return -1
}

// sync restates the ledger position from the open legs and publishes. The
// position is derived from the legs, so it never needs CheckInvariant.
func (b *LegBook) sync() {
	pos, basis := Position{}, decimal.Zero
	for _, lg := range b.legs {
		pos, basis = netInto(pos, basis, lg.Signed(), lg.EntryPrice)
	}
	b.ledger.pos, b.ledger.basis = pos, basis
	b.ledger.publish()
}

package risk

import (
	"github.com/rustyeddy/fillbook/book"
	"github.com/rustyeddy/fillbook/volume"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Snapshot is a read-only projection of a ledger snapshot. The market price
// is always passed in and never stored.
type Snapshot struct {
	book.Snapshot
}

func New(s book.Snapshot) Snapshot {
	return Snapshot{Snapshot: s}
}

// FloatingPnL marks the netted position at price. NetVolume carries the
// sign, so the same formula holds for longs and shorts.
func (s Snapshot) FloatingPnL(price decimal.Decimal) decimal.Decimal {
	p := s.Position
	if p.IsFlat() {
		return decimal.Zero
	}
	return price.Sub(p.AveragePrice).Mul(p.NetVolume)
}

// FloatingPnLPercent is FloatingPnL as a percentage of equity, 0 when
// equity is 0.
func (s Snapshot) FloatingPnLPercent(price, equity decimal.Decimal) decimal.Decimal {
	if equity.IsZero() {
		return decimal.Zero
	}
	return hundred.Mul(s.FloatingPnL(price)).Div(equity)
}

// LegFloatingPnL marks each open leg at price, including the spread locked
// between opposing legs. Outside hedge mode it equals FloatingPnL.
func (s Snapshot) LegFloatingPnL(price decimal.Decimal) decimal.Decimal {
	if s.Legs == nil {
		return s.FloatingPnL(price)
	}
	return book.LegsFloatingPnL(s.Legs, price)
}

func (s Snapshot) RealizedPnL() decimal.Decimal {
	return s.Bucket.TotalGains.Add(s.Bucket.TotalLosses)
}

// Equity is balance plus the mark-to-market of everything still open.
func (s Snapshot) Equity(balance, price decimal.Decimal) decimal.Decimal {
	return balance.Add(s.LegFloatingPnL(price))
}

// OpenVolume is the absolute net volume.
func (s Snapshot) OpenVolume() decimal.Decimal {
	return s.Position.NetVolume.Abs()
}

// VolumeAdjustment is how far the open volume is from recommended.
func (s Snapshot) VolumeAdjustment(recommended decimal.Decimal, c volume.Constraints) decimal.Decimal {
	return VolumeAdjustment(recommended, s.OpenVolume(), c.Step)
}

// RecommendedVolume sizes a position as a fraction of equity and normalizes
// it to the instrument's lot rules.
func RecommendedVolume(equity, fraction decimal.Decimal, c volume.Constraints) (decimal.Decimal, error) {
	return volume.Normalize(equity.Mul(fraction), c)
}

// VolumeAdjustment returns recommended - open, or zero when the difference
// is smaller than one step.
func VolumeAdjustment(recommended, open, step decimal.Decimal) decimal.Decimal {
	diff := recommended.Sub(open)
	if diff.Abs().LessThan(step) {
		return decimal.Zero
	}
	return diff
}

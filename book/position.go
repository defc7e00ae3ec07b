package book

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the netted exposure of one instrument. AveragePrice is only
// meaningful while NetVolume is not zero and is zero when flat.
type Position struct {
	NetVolume    decimal.Decimal
	AveragePrice decimal.Decimal
}

func (p Position) IsFlat() bool  { return p.NetVolume.IsZero() }
func (p Position) IsShort() bool { return p.NetVolume.IsNegative() }

// Bucket accumulates realized PnL. Gains and losses stay separate so
// reporting can show gross win/loss; both are net of allocated commission.
type Bucket struct {
	TotalGains  decimal.Decimal // sum of non-negative realized deltas
	TotalLosses decimal.Decimal // sum of negative realized deltas (<= 0)

	// Commission already charged against realized PnL.
	Commission decimal.Decimal
	// PendingCommission is paid on volume that is still open. It is charged
	// when that volume closes.
	PendingCommission decimal.Decimal

	Wins   int // closes that realized more than zero
	Losses int
}

// Realized is gains plus losses.
func (b Bucket) Realized() decimal.Decimal {
	return b.TotalGains.Add(b.TotalLosses)
}

// ProfitFactor is gross gains over gross losses, zero when there are no
// losses yet.
func (b Bucket) ProfitFactor() decimal.Decimal {
	if b.TotalLosses.IsZero() {
		return decimal.Zero
	}
	return b.TotalGains.Div(b.TotalLosses.Abs())
}

func (b *Bucket) add(amount decimal.Decimal) {
	if amount.IsNegative() {
		b.TotalLosses = b.TotalLosses.Add(amount)
		b.Losses++
		return
	}
	b.TotalGains = b.TotalGains.Add(amount)
	if amount.IsPositive() {
		b.Wins++
	}
}

// Snapshot is an immutable copy of ledger state published after every
// mutation. Readers may hold on to it freely.
type Snapshot struct {
	Instrument string
	Seq        uint64
	Position   Position
	Bucket     Bucket
	Legs       []Leg // open legs, insertion order; nil outside hedge mode
	UpdatedAt  time.Time
}

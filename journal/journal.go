// journal/journal.go
package journal

import (
	"sync"
	"time"

	"github.com/rustyeddy/fillbook/book"
	"github.com/rustyeddy/fillbook/pkg/id"
	"github.com/shopspring/decimal"
)

// Realization kinds. Leg closes use the book.CloseKind values.
const (
	KindFill     = "fill"
	KindExternal = "external"
)

// RealizationRecord is one realized PnL event: a closing fill or a closed
// leg.
type RealizationRecord struct {
	ID         string
	Instrument string
	Seq        uint64
	Kind       string
	Side       string // side of the exposure that was closed
	LegID      uint64
	Volume     decimal.Decimal
	EntryPrice decimal.Decimal
	ExitPrice  decimal.Decimal
	Commission decimal.Decimal
	Realized   decimal.Decimal
	Time       time.Time
}

// SnapshotRecord is the ledger state after a mutation.
type SnapshotRecord struct {
	Time         time.Time
	Instrument   string
	Seq          uint64
	NetVolume    decimal.Decimal
	AveragePrice decimal.Decimal
	Gains        decimal.Decimal
	Losses       decimal.Decimal
	Commission   decimal.Decimal
	OpenLegs     int
}

type Journal interface {
	RecordRealization(RealizationRecord) error
	RecordSnapshot(SnapshotRecord) error
	Close() error
}

// FromApply builds the record of a fill that closed volume. prior is the
// position before the fill.
func FromApply(instrument string, prior book.Position, f book.Fill, res book.ApplyResult) RealizationRecord {
	side := book.Buy
	if prior.IsShort() {
		side = book.Sell
	}
	at := f.Time
	if at.IsZero() {
		at = time.Now()
	}
	return RealizationRecord{
		ID:         id.At(at),
		Instrument: instrument,
		Seq:        res.Seq,
		Kind:       KindFill,
		Side:       side.String(),
		Volume:     res.Closed,
		EntryPrice: res.EntryPrice,
		ExitPrice:  f.Price,
		Commission: res.Commission,
		Realized:   res.Realized,
		Time:       at,
	}
}

func FromSettlement(instrument string, seq uint64, s book.Settlement) RealizationRecord {
	return RealizationRecord{
		ID:         id.At(s.Time),
		Instrument: instrument,
		Seq:        seq,
		Kind:       string(s.Kind),
		Side:       s.Leg.Side.String(),
		LegID:      uint64(s.Leg.ID),
		Volume:     s.Leg.Volume,
		EntryPrice: s.Leg.EntryPrice,
		ExitPrice:  s.Exit,
		Commission: s.Leg.Commission,
		Realized:   s.Realized,
		Time:       s.Time,
	}
}

func FromSnapshot(s book.Snapshot) SnapshotRecord {
	return SnapshotRecord{
		Time:         s.UpdatedAt,
		Instrument:   s.Instrument,
		Seq:          s.Seq,
		NetVolume:    s.Position.NetVolume,
		AveragePrice: s.Position.AveragePrice,
		Gains:        s.Bucket.TotalGains,
		Losses:       s.Bucket.TotalLosses,
		Commission:   s.Bucket.Commission,
		OpenLegs:     len(s.Legs),
	}
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordRealization(RealizationRecord) error { return nil }
func (Nop) RecordSnapshot(SnapshotRecord) error       { return nil }
func (Nop) Close() error                              { return nil }

type locked struct {
	mu sync.Mutex
	j  Journal
}

// Synchronized serializes calls to j so several instrument workers can
// share it.
func Synchronized(j Journal) Journal {
	if _, ok := j.(*locked); ok {
		return j
	}
	return &locked{j: j}
}

func (l *locked) RecordRealization(r RealizationRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.j.RecordRealization(r)
}

func (l *locked) RecordSnapshot(s SnapshotRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.j.RecordSnapshot(s)
}

func (l *locked) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.j.Close()
}

// Summary aggregates realization records.
type Summary struct {
	Count       int
	Wins        int
	Losses      int
	GrossProfit decimal.Decimal
	GrossLoss   decimal.Decimal // positive
	Commission  decimal.Decimal
}

func (s Summary) Net() decimal.Decimal {
	return s.GrossProfit.Sub(s.GrossLoss)
}

// ProfitFactor is gross profit over gross loss, zero when nothing was lost.
func (s Summary) ProfitFactor() decimal.Decimal {
	if s.GrossLoss.IsZero() {
		return decimal.Zero
	}
	return s.GrossProfit.Div(s.GrossLoss)
}

func Summarize(recs []RealizationRecord) Summary {
	var s Summary
	for _, r := range recs {
		s.Count++
		s.Commission = s.Commission.Add(r.Commission)
		if r.Realized.IsNegative() {
			s.Losses++
			s.GrossLoss = s.GrossLoss.Add(r.Realized.Abs())
			continue
		}
		if r.Realized.IsPositive() {
			s.Wins++
		}
		s.GrossProfit = s.GrossProfit.Add(r.Realized)
	}
	return s
}

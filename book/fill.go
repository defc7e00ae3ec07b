package book

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Side int

const (
	Buy Side = iota + 1
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

// Sign is +1 for Buy, -1 for Sell and 0 for anything else.
func (s Side) Sign() int {
	switch s {
	case Buy:
		return 1
	case Sell:
		return -1
	default:
		return 0
	}
}

// ParseSide accepts BUY/SELL and the common LONG/SHORT and B/S spellings.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY", "B", "LONG":
		return Buy, nil
	case "SELL", "S", "SHORT":
		return Sell, nil
	}
	return 0, fmt.Errorf("unknown side %q", s)
}

// Fill is one confirmed execution. Fills are immutable facts: the ledger
// never rolls one back.
type Fill struct {
	ID         string
	Seq        uint64 // 0 lets the ledger assign the next sequence
	Side       Side
	Price      decimal.Decimal
	Volume     decimal.Decimal
	Commission decimal.Decimal
	Time       time.Time
}

// Signed returns the volume with the side's sign applied.
func (f Fill) Signed() decimal.Decimal {
	if f.Side == Sell {
		return f.Volume.Neg()
	}
	return f.Volume
}

// Validate rejects fills that must never touch ledger state.
func (f Fill) Validate() error {
	if f.Side.Sign() == 0 {
		return fmt.Errorf("%w: unknown side %d", ErrInvalidFill, int(f.Side))
	}
	if !f.Price.IsPositive() {
		return fmt.Errorf("%w: price %s must be positive", ErrInvalidFill, f.Price)
	}
	if !f.Volume.IsPositive() {
		return fmt.Errorf("%w: volume %s must be positive", ErrInvalidFill, f.Volume)
	}
	if f.Commission.IsNegative() {
		return fmt.Errorf("%w: commission %s must not be negative", ErrInvalidFill, f.Commission)
	}
	return nil
}

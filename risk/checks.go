package risk

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Policy holds the monitor limits a strategy layer acts on. Zero values
// disable a check.
type Policy struct {
	MaxFloatingLossPct decimal.Decimal // 5 means a 5% floating loss of equity
	MaxDrawdown        decimal.Decimal // absolute realized loss, positive number
	MaxOpenVolume      decimal.Decimal
	MaxOpenLegs        int
}

type Violation struct {
	Code string
	Msg  string
}

type Decision struct {
	Allowed    bool
	Violations []Violation

	FloatingPnL        decimal.Decimal
	FloatingPnLPercent decimal.Decimal
	RealizedPnL        decimal.Decimal
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Evaluate checks a snapshot marked at price against p.
func Evaluate(p Policy, s Snapshot, price, equity decimal.Decimal) Decision {
	d := Decision{Allowed: true}

	d.FloatingPnL = s.LegFloatingPnL(price)
	if !equity.IsZero() {
		d.FloatingPnLPercent = hundred.Mul(d.FloatingPnL).Div(equity)
	}
	d.RealizedPnL = s.RealizedPnL()

	if p.MaxFloatingLossPct.IsPositive() && d.FloatingPnLPercent.LessThanOrEqual(p.MaxFloatingLossPct.Neg()) {
		d.add("FLOATING_LOSS_LIMIT",
			fmt.Sprintf("floating %s%% <= limit -%s%%",
				d.FloatingPnLPercent.StringFixed(2), p.MaxFloatingLossPct.StringFixed(2)))
	}
	if p.MaxDrawdown.IsPositive() && s.Bucket.TotalLosses.Abs().GreaterThanOrEqual(p.MaxDrawdown) {
		d.add("DRAWDOWN_LIMIT",
			fmt.Sprintf("realized losses %s >= max %s", s.Bucket.TotalLosses.Abs(), p.MaxDrawdown))
	}
	if p.MaxOpenVolume.IsPositive() && s.OpenVolume().GreaterThan(p.MaxOpenVolume) {
		d.add("OPEN_VOLUME_LIMIT",
			fmt.Sprintf("open volume %s > max %s", s.OpenVolume(), p.MaxOpenVolume))
	}
	if p.MaxOpenLegs > 0 && len(s.Legs) > p.MaxOpenLegs {
		d.add("TOO_MANY_LEGS",
			fmt.Sprintf("open legs %d > max %d", len(s.Legs), p.MaxOpenLegs))
	}

	return d
}

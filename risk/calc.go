package risk

import (
	"errors"
	"fmt"

	"github.com/rustyeddy/fillbook/volume"
	"github.com/shopspring/decimal"
)

var ErrNoStopDistance = errors.New("entry and stop are equal")

// PlannedRisk is the absolute account-currency loss if the stop is hit.
// quoteToAccount converts quote currency to account currency; it is 1 when
// they are the same.
func PlannedRisk(vol, entry, stop, quoteToAccount decimal.Decimal) decimal.Decimal {
	return entry.Sub(stop).Abs().Mul(vol.Abs()).Mul(quoteToAccount)
}

// RR is reward over risk, 0 when there is no risk.
func RR(entry, stop, takeProfit decimal.Decimal) decimal.Decimal {
	risk := entry.Sub(stop).Abs()
	if risk.IsZero() {
		return decimal.Zero
	}
	return takeProfit.Sub(entry).Abs().Div(risk)
}

// RiskPct is planned risk as a fraction of equity. ok is false when equity
// is not positive, which callers should treat as unbounded risk.
func RiskPct(plannedRisk, equity decimal.Decimal) (pct decimal.Decimal, ok bool) {
	if !equity.IsPositive() {
		return decimal.Zero, false
	}
	return plannedRisk.Div(equity), true
}

type Inputs struct {
	Equity         decimal.Decimal
	RiskFraction   decimal.Decimal // 0.005
	EntryPrice     decimal.Decimal
	StopPrice      decimal.Decimal
	QuoteToAccount decimal.Decimal // zero is treated as 1
	Constraints    volume.Constraints
}

type Result struct {
	Volume       decimal.Decimal
	StopDistance decimal.Decimal
	RiskAmount   decimal.Decimal
}

// StopSizedVolume sizes a position so that hitting the stop loses
// Equity * RiskFraction, rounded down to the instrument's lot rules.
func StopSizedVolume(in Inputs) (Result, error) {
	dist := in.EntryPrice.Sub(in.StopPrice).Abs()
	if dist.IsZero() {
		return Result{}, ErrNoStopDistance
	}
	rate := in.QuoteToAccount
	if rate.IsZero() {
		rate = decimal.NewFromInt(1)
	}

	riskAmt := in.Equity.Mul(in.RiskFraction)
	raw := riskAmt.Div(dist.Mul(rate))

	vol, err := volume.Normalize(raw, in.Constraints)
	if err != nil {
		return Result{StopDistance: dist, RiskAmount: riskAmt}, fmt.Errorf("stop sized volume: %w", err)
	}
	return Result{Volume: vol, StopDistance: dist, RiskAmount: riskAmt}, nil
}

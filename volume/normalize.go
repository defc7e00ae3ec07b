// volume/normalize.go
package volume

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrBelowMinimum means the rounded volume is under the instrument
	// minimum. Callers must skip the fill or order rather than force it.
	ErrBelowMinimum = errors.New("volume below minimum")

	// ErrInvalidConstraints is returned for a step <= 0, a negative minimum,
	// or a maximum that cannot hold the minimum.
	ErrInvalidConstraints = errors.New("invalid volume constraints")
)

// Constraints are the lot size rules of one instrument. A zero Max means
// there is no upper bound.
type Constraints struct {
	Step decimal.Decimal
	Min  decimal.Decimal
	Max  decimal.Decimal
}

// NewConstraints builds Constraints from float settings, as found in config
// files. Floats are converted with their shortest decimal representation.
func NewConstraints(step, min, max float64) Constraints {
	return Constraints{
		Step: decimal.NewFromFloat(step),
		Min:  decimal.NewFromFloat(min),
		Max:  decimal.NewFromFloat(max),
	}
}

// HasMax reports whether an upper bound is set.
func (c Constraints) HasMax() bool {
	return c.Max.IsPositive()
}

// Validate checks the constraint invariants.
func (c Constraints) Validate() error {
	if !c.Step.IsPositive() {
		return fmt.Errorf("%w: step %s must be positive", ErrInvalidConstraints, c.Step)
	}
	if c.Min.IsNegative() {
		return fmt.Errorf("%w: min %s must not be negative", ErrInvalidConstraints, c.Min)
	}
	if c.Max.IsNegative() {
		return fmt.Errorf("%w: max %s must not be negative", ErrInvalidConstraints, c.Max)
	}
	if c.HasMax() && floorToStep(c.Max, c.Step).LessThan(c.Min) {
		return fmt.Errorf("%w: max %s (step %s) is below min %s", ErrInvalidConstraints, c.Max, c.Step, c.Min)
	}
	return nil
}

// Normalize rounds raw down to a multiple of c.Step, rejects results under
// c.Min and clamps results over c.Max. A result that rounds to zero is
// rejected with ErrBelowMinimum even when c.Min is zero, since a zero volume
// is never a tradable size.
//
// Rounding is always toward zero so a normalized volume never commits more
// than was asked for. Normalize is idempotent.
func Normalize(raw decimal.Decimal, c Constraints) (decimal.Decimal, error) {
	if err := c.Validate(); err != nil {
		return decimal.Zero, err
	}

	v := floorToStep(raw, c.Step)
	if !v.IsPositive() || v.LessThan(c.Min) {
		return decimal.Zero, fmt.Errorf("%w: %s rounds to %s (step %s, min %s)",
			ErrBelowMinimum, raw, v, c.Step, c.Min)
	}

	if c.HasMax() {
		max := floorToStep(c.Max, c.Step)
		if v.GreaterThan(max) {
			v = max
		}
	}
	return v, nil
}

// IsNormalized reports whether v passes through Normalize unchanged.
func IsNormalized(v decimal.Decimal, c Constraints) bool {
	n, err := Normalize(v, c)
	return err == nil && n.Equal(v)
}

// floorToStep truncates x to a whole number of steps. QuoRem with precision
// zero yields an exact integer quotient, so values a hair under a step
// boundary are never rounded up by a finite division precision.
func floorToStep(x, step decimal.Decimal) decimal.Decimal {
	q, _ := x.QuoRem(step, 0)
	return q.Mul(step)
}

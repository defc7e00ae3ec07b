package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/fillbook/book"
	"github.com/rustyeddy/fillbook/logs"
	"github.com/rustyeddy/fillbook/volume"
	"github.com/shopspring/decimal"
)

// Sink receives replayed events. *engine.Engine implements it.
type Sink interface {
	Submit(ctx context.Context, instrument string, f book.Fill) (book.ApplyResult, error)
	ClosePair(ctx context.Context, instrument string, exit decimal.Decimal, at time.Time) (decimal.Decimal, bool, error)
	CloseAllLegs(ctx context.Context, instrument string, exit decimal.Decimal, at time.Time) (decimal.Decimal, error)
	Realize(ctx context.Context, instrument string, amount decimal.Decimal, at time.Time) error
}

type Source interface {
	Next() (Event, bool, error)
}

type Stats struct {
	Events   int
	Fills    int
	Rejected int
	Closes   int
	Realized decimal.Decimal // from fills, leg closes and external amounts
}

// Replay feeds every event from src to sink in order. Fills the ledger
// refuses are logged and counted; any other error stops the replay.
func Replay(ctx context.Context, src Source, sink Sink) (Stats, error) {
	var st Stats
	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		ev, ok, err := src.Next()
		if err != nil {
			return st, err
		}
		if !ok {
			return st, nil
		}
		st.Events++

		if err := dispatch(ctx, sink, ev, &st); err != nil {
			return st, fmt.Errorf("line %d (%s %s): %w", ev.Line, ev.Instrument, ev.Kind, err)
		}
	}
}

func dispatch(ctx context.Context, sink Sink, ev Event, st *Stats) error {
	switch ev.Kind {
	case KindFill:
		res, err := sink.Submit(ctx, ev.Instrument, ev.Fill)
		if rejected(err) {
			st.Rejected++
			logs.WithFields(logs.Fields{"line": ev.Line, "instrument": ev.Instrument}).
				WithError(err).Warn("fill skipped")
			return nil
		}
		if err != nil {
			return err
		}
		st.Fills++
		st.Realized = st.Realized.Add(res.Realized)

	case KindClosePair:
		realized, closed, err := sink.ClosePair(ctx, ev.Instrument, ev.Amount, ev.Time)
		if err != nil {
			return err
		}
		if closed {
			st.Closes++
			st.Realized = st.Realized.Add(realized)
		}

	case KindCloseAll:
		realized, err := sink.CloseAllLegs(ctx, ev.Instrument, ev.Amount, ev.Time)
		if err != nil {
			return err
		}
		st.Closes++
		st.Realized = st.Realized.Add(realized)

	case KindRealize:
		if err := sink.Realize(ctx, ev.Instrument, ev.Amount, ev.Time); err != nil {
			return err
		}
		st.Realized = st.Realized.Add(ev.Amount)

	default:
		return fmt.Errorf("unknown event kind %d", int(ev.Kind))
	}
	return nil
}

func rejected(err error) bool {
	return errors.Is(err, book.ErrInvalidFill) ||
		errors.Is(err, book.ErrOutOfOrder) ||
		errors.Is(err, volume.ErrBelowMinimum)
}

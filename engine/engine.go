// Package engine runs one ledger per instrument behind its own goroutine.
// Every mutation of an instrument, whether a fill, a leg command or an
// external realization, goes through that instrument's inbox, so each
// ledger keeps a single writer while callers submit from anywhere.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rustyeddy/fillbook/book"
	"github.com/rustyeddy/fillbook/journal"
	"github.com/rustyeddy/fillbook/logs"
	"github.com/rustyeddy/fillbook/volume"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

var (
	ErrUnknownInstrument = errors.New("unknown instrument")
	ErrNotHedging        = errors.New("instrument is not in hedge mode")
	ErrStopped           = errors.New("engine stopped")
	ErrAlreadyStarted    = errors.New("engine already started")
)

const inboxSize = 64

// Instrument configures one worker.
type Instrument struct {
	Name        string
	Constraints volume.Constraints
	Hedge       bool // bind a LegBook to the ledger
}

type Engine struct {
	journal journal.Journal
	workers map[string]*worker
	names   []string
	started atomic.Bool
	stopped chan struct{}
}

// New builds an engine with one worker per instrument. A nil journal
// discards records.
func New(j journal.Journal, instruments ...Instrument) (*Engine, error) {
	if j == nil {
		j = journal.Nop{}
	}
	e := &Engine{
		journal: journal.Synchronized(j),
		workers: make(map[string]*worker, len(instruments)),
		stopped: make(chan struct{}),
	}

	for _, in := range instruments {
		if in.Name == "" {
			return nil, errors.New("instrument name is required")
		}
		if _, dup := e.workers[in.Name]; dup {
			return nil, fmt.Errorf("duplicate instrument %q", in.Name)
		}
		if err := in.Constraints.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", in.Name, err)
		}
		w, err := newWorker(in, e.journal)
		if err != nil {
			return nil, err
		}
		e.workers[in.Name] = w
		e.names = append(e.names, in.Name)
	}
	sort.Strings(e.names)
	return e, nil
}

// Run starts the workers and blocks until ctx is done. Commands submitted
// after Run returns fail with ErrStopped. An engine runs once; later calls
// return ErrAlreadyStarted.
func (e *Engine) Run(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer close(e.stopped)

	g, ctx := errgroup.WithContext(ctx)
	if len(e.names) == 0 {
		g.Go(func() error {
			<-ctx.Done()
			return ctx.Err()
		})
	}
	for _, name := range e.names {
		w := e.workers[name]
		g.Go(func() error {
			return w.run(ctx)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Instruments returns the configured instrument names, sorted.
func (e *Engine) Instruments() []string {
	out := make([]string, len(e.names))
	copy(out, e.names)
	return out
}

// Snapshot returns the last published state of an instrument. It does not
// go through the inbox.
func (e *Engine) Snapshot(instrument string) (book.Snapshot, error) {
	w, err := e.worker(instrument)
	if err != nil {
		return book.Snapshot{}, err
	}
	return w.ledger.Snapshot(), nil
}

// Constraints returns the lot rules of an instrument.
func (e *Engine) Constraints(instrument string) (volume.Constraints, error) {
	w, err := e.worker(instrument)
	if err != nil {
		return volume.Constraints{}, err
	}
	return w.constraints, nil
}

// Submit books a fill on its instrument and waits for the result. The
// fill volume is normalized to the instrument's lot rules first.
//
// Once queued a command runs even if ctx is cancelled while waiting.
func (e *Engine) Submit(ctx context.Context, instrument string, f book.Fill) (book.ApplyResult, error) {
	var res book.ApplyResult
	err := e.do(ctx, instrument, f.Time, func(w *worker) error {
		var err error
		res, err = w.submit(f)
		return err
	})
	return res, err
}

// OpenLeg opens a leg without commission on a hedge-mode instrument.
// A zero at stamps the leg with the current time.
func (e *Engine) OpenLeg(ctx context.Context, instrument string, side book.Side, price, vol decimal.Decimal, at time.Time) (book.LegID, error) {
	var id book.LegID
	err := e.do(ctx, instrument, at, func(w *worker) error {
		var err error
		id, err = w.openLeg(side, price, vol)
		return err
	})
	return id, err
}

// CloseLeg closes one leg at exit.
func (e *Engine) CloseLeg(ctx context.Context, instrument string, id book.LegID, exit decimal.Decimal, at time.Time) (decimal.Decimal, error) {
	var realized decimal.Decimal
	err := e.do(ctx, instrument, at, func(w *worker) error {
		if w.legs == nil {
			return fmt.Errorf("%w: %s", ErrNotHedging, w.name)
		}
		var err error
		realized, err = w.legs.CloseByIndex(id, exit)
		if err == nil {
			w.publish()
		}
		return err
	})
	return realized, err
}

// ClosePair closes the first buy and first sell leg at exit. closed is
// false when there is no opposing pair.
func (e *Engine) ClosePair(ctx context.Context, instrument string, exit decimal.Decimal, at time.Time) (realized decimal.Decimal, closed bool, err error) {
	err = e.do(ctx, instrument, at, func(w *worker) error {
		if w.legs == nil {
			return fmt.Errorf("%w: %s", ErrNotHedging, w.name)
		}
		realized, closed = w.legs.CloseMatchedPair(exit)
		if closed {
			w.publish()
		}
		return nil
	})
	return realized, closed, err
}

// CloseAllLegs closes every leg at exit, most recent first.
func (e *Engine) CloseAllLegs(ctx context.Context, instrument string, exit decimal.Decimal, at time.Time) (decimal.Decimal, error) {
	var realized decimal.Decimal
	err := e.do(ctx, instrument, at, func(w *worker) error {
		if w.legs == nil {
			return fmt.Errorf("%w: %s", ErrNotHedging, w.name)
		}
		n := w.legs.Len()
		realized = w.legs.CloseAll(exit)
		if w.legs.Len() != n {
			w.publish()
		}
		return nil
	})
	return realized, err
}

// Realize books an amount realized outside of fills, such as a swap
// charge or a rebate.
func (e *Engine) Realize(ctx context.Context, instrument string, amount decimal.Decimal, at time.Time) error {
	return e.do(ctx, instrument, at, func(w *worker) error {
		w.realize(amount, at)
		return nil
	})
}

func (e *Engine) worker(instrument string) (*worker, error) {
	w, ok := e.workers[instrument]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInstrument, instrument)
	}
	return w, nil
}

// do queues fn on the instrument's worker. at is the event time the ledger
// sees while fn runs; zero means now.
func (e *Engine) do(ctx context.Context, instrument string, at time.Time, fn func(*worker) error) error {
	w, err := e.worker(instrument)
	if err != nil {
		return err
	}

	cmd := command{fn: fn, at: at, done: make(chan error, 1), queued: time.Now()}
	select {
	case w.inbox <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stopped:
		return ErrStopped
	}

	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stopped:
		// the worker may have answered just before stopping
		select {
		case err := <-cmd.done:
			return err
		default:
			return ErrStopped
		}
	}
}

func logFields(instrument string) logs.Fields {
	return logs.Fields{"instrument": instrument}
}

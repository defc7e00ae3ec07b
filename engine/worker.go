package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/fillbook/book"
	"github.com/rustyeddy/fillbook/journal"
	"github.com/rustyeddy/fillbook/logs"
	"github.com/rustyeddy/fillbook/metrics"
	"github.com/rustyeddy/fillbook/pkg/id"
	"github.com/rustyeddy/fillbook/volume"
	"github.com/shopspring/decimal"
)

type command struct {
	fn     func(*worker) error
	at     time.Time
	done   chan error
	queued time.Time
}

// worker owns one instrument. Only its run goroutine touches ledger and
// legs after construction.
type worker struct {
	name        string
	ledger      *book.Ledger
	legs        *book.LegBook
	constraints volume.Constraints
	journal     journal.Journal
	inbox       chan command
	at          time.Time // event time of the running command
}

func newWorker(in Instrument, j journal.Journal) (*worker, error) {
	w := &worker{
		name:        in.Name,
		ledger:      book.NewLedger(in.Name),
		constraints: in.Constraints,
		journal:     j,
		inbox:       make(chan command, inboxSize),
	}
	w.ledger.SetClock(w.clock)
	if in.Hedge {
		legs, err := book.NewLegBook(w.ledger)
		if err != nil {
			return nil, err
		}
		legs.OnSettle(w.settled)
		w.legs = legs
	}
	return w, nil
}

func (w *worker) run(ctx context.Context) error {
	logs.WithFields(logFields(w.name)).WithField("hedge", w.legs != nil).Debug("worker started")
	defer logs.WithFields(logFields(w.name)).Debug("worker stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-w.inbox:
			w.at = cmd.at
			cmd.done <- cmd.fn(w)
			w.at = time.Time{}
			metrics.ApplyLatency.WithLabelValues(w.name).
				Observe(float64(time.Since(cmd.queued).Microseconds()) / 1000)
		}
	}
}

func (w *worker) clock() time.Time {
	if w.at.IsZero() {
		return time.Now()
	}
	return w.at
}

func (w *worker) submit(f book.Fill) (book.ApplyResult, error) {
	if err := f.Validate(); err != nil {
		w.reject(f, "invalid", err)
		return book.ApplyResult{}, err
	}

	v, err := volume.Normalize(f.Volume, w.constraints)
	if err != nil {
		w.reject(f, "volume", err)
		return book.ApplyResult{}, err
	}
	if !v.Equal(f.Volume) {
		logs.WithFields(logFields(w.name)).
			WithField("requested", f.Volume.String()).
			WithField("booked", v.String()).
			Warn("fill volume adjusted to lot rules")
		metrics.VolumeAdjusted.WithLabelValues(w.name).Inc()
		f.Volume = v
	}

	prior := w.ledger.Position()
	res, err := w.ledger.Apply(f)
	if err != nil {
		reason := "invalid"
		if errors.Is(err, book.ErrOutOfOrder) {
			reason = "out_of_order"
		}
		w.reject(f, reason, err)
		return book.ApplyResult{}, err
	}
	metrics.FillsApplied.WithLabelValues(w.name, f.Side.String()).Inc()

	if res.Closed.IsPositive() {
		w.record(journal.FromApply(w.name, prior, f, res))
	}
	if res.Reversed {
		logs.WithFields(logFields(w.name)).
			WithField("seq", res.Seq).
			WithField("net", res.Position.NetVolume.String()).
			Info("position reversed")
	}
	w.publish()
	return res, nil
}

func (w *worker) openLeg(side book.Side, price, vol decimal.Decimal) (book.LegID, error) {
	if w.legs == nil {
		return 0, fmt.Errorf("%w: %s", ErrNotHedging, w.name)
	}
	v, err := volume.Normalize(vol, w.constraints)
	if err != nil {
		return 0, err
	}
	legID, err := w.legs.Open(side, price, v)
	if err != nil {
		return 0, err
	}
	w.publish()
	return legID, nil
}

func (w *worker) realize(amount decimal.Decimal, at time.Time) {
	if amount.IsZero() {
		return
	}
	if at.IsZero() {
		at = w.clock()
	}
	w.ledger.Realize(amount)
	w.record(journal.RealizationRecord{
		ID:         id.At(at),
		Instrument: w.name,
		Seq:        w.ledger.Snapshot().Seq,
		Kind:       journal.KindExternal,
		Realized:   amount,
		Time:       at,
	})
	w.publish()
}

// settled is the LegBook callback.
func (w *worker) settled(s book.Settlement) {
	metrics.LegsClosed.WithLabelValues(w.name, string(s.Kind)).Inc()
	logs.WithFields(logFields(w.name)).
		WithField("leg", uint64(s.Leg.ID)).
		WithField("kind", string(s.Kind)).
		WithField("realized", s.Realized.String()).
		Info("leg closed")
	w.record(journal.FromSettlement(w.name, w.ledger.Snapshot().Seq, s))
}

func (w *worker) record(r journal.RealizationRecord) {
	if err := w.journal.RecordRealization(r); err != nil {
		logs.WithFields(logFields(w.name)).WithError(err).Error("journal realization")
	}
}

// publish writes the current snapshot to the journal and the gauges.
func (w *worker) publish() {
	s := w.ledger.Snapshot()
	if err := w.journal.RecordSnapshot(journal.FromSnapshot(s)); err != nil {
		logs.WithFields(logFields(w.name)).WithError(err).Error("journal snapshot")
	}

	realized, _ := s.Bucket.Realized().Float64()
	net, _ := s.Position.NetVolume.Float64()
	metrics.RealizedPnL.WithLabelValues(w.name).Set(realized)
	metrics.NetVolume.WithLabelValues(w.name).Set(net)
	metrics.OpenLegs.WithLabelValues(w.name).Set(float64(len(s.Legs)))
}

func (w *worker) reject(f book.Fill, reason string, err error) {
	metrics.FillsRejected.WithLabelValues(w.name, reason).Inc()
	logs.WithFields(logFields(w.name)).
		WithField("seq", f.Seq).
		WithField("reason", reason).
		WithError(err).
		Warn("fill rejected")
}

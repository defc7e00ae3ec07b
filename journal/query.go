package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const realizationCols = `id, instrument, seq, kind, side, leg_id, volume, entry_price, exit_price, commission, realized, time`

type scanner interface {
	Scan(dest ...any) error
}

func scanRealization(row scanner) (RealizationRecord, error) {
	var (
		rec        RealizationRecord
		seq, legID int64
	)
	err := row.Scan(
		&rec.ID,
		&rec.Instrument,
		&seq,
		&rec.Kind,
		&rec.Side,
		&legID,
		&rec.Volume,
		&rec.EntryPrice,
		&rec.ExitPrice,
		&rec.Commission,
		&rec.Realized,
		&rec.Time,
	)
	rec.Seq = uint64(seq)
	rec.LegID = uint64(legID)
	return rec, err
}

// GetRealization returns a single realization by ID.
func (j *SQLite) GetRealization(recID string) (RealizationRecord, error) {
	row := j.db.QueryRow(`SELECT `+realizationCols+` FROM realizations WHERE id = ?`, recID)
	rec, err := scanRealization(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RealizationRecord{}, fmt.Errorf("realization %q not found", recID)
		}
		return RealizationRecord{}, err
	}
	return rec, nil
}

// ListRealizationsBetween returns realizations within [start, end), oldest
// first. An empty instrument matches all instruments.
func (j *SQLite) ListRealizationsBetween(instrument string, start, end time.Time) ([]RealizationRecord, error) {
	rows, err := j.db.Query(`
		SELECT `+realizationCols+`
		FROM realizations
		WHERE time >= ? AND time < ? AND (? = '' OR instrument = ?)
		ORDER BY time ASC, seq ASC`, start.UTC(), end.UTC(), instrument, instrument)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RealizationRecord
	for rows.Next() {
		rec, err := scanRealization(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListSnapshots returns the snapshot history of one instrument, oldest first.
func (j *SQLite) ListSnapshots(instrument string) ([]SnapshotRecord, error) {
	rows, err := j.db.Query(`
		SELECT time, instrument, seq, net_volume, average_price, gains, losses, commission, open_legs
		FROM snapshots
		WHERE instrument = ?
		ORDER BY time ASC, seq ASC`, instrument)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotRecord
	for rows.Next() {
		var (
			rec SnapshotRecord
			seq int64
		)
		if err := rows.Scan(
			&rec.Time,
			&rec.Instrument,
			&seq,
			&rec.NetVolume,
			&rec.AveragePrice,
			&rec.Gains,
			&rec.Losses,
			&rec.Commission,
			&rec.OpenLegs,
		); err != nil {
			return nil, err
		}
		rec.Seq = uint64(seq)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SummaryBetween aggregates realizations within [start, end).
func (j *SQLite) SummaryBetween(instrument string, start, end time.Time) (Summary, error) {
	recs, err := j.ListRealizationsBetween(instrument, start, end)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(recs), nil
}

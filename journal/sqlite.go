package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// one writer connection; concurrent sqlite writers fail with SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordRealization(r RealizationRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO realizations
		(id, instrument, seq, kind, side, leg_id, volume, entry_price, exit_price, commission, realized, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Instrument, int64(r.Seq), r.Kind, r.Side, int64(r.LegID),
		r.Volume, r.EntryPrice, r.ExitPrice, r.Commission, r.Realized, r.Time.UTC(),
	)
	return err
}

func (j *SQLite) RecordSnapshot(s SnapshotRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO snapshots
		(time, instrument, seq, net_volume, average_price, gains, losses, commission, open_legs)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Time.UTC(), s.Instrument, int64(s.Seq), s.NetVolume, s.AveragePrice,
		s.Gains, s.Losses, s.Commission, s.OpenLegs,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

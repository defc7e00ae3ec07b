// journal/csv.go
package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

type CSVJournal struct {
	realized  *csv.Writer
	snapshots *csv.Writer
	rf, sf    *os.File
}

var (
	realizationHeader = []string{"id", "instrument", "seq", "kind", "side", "leg_id", "volume", "entry_price", "exit_price", "commission", "realized", "time"}
	snapshotHeader    = []string{"time", "instrument", "seq", "net_volume", "average_price", "gains", "losses", "commission", "open_legs"}
)

func NewCSV(realizedPath, snapshotsPath string) (*CSVJournal, error) {
	rf, err := os.Create(realizedPath)
	if err != nil {
		return nil, err
	}
	sf, err := os.Create(snapshotsPath)
	if err != nil {
		_ = rf.Close()
		return nil, err
	}

	j := &CSVJournal{
		realized:  csv.NewWriter(rf),
		snapshots: csv.NewWriter(sf),
		rf:        rf,
		sf:        sf,
	}
	if err := j.write(j.realized, realizationHeader); err != nil {
		_ = j.closeFiles()
		return nil, err
	}
	if err := j.write(j.snapshots, snapshotHeader); err != nil {
		_ = j.closeFiles()
		return nil, err
	}
	return j, nil
}

func (j *CSVJournal) RecordRealization(r RealizationRecord) error {
	return j.write(j.realized, []string{
		r.ID,
		r.Instrument,
		u(r.Seq),
		r.Kind,
		r.Side,
		u(r.LegID),
		r.Volume.String(),
		r.EntryPrice.String(),
		r.ExitPrice.String(),
		r.Commission.String(),
		r.Realized.String(),
		r.Time.UTC().Format(time.RFC3339Nano),
	})
}

func (j *CSVJournal) RecordSnapshot(s SnapshotRecord) error {
	return j.write(j.snapshots, []string{
		s.Time.UTC().Format(time.RFC3339Nano),
		s.Instrument,
		u(s.Seq),
		s.NetVolume.String(),
		s.AveragePrice.String(),
		s.Gains.String(),
		s.Losses.String(),
		s.Commission.String(),
		strconv.Itoa(s.OpenLegs),
	})
}

// write flushes after every row.
func (j *CSVJournal) write(w *csv.Writer, row []string) error {
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (j *CSVJournal) Close() error {
	j.realized.Flush()
	if err := j.realized.Error(); err != nil {
		return err
	}
	j.snapshots.Flush()
	if err := j.snapshots.Error(); err != nil {
		return err
	}
	return j.closeFiles()
}

func (j *CSVJournal) closeFiles() error {
	if err := j.rf.Close(); err != nil {
		return err
	}
	return j.sf.Close()
}

func u(x uint64) string {
	return strconv.FormatUint(x, 10)
}

package feed

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rustyeddy/fillbook/book"
	"github.com/shopspring/decimal"
)

type Kind int

const (
	KindFill Kind = iota
	KindClosePair
	KindCloseAll
	KindRealize
)

func (k Kind) String() string {
	switch k {
	case KindFill:
		return "fill"
	case KindClosePair:
		return "close_pair"
	case KindCloseAll:
		return "close_all"
	case KindRealize:
		return "realize"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Event is one row of a fills file.
type Event struct {
	Kind       Kind
	Line       int
	Instrument string
	Time       time.Time
	Fill       book.Fill       // KindFill
	Amount     decimal.Decimal // exit price for closes, amount for KindRealize
}

// CSVFeed reads fills and leg commands, one per row:
//
//	time,instrument,side,price,volume,commission[,id]
//	time,instrument,CLOSE_PAIR,exit
//	time,instrument,CLOSE_ALL,exit
//	time,instrument,REALIZE,amount
//
// A header row starting with "time" is skipped, as are blank rows and rows
// outside [from, to) when those bounds are set.
type CSVFeed struct {
	c    io.Closer
	r    *csv.Reader
	from time.Time
	to   time.Time

	line     int
	sawFirst bool
}

func NewCSVFeed(path string, from, to time.Time) (*CSVFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	feed := NewCSVReader(f, from, to)
	feed.c = f
	return feed, nil
}

func NewCSVReader(r io.Reader, from, to time.Time) *CSVFeed {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	return &CSVFeed{r: cr, from: from, to: to}
}

func (f *CSVFeed) Close() error {
	if f.c != nil {
		return f.c.Close()
	}
	return nil
}

// Next returns the next event. ok is false at end of input.
func (f *CSVFeed) Next() (Event, bool, error) {
	for {
		row, err := f.r.Read()
		if err == io.EOF {
			return Event{}, false, nil
		}
		if err != nil {
			return Event{}, false, err
		}
		f.line, _ = f.r.FieldPos(0)

		if !f.sawFirst {
			f.sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				continue
			}
		}
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}

		ev, err := parseRow(row)
		if err != nil {
			return Event{}, false, fmt.Errorf("line %d: %w", f.line, err)
		}
		if !inRange(ev.Time, f.from, f.to) {
			continue
		}
		ev.Line = f.line
		return ev, true, nil
	}
}

// All drains the feed.
func (f *CSVFeed) All() ([]Event, error) {
	var out []Event
	for {
		ev, ok, err := f.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, ev)
	}
}

func parseRow(row []string) (Event, error) {
	if len(row) < 4 {
		return Event{}, fmt.Errorf("expected at least 4 columns, got %d", len(row))
	}
	for i := range row {
		row[i] = strings.TrimSpace(row[i])
	}

	t, err := parseTime(row[0])
	if err != nil {
		return Event{}, err
	}
	ev := Event{Instrument: row[1], Time: t}
	if ev.Instrument == "" {
		return Event{}, fmt.Errorf("missing instrument")
	}

	switch strings.ToUpper(row[2]) {
	case "CLOSE_PAIR":
		ev.Kind = KindClosePair
	case "CLOSE_ALL":
		ev.Kind = KindCloseAll
	case "REALIZE":
		ev.Kind = KindRealize
	default:
		return parseFill(ev, row)
	}

	if len(row) != 4 {
		return Event{}, fmt.Errorf("%s takes one value, got %d columns", row[2], len(row))
	}
	ev.Amount, err = decimal.NewFromString(row[3])
	if err != nil {
		return Event{}, fmt.Errorf("bad amount %q: %w", row[3], err)
	}
	return ev, nil
}

func parseFill(ev Event, row []string) (Event, error) {
	if len(row) < 5 || len(row) > 7 {
		return Event{}, fmt.Errorf("fill row expects 5 to 7 columns, got %d", len(row))
	}
	side, err := book.ParseSide(row[2])
	if err != nil {
		return Event{}, err
	}
	price, err := decimal.NewFromString(row[3])
	if err != nil {
		return Event{}, fmt.Errorf("bad price %q: %w", row[3], err)
	}
	vol, err := decimal.NewFromString(row[4])
	if err != nil {
		return Event{}, fmt.Errorf("bad volume %q: %w", row[4], err)
	}

	commission := decimal.Zero
	if len(row) >= 6 && row[5] != "" {
		commission, err = decimal.NewFromString(row[5])
		if err != nil {
			return Event{}, fmt.Errorf("bad commission %q: %w", row[5], err)
		}
	}

	ev.Kind = KindFill
	ev.Fill = book.Fill{
		Side:       side,
		Price:      price,
		Volume:     vol,
		Commission: commission,
		Time:       ev.Time,
	}
	if len(row) == 7 {
		ev.Fill.ID = row[6]
	}
	return ev, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err == nil {
		return t, nil
	}
	if t, err2 := time.Parse("2006-01-02 15:04:05", s); err2 == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("bad time %q: %w", s, err)
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

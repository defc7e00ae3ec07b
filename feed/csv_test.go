package feed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rustyeddy/fillbook/book"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

const sample = `time,instrument,side,price,volume,commission,id
2024-01-02T10:00:00Z,EUR_USD,BUY,1.1000,0.10,0.7,F1
2024-01-02T10:05:00Z,EUR_USD,SELL,1.1050,0.10,,F2
# comment rows are ignored

2024-01-02T10:10:00Z,XAU_USD,S,2030.5,0.05
2024-01-02T10:15:00Z,XAU_USD,CLOSE_PAIR,2031
2024-01-02T10:20:00Z,XAU_USD,close_all,2032
2024-01-02 10:25:00,EUR_USD,REALIZE,-0.35
`

func TestCSVFeedParsesRows(t *testing.T) {
	t.Parallel()

	evs, err := NewCSVReader(strings.NewReader(sample), time.Time{}, time.Time{}).All()
	require.NoError(t, err)
	require.Len(t, evs, 6)

	f := evs[0]
	assert.Equal(t, KindFill, f.Kind)
	assert.Equal(t, "EUR_USD", f.Instrument)
	assert.Equal(t, book.Buy, f.Fill.Side)
	assert.True(t, f.Fill.Price.Equal(d("1.1")))
	assert.True(t, f.Fill.Volume.Equal(d("0.1")))
	assert.True(t, f.Fill.Commission.Equal(d("0.7")))
	assert.Equal(t, "F1", f.Fill.ID)
	assert.True(t, f.Fill.Time.Equal(time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2, f.Line)

	assert.True(t, evs[1].Fill.Commission.IsZero())
	assert.Equal(t, book.Sell, evs[2].Fill.Side)
	assert.Empty(t, evs[2].Fill.ID)

	assert.Equal(t, KindClosePair, evs[3].Kind)
	assert.True(t, evs[3].Amount.Equal(d("2031")))
	assert.Equal(t, KindCloseAll, evs[4].Kind)

	assert.Equal(t, KindRealize, evs[5].Kind)
	assert.True(t, evs[5].Amount.Equal(d("-0.35")))
	assert.True(t, evs[5].Time.Equal(time.Date(2024, 1, 2, 10, 25, 0, 0, time.UTC)))
}

func TestCSVFeedRange(t *testing.T) {
	t.Parallel()

	from := time.Date(2024, 1, 2, 10, 5, 0, 0, time.UTC)
	to := time.Date(2024, 1, 2, 10, 20, 0, 0, time.UTC)

	evs, err := NewCSVReader(strings.NewReader(sample), from, to).All()
	require.NoError(t, err)
	require.Len(t, evs, 3)
	assert.Equal(t, "F2", evs[0].Fill.ID)
	assert.Equal(t, KindClosePair, evs[2].Kind)
}

func TestCSVFeedErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		row  string
		want string
	}{
		{name: "short row", row: "2024-01-02T10:00:00Z,EUR_USD,BUY", want: "at least 4 columns"},
		{name: "bad time", row: "yesterday,EUR_USD,BUY,1,1", want: "bad time"},
		{name: "no instrument", row: "2024-01-02T10:00:00Z,,BUY,1,1", want: "missing instrument"},
		{name: "bad side", row: "2024-01-02T10:00:00Z,EUR_USD,HOLD,1,1", want: "unknown side"},
		{name: "bad price", row: "2024-01-02T10:00:00Z,EUR_USD,BUY,x,1", want: "bad price"},
		{name: "bad volume", row: "2024-01-02T10:00:00Z,EUR_USD,BUY,1,x", want: "bad volume"},
		{name: "bad commission", row: "2024-01-02T10:00:00Z,EUR_USD,BUY,1,1,x", want: "bad commission"},
		{name: "fill too short", row: "2024-01-02T10:00:00Z,EUR_USD,BUY,1", want: "5 to 7 columns"},
		{name: "fill too long", row: "2024-01-02T10:00:00Z,EUR_USD,BUY,1,1,0,id,extra", want: "5 to 7 columns"},
		{name: "close extra", row: "2024-01-02T10:00:00Z,EUR_USD,CLOSE_ALL,1,2", want: "takes one value"},
		{name: "bad exit", row: "2024-01-02T10:00:00Z,EUR_USD,CLOSE_PAIR,x", want: "bad amount"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := NewCSVReader(strings.NewReader(tt.row+"\n"), time.Time{}, time.Time{}).Next()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Contains(t, err.Error(), "line 1")
		})
	}
}

func TestNewCSVFeedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "fills.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	f, err := NewCSVFeed(path, time.Time{}, time.Time{})
	require.NoError(t, err)
	evs, err := f.All()
	require.NoError(t, err)
	assert.Len(t, evs, 6)
	assert.NoError(t, f.Close())

	_, err = NewCSVFeed(filepath.Join(t.TempDir(), "missing.csv"), time.Time{}, time.Time{})
	assert.Error(t, err)
}

package feed

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rustyeddy/fillbook/engine"
	"github.com/rustyeddy/fillbook/volume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runEngine(t *testing.T, instruments ...engine.Instrument) *engine.Engine {
	t.Helper()

	e, err := engine.New(nil, instruments...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return e
}

func lots() volume.Constraints {
	return volume.Constraints{Step: d("0.01"), Min: d("0.01"), Max: d("100")}
}

func TestReplayIntoEngine(t *testing.T) {
	t.Parallel()

	e := runEngine(t,
		engine.Instrument{Name: "EUR_USD", Constraints: lots()},
		engine.Instrument{Name: "XAU_USD", Constraints: lots(), Hedge: true},
	)

	input := `time,instrument,side,price,volume,commission
2024-01-02T10:00:00Z,EUR_USD,BUY,100,1,
2024-01-02T10:01:00Z,EUR_USD,BUY,110,1,
2024-01-02T10:02:00Z,EUR_USD,SELL,120,2,
2024-01-02T10:03:00Z,EUR_USD,SELL,120,0.001,
2024-01-02T10:04:00Z,XAU_USD,BUY,100,1,
2024-01-02T10:05:00Z,XAU_USD,SELL,105,1,
2024-01-02T10:06:00Z,XAU_USD,CLOSE_PAIR,300
2024-01-02T10:07:00Z,XAU_USD,CLOSE_PAIR,300
2024-01-02T10:08:00Z,EUR_USD,REALIZE,-1
`
	st, err := Replay(context.Background(), NewCSVReader(strings.NewReader(input), time.Time{}, time.Time{}), e)
	require.NoError(t, err)

	assert.Equal(t, 9, st.Events)
	assert.Equal(t, 5, st.Fills)
	assert.Equal(t, 1, st.Rejected)
	assert.Equal(t, 1, st.Closes)
	// 30 from EUR_USD, 5 from the XAU_USD pair, -1 external
	assert.True(t, st.Realized.Equal(d("34")), "realized %s", st.Realized)

	eur, err := e.Snapshot("EUR_USD")
	require.NoError(t, err)
	assert.True(t, eur.Position.IsFlat())
	assert.True(t, eur.Bucket.Realized().Equal(d("29")))

	xau, err := e.Snapshot("XAU_USD")
	require.NoError(t, err)
	assert.Empty(t, xau.Legs)
	assert.True(t, xau.Bucket.Realized().Equal(d("5")))
}

func TestReplayStopsOnUnknownInstrument(t *testing.T) {
	t.Parallel()

	e := runEngine(t, engine.Instrument{Name: "EUR_USD", Constraints: lots()})

	input := "2024-01-02T10:00:00Z,EUR_USD,BUY,1,1\n2024-01-02T10:01:00Z,GBP_USD,BUY,1,1\n"
	st, err := Replay(context.Background(), NewCSVReader(strings.NewReader(input), time.Time{}, time.Time{}), e)
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrUnknownInstrument))
	assert.Contains(t, err.Error(), "line 2")
	assert.Equal(t, 1, st.Fills)
}

func TestReplayCancelled(t *testing.T) {
	t.Parallel()

	e := runEngine(t, engine.Instrument{Name: "EUR_USD", Constraints: lots()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Replay(ctx, NewCSVReader(strings.NewReader("2024-01-02T10:00:00Z,EUR_USD,BUY,1,1\n"), time.Time{}, time.Time{}), e)
	assert.ErrorIs(t, err, context.Canceled)
}

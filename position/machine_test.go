package position

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tranche/risk"
	"tranche/signal"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// longSnap is a fully agreeing long snapshot: support 95, resistance 120,
// positive histogram with a flat slope, bullish band. Tests that must keep
// the histogram-peak exit quiet set RisingToFalling on the snapshot.
func longSnap(tick int, price float64) signal.Snapshot {
	return signal.Snapshot{
		Symbol: "BTCUSDT",
		Time:   t0.Add(time.Duration(tick) * time.Minute),
		Price:  price,
		Osc:    signal.Oscillator{Histogram: 2.0},
		Band:   signal.MomentumBand{Value: 60, Bullish: true},
		PA: signal.PriceAction{
			Signal:     signal.Long,
			Support:    95,
			Resistance: 120,
		},
	}
}

func shortSnap(tick int, price float64) signal.Snapshot {
	return signal.Snapshot{
		Symbol: "BTCUSDT",
		Time:   t0.Add(time.Duration(tick) * time.Minute),
		Price:  price,
		Osc:    signal.Oscillator{Histogram: -2.0, FallingToRising: true},
		Band:   signal.MomentumBand{Value: 40, Bearish: true},
		PA: signal.PriceAction{
			Signal:     signal.Short,
			Support:    80,
			Resistance: 105,
		},
	}
}

func newTestMachine(t *testing.T) *Machine {
	t.Helper()
	return NewMachine("BTCUSDT", risk.DefaultParams(), zap.NewNop())
}

func requireInvariants(t *testing.T, m *Machine) {
	t.Helper()
	pos := m.Position()
	require.NoError(t, pos.CheckInvariants())
}

func TestTier1EntryOnConfluence(t *testing.T) {
	t.Parallel()
	m := newTestMachine(t)

	events := m.Evaluate(longSnap(0, 100), 10000)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, TierEntry, ev.Type)
	assert.Equal(t, 1, ev.Tier)
	assert.Equal(t, signal.Long, ev.Direction)
	assert.Equal(t, "signal_confluence", ev.Reason)

	pos := m.Position()
	assert.Equal(t, StateOpen, pos.State)
	assert.True(t, pos.TierEntered[0])
	assert.False(t, pos.TierEntered[1])
	// Stop 0.5% under support.
	assert.InDelta(t, 95*0.995, pos.StopLoss, 1e-9)
	assert.InDelta(t, 100.0, pos.AverageEntryPrice, 1e-9)
	requireInvariants(t, m)
}

func TestNoEntryWithoutConfluence(t *testing.T) {
	t.Parallel()
	m := newTestMachine(t)

	snap := longSnap(0, 100)
	snap.Band.Bullish = false // two of three is not enough
	events := m.Evaluate(snap, 10000)
	assert.Empty(t, events)
	assert.Equal(t, signal.Neutral, m.Position().Direction)
	requireInvariants(t, m)
}

func TestSizingSkipLeavesStateUntouched(t *testing.T) {
	t.Parallel()
	m := newTestMachine(t)

	// Balance so small the notional lands under the venue minimum.
	events := m.Evaluate(longSnap(0, 100), 10)
	require.Len(t, events, 1)
	assert.Equal(t, SizingSkip, events[0].Type)

	var mn *risk.MinNotionalError
	require.ErrorAs(t, events[0].Err, &mn)
	assert.Equal(t, signal.Neutral, m.Position().Direction)
	requireInvariants(t, m)
}

func TestTier2EntryOnPullback(t *testing.T) {
	t.Parallel()
	m := newTestMachine(t)

	m.Evaluate(longSnap(0, 100), 10000)

	snap := longSnap(1, 100.5) // inside [99.5, 102]
	snap.Osc.FallingToRising = false
	snap.Osc.RisingToFalling = true // keeps the peak gate quiet for this test
	events := m.Evaluate(snap, 10000)

	var entry *Event
	for i := range events {
		if events[i].Type == TierEntry {
			entry = &events[i]
		}
	}
	require.NotNil(t, entry)
	assert.Equal(t, 2, entry.Tier)
	assert.Equal(t, "pullback", entry.Reason)

	pos := m.Position()
	assert.True(t, pos.TierEntered[1])
	assert.Greater(t, pos.AverageEntryPrice, 100.0)
	requireInvariants(t, m)
}

func TestTier2EntryNeedsMomentum(t *testing.T) {
	t.Parallel()
	m := newTestMachine(t)

	m.Evaluate(longSnap(0, 100), 10000)

	snap := longSnap(1, 100.5)
	snap.Band.Bullish = false
	snap.Osc.RisingToFalling = true
	m.Evaluate(snap, 10000)
	assert.False(t, m.Position().TierEntered[1])
	requireInvariants(t, m)
}

func TestTier3EntryOnHigherHigh(t *testing.T) {
	t.Parallel()
	m := newTestMachine(t)

	m.Evaluate(longSnap(0, 100), 10000)

	snap := longSnap(1, 101)
	snap.Osc.RisingToFalling = true
	m.Evaluate(snap, 10000) // tier 2

	snap = longSnap(2, 103)
	snap.Osc.RisingToFalling = true
	snap.PA.HigherHigh = true
	events := m.Evaluate(snap, 10000)

	var entry *Event
	for i := range events {
		if events[i].Type == TierEntry {
			entry = &events[i]
		}
	}
	require.NotNil(t, entry)
	assert.Equal(t, 3, entry.Tier)
	assert.Equal(t, "higher_high", entry.Reason)
	assert.True(t, m.Position().TierEntered[2])
	requireInvariants(t, m)
}

func TestTier1ExitMovesStopToBreakEven(t *testing.T) {
	t.Parallel()
	m := newTestMachine(t)

	m.Evaluate(longSnap(0, 100), 10000)

	// Enter tier 2 first so the tier-1 exit is partial.
	snap := longSnap(1, 101)
	snap.Osc.RisingToFalling = true
	m.Evaluate(snap, 10000)

	// 112 clears 1.5R even after the tier-3 extension fill (which also
	// fires this tick and lifts the average) while staying under 2.5R.
	snap = longSnap(2, 112)
	snap.Osc.RisingToFalling = true
	events := m.Evaluate(snap, 10000)

	var exit *Event
	for i := range events {
		if events[i].Type == TierExit && events[i].Tier == 1 {
			exit = &events[i]
		}
	}
	require.NotNil(t, exit)
	assert.Equal(t, "tp1_risk_reward", exit.Reason)
	assert.Positive(t, exit.PnL)
	assert.False(t, exit.FullClose)

	pos := m.Position()
	assert.True(t, pos.TierExited[0])
	assert.InDelta(t, pos.AverageEntryPrice, pos.StopLoss, 1e-9) // break-even
	requireInvariants(t, m)
}

func TestTier1OnlyExitClosesPosition(t *testing.T) {
	t.Parallel()
	m := newTestMachine(t)

	m.Evaluate(longSnap(0, 100), 10000)

	// Momentum gone so no tier-2 fill, but price tags the tp1 target.
	snap := longSnap(1, 100+5.475*1.5+0.01)
	snap.Band.Bullish = false
	snap.Osc.Histogram = 2.0
	snap.Osc.RisingToFalling = true
	events := m.Evaluate(snap, 10000)

	var exit *Event
	for i := range events {
		if events[i].Type == TierExit {
			exit = &events[i]
		}
	}
	require.NotNil(t, exit)
	assert.True(t, exit.FullClose)
	assert.Equal(t, signal.Neutral, m.Position().Direction)
	requireInvariants(t, m)
}

func TestTier2ExitClosesBothUpperTiersAndTrails(t *testing.T) {
	t.Parallel()
	m := newTestMachine(t)
	balance := 10000.0

	m.Evaluate(longSnap(0, 100), balance)

	snap := longSnap(1, 101)
	snap.Osc.RisingToFalling = true
	m.Evaluate(snap, balance) // tier 2

	snap = longSnap(2, 103)
	snap.Osc.RisingToFalling = true
	snap.PA.HigherHigh = true
	m.Evaluate(snap, balance) // tier 3

	// Tier-1 exit via histogram peak.
	snap = longSnap(3, 104)
	m.Evaluate(snap, balance)
	require.True(t, m.Position().TierExited[0])

	pos := m.Position()
	tier23 := pos.TrancheSizes[1] + pos.TrancheSizes[2]

	// Band bias lost: tier-2 exit fires, tiers 2+3 quantity goes together.
	snap = longSnap(4, 105)
	snap.Band.Bullish = false
	events := m.Evaluate(snap, balance)

	var exit *Event
	for i := range events {
		if events[i].Type == TierExit && events[i].Tier == 2 {
			exit = &events[i]
		}
	}
	require.NotNil(t, exit)
	assert.Equal(t, "momentum_bias_lost", exit.Reason)
	assert.InDelta(t, tier23, exit.Quantity, 1e-9)
	assert.True(t, exit.TrailingStop)
	assert.InDelta(t, 105*0.99, exit.NewStopLoss, 1e-9)

	pos = m.Position()
	assert.Equal(t, StatePartiallyClosedAwaitingFinalExit, pos.State)
	assert.True(t, pos.TrailingStopActive)
	assert.True(t, pos.TierExited[1])
	assert.False(t, pos.TierExited[2])
	requireInvariants(t, m)
}

func TestFinalExitResetsEverything(t *testing.T) {
	t.Parallel()
	m := newTestMachine(t)
	balance := 10000.0

	m.Evaluate(longSnap(0, 100), balance)
	snap := longSnap(1, 101)
	snap.Osc.RisingToFalling = true
	m.Evaluate(snap, balance)
	snap = longSnap(2, 103)
	snap.Osc.RisingToFalling = true
	snap.PA.HigherHigh = true
	m.Evaluate(snap, balance)
	m.Evaluate(longSnap(3, 104), balance) // tier-1 exit
	snap = longSnap(4, 105)
	snap.Band.Bullish = false
	m.Evaluate(snap, balance) // tier-2 exit
	require.Equal(t, StatePartiallyClosedAwaitingFinalExit, m.Position().State)

	// Oscillator flips negative: final exit.
	snap = longSnap(5, 104)
	snap.Osc.Histogram = -0.5
	snap.Band.Bullish = false
	events := m.Evaluate(snap, balance)

	var exit *Event
	for i := range events {
		if events[i].Type == TierExit {
			exit = &events[i]
		}
	}
	require.NotNil(t, exit)
	assert.True(t, exit.FullClose)
	assert.Equal(t, "oscillator_reversal", exit.Reason)

	pos := m.Position()
	assert.Equal(t, signal.Neutral, pos.Direction)
	assert.Equal(t, StateNone, pos.State)
	assert.Zero(t, pos.AverageEntryPrice)
	assert.Zero(t, pos.StopLoss)
	requireInvariants(t, m)
}

func TestShortLifecycleMirrors(t *testing.T) {
	t.Parallel()
	m := newTestMachine(t)

	events := m.Evaluate(shortSnap(0, 100), 10000)
	require.Len(t, events, 1)
	assert.Equal(t, signal.Short, events[0].Direction)

	pos := m.Position()
	// Stop 0.5% above resistance.
	assert.InDelta(t, 105*1.005, pos.StopLoss, 1e-9)

	// Pullback band for shorts sits below entry: 98.5 is inside [98, 100.5].
	snap := shortSnap(1, 98.5)
	snap.Osc.FallingToRising = true
	snap.Osc.RisingToFalling = false
	evs := m.Evaluate(snap, 10000)
	var entry *Event
	for i := range evs {
		if evs[i].Type == TierEntry {
			entry = &evs[i]
		}
	}
	require.NotNil(t, entry)
	assert.Equal(t, 2, entry.Tier)
	requireInvariants(t, m)
}

func TestShortNeverSeesLongExits(t *testing.T) {
	t.Parallel()
	m := newTestMachine(t)

	m.Evaluate(shortSnap(0, 100), 10000)

	// A long-favorable snapshot must not trigger short tier-1 exit's
	// histogram gate (positive histogram is against a short, not peaking).
	snap := shortSnap(1, 99.9)
	snap.Osc.Histogram = 2.0
	snap.Osc.RisingToFalling = false
	snap.Osc.FallingToRising = true
	m.Evaluate(snap, 10000)
	assert.False(t, m.Position().TierExited[0])
	requireInvariants(t, m)
}

func TestReversalFlattensImmediately(t *testing.T) {
	t.Parallel()
	m := newTestMachine(t)

	m.Evaluate(longSnap(0, 100), 10000)

	snap := shortSnap(1, 99)
	events := m.Evaluate(snap, 10000)
	require.Len(t, events, 1)
	assert.True(t, events[0].FullClose)
	assert.Equal(t, "reversal", events[0].Reason)
	assert.Equal(t, signal.Neutral, m.Position().Direction)

	// Flat again, the same snapshot opens the short side.
	events = m.Evaluate(snap, 10000)
	require.Len(t, events, 1)
	assert.Equal(t, TierEntry, events[0].Type)
	assert.Equal(t, signal.Short, events[0].Direction)
	requireInvariants(t, m)
}

func TestCheckStopClosesLong(t *testing.T) {
	t.Parallel()
	m := newTestMachine(t)

	m.Evaluate(longSnap(0, 100), 10000)
	stop := m.Position().StopLoss

	ev, hit := m.CheckStop(stop-0.01, t0.Add(time.Minute))
	require.True(t, hit)
	assert.True(t, ev.FullClose)
	assert.Equal(t, "stop_loss", ev.Reason)
	assert.Negative(t, ev.PnL)
	assert.Equal(t, signal.Neutral, m.Position().Direction)
	requireInvariants(t, m)
}

func TestCheckStopIgnoresFlat(t *testing.T) {
	t.Parallel()
	m := newTestMachine(t)
	_, hit := m.CheckStop(50, t0)
	assert.False(t, hit)
}

func TestForceClose(t *testing.T) {
	t.Parallel()
	m := newTestMachine(t)

	m.Evaluate(longSnap(0, 100), 10000)
	ev, ok := m.ForceClose(110, t0.Add(time.Hour), "end_of_backtest")
	require.True(t, ok)
	assert.True(t, ev.FullClose)
	assert.Equal(t, "end_of_backtest", ev.Reason)
	assert.Positive(t, ev.PnL)
	assert.Equal(t, signal.Neutral, m.Position().Direction)
	requireInvariants(t, m)
}

func TestHistogramShrinkTriggersTier2Exit(t *testing.T) {
	t.Parallel()
	m := newTestMachine(t)
	balance := 10000.0

	m.Evaluate(longSnap(0, 100), balance)
	snap := longSnap(1, 101)
	snap.Osc.RisingToFalling = true
	m.Evaluate(snap, balance) // tier 2

	// Run the histogram up to 4.0, then exit tier 1.
	snap = longSnap(2, 102)
	snap.Osc.Histogram = 4.0
	m.Evaluate(snap, balance) // tier-1 exit via peak, peak recorded

	require.True(t, m.Position().TierExited[0])

	// Histogram decays under half its peak while the band stays bullish.
	snap = longSnap(3, 102.5)
	snap.Osc.Histogram = 1.5
	events := m.Evaluate(snap, balance)

	var exit *Event
	for i := range events {
		if events[i].Type == TierExit {
			exit = &events[i]
		}
	}
	require.NotNil(t, exit)
	assert.Equal(t, "histogram_shrink", exit.Reason)
	requireInvariants(t, m)
}

func TestInvariantsHoldEveryTick(t *testing.T) {
	t.Parallel()
	m := newTestMachine(t)

	prices := []float64{100, 100.5, 103, 106, 109, 104, 101, 99, 100, 102}
	for i, p := range prices {
		if _, hit := m.CheckStop(p, t0.Add(time.Duration(i)*time.Minute)); hit {
			requireInvariants(t, m)
			continue
		}
		snap := longSnap(i, p)
		if i%3 == 0 {
			snap.Band.Bullish = false
		}
		if i%4 == 0 {
			snap.Osc.Histogram = -1
		}
		m.Evaluate(snap, 10000)
		requireInvariants(t, m)
	}
}

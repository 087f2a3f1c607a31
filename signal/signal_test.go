package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirectionString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "LONG", Long.String())
	assert.Equal(t, "SHORT", Short.String())
	assert.Equal(t, "NONE", Neutral.String())
}

func TestDirectionOpposite(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Short, Long.Opposite())
	assert.Equal(t, Long, Short.Opposite())
	assert.Equal(t, Neutral, Neutral.Opposite())
}

func TestAgreeRequiresAllThree(t *testing.T) {
	t.Parallel()

	full := Snapshot{
		Osc:  Oscillator{Histogram: 1.5},
		Band: MomentumBand{Bullish: true},
		PA:   PriceAction{Signal: Long},
	}
	assert.True(t, full.Agree(Long))
	assert.False(t, full.Agree(Short))
	assert.False(t, full.Agree(Neutral))

	// Any single dissent breaks the conjunction.
	noBand := full
	noBand.Band.Bullish = false
	assert.False(t, noBand.Agree(Long))

	noHist := full
	noHist.Osc.Histogram = -0.1
	assert.False(t, noHist.Agree(Long))

	noPA := full
	noPA.PA.Signal = Neutral
	assert.False(t, noPA.Agree(Long))
}

func TestAgreeShort(t *testing.T) {
	t.Parallel()

	snap := Snapshot{
		Osc:  Oscillator{Histogram: -0.8},
		Band: MomentumBand{Bearish: true},
		PA:   PriceAction{Signal: Short},
	}
	assert.True(t, snap.Agree(Short))
	assert.False(t, snap.Agree(Long))
}

func TestMomentumHoldsIgnoresPriceAction(t *testing.T) {
	t.Parallel()

	snap := Snapshot{
		Osc:  Oscillator{Histogram: 0.3},
		Band: MomentumBand{Bullish: true},
		PA:   PriceAction{Signal: Short}, // irrelevant to the momentum gate
	}
	assert.True(t, snap.MomentumHolds(Long))
	assert.False(t, snap.MomentumHolds(Short))
	assert.False(t, snap.MomentumHolds(Neutral))
}

package position

import (
	"time"

	"go.uber.org/zap"

	"tranche/risk"
	"tranche/signal"
)

// Scale-in and stop geometry, expressed as multiples of the tier-1 entry.
const (
	stopBuffer = 0.005 // stop sits 0.5% beyond the opposing band

	longPullbackLow   = 0.995
	longPullbackHigh  = 1.02
	longExtension     = 1.05
	shortPullbackLow  = 0.98
	shortPullbackHigh = 1.005
	shortExtension    = 0.95

	nearBandLong  = 0.995 // tier-1 exit fires this close to resistance
	nearBandShort = 1.005 // mirror distance above support
	trailDistance = 0.01  // trailing stop distance after the tier-2 exit

	histShrink = 0.5 // histogram decay from its peak that ends tier 2
)

// Machine owns one instrument's Position and advances it one snapshot at a
// time. Not safe for concurrent use; each instrument gets its own Machine.
type Machine struct {
	log    *zap.Logger
	params risk.Params
	pos    Position

	histPeak float64 // largest favorable histogram magnitude since tier-1 entry
}

func NewMachine(symbol string, params risk.Params, log *zap.Logger) *Machine {
	return &Machine{
		log:    log.With(zap.String("component", "position"), zap.String("symbol", symbol)),
		params: params,
		pos:    Position{Symbol: symbol},
	}
}

// Position returns a copy of the current state for inspection.
func (m *Machine) Position() Position { return m.pos }

// Evaluate advances the lifecycle for one tick. Entries are considered
// before exits so a tranche filled this bar is governed by this bar's stops
// from the next tick on. Sizing refusals become SizingSkip events; nothing
// here returns an error.
func (m *Machine) Evaluate(snap signal.Snapshot, balance float64) []Event {
	var events []Event

	if m.pos.Direction == signal.Neutral {
		if ev, ok := m.tryTier1Entry(snap, balance); ok {
			events = append(events, ev)
		}
		return events
	}

	// Full opposite confluence is a reversal: flatten now, let the caller
	// re-evaluate the same tick for the opposite entry.
	if snap.Agree(m.pos.Direction.Opposite()) {
		return []Event{m.closeRemaining(snap.Price, snap.Time, "reversal")}
	}

	m.trackHistogram(snap.Osc.Histogram)

	if m.pos.State == StateOpen {
		if ev, ok := m.tryTier2Entry(snap, balance); ok {
			events = append(events, ev)
		}
		if ev, ok := m.tryTier3Entry(snap, balance); ok {
			events = append(events, ev)
		}
		if ev, ok := m.tryTier1Exit(snap); ok {
			events = append(events, ev)
		}
		if ev, ok := m.tryTier2Exit(snap); ok {
			events = append(events, ev)
		}
	}

	if m.pos.State == StatePartiallyClosedAwaitingFinalExit {
		if ev, ok := m.tryFinalExit(snap); ok {
			events = append(events, ev)
		}
	}

	return events
}

// CheckStop resolves the protective stop against price. Call it before
// Evaluate each tick so existing risk is resolved ahead of new signals.
func (m *Machine) CheckStop(price float64, t time.Time) (Event, bool) {
	if m.pos.Direction == signal.Neutral || m.pos.StopLoss <= 0 {
		return Event{}, false
	}

	hit := false
	switch m.pos.Direction {
	case signal.Long:
		hit = price <= m.pos.StopLoss
	case signal.Short:
		hit = price >= m.pos.StopLoss
	}
	if !hit {
		return Event{}, false
	}

	reason := "stop_loss"
	if m.pos.TrailingStopActive {
		reason = "trailing_stop"
	}
	return m.closeRemaining(price, t, reason), true
}

// ForceClose flattens the position unconditionally, e.g. at the end of a
// replay or on operator intervention.
func (m *Machine) ForceClose(price float64, t time.Time, reason string) (Event, bool) {
	if m.pos.Direction == signal.Neutral {
		return Event{}, false
	}
	return m.closeRemaining(price, t, reason), true
}

func (m *Machine) trackHistogram(hist float64) {
	fav := hist * float64(m.pos.Direction)
	if fav > absFloat(m.histPeak) {
		m.histPeak = hist
	}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func (m *Machine) tryTier1Entry(snap signal.Snapshot, balance float64) (Event, bool) {
	var dir signal.Direction
	switch {
	case snap.Agree(signal.Long):
		dir = signal.Long
	case snap.Agree(signal.Short):
		dir = signal.Short
	default:
		return Event{}, false
	}

	var stop float64
	switch dir {
	case signal.Long:
		if snap.PA.Support <= 0 {
			return Event{}, false
		}
		stop = snap.PA.Support * (1 - stopBuffer)
	case signal.Short:
		if snap.PA.Resistance <= 0 {
			return Event{}, false
		}
		stop = snap.PA.Resistance * (1 + stopBuffer)
	}

	sz, err := risk.Size(snap.Price, stop, balance, m.params)
	if err != nil {
		m.log.Debug("entry skipped", zap.Int("tier", 1), zap.Error(err))
		return Event{
			Type: SizingSkip, Symbol: m.pos.Symbol, Time: snap.Time,
			Direction: dir, Tier: 1, Price: snap.Price, Err: err,
		}, true
	}

	m.pos.Direction = dir
	m.pos.State = StateOpen
	m.pos.TierEntered[0] = true
	m.pos.EntryPrices[0] = snap.Price
	m.pos.TrancheSizes[0] = sz.Tier1Size
	m.pos.EntryPrice = snap.Price
	m.pos.StopLoss = stop
	m.pos.RiskPerUnit = absFloat(snap.Price - stop)
	m.pos.Leverage = sz.Leverage
	m.pos.RiskAmount = sz.RiskAmount
	m.pos.OpenTime = snap.Time
	m.pos.recomputeAverage()
	m.histPeak = 0

	m.log.Info("tier 1 entry",
		zap.String("direction", dir.String()),
		zap.Float64("price", snap.Price),
		zap.Float64("size", sz.Tier1Size),
		zap.Float64("stop", stop),
		zap.Int("leverage", sz.Leverage))

	return Event{
		Type: TierEntry, Symbol: m.pos.Symbol, Time: snap.Time,
		Direction: dir, Tier: 1, Reason: "signal_confluence",
		Price: snap.Price, Quantity: sz.Tier1Size,
		Sizing: sz, StopLoss: stop,
	}, true
}

func (m *Machine) tryTier2Entry(snap signal.Snapshot, balance float64) (Event, bool) {
	if !m.pos.TierEntered[0] || m.pos.TierEntered[1] {
		return Event{}, false
	}
	if !snap.MomentumHolds(m.pos.Direction) {
		return Event{}, false
	}

	ratio := snap.Price / m.pos.EntryPrice
	var reason string
	switch m.pos.Direction {
	case signal.Long:
		switch {
		case ratio >= longPullbackLow && ratio <= longPullbackHigh:
			reason = "pullback"
		case ratio > longPullbackHigh:
			reason = "breakout"
		default:
			return Event{}, false
		}
	case signal.Short:
		switch {
		case ratio >= shortPullbackLow && ratio <= shortPullbackHigh:
			reason = "pullback"
		case ratio < shortPullbackLow:
			reason = "breakout"
		default:
			return Event{}, false
		}
	}

	return m.enterTier(snap, balance, 2, reason)
}

func (m *Machine) tryTier3Entry(snap signal.Snapshot, balance float64) (Event, bool) {
	if !m.pos.TierEntered[1] || m.pos.TierEntered[2] {
		return Event{}, false
	}
	if !snap.MomentumHolds(m.pos.Direction) {
		return Event{}, false
	}

	ratio := snap.Price / m.pos.EntryPrice
	var reason string
	switch m.pos.Direction {
	case signal.Long:
		switch {
		case snap.PA.HigherHigh:
			reason = "higher_high"
		case ratio > longExtension:
			reason = "extension"
		default:
			return Event{}, false
		}
	case signal.Short:
		switch {
		case snap.PA.LowerLow:
			reason = "lower_low"
		case ratio < shortExtension:
			reason = "extension"
		default:
			return Event{}, false
		}
	}

	return m.enterTier(snap, balance, 3, reason)
}

// enterTier fills tier 2 or 3. Sizing reuses the position's standing stop and
// the current balance; leverage stays fixed from tier 1.
func (m *Machine) enterTier(snap signal.Snapshot, balance float64, tier int, reason string) (Event, bool) {
	sz, err := risk.Size(snap.Price, m.pos.StopLoss, balance, m.params)
	if err != nil {
		m.log.Debug("entry skipped", zap.Int("tier", tier), zap.Error(err))
		return Event{
			Type: SizingSkip, Symbol: m.pos.Symbol, Time: snap.Time,
			Direction: m.pos.Direction, Tier: tier, Price: snap.Price, Err: err,
		}, true
	}

	qty := sz.Tier2Size
	if tier == 3 {
		qty = sz.Tier3Size
	}

	i := tier - 1
	m.pos.TierEntered[i] = true
	m.pos.EntryPrices[i] = snap.Price
	m.pos.TrancheSizes[i] = qty
	m.pos.recomputeAverage()

	m.log.Info("tier entry",
		zap.Int("tier", tier),
		zap.String("reason", reason),
		zap.Float64("price", snap.Price),
		zap.Float64("size", qty),
		zap.Float64("avg_entry", m.pos.AverageEntryPrice))

	return Event{
		Type: TierEntry, Symbol: m.pos.Symbol, Time: snap.Time,
		Direction: m.pos.Direction, Tier: tier, Reason: reason,
		Price: snap.Price, Quantity: qty,
		Sizing: sz, StopLoss: m.pos.StopLoss,
	}, true
}

func (m *Machine) tryTier1Exit(snap signal.Snapshot) (Event, bool) {
	if !m.pos.TierEntered[0] || m.pos.TierExited[0] {
		return Event{}, false
	}
	// No same-bar round trips: the bar that opened the position cannot
	// also close it at the same price.
	if snap.Time.Equal(m.pos.OpenTime) {
		return Event{}, false
	}

	var reason string
	rr := m.pos.RR(snap.Price)
	switch {
	case rr >= m.params.TP1RiskReward:
		reason = "tp1_risk_reward"
	case m.nearOpposingBand(snap):
		reason = "approaching_band"
	case m.histogramPeaking(snap.Osc):
		reason = "histogram_peak"
	default:
		return Event{}, false
	}

	qty := m.pos.TrancheSizes[0]
	pnl, pnlPct := m.realize(snap.Price, qty)
	m.pos.TierExited[0] = true
	m.pos.StopLoss = m.pos.AverageEntryPrice

	full := !m.pos.TierEntered[1]
	ev := Event{
		Type: TierExit, Symbol: m.pos.Symbol, Time: snap.Time,
		Direction: m.pos.Direction, Tier: 1, Reason: reason,
		Price: snap.Price, Quantity: qty,
		PnL: pnl, PnLPercent: pnlPct,
		NewStopLoss: m.pos.StopLoss,
	}

	m.log.Info("tier 1 exit",
		zap.String("reason", reason),
		zap.Float64("price", snap.Price),
		zap.Float64("pnl", pnl),
		zap.Float64("new_stop", m.pos.StopLoss))

	if full {
		// Only tier 1 ever filled, so this exit flattens the position.
		ev.FullClose = true
		ev.PnL = m.pos.RealizedPnL
		m.reset()
	}
	return ev, true
}

func (m *Machine) tryTier2Exit(snap signal.Snapshot) (Event, bool) {
	if !m.pos.TierExited[0] || m.pos.TierExited[1] {
		return Event{}, false
	}
	if !m.pos.TierEntered[1] {
		return Event{}, false
	}

	var reason string
	rr := m.pos.RR(snap.Price)
	switch {
	case rr >= m.params.TP2RiskReward:
		reason = "tp2_risk_reward"
	case !m.biasHolds(snap):
		reason = "momentum_bias_lost"
	case m.histogramShrunk(snap.Osc):
		reason = "histogram_shrink"
	default:
		return Event{}, false
	}

	// Tiers 2 and 3 close together; the lifecycle stays formally open under
	// a trailing stop until the final-exit trigger fires.
	qty := m.pos.TrancheSizes[1]
	if m.pos.TierEntered[2] {
		qty += m.pos.TrancheSizes[2]
	}
	pnl, pnlPct := m.realize(snap.Price, qty)
	m.pos.TierExited[1] = true

	full := !m.pos.TierEntered[2]
	ev := Event{
		Type: TierExit, Symbol: m.pos.Symbol, Time: snap.Time,
		Direction: m.pos.Direction, Tier: 2, Reason: reason,
		Price: snap.Price, Quantity: qty,
		PnL: pnl, PnLPercent: pnlPct,
	}

	if full {
		ev.FullClose = true
		ev.PnL = m.pos.RealizedPnL
		m.log.Info("tier 2 exit closes position",
			zap.String("reason", reason), zap.Float64("price", snap.Price), zap.Float64("pnl", ev.PnL))
		m.reset()
		return ev, true
	}

	switch m.pos.Direction {
	case signal.Long:
		m.pos.StopLoss = snap.Price * (1 - trailDistance)
	case signal.Short:
		m.pos.StopLoss = snap.Price * (1 + trailDistance)
	}
	m.pos.TrailingStopActive = true
	m.pos.State = StatePartiallyClosedAwaitingFinalExit
	ev.NewStopLoss = m.pos.StopLoss
	ev.TrailingStop = true

	m.log.Info("tier 2 exit",
		zap.String("reason", reason),
		zap.Float64("price", snap.Price),
		zap.Float64("pnl", pnl),
		zap.Float64("trailing_stop", m.pos.StopLoss))

	return ev, true
}

func (m *Machine) tryFinalExit(snap signal.Snapshot) (Event, bool) {
	if !m.pos.TierExited[1] || m.pos.TierExited[2] {
		return Event{}, false
	}

	var reason string
	switch m.pos.Direction {
	case signal.Long:
		switch {
		case snap.Osc.Histogram < 0:
			reason = "oscillator_reversal"
		case snap.Band.Bearish:
			reason = "opposite_bias"
		case snap.PA.Signal == signal.Short:
			reason = "opposite_signal"
		}
	case signal.Short:
		switch {
		case snap.Osc.Histogram > 0:
			reason = "oscillator_reversal"
		case snap.Band.Bullish:
			reason = "opposite_bias"
		case snap.PA.Signal == signal.Long:
			reason = "opposite_signal"
		}
	}
	if reason == "" {
		return Event{}, false
	}

	return m.closeRemaining(snap.Price, snap.Time, reason), true
}

// closeRemaining realizes whatever quantity is still open and resets.
func (m *Machine) closeRemaining(price float64, t time.Time, reason string) Event {
	qty := m.pos.OpenSize()
	var pnlPct float64
	if qty > 0 {
		_, pnlPct = m.realize(price, qty)
	}

	ev := Event{
		Type: TierExit, Symbol: m.pos.Symbol, Time: t,
		Direction: m.pos.Direction, Tier: 3, Reason: reason,
		Price: price, Quantity: qty,
		PnL: m.pos.RealizedPnL, PnLPercent: pnlPct,
		FullClose: true,
	}

	m.log.Info("position closed",
		zap.String("reason", reason),
		zap.Float64("price", price),
		zap.Float64("pnl", ev.PnL))

	m.reset()
	return ev
}

// realize books PnL for qty closed at price against the average entry.
func (m *Machine) realize(price, qty float64) (pnl, pnlPct float64) {
	pnl = (price - m.pos.AverageEntryPrice) * float64(m.pos.Direction) * qty
	if m.pos.AverageEntryPrice > 0 {
		pnlPct = (price - m.pos.AverageEntryPrice) / m.pos.AverageEntryPrice * float64(m.pos.Direction) * 100
	}
	m.pos.RealizedPnL += pnl
	return pnl, pnlPct
}

func (m *Machine) reset() {
	m.pos.Reset()
	m.histPeak = 0
}

func (m *Machine) nearOpposingBand(snap signal.Snapshot) bool {
	switch m.pos.Direction {
	case signal.Long:
		return snap.PA.Resistance > 0 && snap.Price >= snap.PA.Resistance*nearBandLong
	case signal.Short:
		return snap.PA.Support > 0 && snap.Price <= snap.PA.Support*nearBandShort
	}
	return false
}

// histogramPeaking: the histogram is extended in our favor and its slope has
// flattened, neither rising nor falling through this bar.
func (m *Machine) histogramPeaking(osc signal.Oscillator) bool {
	inFavor := osc.Histogram*float64(m.pos.Direction) > 0
	return inFavor && !osc.RisingToFalling && !osc.FallingToRising
}

func (m *Machine) biasHolds(snap signal.Snapshot) bool {
	switch m.pos.Direction {
	case signal.Long:
		return snap.Band.Bullish
	case signal.Short:
		return snap.Band.Bearish
	}
	return false
}

// histogramShrunk: decay of at least half from the peak favorable magnitude,
// while still on our side of zero. Crossing zero is the final-exit trigger.
func (m *Machine) histogramShrunk(osc signal.Oscillator) bool {
	peak := absFloat(m.histPeak)
	if peak <= 0 {
		return false
	}
	fav := osc.Histogram * float64(m.pos.Direction)
	return fav > 0 && fav < peak*histShrink
}

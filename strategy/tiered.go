// Package strategy wires signal sources to position machines. One Tiered
// instance serves both the live trader and the replay engine, which is what
// keeps backtested behavior honest.
package strategy

import (
	"time"

	"go.uber.org/zap"

	"tranche/market"
	"tranche/notify"
	"tranche/position"
	"tranche/risk"
	"tranche/signal"
)

// Tiered scales in and out of one directional position per instrument in
// three tranches. Not safe for concurrent use; the owning loop serializes
// calls.
type Tiered struct {
	log      *zap.Logger
	source   signal.Source
	params   risk.Params
	notifier notify.Notifier

	machines map[string]*position.Machine
}

func NewTiered(source signal.Source, params risk.Params, notifier notify.Notifier, log *zap.Logger) *Tiered {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Tiered{
		log:      log.With(zap.String("component", "strategy")),
		source:   source,
		params:   params,
		notifier: notifier,
		machines: make(map[string]*position.Machine),
	}
}

func (s *Tiered) Name() string { return "tiered" }

func (s *Tiered) machine(symbol string) *position.Machine {
	m, ok := s.machines[symbol]
	if !ok {
		m = position.NewMachine(symbol, s.params, s.log)
		s.machines[symbol] = m
	}
	return m
}

// Position exposes the current lifecycle state for one instrument.
func (s *Tiered) Position(symbol string) position.Position {
	return s.machine(symbol).Position()
}

// ResolveRisk settles the protective stop against price. Callers run this
// before OnBar each tick so existing risk is resolved ahead of new signals.
func (s *Tiered) ResolveRisk(symbol string, price float64, t time.Time) []position.Event {
	ev, hit := s.machine(symbol).CheckStop(price, t)
	if !hit {
		return nil
	}
	s.notifier.PositionClosed(ev)
	return []position.Event{ev}
}

// OnBar evaluates one instrument against the bar window ending at the
// current tick. When the evaluation fully closes a position, the same tick
// is immediately re-evaluated flat, so a reversal can close one side and
// open the other without waiting a bar.
func (s *Tiered) OnBar(symbol string, candles []market.Candle, balance float64) ([]position.Event, error) {
	snap, err := s.source.Snapshot(symbol, candles)
	if err != nil {
		return nil, err
	}

	m := s.machine(symbol)
	events := m.Evaluate(snap, balance)

	for _, ev := range events {
		if ev.FullClose {
			events = append(events, m.Evaluate(snap, balance)...)
			break
		}
	}

	for _, ev := range events {
		switch ev.Type {
		case position.TierEntry:
			s.notifier.PositionOpened(ev)
		case position.TierExit:
			s.notifier.PositionClosed(ev)
		case position.SizingSkip:
			s.notifier.SizingSkipped(ev)
		}
	}
	return events, nil
}

// CloseAll flattens one instrument unconditionally.
func (s *Tiered) CloseAll(symbol string, price float64, t time.Time, reason string) []position.Event {
	ev, ok := s.machine(symbol).ForceClose(price, t, reason)
	if !ok {
		return nil
	}
	s.notifier.PositionClosed(ev)
	return []position.Event{ev}
}

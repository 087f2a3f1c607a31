// Package notify fans position events out to operator channels. The core
// emits events; delivery failures never affect trading.
package notify

import (
	"go.uber.org/zap"

	"tranche/position"
)

type Notifier interface {
	PositionOpened(ev position.Event)
	PositionClosed(ev position.Event)
	SizingSkipped(ev position.Event)
}

// LogNotifier writes events to the structured log. Always installed; other
// channels stack on top via Multi.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log.With(zap.String("component", "notify"))}
}

func (n *LogNotifier) PositionOpened(ev position.Event) {
	n.log.Info("tranche opened",
		zap.String("symbol", ev.Symbol),
		zap.String("direction", ev.Direction.String()),
		zap.Int("tier", ev.Tier),
		zap.String("reason", ev.Reason),
		zap.Float64("price", ev.Price),
		zap.Float64("quantity", ev.Quantity))
}

func (n *LogNotifier) PositionClosed(ev position.Event) {
	n.log.Info("tranche closed",
		zap.String("symbol", ev.Symbol),
		zap.String("direction", ev.Direction.String()),
		zap.Int("tier", ev.Tier),
		zap.String("reason", ev.Reason),
		zap.Float64("price", ev.Price),
		zap.Float64("pnl", ev.PnL),
		zap.Bool("full_close", ev.FullClose))
}

func (n *LogNotifier) SizingSkipped(ev position.Event) {
	n.log.Warn("entry skipped on sizing",
		zap.String("symbol", ev.Symbol),
		zap.Int("tier", ev.Tier),
		zap.Error(ev.Err))
}

// Multi delivers to every notifier in order.
type Multi []Notifier

func (m Multi) PositionOpened(ev position.Event) {
	for _, n := range m {
		n.PositionOpened(ev)
	}
}

func (m Multi) PositionClosed(ev position.Event) {
	for _, n := range m {
		n.PositionClosed(ev)
	}
}

func (m Multi) SizingSkipped(ev position.Event) {
	for _, n := range m {
		n.SizingSkipped(ev)
	}
}

// Nop discards everything.
type Nop struct{}

func (Nop) PositionOpened(position.Event) {}
func (Nop) PositionClosed(position.Event) {}
func (Nop) SizingSkipped(position.Event)  {}

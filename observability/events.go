package observability

import (
	"log/slog"

	"saleledger/core/events"
)

// LogEmitter forwards ledger events to structured logs so operators can
// follow sale activity without an external indexer.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter wraps the given logger; nil falls back to the default.
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger}
}

// Emit implements events.Emitter.
func (l *LogEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	l.logger.Info("ledger event", slog.String("type", evt.EventType()), slog.Any("event", evt))
}

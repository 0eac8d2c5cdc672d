package events

import (
	"context"
	"log/slog"
)

// LogEmitter logs notifications instead of publishing them.
// Useful for development and debugging
type LogEmitter struct {
	logger *slog.Logger
	source string
}

// NewLogEmitter creates a logging emitter; a nil logger uses slog.Default
func NewLogEmitter(logger *slog.Logger, source string) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger, source: source}
}

// Emit logs the event as a CloudEvent
func (e *LogEmitter) Emit(ctx context.Context, topic, event string, payload any) error {
	ce, err := NewCloudEvent(e.source, topic, event, payload)
	if err != nil {
		return err
	}
	e.logger.InfoContext(ctx, "Event emitted",
		"id", ce.ID(),
		"type", ce.Type(),
		"source", ce.Source(),
		"data", string(ce.Data()),
	)
	return nil
}

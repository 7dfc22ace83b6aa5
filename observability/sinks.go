package observability

import (
	"context"
	"log/slog"
)

// NoOpObserver discards all events.
type NoOpObserver struct{}

func (NoOpObserver) OnEvent(context.Context, Event) {}

// MultiObserver fans out events to several observers in order.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver creates a MultiObserver over the non-nil observers given.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	filtered := make([]Observer, 0, len(observers))
	for _, obs := range observers {
		if obs != nil {
			filtered = append(filtered, obs)
		}
	}
	return &MultiObserver{observers: filtered}
}

func (m *MultiObserver) OnEvent(ctx context.Context, event Event) {
	for _, obs := range m.observers {
		obs.OnEvent(ctx, event)
	}
}

// SlogObserver writes events to a slog.Logger. The event type is the log
// message; Source and every Data key are emitted as attributes.
type SlogObserver struct {
	logger *slog.Logger
}

// NewSlogObserver creates a SlogObserver. A nil logger selects slog.Default.
func NewSlogObserver(logger *slog.Logger) *SlogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogObserver{logger: logger}
}

func (o *SlogObserver) OnEvent(ctx context.Context, event Event) {
	level := event.Level.SlogLevel()
	if !o.logger.Enabled(ctx, level) {
		return
	}

	attrs := make([]slog.Attr, 0, len(event.Data)+1)
	attrs = append(attrs, slog.String("source", event.Source))
	for k, v := range event.Data {
		attrs = append(attrs, slog.Any(k, v))
	}

	o.logger.LogAttrs(ctx, level, string(event.Type), attrs...)
}

// Package observability delivers structured events from the property table
// and the state layers to pluggable sinks.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// Level is an event severity. Values use the OpenTelemetry SeverityNumber
// scale, so a level can be handed to an OTel log record unchanged.
type Level int

// Severities emitted by this module. Each sits at the bottom of its band.
const (
	LevelVerbose Level = 5
	LevelInfo    Level = 9
	LevelWarning Level = 13
	LevelError   Level = 17
)

// severityBands lists the upper bound of each SeverityNumber band in
// ascending order. Anything above the last band is FATAL.
var severityBands = []struct {
	upper Level
	text  string
	slog  slog.Level
}{
	{4, "TRACE", slog.LevelDebug},
	{8, "DEBUG", slog.LevelDebug},
	{12, "INFO", slog.LevelInfo},
	{16, "WARN", slog.LevelWarn},
	{20, "ERROR", slog.LevelError},
}

func (l Level) band() (string, slog.Level) {
	for _, b := range severityBands {
		if l <= b.upper {
			return b.text, b.slog
		}
	}
	return "FATAL", slog.LevelError
}

// String returns the severity text of the level's band.
func (l Level) String() string {
	text, _ := l.band()
	return text
}

// SlogLevel returns the slog level used when the event is logged.
func (l Level) SlogLevel() slog.Level {
	_, level := l.band()
	return level
}

// EventType names what happened, e.g. "property.commit".
type EventType string

// Event is one observation from a state operation.
type Event struct {
	Type      EventType
	Level     Level
	Timestamp time.Time
	Source    string         // emitting operation, e.g. "property.Table.Load"
	Data      map[string]any // storage key, property name, sizes
}

// Observer is a sink for events. Implementations must not block the caller
// for long; they run inline with reads and commits.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}

// Emit stamps and delivers an event to obs. A nil observer is ignored.
func Emit(ctx context.Context, obs Observer, typ EventType, level Level, source string, data map[string]any) {
	if obs == nil {
		return
	}
	obs.OnEvent(ctx, Event{
		Type:      typ,
		Level:     level,
		Timestamp: time.Now(),
		Source:    source,
		Data:      data,
	})
}

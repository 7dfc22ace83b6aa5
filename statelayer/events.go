package statelayer

import "github.com/tailored-agentic-units/convostate/observability"

// State layer event types.
const (
	EventRead observability.EventType = "statelayer.read"
	EventSave observability.EventType = "statelayer.save"
)

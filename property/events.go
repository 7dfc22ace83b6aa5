package property

import "github.com/tailored-agentic-units/convostate/observability"

// Property table event types.
const (
	EventLoad        observability.EventType = "property.load"
	EventCommit      observability.EventType = "property.commit"
	EventCommitSkip  observability.EventType = "property.commit.skip"
	EventCommitError observability.EventType = "property.commit.error"
	EventDelete      observability.EventType = "property.delete"
)

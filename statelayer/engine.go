package statelayer

// DefaultEngineState returns the engine's empty bookkeeping state: no queued
// messages, no slot or ability progress, and nothing being waited for.
func DefaultEngineState() map[string]any {
	return map[string]any{
		"messageQueue":  []any{},
		"slotStatus":    []any{},
		"slotData":      []any{},
		"abilityStatus": []any{},
		"promptStatus":  []any{},
		"waitingFor": map[string]any{
			"slotName":    nil,
			"abilityName": nil,
		},
	}
}

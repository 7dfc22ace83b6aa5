package codec

import (
	"encoding/json"
	"fmt"
)

// JSON encodes documents with encoding/json. Map keys are written in sorted
// order, numbers decode as float64.
var JSON Codec = jsonCodec{}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(doc map[string]any) ([]byte, error) {
	if doc == nil {
		doc = map[string]any{}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte) (map[string]any, error) {
	doc := map[string]any{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

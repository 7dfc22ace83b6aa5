package codec

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Proto encodes documents as a google.protobuf.Struct. Values are first
// normalized through their JSON form, so typed slices and structs are
// accepted and numbers decode as float64.
var Proto Codec = protoCodec{}

type protoCodec struct{}

func (protoCodec) Name() string { return "proto" }

func (protoCodec) Marshal(doc map[string]any) ([]byte, error) {
	normalized, err := normalize(doc)
	if err != nil {
		return nil, fmt.Errorf("proto encode: %w", err)
	}

	s, err := structpb.NewStruct(normalized)
	if err != nil {
		return nil, fmt.Errorf("proto encode: %w", err)
	}

	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("proto encode: %w", err)
	}
	return data, nil
}

func (protoCodec) Unmarshal(data []byte) (map[string]any, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("proto decode: %w", err)
	}
	return s.AsMap(), nil
}

func normalize(doc map[string]any) (map[string]any, error) {
	if doc == nil {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	normalized := map[string]any{}
	if err := json.Unmarshal(data, &normalized); err != nil {
		return nil, err
	}
	return normalized, nil
}

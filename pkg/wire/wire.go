// Package wire converts JSON-tagged Go values to and from google.protobuf.Struct, the
// message type used on the queue and on the gRPC FieldService.
package wire

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ToStruct renders v, which must marshal to a JSON object, as a Struct.
func ToStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}

	s := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, s); err != nil {
		return nil, fmt.Errorf("failed to convert to struct: %w", err)
	}
	return s, nil
}

// FromStruct decodes s into v using v's JSON tags and text unmarshalers.
func FromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}

	raw, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to convert from struct: %w", err)
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode struct: %w", err)
	}
	return nil
}

// Encode renders v as a protobuf-encoded Struct.
func Encode(v any) ([]byte, error) {
	s, err := ToStruct(v)
	if err != nil {
		return nil, err
	}

	data, err := proto.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode struct: %w", err)
	}
	return data, nil
}

// Decode parses a protobuf-encoded Struct into v.
func Decode(data []byte, v any) error {
	s := &structpb.Struct{}
	if err := proto.Unmarshal(data, s); err != nil {
		return fmt.Errorf("failed to parse struct: %w", err)
	}
	return FromStruct(s, v)
}

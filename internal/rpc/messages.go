package rpc

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Record is a remote row as it travels on the wire.
type Record struct {
	ID        string         `json:"id"`
	Code      string         `json:"code"`
	Data      map[string]any `json:"data"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type AuthenticateRequest struct {
	DeviceID string `json:"device_id"`
	Secret   string `json:"secret"`
}

type AuthenticateResponse struct {
	AccessToken string `json:"access_token"`
}

type PingResponse struct {
	Status string `json:"status"`
}

type GetRequest struct {
	Table string `json:"table"`
	ID    string `json:"id"`
}

// InsertRequest creates a row. OriginID carries the device-local id of a
// promoted temporary row so a retried create returns the row made earlier.
type InsertRequest struct {
	Table    string         `json:"table"`
	OriginID string         `json:"origin_id,omitempty"`
	Payload  map[string]any `json:"payload"`
}

type UpdateRequest struct {
	Table   string         `json:"table"`
	ID      string         `json:"id"`
	Payload map[string]any `json:"payload"`
}

type DeleteRequest struct {
	Table string `json:"table"`
	ID    string `json:"id"`
}

// Encode converts a message into a Struct by way of its JSON form.
func Encode(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return structpb.NewStruct(m)
}

// Decode fills v from s. A nil s leaves v untouched.
func Decode(s *structpb.Struct, v any) error {
	if s == nil {
		return nil
	}
	b, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}

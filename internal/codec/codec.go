package codec

import (
	stdjson "encoding/json"

	json "github.com/goccy/go-json"
)

// Single switch point for the JSON implementation so adapters and the engine
// never import the encoder directly.

// RawMessage stays compatible with encoding/json's RawMessage so opaque
// payloads interoperate with code outside this module.
type RawMessage = stdjson.RawMessage

func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return json.MarshalIndent(v, prefix, indent)
}

func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Clone returns an independent copy of raw. Snapshots hand out raw payloads
// to callers, so adapters must not share backing arrays with stored copies.
func Clone(raw RawMessage) RawMessage {
	if raw == nil {
		return nil
	}
	out := make(RawMessage, len(raw))
	copy(out, raw)
	return out
}

// ToMap decodes raw into a generic map. An empty payload decodes to an empty
// map rather than nil so callers can merge into the result directly.
func ToMap(raw RawMessage) (map[string]any, error) {
	out := make(map[string]any)
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

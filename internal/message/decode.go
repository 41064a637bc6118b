package message

import (
	"encoding/json"
	"fmt"
)

// FromValues builds a record from a Redis stream entry. Non-string values are
// rendered with their default text form.
func FromValues(id, stream string, values map[string]interface{}) Record {
	fields := make(map[string]string, len(values))
	for k, v := range values {
		switch val := v.(type) {
		case string:
			fields[k] = val
		case nil:
		default:
			fields[k] = fmt.Sprint(val)
		}
	}
	return New(id, stream, fields)
}

// FromJSON decodes an MQTT payload. A JSON object maps to fields, nested values are
// kept as their JSON text; any other payload becomes the message text.
func FromJSON(payload []byte) (Record, error) {
	if len(payload) == 0 {
		return Record{}, fmt.Errorf("empty payload")
	}
	if !IsJSON(string(payload)) {
		return New("", "", map[string]string{"message": string(payload)}), nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Record{}, fmt.Errorf("failed to parse record: %w", err)
	}
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			fields[k] = s
			continue
		}
		if string(v) == "null" {
			continue
		}
		fields[k] = string(v)
	}
	return New("", "", fields), nil
}

// IsJSON quickly checks whether s looks like a JSON object or array (starts with { or [)
func IsJSON(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			continue
		}
		return c == '{' || c == '['
	}
	return false
}

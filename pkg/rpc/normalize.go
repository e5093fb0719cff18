package rpc

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// Normalize turns an operation result into the JSON documents sent back to
// the device. Empty, zero and boolean results produce nothing. A JSON encoded
// string is parsed first, and a document that is itself a string holding a
// JSON object or array is parsed once more. A collection produces one document per element, any
// other value a single document.
func Normalize(result interface{}) ([][]byte, error) {
	var v interface{}

	switch r := result.(type) {
	case nil, bool:
		return nil, nil
	case string:
		if r == "" {
			return nil, nil
		}
		if err := json.Unmarshal([]byte(r), &v); err != nil {
			return nil, errors.Wrap(err, "result is not valid JSON")
		}
	case json.RawMessage:
		if len(r) == 0 {
			return nil, nil
		}
		if err := json.Unmarshal(r, &v); err != nil {
			return nil, errors.Wrap(err, "result is not valid JSON")
		}
	case []byte:
		return Normalize(json.RawMessage(r))
	default:
		// Round trip through JSON to get a generic value for structs and slices
		data, err := json.Marshal(r)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode result")
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, errors.Wrap(err, "failed to encode result")
		}
	}

	if str, ok := v.(string); ok && isJSONDocument(str) {
		var inner interface{}
		if err := json.Unmarshal([]byte(str), &inner); err == nil {
			v = inner
		}
	}

	var elements []interface{}
	switch t := v.(type) {
	case nil, bool:
		return nil, nil
	case float64:
		if t == 0 {
			return nil, nil
		}
		elements = []interface{}{t}
	case string:
		if t == "" {
			return nil, nil
		}
		elements = []interface{}{t}
	case []interface{}:
		elements = t
	case map[string]interface{}:
		if len(t) == 0 {
			return nil, nil
		}
		elements = []interface{}{t}
	default:
		elements = []interface{}{t}
	}

	out := make([][]byte, 0, len(elements))
	for _, e := range elements {
		data, err := json.Marshal(e)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode result element")
		}
		out = append(out, data)
	}

	return out, nil
}

func isJSONDocument(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

package service

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractObject parses raw model text into a JSON object. It first tries the
// whole text, then the span from the first '{' to the last '}', which recovers
// objects wrapped in prose or code fences. Text that is already valid JSON but
// not an object (arrays, scalars, null) is rejected without the span fallback.
func ExtractObject(raw string) (map[string]json.RawMessage, error) {
	text := strings.TrimSpace(raw)
	if obj, ok := parseObject(text); ok {
		return obj, nil
	}
	if json.Valid([]byte(text)) {
		return nil, fmt.Errorf("%w: top-level value is not an object", ErrUnparseableOutput)
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if obj, ok := parseObject(text[start : end+1]); ok {
			return obj, nil
		}
	}

	return nil, fmt.Errorf("%w (len: %d)", ErrUnparseableOutput, len(raw))
}

func parseObject(s string) (map[string]json.RawMessage, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// StringFields keeps only the named keys, converting each value to text.
// Missing or null keys map to "".
func StringFields(obj map[string]json.RawMessage, keys []string) map[string]string {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		out[k] = textValue(obj[k])
	}
	return out
}

func textValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var parts []string
	if err := json.Unmarshal(raw, &parts); err == nil {
		return strings.TrimSpace(strings.Join(parts, " "))
	}

	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" {
		return ""
	}
	return trimmed
}

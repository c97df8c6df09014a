package query

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"chatgraph/pkg/ai"
)

// ErrEmptyAnswer signals that the model produced no usable answer text.
var ErrEmptyAnswer = errors.New("model returned an empty answer")

// answerKeys is the priority order of conventional answer-bearing
// fields in structured model responses.
var answerKeys = []string{"answer", "response", "result", "text", "content", "message"}

// ResolveAnswer extracts the answer text from a model response of
// unknown shape. The closed set of accepted variants, tried in order:
// a plain string, a JSON object with a known answer key, an object
// whose longest string field carries the answer, or the stringified
// response as a last resort. Unexpected shapes never raise; only a
// genuinely empty answer does.
func ResolveAnswer(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrEmptyAnswer
	}

	var parsed any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		if strings.HasPrefix(trimmed, "{") {
			var obj map[string]any
			if err := ai.UnmarshalFlexible(trimmed, &obj); err == nil {
				return resolveObject(obj)
			}
		}
		// Freeform text is a valid answer shape.
		return trimmed, nil
	}

	switch v := parsed.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return "", ErrEmptyAnswer
		}
		return v, nil
	case map[string]any:
		return resolveObject(v)
	default:
		b, err := json.Marshal(parsed)
		if err != nil {
			return "", ErrEmptyAnswer
		}
		return string(b), nil
	}
}

func resolveObject(obj map[string]any) (string, error) {
	if len(obj) == 0 {
		return "", ErrEmptyAnswer
	}

	for _, key := range answerKeys {
		if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
			return s, nil
		}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	longest := ""
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && len(s) > len(longest) {
			longest = s
		}
	}
	if strings.TrimSpace(longest) != "" {
		return longest, nil
	}

	b, err := json.Marshal(obj)
	if err != nil {
		return "", ErrEmptyAnswer
	}
	return string(b), nil
}

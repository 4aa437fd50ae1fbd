package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ParseResponse extracts {"category": ..., "confidence": ...} from model
// output. Code fences and surrounding prose are ignored. A missing or
// malformed confidence defaults to 0.5; any confidence is clamped to [0, 1].
func ParseResponse(text string) (*Result, error) {
	candidate := extractJSONObject(text)
	if candidate == "" {
		return nil, errors.New("no JSON object in model response")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}

	category := strings.TrimSpace(fmt.Sprint(valueOr(payload["category"], "")))
	if category == "" {
		return nil, errors.New("model response has no category")
	}

	return &Result{Category: category, Confidence: clamp(confidence(payload["confidence"]))}, nil
}

func confidence(v any) float64 {
	switch c := v.(type) {
	case float64:
		return c
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(c), 64); err == nil {
			return f
		}
	}
	return DefaultRemoteConfidence
}

func valueOr(v any, def any) any {
	if v == nil {
		return def
	}
	return v
}

// extractJSONObject returns the text between the first '{' and the last '}'.
func extractJSONObject(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return ""
	}
	return s[start : end+1]
}

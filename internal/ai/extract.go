package ai

import (
	"encoding/json"
	"strings"
)

// ExtractJSONArray pulls a JSON array out of free-form model output.
// It tries a strict parse of the whole response first, then falls back to the
// first bracketed substring. Returns fallback when neither yields an array.
func ExtractJSONArray(response string, fallback []string) []string {
	var out []string
	trimmed := strings.TrimSpace(response)
	if err := json.Unmarshal([]byte(trimmed), &out); err == nil {
		return out
	}

	start := strings.Index(trimmed, "[")
	end := strings.LastIndex(trimmed, "]")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(trimmed[start:end+1]), &out); err == nil {
			return out
		}
	}
	return fallback
}

// ExtractJSONObject pulls a JSON object out of free-form model output into
// dst. Tries a strict parse first, then the first braced substring. Returns
// false when no object could be parsed; dst is untouched in that case.
func ExtractJSONObject(response string, dst any) bool {
	trimmed := strings.TrimSpace(response)
	if err := json.Unmarshal([]byte(trimmed), dst); err == nil {
		return true
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(trimmed[start:end+1]), dst); err == nil {
			return true
		}
	}
	return false
}

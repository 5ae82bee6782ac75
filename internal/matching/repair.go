package matching

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
	smartQuotes   = strings.NewReplacer("“", `"`, "”", `"`, "„", `"`, "‟", `"`, "‘", "'", "’", "'")
)

// RepairJSON applies the one repair pass allowed for model output: code fences
// removed, the outermost object kept, trailing commas dropped and smart quotes
// straightened.
func RepairJSON(raw string) string {
	out := extractJSON(raw)
	out = smartQuotes.Replace(out)
	if start, end := strings.Index(out, "{"), strings.LastIndex(out, "}"); start != -1 && end > start {
		out = out[start : end+1]
	}
	out = trailingComma.ReplaceAllString(out, "$1")
	return strings.TrimSpace(out)
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```JSON")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func decodeObject(raw string) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("response is not a json object")
	}
	return data, nil
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceInt(v any) (int, bool) {
	f := coerceFloat(v)
	if math.IsNaN(f) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}

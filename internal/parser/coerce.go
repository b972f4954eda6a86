package parser

import (
	"encoding/json"
	"regexp"
	"strings"
)

// optionSplitter breaks delimiter-separated option strings: "A, B, C",
// "A|B|C", "A;B" and "A/B" all become lists.
var optionSplitter = regexp.MustCompile(`[,\|;/]`)

// parseLoose interprets a free-form cell value as leniently as possible:
// valid JSON is taken as-is, comma- or pipe-delimited text becomes a list of
// strings, and anything else stays a plain trimmed string. Blank cells and
// the literal "nan" (a spreadsheet-tool artifact for empty cells) become nil.
func parseLoose(value string) any {
	s := strings.TrimSpace(value)
	if s == "" || strings.EqualFold(s, "nan") {
		return nil
	}

	var parsed any
	if err := json.Unmarshal([]byte(s), &parsed); err == nil {
		return parsed
	}

	if strings.Contains(s, ",") {
		return splitList(s, ",")
	}
	if strings.Contains(s, "|") {
		return splitList(s, "|")
	}
	return s
}

func splitList(s, sep string) []any {
	var items []any
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// CoerceOptions normalizes an options cell into a JSON-friendly value.
// Structured input (object) passes through; lists are wrapped as
// {"choices": [...]} so the stored shape is uniform; a delimiter-separated
// string becomes a wrapped list; a lone scalar stays a string.
func CoerceOptions(value string) any {
	parsed := parseLoose(value)
	if parsed == nil {
		return nil
	}

	switch v := parsed.(type) {
	case map[string]any:
		return v
	case []any:
		return map[string]any{"choices": v}
	case string:
		parts := optionSplitter.Split(v, -1)
		var choices []any
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				choices = append(choices, trimmed)
			}
		}
		if len(choices) > 1 {
			return map[string]any{"choices": choices}
		}
		return v
	default:
		return parsed
	}
}

// CoerceAnswer normalizes a correct-answer cell. Structured values pass
// through, "true"/"false" (any case) become booleans, everything else stays
// a trimmed scalar.
func CoerceAnswer(value string) any {
	parsed := parseLoose(value)
	if s, ok := parsed.(string); ok {
		switch strings.ToLower(s) {
		case "true":
			return true
		case "false":
			return false
		}
		return strings.TrimSpace(s)
	}
	return parsed
}

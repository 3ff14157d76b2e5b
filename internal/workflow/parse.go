package workflow

import (
	"encoding/json"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/mindmapd/internal/llm"
)

const (
	maxKeyConcepts    = 8
	maxPreviousYear   = 4
	maxCurrentAffairs = 4

	defaultReflectScore    = 7.0
	defaultReflectFeedback = "Generated UPSC-focused mind map"
)

func defaultSyllabusMapping() map[string]string {
	return map[string]string{
		"prelims":  "General awareness",
		"mains":    "Relevant to GS papers",
		"optional": "Check specific optional syllabus",
	}
}

func defaultBranches() []Branch {
	return []Branch{
		{
			ID:         "constitutional",
			Title:      "Constitutional Framework",
			Icon:       "📜",
			Color:      "#FF6B6B",
			Items:      []string{"Articles", "Amendments", "Provisions"},
			Importance: ImportanceHigh,
		},
		{
			ID:         "schemes",
			Title:      "Government Schemes",
			Icon:       "🏛️",
			Color:      "#4ECDC4",
			Items:      []string{"Central schemes", "State initiatives", "Implementation"},
			Importance: ImportanceHigh,
		},
	}
}

// parseOr returns parse(resp) or fallback when parsing fails.
func parseOr[T any](resp string, parse func(string) (T, bool), fallback T) (T, bool) {
	if v, ok := parse(resp); ok {
		return v, true
	}
	return fallback, false
}

// parseSyllabus decodes a JSON object. Non-string values are kept as their
// JSON text.
func parseSyllabus(resp string) (map[string]string, bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(llm.StripCodeFence(resp)), &raw); err != nil || raw == nil {
		return nil, false
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		var str string
		if err := json.Unmarshal(v, &str); err == nil {
			out[k] = str
			continue
		}
		out[k] = string(v)
	}
	return out, true
}

// parseBranches decodes a non-empty JSON array of branches. Unknown
// importance values are normalized to medium.
func parseBranches(resp string) ([]Branch, bool) {
	var branches []Branch
	if err := json.Unmarshal([]byte(llm.StripCodeFence(resp)), &branches); err != nil || len(branches) == 0 {
		return nil, false
	}
	for i := range branches {
		switch branches[i].Importance {
		case ImportanceHigh, ImportanceMedium, ImportanceLow:
		default:
			branches[i].Importance = ImportanceMedium
		}
		if branches[i].Items == nil {
			branches[i].Items = []string{}
		}
	}
	return branches, true
}

// parseReflection reads "SCORE: <number> | FEEDBACK: <text>". The response
// must contain exactly one pipe and each side needs a colon; the score must
// be a finite number.
func parseReflection(resp string) (float64, []string, bool) {
	parts := strings.Split(strings.TrimSpace(resp), "|")
	if len(parts) != 2 {
		return 0, nil, false
	}
	scoreText, ok := secondField(parts[0])
	if !ok {
		return 0, nil, false
	}
	score, err := strconv.ParseFloat(strings.TrimSpace(scoreText), 64)
	if err != nil || math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, nil, false
	}
	feedback, ok := secondField(parts[1])
	if !ok {
		return 0, nil, false
	}
	return score, []string{strings.TrimSpace(feedback)}, true
}

// secondField returns the text between the first and second colon of s, or
// everything after the first colon when there is only one.
func secondField(s string) (string, bool) {
	fields := strings.SplitN(s, ":", 3)
	if len(fields) < 2 {
		return "", false
	}
	return fields[1], true
}

// splitList splits on sep, trims entries, drops empty ones and keeps at
// most limit. The result is never nil.
func splitList(resp, sep string, limit int) []string {
	out := make([]string, 0, limit)
	for _, part := range strings.Split(strings.TrimSpace(resp), sep) {
		if len(out) == limit {
			break
		}
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// formatScore renders whole scores with one decimal ("8.0") and others in
// shortest form ("7.25").
func formatScore(score float64) string {
	s := strconv.FormatFloat(score, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

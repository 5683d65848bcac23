package insight

import (
	"encoding/json"
	"regexp"
	"strings"
)

// structuredResponse is the JSON shape the directive asks for.
type structuredResponse struct {
	Memories []string `json:"memories"`
}

var bulletPrefix = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+`)

// parseStructured pulls the {"memories": [...]} object out of a
// backend response. Markdown fences and surrounding prose are
// tolerated. The second return reports whether a structured object was
// found at all; a parsed-but-empty list is a valid (negative) result
// and must not fall through to the heuristic path.
func parseStructured(raw string) ([]string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	var resp structuredResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &resp); err != nil {
		return nil, false
	}
	return resp.Memories, true
}

// parseHeuristic salvages insights from a free-form response: bullet or
// numbered lines first, otherwise the first few substantial lines.
func parseHeuristic(raw string) []string {
	lines := strings.Split(raw, "\n")

	var bullets []string
	for _, line := range lines {
		if bulletPrefix.MatchString(line) {
			bullets = append(bullets, bulletPrefix.ReplaceAllString(line, ""))
		}
	}
	if len(bullets) > 0 {
		return bullets
	}

	// No list structure. Take leading lines long enough to carry
	// meaning on their own.
	const minSubstantial = 20
	var out []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if len(line) < minSubstantial {
			continue
		}
		out = append(out, line)
		if len(out) == 3 {
			break
		}
	}
	return out
}

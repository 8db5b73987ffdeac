package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	// jsonBlockPattern matches a JSON object inside a fenced code block.
	jsonBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	// jsonObjectPattern is the greedy fallback for an unfenced object.
	jsonObjectPattern    = regexp.MustCompile(`(?s)\{.*\}`)
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSON pulls a JSON object out of a model reply. Models asked for JSON
// still wrap it in fences, add // comments or leave trailing commas; all of
// that is tolerated. A valid object is returned untouched; the cleanup only
// runs on objects that fail to parse. It returns "" when no object is present.
func ExtractJSON(content string) string {
	var raw string
	if m := jsonBlockPattern.FindStringSubmatch(content); len(m) > 1 {
		raw = m[1]
	} else {
		raw = jsonObjectPattern.FindString(content)
	}
	if raw == "" {
		return ""
	}
	if json.Valid([]byte(raw)) {
		return raw
	}

	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = stripLineComment(line)
	}
	return trailingCommaPattern.ReplaceAllString(strings.Join(lines, "\n"), "$1")
}

// stripLineComment drops a trailing // comment that sits outside any string.
func stripLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}

	inString, escaped := false, false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/':
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}

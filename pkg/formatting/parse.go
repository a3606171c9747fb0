package formatting

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrParseFailed is returned when no JSON value can be recovered from a
// model reply.
var ErrParseFailed = errors.New("failed to parse response")

// maxEcho bounds how much of the rejected reply is carried in the error.
const maxEcho = 200

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// Parse decodes a chat model reply into T. Replies are tried as-is, then as
// the body of a markdown code fence, then as the outermost {...} span for
// answers that wrap the object in prose.
func Parse[T any](content string) (T, error) {
	var result T
	content = strings.TrimSpace(content)

	for _, candidate := range candidates(content) {
		if err := json.Unmarshal([]byte(candidate), &result); err == nil {
			return result, nil
		}
		var zero T
		result = zero
	}

	echo := content
	if len(echo) > maxEcho {
		echo = echo[:maxEcho] + "..."
	}
	return result, fmt.Errorf("%w: %s", ErrParseFailed, echo)
}

func candidates(content string) []string {
	out := []string{content}

	if m := fencePattern.FindStringSubmatch(content); len(m) >= 2 {
		out = append(out, strings.TrimSpace(m[1]))
	}

	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start >= 0 && end > start {
		out = append(out, content[start:end+1])
	}
	return out
}

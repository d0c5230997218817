package engine

import (
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("(?s)```[ \\t]*([A-Za-z0-9_+-]*)[ \\t]*\\r?\\n(.*?)```")

// ExtractCode pulls the program out of a model response. A python fence wins
// over any other fence; without a fence the whole response is used. A response
// cut off inside an opening fence keeps everything after the fence line.
func ExtractCode(response string) string {
	matches := fenceRe.FindAllStringSubmatch(response, -1)
	for _, m := range matches {
		lang := strings.ToLower(m[1])
		if lang == "python" || lang == "py" || lang == "python3" {
			return strings.TrimSpace(m[2])
		}
	}
	if len(matches) > 0 {
		return strings.TrimSpace(matches[0][2])
	}

	text := strings.TrimSpace(response)
	if strings.HasPrefix(text, "```") {
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			text = text[i+1:]
		} else {
			text = ""
		}
	}
	return strings.TrimSpace(text)
}

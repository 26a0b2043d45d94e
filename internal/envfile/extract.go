// Package envfile reads single-quoted, possibly multi-line values out of
// dotenv-style files such as .env.chatbot-context.
package envfile

import (
	"errors"
	"strings"
	"unicode"
)

var ErrKeyNotFound = errors.New("envfile: key not found")

// ExtractQuoted returns the value of KEY='...'. The value runs from the first
// line starting with KEY=' to the end of the content, so it may span lines.
// Trailing whitespace and one closing quote are dropped, and the shell
// escape sequence for a quote is reversed.
func ExtractQuoted(content, key string) (string, error) {
	prefix := key + "='"
	lines := strings.Split(content, "\n")
	start := -1
	for i, line := range lines {
		if strings.HasPrefix(line, prefix) {
			start = i
			break
		}
	}
	if start == -1 {
		return "", ErrKeyNotFound
	}

	value := strings.Join(lines[start:], "\n")
	value = strings.TrimPrefix(value, prefix)
	value = strings.TrimRightFunc(value, unicode.IsSpace)
	value = strings.TrimSuffix(value, "'")
	return strings.ReplaceAll(value, `'\''`, "'"), nil
}

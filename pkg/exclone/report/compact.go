package report

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxChainDepth bounds how many wrapped causes are rendered.
	MaxChainDepth = 6
	// MaxMessageLen caps a compacted message.
	MaxMessageLen = 500
)

// Compact renders an error chain on one line: "type: message" per level,
// outermost first, whitespace collapsed and length capped.
func Compact(err error) string {
	var parts []string
	for depth := 0; err != nil && depth < MaxChainDepth; depth++ {
		inner := errors.Unwrap(err)
		msg := err.Error()
		if inner != nil {
			msg = strings.TrimSuffix(msg, inner.Error())
			msg = strings.TrimRight(strings.TrimSpace(msg), ":")
		}
		if msg == "" {
			parts = append(parts, fmt.Sprintf("%T", err))
		} else {
			parts = append(parts, fmt.Sprintf("%T: %s", err, msg))
		}
		err = inner
	}
	line := strings.Join(strings.Fields(strings.Join(parts, " --> ")), " ")
	if len(line) > MaxMessageLen {
		cut := MaxMessageLen - 3
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		line = line[:cut] + "..."
	}
	return line
}

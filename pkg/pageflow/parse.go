// pkg/pageflow/parse.go
package pageflow

import (
	"strings"

	"github.com/spf13/cast"
)

// Int parses a rendered count such as "1,024" or " 12 ". Unparseable text is 0.
func Int(s string) int {
	return int(Float(s))
}

// Float parses a rendered decimal such as "87.5" or "1,024.2 MB". Unparseable
// text is 0.
func Float(s string) float64 {
	return cast.ToFloat64(numeric(s))
}

// Percent parses "87%" or "87 %" into 87.
func Percent(s string) float64 {
	return Float(strings.TrimSuffix(strings.TrimSpace(s), "%"))
}

// Bool reads checkbox and yes/no style cells.
func Bool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "checked", "true", "yes", "enabled", "on", "1", "✓":
		return true
	}
	return false
}

// numeric keeps the leading number of s, dropping thousands separators.
func numeric(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	end := 0
	for end < len(s) {
		c := s[end]
		if (c >= '0' && c <= '9') || c == '.' || (c == '-' && end == 0) {
			end++
			continue
		}
		break
	}
	return s[:end]
}

package runtime

import (
	"fmt"
	"regexp"
	"strings"
)

var slotRef = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// interpolate substitutes {slot} references in a template with values
// from the slot table. Unknown or nil slots render as an empty string.
func interpolate(template string, slots map[string]any) string {
	if !strings.Contains(template, "{") {
		return template
	}
	return slotRef.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]
		value, ok := slots[name]
		if !ok || value == nil {
			return ""
		}
		return fmt.Sprintf("%v", value)
	})
}

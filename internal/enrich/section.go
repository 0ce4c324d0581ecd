package enrich

import (
	"regexp"
	"strings"
)

var sectionIDPattern = regexp.MustCompile(`^(\d+(?:\.\d+)*)`)

// ParseSectionID extracts a leading numeric pattern like "1.2.6" from the
// deepest heading text. It returns ("", "") if no such pattern is found.
func ParseSectionID(headingText string) (sectionID, parentSection string) {
	m := sectionIDPattern.FindStringSubmatch(strings.TrimSpace(headingText))
	if m == nil {
		return "", ""
	}
	id := m[1]
	idx := strings.LastIndex(id, ".")
	if idx < 0 {
		return id, ""
	}
	return id, id[:idx]
}

package records

import (
	"strings"
	"time"
)

// timeLayouts are tried in order. Purview CreationTime values usually
// look like "2024-01-15T10:30:00" with an optional fraction and no
// zone; exports occasionally carry full RFC 3339 or space-separated
// forms. Zoneless values are taken as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a source timestamp permissively. The second
// return value reports whether any layout matched.
func ParseTimestamp(s string) (*time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, true
		}
	}
	return nil, false
}

// Package usermap substitutes display names for user principal names
// at render time. The raw UPN stays the canonical key for filtering
// and aggregation; mapping is applied only when a view is produced.
package usermap

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Map holds UPN to display-name pairs, keyed by lowercased UPN. A nil
// Map is valid and maps every name to itself.
type Map map[string]string

// Parse reads a two-column CSV of (upn, display name) pairs. A header
// row is recognized by its first cell not looking like a UPN and is
// skipped. Rows with fewer than two non-empty cells are ignored.
func Parse(r io.Reader) (Map, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	m := make(Map)
	first := true
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("usermap: read csv: %w", err)
		}
		if first {
			first = false
			if len(row) > 0 && !strings.Contains(row[0], "@") {
				continue
			}
		}
		if len(row) < 2 {
			continue
		}
		upn := strings.TrimSpace(row[0])
		name := strings.TrimSpace(row[1])
		if upn == "" || name == "" {
			continue
		}
		m[strings.ToLower(upn)] = name
	}
	return m, nil
}

// Display returns the mapped name for upn, or upn unchanged when no
// mapping exists.
func (m Map) Display(upn string) string {
	if name, ok := m[strings.ToLower(upn)]; ok {
		return name
	}
	return upn
}

// Len reports how many mappings are loaded.
func (m Map) Len() int { return len(m) }

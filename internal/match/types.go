// Package match locates structural pattern matches and symbol occurrences in
// parsed source. It produces MatchRecords consumed by the edit planner; it
// never mutates files.
package match

import (
	"recast/internal/lang"
)

// Capture is one named sub-span captured by a pattern metavariable.
type Capture struct {
	Name      string `json:"name"`
	StartByte int    `json:"startByte"`
	EndByte   int    `json:"endByte"`
}

// MatchRecord is one located match of a pattern or rule. Records are
// query-scoped: produced fresh per query, consumed by the planner, and
// discarded. ContentHash fingerprints the source the match was computed
// against so the apply engine can detect staleness.
type MatchRecord struct {
	File        string        `json:"file"`
	Language    lang.Language `json:"language"`
	StartByte   int           `json:"startByte"`
	EndByte     int           `json:"endByte"`
	Captures    []Capture     `json:"captures,omitempty"`
	ContentHash string        `json:"contentHash"`
}

// CaptureText returns the text of a named capture from the source the match
// was computed against, or "" when the capture is absent.
func (m *MatchRecord) CaptureText(source []byte, name string) string {
	for _, c := range m.Captures {
		if c.Name == name {
			if c.StartByte < 0 || c.EndByte > len(source) || c.StartByte > c.EndByte {
				return ""
			}
			return string(source[c.StartByte:c.EndByte])
		}
	}
	return ""
}

package analysis

import (
	"strings"
	"unicode/utf8"
)

// minRequirementLen is the shortest line, in characters, still considered
// a requirement. It is checked before markers are stripped.
const minRequirementLen = 6

// markerChars are the enumeration markers stripped from the start of a line.
const markerChars = ".-*0123456789) "

// ParseRequirements turns the Parse stage's raw model output into
// requirements, one per line, in order of appearance. Lines that are too
// short, or empty once bullets and numbering are stripped, are dropped.
func ParseRequirements(raw string) []Requirement {
	reqs := []Requirement{}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) < minRequirementLen {
			continue
		}
		line = strings.TrimSpace(strings.TrimLeft(line, markerChars))
		if line == "" {
			continue
		}
		reqs = append(reqs, Requirement(line))
	}
	return reqs
}

// bulletList renders requirements as "- req" lines for the check prompts.
func bulletList(reqs []Requirement) string {
	var b strings.Builder
	for i, r := range reqs {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(string(r))
	}
	return b.String()
}

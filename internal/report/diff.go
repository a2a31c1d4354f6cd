package report

import (
	"fmt"
	"os"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// contextLines matches the default of diff -u.
const contextLines = 3

// UnifiedDiff returns a unified diff turning the file at from into the file
// at to. It returns an empty string when the contents are equal.
func UnifiedDiff(from, to string) (string, error) {
	a, err := os.ReadFile(from)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", from, err)
	}
	b, err := os.ReadFile(to)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", to, err)
	}
	return DiffText(from, to, string(a), string(b))
}

// DiffText computes a unified diff between two texts.
func DiffText(fromName, toName, a, b string) (string, error) {
	if a == b {
		return "", nil
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        splitLines(a),
		B:        splitLines(b),
		FromFile: fromName,
		ToFile:   toName,
		Context:  contextLines,
	})
}

// splitLines splits text after each newline, terminating a final partial
// line so both sides of the diff compare alike.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	} else {
		lines[len(lines)-1] += "\n"
	}
	return lines
}

// LineCategory classifies a line of unified diff output. File headers only
// occur before the first hunk, so inHunk disambiguates "--- x" removals.
func LineCategory(line string, inHunk bool) Category {
	switch {
	case !inHunk && (strings.HasPrefix(line, "--- ") || strings.HasPrefix(line, "+++ ")):
		return DiffHeader
	case strings.HasPrefix(line, "@@"):
		return DiffHunk
	case strings.HasPrefix(line, "+"):
		return DiffAdd
	case strings.HasPrefix(line, "-"):
		return DiffRemove
	default:
		return DiffContext
	}
}

// Diff writes a unified diff with one style per line kind.
func (c *Console) Diff(diff string) {
	diff = strings.TrimSuffix(diff, "\n")
	if diff == "" {
		return
	}
	inHunk := false
	for _, line := range strings.Split(diff, "\n") {
		cat := LineCategory(line, inHunk)
		if cat == DiffHunk {
			inHunk = true
		}
		c.Println(cat, line)
	}
}

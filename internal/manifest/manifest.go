// Package manifest parses filelist manifests.
//
// A manifest is plain text with one install record per line:
//
//	<source> <octal-mode> <destination> [command args...]
//
// Blank lines and lines whose first non-whitespace character is '#' are
// ignored. When a host is configured, the first remaining line is a host
// line that must contain that host name.
package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/schaermu/filedeploy/internal/logfields"
)

var (
	// ErrNotFound is returned when the manifest file does not exist.
	ErrNotFound = errors.New("manifest not found")
	// ErrMalformed is returned when the manifest cannot be used as a whole.
	ErrMalformed = errors.New("manifest malformed")
	// ErrHostMismatch is returned when the host line does not name this host.
	ErrHostMismatch = fmt.Errorf("%w: host line mismatch", ErrMalformed)
	// ErrShortLine marks a data line with fewer than three tokens.
	ErrShortLine = errors.New("fewer than three fields")

	errSkip = errors.New("skip")
)

// MaxLineLength is the longest manifest line accepted, in bytes.
const MaxLineLength = 1 << 20

// Record is one parsed manifest line.
type Record struct {
	Source      string
	Mode        fs.FileMode
	Destination string
	Command     []string // nil when the line has no post-install command
	Line        int
}

// HasCommand reports whether a post-install command is attached.
func (r Record) HasCommand() bool {
	return len(r.Command) > 0
}

// ParseError describes a line that invalidates the whole manifest.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrMalformed, e.Err}
}

// Warning describes a line that was skipped.
type Warning struct {
	Line   int
	Text   string
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d skipped (%s): %q", w.Line, w.Reason, w.Text)
}

// Manifest is a fully parsed manifest file.
type Manifest struct {
	Path     string
	Records  []Record
	Warnings []Warning
}

// Parser turns manifest text into records.
type Parser struct {
	// Host, when set, must appear in the first non-comment line.
	Host string
	// Home replaces a leading "~" in source and destination paths.
	Home string
	// Warn is called for every skipped line. It may be nil.
	Warn func(Warning)
}

// Records lazily parses r. Iteration stops after the first error.
func (p *Parser) Records(r io.Reader) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), MaxLineLength)
		hostPending := p.Host != ""
		lineNo := 0

		for scanner.Scan() {
			lineNo++
			text := scanner.Text()
			trimmed := strings.TrimSpace(text)
			if trimmed == "" || strings.HasPrefix(trimmed, "#") {
				continue
			}

			if hostPending {
				hostPending = false
				if !strings.Contains(trimmed, p.Host) {
					err := fmt.Errorf("first line %q doesn't include %q: %w", trimmed, p.Host, ErrHostMismatch)
					yield(Record{}, err)
					return
				}
				continue
			}

			rec, err := ParseLine(text)
			switch {
			case errors.Is(err, errSkip):
				continue
			case errors.Is(err, ErrShortLine):
				if p.Warn != nil {
					p.Warn(Warning{Line: lineNo, Text: trimmed, Reason: err.Error()})
				}
				continue
			case err != nil:
				yield(Record{}, &ParseError{Line: lineNo, Text: trimmed, Err: err})
				return
			}

			rec.Line = lineNo
			rec.Source = p.expand(rec.Source)
			rec.Destination = p.expand(rec.Destination)
			if !yield(rec, nil) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				yield(Record{}, &ParseError{Line: lineNo + 1, Err: fmt.Errorf("line exceeds %d bytes: %w", MaxLineLength, err)})
				return
			}
			yield(Record{}, fmt.Errorf("failed to read manifest: %w", err))
			return
		}
		if hostPending {
			yield(Record{}, fmt.Errorf("no host line found, expected one including %q: %w", p.Host, ErrHostMismatch))
		}
	}
}

// Load reads and parses the manifest at path. Any parse error aborts the
// load so that no record is acted on from a broken manifest.
func (p *Parser) Load(path string, logger *slog.Logger) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	m := &Manifest{Path: path}
	inner := p.Warn
	scoped := *p
	scoped.Warn = func(w Warning) {
		m.Warnings = append(m.Warnings, w)
		if logger != nil {
			logger.Warn("skipping manifest line",
				logfields.Manifest(path),
				logfields.Line(w.Line),
				slog.String("reason", w.Reason),
				slog.String("text", w.Text))
		}
		if inner != nil {
			inner(w)
		}
	}

	for rec, err := range scoped.Records(f) {
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		m.Records = append(m.Records, rec)
	}

	return m, nil
}

// ParseLine parses a single data line.
func ParseLine(line string) (Record, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return Record{}, errSkip
	}
	if len(fields) < 3 {
		return Record{}, ErrShortLine
	}

	mode, err := ParseMode(fields[1])
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		Source:      fields[0],
		Mode:        mode,
		Destination: fields[2],
	}
	if len(fields) > 3 {
		rec.Command = fields[3:]
	}
	return rec, nil
}

// ParseMode parses an octal permission string such as "644" or "0o4755".
func ParseMode(s string) (fs.FileMode, error) {
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0o"), "0O")
	v, err := strconv.ParseUint(digits, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid permission %q: not an octal number", s)
	}
	if v > 0o7777 {
		return 0, fmt.Errorf("invalid permission %q: out of range", s)
	}

	mode := fs.FileMode(v & 0o777)
	if v&0o4000 != 0 {
		mode |= fs.ModeSetuid
	}
	if v&0o2000 != 0 {
		mode |= fs.ModeSetgid
	}
	if v&0o1000 != 0 {
		mode |= fs.ModeSticky
	}
	return mode, nil
}

func (p *Parser) expand(path string) string {
	path = os.ExpandEnv(path)
	if p.Home != "" && (path == "~" || strings.HasPrefix(path, "~/")) {
		path = filepath.Join(p.Home, path[1:])
	}
	return path
}

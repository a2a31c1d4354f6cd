// Package compare classifies a source/destination file pair.
package compare

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// Result is the relationship between a source file and its installed copy.
type Result int

const (
	Differ Result = iota
	Same
	DestinationMissing
	SourceMissing
)

func (r Result) String() string {
	switch r {
	case Differ:
		return "differ"
	case Same:
		return "same"
	case DestinationMissing:
		return "destination-missing"
	case SourceMissing:
		return "source-missing"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// NeedsInstall reports whether installing would change the destination.
func (r Result) NeedsInstall() bool {
	return r == Differ || r == DestinationMissing
}

// Files compares the file at src with the file at dest. A missing source
// takes precedence over a missing destination.
func Files(src, dest string) (Result, error) {
	srcOK, err := exists(src)
	if err != nil {
		return 0, err
	}
	if !srcOK {
		return SourceMissing, nil
	}

	destOK, err := exists(dest)
	if err != nil {
		return 0, err
	}
	if !destOK {
		return DestinationMissing, nil
	}

	srcSum, err := Digest(src)
	if err != nil {
		return 0, fmt.Errorf("failed to hash %s: %w", src, err)
	}
	destSum, err := Digest(dest)
	if err != nil {
		return 0, fmt.Errorf("failed to hash %s: %w", dest, err)
	}

	if bytes.Equal(srcSum, destSum) {
		return Same, nil
	}
	return Differ, nil
}

// Digest computes the SHA256 digest of a file's content.
func Digest(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}

	return h.Sum(nil), nil
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", path, err)
}

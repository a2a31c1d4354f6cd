package logfields

import (
	"fmt"
	"io/fs"
	"log/slog"
)

// Canonical log field names shared by every package.
const (
	KeyRunID       = "run_id"
	KeyAction      = "action"
	KeyManifest    = "manifest"
	KeyLine        = "line"
	KeySource      = "source"
	KeyDestination = "dest"
	KeyMode        = "mode"
	KeyResult      = "result"
	KeyCommand     = "command"
	KeyExitCode    = "exit_code"
	KeyError       = "error"
)

func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Action(name string) slog.Attr    { return slog.String(KeyAction, name) }
func Manifest(path string) slog.Attr  { return slog.String(KeyManifest, path) }
func Line(n int) slog.Attr            { return slog.Int(KeyLine, n) }
func Source(path string) slog.Attr    { return slog.String(KeySource, path) }
func Destination(p string) slog.Attr  { return slog.String(KeyDestination, p) }
func Result(r string) slog.Attr       { return slog.String(KeyResult, r) }
func ExitCode(code int) slog.Attr     { return slog.Int(KeyExitCode, code) }
func Command(argv []string) slog.Attr { return slog.Any(KeyCommand, argv) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// Mode renders permission bits in the octal form used by the manifest.
func Mode(mode fs.FileMode) slog.Attr {
	v := uint32(mode.Perm())
	if mode&fs.ModeSetuid != 0 {
		v |= 0o4000
	}
	if mode&fs.ModeSetgid != 0 {
		v |= 0o2000
	}
	if mode&fs.ModeSticky != 0 {
		v |= 0o1000
	}
	return slog.String(KeyMode, fmt.Sprintf("%04o", v))
}

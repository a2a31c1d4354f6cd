package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/schaermu/filedeploy/internal/compare"
	"github.com/schaermu/filedeploy/internal/hook"
	"github.com/schaermu/filedeploy/internal/logfields"
	"github.com/schaermu/filedeploy/internal/manifest"
	"github.com/schaermu/filedeploy/internal/report"
)

// ErrSourceMissing is reported when a record's source file does not exist.
var ErrSourceMissing = errors.New("source file does not exist")

// InstallError reports a failed install of one record.
type InstallError struct {
	Source      string
	Destination string
	Op          string
	Err         error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("Installing '%s' as '%s' failed: %s: %v", e.Source, e.Destination, e.Op, e.Err)
}

func (e *InstallError) Unwrap() error {
	return e.Err
}

// InstallHandler copies sources over their destinations, applies the
// record's mode and runs its post-install command.
type InstallHandler struct {
	Console *report.Console
	Runner  hook.Runner
	Logger  *slog.Logger
	Verbose bool
	DryRun  bool
}

func (h *InstallHandler) Handle(ctx context.Context, rec manifest.Record, res compare.Result) (Outcome, error) {
	if res == compare.SourceMissing {
		return Skipped, &InstallError{Source: rec.Source, Destination: rec.Destination, Op: "stat", Err: ErrSourceMissing}
	}
	if !res.NeedsInstall() {
		if h.Verbose {
			h.Console.Printf(report.Success, "'%s' is already installed.", rec.Source)
		}
		return Skipped, nil
	}

	if h.DryRun {
		h.Console.Printf(report.Info, "Would install '%s' as '%s' (%s).", rec.Source, rec.Destination, res)
		return Reported, nil
	}

	h.Logger.Info("installing file",
		logfields.Source(rec.Source),
		logfields.Destination(rec.Destination),
		logfields.Mode(rec.Mode))

	if err := installFile(rec); err != nil {
		return Skipped, err
	}

	if h.Verbose {
		h.Console.Printf(report.Success, "File '%s' was successfully installed as '%s'.", rec.Source, rec.Destination)
	}

	if !rec.HasCommand() {
		return Installed, nil
	}

	h.Logger.Debug("running post-install command", logfields.Command(rec.Command))
	if err := h.Runner.Run(ctx, rec.Command); err != nil {
		var exitErr *hook.ExitError
		if errors.As(err, &exitErr) {
			return Installed, err
		}
		return Installed, &InstallError{Source: rec.Source, Destination: rec.Destination, Op: "exec", Err: err}
	}
	return Installed, nil
}

// installFile copies rec.Source over rec.Destination in place and sets the
// destination's permission bits.
func installFile(rec manifest.Record) error {
	fail := func(op string, err error) error {
		return &InstallError{Source: rec.Source, Destination: rec.Destination, Op: op, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(rec.Destination), 0755); err != nil {
		return fail("mkdir", err)
	}
	if err := makeWritable(rec.Destination); err != nil {
		return fail("chmod", err)
	}
	if err := copyContents(rec.Source, rec.Destination); err != nil {
		return fail("copy", err)
	}
	if err := os.Chmod(rec.Destination, rec.Mode); err != nil {
		return fail("chmod", err)
	}
	return nil
}

// makeWritable adds owner write permission to an existing file so that a
// read-only destination can be overwritten.
func makeWritable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if info.Mode().Perm()&0o200 != 0 {
		return nil
	}
	return os.Chmod(path, info.Mode()|0o200)
}

// copyContents writes the bytes of src to dst, truncating dst.
func copyContents(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}

	return out.Close()
}

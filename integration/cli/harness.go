//go:build integration

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/schaermu/filedeploy/internal/testutil"
)

const defaultTimeout = 2 * time.Minute

// Harness builds the filedeploy binary once and runs it against a scratch
// source tree and install tree.
type Harness struct {
	t       *testing.T
	binary  string
	Src     string
	Dest    string
	workdir string
}

// NewHarness creates a new test harness with empty source and install trees
func NewHarness(t *testing.T) *Harness {
	t.Helper()
	root := t.TempDir()
	h := &Harness{
		t:       t,
		binary:  filepath.Join(root, "bin", "filedeploy"),
		Src:     filepath.Join(root, "src"),
		Dest:    filepath.Join(root, "installed"),
		workdir: root,
	}
	for _, dir := range []string{h.Src, h.Dest} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	return h
}

// Build compiles the binary under test
func (h *Harness) Build(ctx context.Context) error {
	h.t.Helper()

	projectRoot, err := testutil.FindProjectRoot()
	if err != nil {
		return fmt.Errorf("get project root: %w", err)
	}

	h.t.Logf("Building %s", h.binary)
	cmd := exec.CommandContext(ctx, "go", "build", "-o", h.binary, "./cmd/filedeploy")
	cmd.Dir = projectRoot
	cmd.Stdout = &testWriter{t: h.t, prefix: "[build] "}
	cmd.Stderr = &testWriter{t: h.t, prefix: "[build] "}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	return nil
}

// WriteManifest writes the manifest used by every subsequent run
func (h *Harness) WriteManifest(entries ...testutil.Entry) string {
	h.t.Helper()
	testutil.WriteTree(h.t, h.workdir, map[string]string{
		"filelist.test": testutil.Manifest("", entries...),
	})
	return filepath.Join(h.workdir, "filelist.test")
}

// Exec runs the binary with args and returns stdout, stderr and the exit code
func (h *Harness) Exec(ctx context.Context, args ...string) (string, string, int, error) {
	h.t.Helper()

	full := append([]string{
		"--manifest", filepath.Join(h.workdir, "filelist.test"),
		"--color", "never",
	}, args...)
	cmd := exec.CommandContext(ctx, h.binary, full...)
	cmd.Dir = h.workdir
	cmd.Env = append(os.Environ(), "XDG_CONFIG_HOME="+filepath.Join(h.workdir, "config"))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", "", 0, fmt.Errorf("exec failed: %w", err)
		}
		exitCode = exitErr.ExitCode()
	}

	return stdout.String(), stderr.String(), exitCode, nil
}

// MustExec runs the binary and fails the test if it returns non-zero
func (h *Harness) MustExec(ctx context.Context, args ...string) string {
	h.t.Helper()
	stdout, stderr, exitCode, err := h.Exec(ctx, args...)
	if err != nil {
		h.t.Fatalf("exec failed: %v", err)
	}
	if exitCode != 0 {
		h.t.Fatalf("command failed with exit code %d\nstdout: %s\nstderr: %s\nargs: %v",
			exitCode, stdout, stderr, args)
	}
	return stdout
}

// ReadFile reads a file relative to the install tree
func (h *Harness) ReadFile(rel string) (string, error) {
	data, err := os.ReadFile(filepath.Join(h.Dest, rel))
	return string(data), err
}

// FileExists checks if a file exists in the install tree
func (h *Harness) FileExists(rel string) bool {
	_, err := os.Stat(filepath.Join(h.Dest, rel))
	return err == nil
}

// testWriter wraps test logging for command output
type testWriter struct {
	t      *testing.T
	prefix string
}

func (w *testWriter) Write(p []byte) (n int, err error) {
	for _, line := range strings.Split(string(p), "\n") {
		if line != "" {
			w.t.Log(w.prefix + line)
		}
	}
	return len(p), nil
}

var _ io.Writer = (*testWriter)(nil)

// Package testutil holds helpers shared by tests that drive filedeploy
// against a scratch source and install tree.
package testutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// FindProjectRoot walks up from the caller's source file until it finds go.mod.
func FindProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(1)
	if !ok {
		return "", errors.New("failed to get caller information")
	}
	return findUp(filepath.Dir(filename), "go.mod")
}

func findUp(dir, name string) (string, error) {
	for {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s not found in any parent directory", name)
		}
		dir = parent
	}
}

// WriteTree creates every file in files below root. Keys are slash separated
// relative paths; parent directories are created as needed.
func WriteTree(t testing.TB, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
}

// Entry is one line of a manifest built by Manifest.
type Entry struct {
	Source      string
	Mode        string
	Destination string
	Command     []string
}

// Manifest renders entries in filelist format, optionally preceded by a host line.
func Manifest(host string, entries ...Entry) string {
	var b strings.Builder
	b.WriteString("# generated by test\n")
	if host != "" {
		b.WriteString(host + "\n")
	}
	for _, e := range entries {
		fields := append([]string{e.Source, e.Mode, e.Destination}, e.Command...)
		b.WriteString(strings.Join(fields, " ") + "\n")
	}
	return b.String()
}

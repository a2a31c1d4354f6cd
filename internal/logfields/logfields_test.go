package logfields

import (
	"errors"
	"io/fs"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestHelperKeyNames verifies helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"RunID", KeyRunID, "abc", RunID("abc")},
		{"Action", KeyAction, "install", Action("install")},
		{"Manifest", KeyManifest, "filelist.me", Manifest("filelist.me")},
		{"Line", KeyLine, "7", Line(7)},
		{"Source", KeySource, "a.txt", Source("a.txt")},
		{"Destination", KeyDestination, "/tmp/a.txt", Destination("/tmp/a.txt")},
		{"Result", KeyResult, "same", Result("same")},
		{"ExitCode", KeyExitCode, "3", ExitCode(3)},
		{"Mode", KeyMode, "0644", Mode(0o644)},
		{"ModeSetuid", KeyMode, "4755", Mode(0o755 | fs.ModeSetuid)},
		{"Error", KeyError, "boom", Error(errors.New("boom"))},
		{"NilError", KeyError, "", Error(nil)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.attrKey, tc.attr.Key)
			assert.Equal(t, tc.attrVal, tc.attr.Value.String())
		})
	}
}

package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindProjectRoot(t *testing.T) {
	root, err := FindProjectRoot()
	require.NoError(t, err)
	require.NotEmpty(t, root)
	assert.FileExists(t, filepath.Join(root, "go.mod"))
}

func TestFindUp_NotFound(t *testing.T) {
	_, err := findUp(t.TempDir(), "no-such-marker-file")
	assert.Error(t, err)
}

func TestWriteTree(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{
		"a.txt":         "a",
		"nested/b/c.sh": "echo hi\n",
	}
	WriteTree(t, root, files)

	for rel, want := range files {
		got, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		require.NoError(t, err)
		assert.Equal(t, want, string(got), rel)
	}
}

func TestManifest(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		entries []Entry
		want    string
	}{
		{
			name: "no host",
			entries: []Entry{
				{Source: "a", Mode: "644", Destination: "/etc/a"},
			},
			want: "# generated by test\na 644 /etc/a\n",
		},
		{
			name: "host and command",
			host: "box",
			entries: []Entry{
				{Source: "b", Mode: "755", Destination: "/bin/b", Command: []string{"touch", "/tmp/x"}},
			},
			want: "# generated by test\nbox\nb 755 /bin/b touch /tmp/x\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Manifest(tt.host, tt.entries...))
		})
	}
}

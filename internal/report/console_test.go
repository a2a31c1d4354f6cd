package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsole_NoColor(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, ColorNever)

	c.Println(Error, "boom")
	c.Printf(Success, "%d installed", 2)

	assert.False(t, c.Colored())
	assert.Equal(t, "boom\n2 installed\n", buf.String())
}

func TestConsole_AlwaysColor(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, ColorAlways)

	c.Println(Success, "ok")
	c.Println(Missing, "gone")
	c.Println(Info, "plain")

	assert.True(t, c.Colored())
	assert.Equal(t, "\033[32mok\033[0m\n\033[30m\033[41mgone\033[0m\nplain\n", buf.String())
}

func TestConsole_AutoDisabledForNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, NewConsole(&buf, ColorAuto).Colored())

	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	assert.False(t, NewConsole(f, ColorAuto).Colored())
}

func TestConsole_AutoHonorsNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.False(t, NewConsole(os.Stdout, ColorAuto).Colored())
}

func TestColorModeValid(t *testing.T) {
	for _, m := range []ColorMode{ColorAuto, ColorAlways, ColorNever} {
		assert.True(t, m.Valid(), m)
	}
	assert.False(t, ColorMode("sometimes").Valid())
	assert.False(t, ColorMode("").Valid())
}

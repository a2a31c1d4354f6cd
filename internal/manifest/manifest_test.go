package manifest

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, p *Parser, text string) ([]Record, error) {
	t.Helper()
	var recs []Record
	for rec, err := range p.Records(strings.NewReader(text)) {
		if err != nil {
			return recs, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Record
		wantErr error
	}{
		{
			name: "three fields",
			line: "a.txt 644 /tmp/a.txt",
			want: Record{Source: "a.txt", Mode: 0o644, Destination: "/tmp/a.txt"},
		},
		{
			name: "with command",
			line: "a.txt 644 /tmp/a.txt echo done",
			want: Record{Source: "a.txt", Mode: 0o644, Destination: "/tmp/a.txt", Command: []string{"echo", "done"}},
		},
		{
			name: "extra whitespace",
			line: "  deploy.py\t755   /home/me/bin/deploy  ",
			want: Record{Source: "deploy.py", Mode: 0o755, Destination: "/home/me/bin/deploy"},
		},
		{
			name: "setuid",
			line: "su 4755 /usr/local/bin/su",
			want: Record{Source: "su", Mode: 0o755 | fs.ModeSetuid, Destination: "/usr/local/bin/su"},
		},
		{name: "two fields", line: "a.txt 644", wantErr: ErrShortLine},
		{name: "comment", line: "  # a.txt 644 /tmp/a.txt", wantErr: errSkip},
		{name: "blank", line: "   ", wantErr: errSkip},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseLine(tc.line)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseLine_NoCommandIsNil(t *testing.T) {
	rec, err := ParseLine("a.txt 644 /tmp/a.txt")
	require.NoError(t, err)
	assert.Nil(t, rec.Command)
	assert.False(t, rec.HasCommand())
}

func TestParseMode(t *testing.T) {
	for _, tc := range []struct {
		in      string
		want    fs.FileMode
		wantErr bool
	}{
		{in: "644", want: 0o644},
		{in: "0644", want: 0o644},
		{in: "0o600", want: 0o600},
		{in: "1777", want: 0o777 | fs.ModeSticky},
		{in: "2755", want: 0o755 | fs.ModeSetgid},
		{in: "0", want: 0},
		{in: "rw-r--r--", wantErr: true},
		{in: "648", wantErr: true},
		{in: "17777", wantErr: true},
		{in: "-644", wantErr: true},
		{in: "0o", wantErr: true},
	} {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseMode(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRecords_SkipsCommentsAndWarnsOnShortLines(t *testing.T) {
	var warnings []Warning
	p := &Parser{Warn: func(w Warning) { warnings = append(warnings, w) }}

	text := `# leading comment

a.txt 644 /tmp/a.txt
   # indented comment
b.txt 600
c.sh 755 /tmp/c.sh chmod +x /tmp/c.sh
`
	recs, err := collect(t, p, text)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "a.txt", recs[0].Source)
	assert.Equal(t, 3, recs[0].Line)
	assert.Equal(t, []string{"chmod", "+x", "/tmp/c.sh"}, recs[1].Command)
	assert.Equal(t, 6, recs[1].Line)

	require.Len(t, warnings, 1)
	assert.Equal(t, 5, warnings[0].Line)
	assert.Equal(t, "b.txt 600", warnings[0].Text)
}

func TestRecords_BadModeIsParseError(t *testing.T) {
	recs, err := collect(t, &Parser{}, "a.txt 644 /tmp/a\nb.txt 9z9 /tmp/b\nc.txt 644 /tmp/c\n")
	require.Len(t, recs, 1)
	require.ErrorIs(t, err, ErrMalformed)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 2, perr.Line)
	assert.Equal(t, "b.txt 9z9 /tmp/b", perr.Text)
}

func TestRecords_HostLine(t *testing.T) {
	text := "# hosts\nalpha.example.org beta.example.org\na.txt 644 /tmp/a.txt\n"

	recs, err := collect(t, &Parser{Host: "beta"}, text)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "a.txt", recs[0].Source)

	_, err = collect(t, &Parser{Host: "gamma"}, text)
	require.ErrorIs(t, err, ErrHostMismatch)
	require.ErrorIs(t, err, ErrMalformed)

	_, err = collect(t, &Parser{Host: "beta"}, "# only comments\n\n")
	require.ErrorIs(t, err, ErrHostMismatch)
}

func TestRecords_WithoutHostTreatsFirstLineAsData(t *testing.T) {
	recs, err := collect(t, &Parser{}, "a.txt 644 /tmp/a.txt\n")
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestRecords_StopsWhenConsumerBreaks(t *testing.T) {
	p := &Parser{}
	n := 0
	for _, err := range p.Records(strings.NewReader("a 644 /a\nb 644 /b\nc 644 /c\n")) {
		require.NoError(t, err)
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestRecords_ExpandsHome(t *testing.T) {
	t.Setenv("FILEDEPLOY_TEST_DIR", "/srv/dots")
	p := &Parser{Home: "/home/me"}

	recs, err := collect(t, p, "$FILEDEPLOY_TEST_DIR/vimrc 644 ~/.vimrc\n")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "/srv/dots/vimrc", recs[0].Source)
	assert.Equal(t, "/home/me/.vimrc", recs[0].Destination)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "filelist.me")
	content := "deploy.py 755 /home/me/bin/deploy\nshort line\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	var seen []Warning
	p := &Parser{Warn: func(w Warning) { seen = append(seen, w) }}
	m, err := p.Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, path, m.Path)
	require.Len(t, m.Records, 1)
	assert.Equal(t, Record{Source: "deploy.py", Mode: 0o755, Destination: "/home/me/bin/deploy", Line: 1}, m.Records[0])
	require.Len(t, m.Warnings, 1)
	assert.Equal(t, m.Warnings, seen)
}

func TestLoad_NotFound(t *testing.T) {
	_, err := (&Parser{}).Load(filepath.Join(t.TempDir(), "filelist.nobody"), nil)
	require.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrMalformed)
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filelist.me")
	require.NoError(t, os.WriteFile(path, []byte("a.txt rwx /tmp/a\n"), 0o644))

	m, err := (&Parser{}).Load(path, nil)
	require.ErrorIs(t, err, ErrMalformed)
	assert.Nil(t, m)
	assert.Contains(t, err.Error(), path)
}

func TestRecords_LongLines(t *testing.T) {
	t.Run("longer than the default scanner buffer", func(t *testing.T) {
		dest := "/tmp/" + strings.Repeat("d", 70000)
		recs, err := collect(t, &Parser{}, "a.txt 644 "+dest+"\n")
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, dest, recs[0].Destination)
	})

	t.Run("over the limit is malformed", func(t *testing.T) {
		text := "ok.txt 644 /tmp/ok\na.txt 644 /tmp/" + strings.Repeat("d", MaxLineLength) + "\n"
		_, err := collect(t, &Parser{}, text)
		require.ErrorIs(t, err, ErrMalformed)

		var parseErr *ParseError
		require.True(t, errors.As(err, &parseErr))
		assert.Equal(t, 2, parseErr.Line)
	})
}

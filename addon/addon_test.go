package addon

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	a, err := New("subproc", `echo "a b" <files>`)
	require.NoError(t, err)
	assert.Equal(t, `subproc ("echo" "a b" "<files>")`, a.(Command).String())

	_, err = New("nope", "")
	assert.ErrorIs(t, err, ErrUnknown)

	_, err = New("subproc", "")
	assert.Error(t, err)

	_, err = New("subproc", `"unterminated`)
	assert.Error(t, err)

	assert.Contains(t, Names(), "subproc")
}

func TestCommandArgs(t *testing.T) {
	t.Parallel()

	c, err := NewCommand(`beet import <files> --dir=<dir> "<artist> - <album>"`)
	require.NoError(t, err)

	album := Album{
		Dir:    "/lib/Boards of Canada/Geogaddi (2002)",
		Artist: "Boards of Canada",
		Title:  "Geogaddi",
		Paths:  []string{"/lib/a/01 - x.flac", "/lib/a/02 - y.flac"},
	}
	assert.Equal(t, []string{
		"import",
		"/lib/a/01 - x.flac",
		"/lib/a/02 - y.flac",
		"--dir=/lib/Boards of Canada/Geogaddi (2002)",
		"Boards of Canada - Geogaddi",
	}, c.Args(album))

	// a marker inside an argument isn't a file list
	c, err = NewCommand(`echo x<files>`)
	require.NoError(t, err)
	assert.Equal(t, []string{"x<files>"}, c.Args(album))
}

func TestCommandRuns(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no sh")
	}

	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	c, err := NewCommand(`sh -c 'pwd -P > ` + out + `; printf "%s\n" "$@" >> ` + out + `' sh <files>`)
	require.NoError(t, err)

	album := Album{Dir: dir, Paths: []string{"/lib/a/01 - x.flac", "/lib/a/02 - y.flac"}}
	require.NoError(t, c.AfterOrganize(context.Background(), album))

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	wd, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Equal(t, wd+"\n/lib/a/01 - x.flac\n/lib/a/02 - y.flac\n", string(got))
}

func TestCommandError(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no sh")
	}

	c, err := NewCommand(`sh -c 'echo broken >&2; exit 3'`)
	require.NoError(t, err)

	err = c.AfterOrganize(context.Background(), Album{Dir: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

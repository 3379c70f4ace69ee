package flac_test

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.senan.xyz/flacr/fileutil"
	"go.senan.xyz/flacr/flac"
)

const parseArgs = `
while [ $# -gt 0 ]; do
	case "$1" in
	-o) out="$2"; shift 2 ;;
	-*) shift ;;
	*) in="$1"; shift ;;
	esac
done
`

func TestReencode(t *testing.T) {
	fakeFlac(t, parseArgs+`
[ -e "$out" ] && { echo "ERROR: output exists" >&2; exit 1; }
{ echo reencoded; cat "$in"; } > "$out"
`)

	path := writeFile(t, "a.flac", "audio\n")
	require.NoError(t, os.WriteFile(fileutil.TempPath(path), []byte("stale"), 0o644))

	err := flac.Reencode(context.Background(), flac.DefaultArgs, path)
	require.NoError(t, err)

	assert.Equal(t, "reencoded\naudio\n", readFile(t, path))
	assert.NoFileExists(t, fileutil.TempPath(path))
	assert.NoFileExists(t, fileutil.LockPath(path))
}

func TestReencodeVanished(t *testing.T) {
	fakeFlac(t, parseArgs+`
echo "ERROR: cannot open input" >&2
exit 1
`)

	path := filepath.Join(t.TempDir(), "gone.flac")

	err := flac.Reencode(context.Background(), flac.DefaultArgs, path)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.NoFileExists(t, path)
	assert.NoFileExists(t, fileutil.TempPath(path))
	assert.NoFileExists(t, fileutil.LockPath(path))
}

func TestReencodeSymlink(t *testing.T) {
	fakeFlac(t, parseArgs+`
{ echo reencoded; cat "$in"; } > "$out"
`)

	target := writeFile(t, "target.flac", "audio\n")
	link := filepath.Join(t.TempDir(), "link.flac")
	require.NoError(t, os.Symlink(target, link))

	require.NoError(t, flac.Reencode(context.Background(), flac.DefaultArgs, link))

	assert.Equal(t, "reencoded\naudio\n", readFile(t, target))
	info, err := os.Lstat(link)
	require.NoError(t, err)
	assert.Equal(t, fs.ModeSymlink, info.Mode().Type())
	assert.NoFileExists(t, fileutil.TempPath(link))
}

func TestReencodeWarning(t *testing.T) {
	fakeFlac(t, parseArgs+`
cat "$in" > "$out"
echo "WARNING: something odd" >&2
`)

	path := writeFile(t, "a.flac", "audio\n")

	err := flac.Reencode(context.Background(), flac.DefaultArgs, path)
	var serr *flac.StderrError
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Stderr, "WARNING: something odd")
	assert.NoError(t, serr.Err)

	assert.Equal(t, "audio\n", readFile(t, path))
	assert.NoFileExists(t, fileutil.TempPath(path))
}

func TestReencodeFailure(t *testing.T) {
	fakeFlac(t, parseArgs+`
echo partial > "$out"
echo "ERROR: bad stream" >&2
exit 1
`)

	path := writeFile(t, "a.flac", "audio\n")

	err := flac.Reencode(context.Background(), flac.DefaultArgs, path)
	var serr *flac.StderrError
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Stderr, "ERROR: bad stream")

	var exitErr *exec.ExitError
	assert.True(t, errors.As(err, &exitErr))

	assert.Equal(t, "audio\n", readFile(t, path))
	assert.NoFileExists(t, fileutil.TempPath(path))
}

func TestReencodeLocked(t *testing.T) {
	fakeFlac(t, parseArgs+`
cat "$in" > "$out"
`)

	path := writeFile(t, "a.flac", "audio\n")

	lock := flock.New(fileutil.LockPath(path))
	require.NoError(t, lock.Lock())
	t.Cleanup(func() { _ = lock.Unlock() })

	err := flac.Reencode(context.Background(), flac.DefaultArgs, path)
	assert.ErrorIs(t, err, flac.ErrLocked)
	assert.NoFileExists(t, fileutil.TempPath(path))
	assert.Equal(t, "audio\n", readFile(t, path))
}

func TestReencodeArgs(t *testing.T) {
	fakeFlac(t, `
echo "$@" > "${4}.tmp"
`)

	path := writeFile(t, "a.flac", "audio\n")
	path, err := filepath.EvalSymlinks(path)
	require.NoError(t, err)

	err = flac.Reencode(context.Background(), []string{"-5", "--verify"}, path)
	require.NoError(t, err)
	assert.Equal(t, "-5 --verify --silent "+path+" -o "+fileutil.TempPath(path)+"\n", readFile(t, path))
}

func TestTest(t *testing.T) {
	fakeFlac(t, parseArgs+`
if grep -q corrupt "$in"; then
	echo "$in: ERROR while decoding data" >&2
	exit 1
fi
`)

	good := writeFile(t, "good.flac", "audio\n")
	require.NoError(t, flac.Test(context.Background(), good))

	bad := writeFile(t, "bad.flac", "corrupt\n")
	err := flac.Test(context.Background(), bad)
	var serr *flac.StderrError
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Stderr, "ERROR while decoding data")
	assert.Contains(t, err.Error(), "ERROR while decoding data")
}

func TestCheckPath(t *testing.T) {
	skipWindows(t)

	t.Setenv("PATH", t.TempDir())
	assert.ErrorIs(t, flac.CheckPath(), flac.ErrNoFlac)

	fakeFlac(t, "")
	assert.NoError(t, flac.CheckPath())
}

func fakeFlac(t *testing.T, script string) {
	t.Helper()
	skipWindows(t)

	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, flac.Command), []byte("#!/bin/sh\n"+script), 0o755)
	require.NoError(t, err)
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func skipWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake flac is a shell script")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

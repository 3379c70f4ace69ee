package replaygain_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.senan.xyz/flacr/replaygain"
)

const output = "Filename\tLoudness (LUFS)\tGain (dB)\tPeak\t Peak (dB)\tPeak Type\tClipping Adjustment?\n" +
	"01 a.flac\t-14.20\t-3.80\t0.988525\t-0.10\tSample\tN\n" +
	"02 b.flac\t-9.00\t-9.00\t1.000000\t0.00\tSample\tY\n" +
	"Album\t-11.00\t-7.00\t1.000000\t0.00\tSample\tN\n"

func TestReadLevels(t *testing.T) {
	t.Parallel()

	album, tracks, err := replaygain.ReadLevels(strings.NewReader(output))
	require.NoError(t, err)
	assert.Equal(t, replaygain.Level{GaindB: -7, Peak: 1}, album)
	assert.Equal(t, []replaygain.Level{
		{GaindB: -3.8, Peak: 0.988525},
		{GaindB: -9, Peak: 1},
	}, tracks)
}

func TestReadLevelsErrors(t *testing.T) {
	t.Parallel()

	_, _, err := replaygain.ReadLevels(strings.NewReader(""))
	assert.ErrorContains(t, err, "read header")

	_, _, err = replaygain.ReadLevels(strings.NewReader("header\na\tb\n"))
	assert.ErrorContains(t, err, "num columns mismatch")

	_, _, err = replaygain.ReadLevels(strings.NewReader("header\na\t1\tx\t1\t1\tSample\tN\n"))
	assert.ErrorContains(t, err, "read gain dB")
}

func TestEasy(t *testing.T) {
	fakeRsgain(t, `echo "$@"`)

	var stdout bytes.Buffer
	require.NoError(t, replaygain.Easy(context.Background(), "/music", 1, &stdout, nil))
	assert.Equal(t, "easy -m 2 /music\n", stdout.String())

	stdout.Reset()
	require.NoError(t, replaygain.Easy(context.Background(), "/music", 8, &stdout, nil))
	assert.Equal(t, "easy -m 8 /music\n", stdout.String())
}

func TestEasyFailure(t *testing.T) {
	fakeRsgain(t, `exit 3`)

	err := replaygain.Easy(context.Background(), "/music", 1, nil, nil)
	assert.ErrorContains(t, err, "run rsgain")
}

func TestCalculate(t *testing.T) {
	fakeRsgain(t, `printf '`+strings.ReplaceAll(output, "\t", `\t`)+`'`)

	album, tracks, err := replaygain.Calculate(context.Background(), false, []string{"01 a.flac", "02 b.flac"})
	require.NoError(t, err)
	assert.InDelta(t, -7.0, album.GaindB, 0.001)
	assert.Len(t, tracks, 2)

	_, _, err = replaygain.Calculate(context.Background(), false, []string{"01 a.flac"})
	assert.ErrorContains(t, err, "got 2 track levels for 1 paths")
}

func TestNoRsgain(t *testing.T) {
	skipWindows(t)
	t.Setenv("PATH", t.TempDir())

	err := replaygain.Easy(context.Background(), "/music", 1, nil, nil)
	assert.ErrorIs(t, err, replaygain.ErrNoRsgain)

	_, _, err = replaygain.Calculate(context.Background(), false, []string{"a.flac"})
	assert.ErrorIs(t, err, replaygain.ErrNoRsgain)
}

func fakeRsgain(t *testing.T, script string) {
	t.Helper()
	skipWindows(t)

	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, replaygain.Command), []byte("#!/bin/sh\n"+script+"\n"), 0o755)
	require.NoError(t, err)
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func skipWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake rsgain is a shell script")
	}
}

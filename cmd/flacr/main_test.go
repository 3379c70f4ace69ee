package main

import (
	"os"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"
	"go.senan.xyz/flacr/cmd/internal/testing/testcmds"
)

func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"flacr":    func() int { main(); return 0 },
		"flac":     func() int { testcmds.Flac(); return 0 },
		"rsgain":   func() int { testcmds.Rsgain(); return 0 },
		"find":     func() int { testcmds.Find(); return 0 },
		"mod-time": func() int { testcmds.ModTime(); return 0 },
	}))
}

func TestScripts(t *testing.T) {
	t.Parallel()

	testscript.Run(t, testscript.Params{
		Dir:                 "testdata/scripts",
		RequireExplicitExec: true,
	})
}

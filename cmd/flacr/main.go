package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.senan.xyz/flacr"
	"go.senan.xyz/flacr/cmd/internal/flacrflag"
	"go.senan.xyz/flacr/fileutil"
	"go.senan.xyz/flacr/flac"
	"go.senan.xyz/flacr/notifications"
	"go.senan.xyz/flacr/progress"
	"go.senan.xyz/flacr/replaygain"
	"go.senan.xyz/flacr/report"
	"go.senan.xyz/flacr/statedb"
)

func init() {
	flag := flag.CommandLine
	flag.Usage = func() {
		fmt.Fprintf(flag.Output(), "Recompress or verify %s files under a directory and optionally tag them with replaygain values.\n", flacr.Name)
		fmt.Fprintf(flag.Output(), "\n")
		fmt.Fprintf(flag.Output(), "Usage:\n")
		fmt.Fprintf(flag.Output(), "  $ %s [<options>] [<dir>]\n", flag.Name())
		fmt.Fprintf(flag.Output(), "\n")
		fmt.Fprintf(flag.Output(), "Options:\n")
		flag.PrintDefaults()
	}
}

func main() {
	exit := flacrflag.Logging()
	cfg := flacrflag.NewConfig()
	flacrflag.Parse()

	dir := "."
	if flag.NArg() > 0 {
		dir = flag.Arg(0)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		slog.Error("readable dir is not a valid path", "dir", dir)
		exit()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, cfg, dir)
	cancel()

	switch {
	case errors.Is(err, context.Canceled):
		fmt.Println("Interrupted")
		os.Exit(130)
	case err != nil:
		slog.Error("running", "err", err)
	}
	exit()
}

func run(ctx context.Context, cfg *flacrflag.Config, dir string) error {
	if err := flac.CheckPath(); err != nil {
		return err
	}
	if cfg.ReplayGain || cfg.ReplayGainDryRun {
		if err := replaygain.CheckPath(); err != nil {
			return fmt.Errorf("%w, add it to PATH or run again without -rsgain", err)
		}
	}

	paths, err := find(ctx, dir, cfg)
	if err != nil {
		return fmt.Errorf("find files: %w", err)
	}
	slog.Debug("found files", "dir", dir, "count", len(paths))

	switch {
	case cfg.ReplayGainDryRun:
		printLevels(ctx, paths)
	case cfg.ReplayGain:
		if err := replaygain.Easy(ctx, dir, cfg.Threads, os.Stdout, os.Stderr); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}

	var op flacr.Operation = flacr.Reencode{Args: cfg.FlacArgs}
	if cfg.Test {
		op = flacr.Verify{}
	}

	if cfg.StateDBPath != "" {
		db, err := openState(ctx, cfg.StateDBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		if cfg.Force {
			op = flacr.RecordState(op, db)
		} else {
			op = flacr.WithState(op, db)
		}
	}

	desc := "encoding"
	if cfg.Test {
		desc = "verifying"
	}
	bar := progress.New(cfg.Progress, len(paths), desc)

	var errN int
	summary := flacr.Dispatch(ctx, op, paths, cfg.Threads, func(r flacr.Result) {
		slog.DebugContext(ctx, "processed file", "path", r.Path, "outcome", r.Outcome, "took", r.Took)
		switch r.Outcome {
		case flacr.Failed, flacr.Locked:
			errN++
			bar.Describe(fmt.Sprintf("%s (%d errors)", desc, errN))
		}
		bar.Add(1)
	})
	bar.Finish()

	if cfg.Log {
		if err := report.AppendLog(cfg.LogPath, time.Now(), summary.Failures); err != nil {
			fmt.Printf("Cannot write log file to %q. Ensure that you have write permission. Skipping log creation.\n", cfg.LogPath)
			slog.Warn("writing log", "err", err)
		}
	} else {
		report.WriteFailures(os.Stdout, summary.Failures)
	}
	report.WriteSummary(os.Stdout, cfg.Ext, summary)

	if cfg.ReportPath != "" {
		if err := report.WriteYAML(cfg.ReportPath, report.NewReport(time.Now(), dir, summary)); err != nil {
			slog.Error("writing report", "err", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if summary.Errors() > 0 {
		cfg.Notifications.Sendf(ctx, notifications.Errors, "%d of %d files in %s had errors", summary.Errors(), summary.Total, dir)
		slog.Error("finished with errors", "errors", summary.Errors(), "took", summary.Took)
		return nil
	}
	cfg.Notifications.Sendf(ctx, notifications.Complete, "%d files in %s processed", summary.Total, dir)
	return nil
}

func find(ctx context.Context, dir string, cfg *flacrflag.Config) ([]string, error) {
	noun := strings.TrimPrefix(cfg.Ext, ".")
	bar := progress.New(cfg.Progress, cfg.GuessCount, "searching")

	var seenN int
	paths, err := fileutil.Find(ctx, dir, fileutil.FindOptions{
		Recursive: !cfg.SingleFolder,
		Ext:       cfg.Ext,
		OnVisit: func(seen, matched int) {
			seenN = seen
			bar.Add(1)
			bar.Describe(fmt.Sprintf("searching (%d %s files)", matched, noun))
		},
	})
	bar.ChangeMax(seenN)
	bar.Finish()
	return paths, err
}

func openState(ctx context.Context, path string) (*statedb.DB, error) {
	db, err := statedb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	n, err := db.Prune(ctx, func(path string) bool {
		_, err := os.Stat(path)
		return errors.Is(err, fs.ErrNotExist)
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prune state db: %w", err)
	}
	if n > 0 {
		slog.Info("forgot files that no longer exist", "count", n)
	}
	return db, nil
}

// printLevels runs rsgain over each directory as an album without writing tags.
func printLevels(ctx context.Context, paths []string) {
	var dirs []string
	albums := map[string][]string{}
	for _, p := range paths {
		d := filepath.Dir(p)
		if _, ok := albums[d]; !ok {
			dirs = append(dirs, d)
		}
		albums[d] = append(albums[d], p)
	}

	for _, d := range dirs {
		if ctx.Err() != nil {
			return
		}
		tracks := albums[d]
		album, levels, err := replaygain.Calculate(ctx, false, tracks)
		if err != nil {
			slog.ErrorContext(ctx, "calculating replaygain", "dir", d, "err", err)
			continue
		}
		fmt.Printf("\n%s\n", d)
		report.WriteLevels(os.Stdout, tracks, album, levels)
	}
}

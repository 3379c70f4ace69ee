package fileutil

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.senan.xyz/natcmp"
)

var ErrNotDir = errors.New("not a directory")

type FindOptions struct {
	// Recursive walks every subdirectory of the root. Otherwise only the root itself is listed.
	Recursive bool
	// Ext is matched case insensitively against each file's extension, eg ".flac".
	Ext string
	// OnVisit is called for every regular file seen with the running totals.
	OnVisit func(seen, matched int)
}

// Find returns the absolute paths of the files under dir that match opts, in natural order.
// Symlinks to regular files are included, symlinked directories are not followed.
// The search stops with ctx's error once ctx is done.
func Find(ctx context.Context, dir string, opts FindOptions) ([]string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("make abs: %w", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %q", ErrNotDir, dir)
	}

	var seen int
	var paths []string
	visit := func(path string) {
		seen++
		if MatchExt(path, opts.Ext) {
			paths = append(paths, path)
		}
		if opts.OnVisit != nil {
			opts.OnVisit(seen, len(paths))
		}
	}

	if !opts.Recursive {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read dir: %w", err)
		}
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			path := filepath.Join(dir, entry.Name())
			if !isFile(path, entry) {
				continue
			}
			visit(path)
		}
		slices.SortFunc(paths, natcmp.Compare)
		return paths, nil
	}

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			if path == dir {
				return err
			}
			slog.Warn("skipping unreadable path", "path", path, "err", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !isFile(path, d) {
			return nil
		}
		visit(path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk: %w", err)
	}

	slices.SortFunc(paths, natcmp.Compare)
	return paths, nil
}

func isFile(path string, d fs.DirEntry) bool {
	if d.Type()&fs.ModeSymlink == 0 {
		return d.Type().IsRegular()
	}
	info, err := os.Stat(path)
	if err != nil {
		slog.Warn("skipping broken symlink", "path", path, "err", err)
		return false
	}
	return info.Mode().IsRegular()
}

func MatchExt(path, ext string) bool {
	if ext == "" {
		return true
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return strings.EqualFold(filepath.Ext(path), ext)
}

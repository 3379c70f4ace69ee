// Package flac runs the reference flac command line encoder over single files.
package flac

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"go.senan.xyz/flacr/fileutil"
)

var (
	ErrNoFlac = errors.New("flac not found in PATH")
	ErrLocked = errors.New("file is locked")
)

const Command = "flac"

var DefaultArgs = []string{"--best", "--verify", "--padding=4096"}

func CheckPath() error {
	if _, err := exec.LookPath(Command); err != nil {
		return fmt.Errorf("%w: %w", ErrNoFlac, err)
	}
	return nil
}

// StderrError is returned when flac exits non zero or complains on stderr.
type StderrError struct {
	Stderr string
	Err    error
}

func (e *StderrError) Error() string {
	stderr := strings.TrimSpace(e.Stderr)
	switch {
	case e.Err != nil && stderr != "":
		return fmt.Sprintf("%v: %s", e.Err, stderr)
	case e.Err != nil:
		return e.Err.Error()
	default:
		return stderr
	}
}

func (e *StderrError) Unwrap() error {
	return e.Err
}

// Test decodes path without writing anything.
func Test(ctx context.Context, path string) error {
	return run(ctx, "-t", "--silent", path)
}

// Reencode compresses path again with args, replacing it only once flac has
// finished cleanly. If path is a symlink its target is rewritten. A sidecar lock
// file next to the target is held for the duration, so a concurrent run skips
// the file with ErrLocked.
func Reencode(ctx context.Context, args []string, path string) (err error) {
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	lockPath := fileutil.LockPath(target)
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	if !ok {
		return ErrLocked
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(lockPath)
	}()

	tmpPath := fileutil.TempPath(target)
	if err := os.Remove(tmpPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove stale tmp: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	cmdArgs := make([]string, 0, len(args)+4)
	cmdArgs = append(cmdArgs, args...)
	cmdArgs = append(cmdArgs, "--silent", target, "-o", tmpPath)
	if err := run(ctx, cmdArgs...); err != nil {
		return err
	}

	// another program holding the file open shows up as a permission error here
	if err := os.Rename(tmpPath, target); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("%w: %w", ErrLocked, err)
		}
		return fmt.Errorf("replace original: %w", err)
	}
	return nil
}

func run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, Command, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &StderrError{Stderr: stderr.String(), Err: err}
	}
	// flac can exit cleanly having still written warnings, we don't trust the output then
	if stderr.Len() > 0 {
		return &StderrError{Stderr: stderr.String()}
	}
	return nil
}

package flacr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.senan.xyz/flacr/flac"
)

type Kind string

const (
	KindVerify Kind = "verify"
	KindEncode Kind = "encode"
)

type Outcome uint8

const (
	OK Outcome = iota
	Failed
	Locked
	Skipped
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case Failed:
		return "failed"
	case Locked:
		return "locked"
	case Skipped:
		return "skipped"
	case Cancelled:
		return "cancelled"
	}
	return fmt.Sprintf("outcome(%d)", o)
}

type Result struct {
	Path    string
	Outcome Outcome
	Err     error

	SizeBefore, SizeAfter int64
	Took                  time.Duration
}

// Detail is what gets reported for a file that didn't succeed. For encoder
// failures that's the encoder's own stderr.
func (r Result) Detail() string {
	if r.Err == nil {
		return ""
	}
	var serr *flac.StderrError
	if errors.As(r.Err, &serr) && serr.Stderr != "" {
		return serr.Stderr
	}
	return r.Err.Error()
}

// Operation is run once for each discovered file.
type Operation interface {
	Kind() Kind
	Process(ctx context.Context, path string) Result
}

var _ Operation = Verify{}
var _ Operation = Reencode{}

type Verify struct{}

func (Verify) Kind() Kind { return KindVerify }

func (Verify) Process(ctx context.Context, path string) Result {
	return process(ctx, path, func() error {
		return flac.Test(ctx, path)
	})
}

type Reencode struct {
	Args []string
}

func (Reencode) Kind() Kind { return KindEncode }

func (r Reencode) Process(ctx context.Context, path string) Result {
	args := r.Args
	if args == nil {
		args = flac.DefaultArgs
	}
	return process(ctx, path, func() error {
		return flac.Reencode(ctx, args, path)
	})
}

func process(ctx context.Context, path string, f func() error) Result {
	start := time.Now()
	res := Result{Path: path}
	res.SizeBefore = fileSize(path)

	err := f()
	res.Took = time.Since(start)
	res.SizeAfter = fileSize(path)
	res.Outcome, res.Err = classify(ctx, err)
	return res
}

func classify(ctx context.Context, err error) (Outcome, error) {
	switch {
	case err == nil:
		return OK, nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return Cancelled, err
	case errors.Is(err, flac.ErrLocked):
		return Locked, err
	default:
		return Failed, err
	}
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

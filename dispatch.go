package flacr

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
)

// Dispatch runs op over paths with at most threads running at once. onResult is
// called from the calling goroutine as each file completes. Once ctx is done no
// more files are started.
func Dispatch(ctx context.Context, op Operation, paths []string, threads int, onResult func(Result)) Summary {
	start := time.Now()

	results := make(chan Result)
	go func() {
		defer close(results)

		var g errgroup.Group
		g.SetLimit(max(threads, 1))
		for _, path := range paths {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				results <- op.Process(ctx, path)
				return nil
			})
		}
		_ = g.Wait()
	}()

	s := Summary{Kind: op.Kind(), Total: len(paths)}
	for r := range results {
		s.Add(r)
		if onResult != nil {
			onResult(r)
		}
	}
	s.Cancelled = s.Total - s.OK - s.Failed - s.Locked - s.Skipped
	s.Took = time.Since(start)
	return s
}

type Summary struct {
	Kind  Kind
	Total int

	OK, Failed, Locked, Skipped, Cancelled int

	SizeBefore, SizeAfter int64
	Took                  time.Duration

	// Failures has the failed and locked results in completion order.
	Failures []Result
}

func (s *Summary) Add(r Result) {
	switch r.Outcome {
	case OK:
		s.OK++
	case Failed:
		s.Failed++
	case Locked:
		s.Locked++
	case Skipped:
		s.Skipped++
	case Cancelled:
		return
	}
	switch r.Outcome {
	case Failed, Locked:
		s.Failures = append(s.Failures, r)
	}
	s.SizeBefore += r.SizeBefore
	s.SizeAfter += r.SizeAfter
}

// Errors counts files that could not be processed, locked files included.
func (s Summary) Errors() int {
	return s.Failed + s.Locked
}

// ErrorRate is the percentage of files with errors.
func (s Summary) ErrorRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Errors()) / float64(s.Total) * 100
}

type StateEntry struct {
	Path    string
	Kind    Kind
	Size    int64
	ModTime time.Time
}

// State remembers files that were processed successfully.
type State interface {
	Lookup(ctx context.Context, path string) (StateEntry, bool, error)
	Store(ctx context.Context, entry StateEntry) error
}

// Satisfies reports whether a previous success of kind k makes running want unnecessary.
// A file that was re-encoded with --verify has been decoded too.
func (k Kind) Satisfies(want Kind) bool {
	return k == want || k == KindEncode && want == KindVerify
}

// WithState wraps op so that files unchanged since a previous success are skipped.
func WithState(op Operation, st State) Operation {
	return stateful{Operation: op, st: st, skip: true}
}

// RecordState wraps op so that successes are remembered, without skipping anything.
func RecordState(op Operation, st State) Operation {
	return stateful{Operation: op, st: st}
}

type stateful struct {
	Operation
	st   State
	skip bool
}

func (s stateful) Process(ctx context.Context, path string) Result {
	if info, err := os.Stat(path); err == nil && s.skip {
		entry, ok, err := s.st.Lookup(ctx, path)
		if err != nil {
			slog.WarnContext(ctx, "lookup state", "path", path, "err", err)
		}
		if ok && unchanged(entry, info) && entry.Kind.Satisfies(s.Kind()) {
			return Result{Path: path, Outcome: Skipped, SizeBefore: info.Size(), SizeAfter: info.Size()}
		}
	}

	res := s.Operation.Process(ctx, path)
	if res.Outcome != OK {
		return res
	}

	info, err := os.Stat(path)
	if err != nil {
		return res
	}
	entry := StateEntry{Path: path, Kind: s.Kind(), Size: info.Size(), ModTime: info.ModTime()}
	if err := s.st.Store(ctx, entry); err != nil {
		slog.WarnContext(ctx, "store state", "path", path, "err", err)
	}
	return res
}

func unchanged(entry StateEntry, info fs.FileInfo) bool {
	return entry.Size == info.Size() && entry.ModTime.Equal(info.ModTime())
}

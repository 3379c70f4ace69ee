// Package progress draws progress bars on stderr when it's a terminal.
// A nil *Bar is valid and draws nothing.
package progress

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

type Bar struct {
	bar *progressbar.ProgressBar
}

// New returns nil unless enabled is set and stderr is a terminal.
func New(enabled bool, total int, desc string) *Bar {
	if !enabled || !IsTerminal(os.Stderr) {
		return nil
	}
	return NewWriter(os.Stderr, total, desc)
}

func NewWriter(w io.Writer, total int, desc string) *Bar {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionOnCompletion(func() { _, _ = io.WriteString(w, "\n") }),
	)
	return &Bar{bar: bar}
}

func (b *Bar) Add(n int) {
	if b == nil {
		return
	}
	_ = b.bar.Add(n)
}

func (b *Bar) Describe(desc string) {
	if b == nil {
		return
	}
	b.bar.Describe(desc)
}

// ChangeMax is for when a guessed total turned out wrong.
func (b *Bar) ChangeMax(total int) {
	if b == nil {
		return
	}
	b.bar.ChangeMax(total)
}

func (b *Bar) Finish() {
	if b == nil {
		return
	}
	_ = b.bar.Finish()
}

func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Package report writes the outcome of a run for people to read.
package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.senan.xyz/table/table"
	"gopkg.in/yaml.v2"

	"go.senan.xyz/flacr"
	"go.senan.xyz/flacr/replaygain"
)

var ErrNotWritable = errors.New("log file not writable")

const DefaultLogPath = "flacr_error.log"

const dateLayout = "2006-01-02 15:04:05"

// WriteFailures prints each failure with the encoder's own output.
func WriteFailures(w io.Writer, failures []flacr.Result) {
	for _, r := range failures {
		fmt.Fprintf(w, "Encountered error when processing file:\n%s\n%s\n", r.Path, r.Detail())
	}
}

// AppendLog appends a dated section listing failures to the log at path. Nothing
// is written if there are no failures.
func AppendLog(path string, now time.Time, failures []flacr.Result) (err error) {
	if len(failures) == 0 {
		return nil
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotWritable, err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	var buf strings.Builder
	fmt.Fprintf(&buf, "\n%s error log, date: %s\n", flacr.Name, now.Format(dateLayout))
	for _, r := range failures {
		fmt.Fprintf(&buf, "%s\n%s\n", r.Path, r.Detail())
	}
	if _, err := io.WriteString(f, buf.String()); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// WriteSummary prints the closing summary line and a table of anything else worth noting.
func WriteSummary(w io.Writer, ext string, s flacr.Summary) {
	noun := strings.TrimPrefix(strings.ToLower(ext), ".")
	if noun == "" {
		noun = "audio"
	}
	fmt.Fprintf(w, "\n%d %s files processed, %d errors. Error rate: %.2f %%.\n", s.Total, noun, s.Errors(), s.ErrorRate())

	t := table.NewStringWriter()
	if s.Locked > 0 {
		fmt.Fprintf(t, "locked\t%d\n", s.Locked)
	}
	if s.Skipped > 0 {
		fmt.Fprintf(t, "skipped\t%d\n", s.Skipped)
	}
	if s.Cancelled > 0 {
		fmt.Fprintf(t, "cancelled\t%d\n", s.Cancelled)
	}
	if s.Kind == flacr.KindEncode && s.OK > 0 {
		fmt.Fprintf(t, "size\t%s -> %s (%s)\n", humanize.Bytes(uint64(s.SizeBefore)), humanize.Bytes(uint64(s.SizeAfter)), sizeDelta(s.SizeBefore, s.SizeAfter))
	}
	if s.Took > 0 {
		fmt.Fprintf(t, "took\t%s\n", s.Took.Truncate(time.Millisecond))
	}
	fmt.Fprint(w, t.String())
}

func sizeDelta(before, after int64) string {
	if after > before {
		return "grew " + humanize.Bytes(uint64(after-before))
	}
	return "saved " + humanize.Bytes(uint64(before-after))
}

// WriteLevels prints the loudness rsgain found for one album without it having written anything.
func WriteLevels(w io.Writer, paths []string, album replaygain.Level, tracks []replaygain.Level) {
	t := table.NewStringWriter()
	for i, path := range paths {
		if i >= len(tracks) {
			break
		}
		fmt.Fprintf(t, "%s\t%.2f dB\t%.6f\n", filepath.Base(path), tracks[i].GaindB, tracks[i].Peak)
	}
	fmt.Fprintf(t, "album\t%.2f dB\t%.6f\n", album.GaindB, album.Peak)
	fmt.Fprint(w, t.String())
}

type Report struct {
	Date      string    `yaml:"date"`
	Dir       string    `yaml:"dir"`
	Kind      string    `yaml:"kind"`
	Total     int       `yaml:"total"`
	OK        int       `yaml:"ok"`
	Failed    int       `yaml:"failed"`
	Locked    int       `yaml:"locked"`
	Skipped   int       `yaml:"skipped"`
	Cancelled int       `yaml:"cancelled"`
	ErrorRate float64   `yaml:"error_rate"`
	SizeIn    int64     `yaml:"size_before"`
	SizeOut   int64     `yaml:"size_after"`
	Took      string    `yaml:"took"`
	Failures  []Failure `yaml:"failures,omitempty"`
}

type Failure struct {
	Path    string `yaml:"path"`
	Outcome string `yaml:"outcome"`
	Detail  string `yaml:"detail"`
}

func NewReport(now time.Time, dir string, s flacr.Summary) Report {
	r := Report{
		Date:      now.Format(time.RFC3339),
		Dir:       dir,
		Kind:      string(s.Kind),
		Total:     s.Total,
		OK:        s.OK,
		Failed:    s.Failed,
		Locked:    s.Locked,
		Skipped:   s.Skipped,
		Cancelled: s.Cancelled,
		ErrorRate: s.ErrorRate(),
		SizeIn:    s.SizeBefore,
		SizeOut:   s.SizeAfter,
		Took:      s.Took.Truncate(time.Millisecond).String(),
	}
	for _, f := range s.Failures {
		r.Failures = append(r.Failures, Failure{
			Path:    f.Path,
			Outcome: f.Outcome.String(),
			Detail:  strings.TrimSpace(f.Detail()),
		})
	}
	return r
}

func WriteYAML(path string, r Report) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

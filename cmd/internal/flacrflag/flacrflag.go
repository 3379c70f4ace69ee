package flacrflag

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/shlex"
	"go.senan.xyz/flagconf"

	"go.senan.xyz/flacr"
	"go.senan.xyz/flacr/flac"
	"go.senan.xyz/flacr/notifications"
	"go.senan.xyz/flacr/report"
)

func Logging() (exit func()) {
	var logLevel slog.LevelVar
	flag.TextVar(&logLevel, "log-level", &logLevel, "Set the logging level")

	h := &slogErrorHandler{
		Handler: slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &logLevel}),
	}

	logger := slog.New(h)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(slog.LevelError)

	return func() {
		if h.hadSlogError.Load() {
			os.Exit(1)
		}
		os.Exit(0)
	}
}

type slogErrorHandler struct {
	slog.Handler
	hadSlogError atomic.Bool
}

func (n *slogErrorHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level == slog.LevelError {
		n.hadSlogError.Store(true)
	}
	return n.Handler.Handle(ctx, r)
}

func Parse() {
	userConfig, err := os.UserConfigDir()
	if err != nil {
		userConfig = "."
	}

	defaultConfigPath := filepath.Join(userConfig, flacr.Name, "config")
	configPath := flag.String("config-path", defaultConfigPath, "Path to config file")

	printVersion := flag.Bool("version", false, "Print the version and exit")
	printConfig := flag.Bool("config", false, "Print the parsed config and exit")

	flag.Parse()
	flagconf.ReadEnvPrefix = func(_ *flag.FlagSet) string { return flacr.Name }
	flagconf.ParseEnv()
	flagconf.ParseConfig(*configPath)

	if *printVersion {
		fmt.Printf("%s %s\n", flag.CommandLine.Name(), flacr.Version)
		os.Exit(0)
	}
	if *printConfig {
		flag.VisitAll(func(f *flag.Flag) {
			fmt.Printf("%-18s %s\n", f.Name, f.Value)
		})
		os.Exit(0)
	}
}

type Config struct {
	Threads      int
	GuessCount   int
	Progress     bool
	SingleFolder bool
	Ext          string

	Test     bool
	FlacArgs []string

	ReplayGain       bool
	ReplayGainDryRun bool

	Log        bool
	LogPath    string
	ReportPath string

	StateDBPath string
	Force       bool

	Notifications notifications.Notifications
}

func NewConfig() *Config {
	var cfg Config

	cfg.Threads = 1
	flag.Var(&threadsParser{&cfg.Threads}, "threads", "Number of files to process at once, also passed to rsgain")
	flag.IntVar(&cfg.GuessCount, "guess-count", 999_999, "Guess of the total file count, for the searching progress bar")
	flag.BoolVar(&cfg.Progress, "progress", false, "Show progress bars while searching and processing")
	flag.BoolVar(&cfg.SingleFolder, "single-folder", false, "Only process the given directory, not its subdirectories")
	flag.StringVar(&cfg.Ext, "ext", ".flac", "Extension of files to process")

	flag.BoolVar(&cfg.Test, "test", false, "Skip recompression and only report decoding errors")
	cfg.FlacArgs = flac.DefaultArgs
	flag.Var(&argsParser{&cfg.FlacArgs}, "flac-args", "Shell quoted arguments for flac when recompressing")

	flag.BoolVar(&cfg.ReplayGain, "rsgain", false, "Calculate replaygain values with rsgain and save them in the file tags")
	flag.BoolVar(&cfg.ReplayGainDryRun, "rsgain-dry-run", false, "Print the replaygain values rsgain would write, per directory, without writing them")

	flag.BoolVar(&cfg.Log, "log", false, "Append errors to the log file instead of printing them")
	flag.StringVar(&cfg.LogPath, "log-path", report.DefaultLogPath, "Path of the error log file")
	flag.StringVar(&cfg.ReportPath, "report", "", "Write a YAML report of the run to this path")

	flag.StringVar(&cfg.StateDBPath, "state-db", "", "Path to a database of processed files, unchanged files are skipped")
	flag.BoolVar(&cfg.Force, "force", false, "Process files even if the state database has them as done")

	flag.Var(&notificationsParser{&cfg.Notifications}, "notification-uri", "Add a shoutrrr notification URI for an event (stackable)")

	return &cfg
}

var _ flag.Value = (*threadsParser)(nil)
var _ flag.Value = (*argsParser)(nil)
var _ flag.Value = (*notificationsParser)(nil)

type threadsParser struct{ n *int }

func (tp *threadsParser) Set(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse thread count: %w", err)
	}
	if maxThreads := runtime.NumCPU(); n < 1 || n > maxThreads {
		return fmt.Errorf("invalid thread count, supply a value between 1 and %d", maxThreads)
	}
	*tp.n = n
	return nil
}
func (tp threadsParser) String() string {
	if tp.n == nil {
		return ""
	}
	return strconv.Itoa(*tp.n)
}

type argsParser struct{ args *[]string }

func (ap *argsParser) Set(value string) error {
	args, err := shlex.Split(value)
	if err != nil {
		return fmt.Errorf("split args: %w", err)
	}
	if len(args) == 0 {
		return fmt.Errorf("no args provided")
	}
	*ap.args = args
	return nil
}
func (ap argsParser) String() string {
	if ap.args == nil {
		return ""
	}
	var parts []string
	for _, arg := range *ap.args {
		if strings.ContainsAny(arg, " \t\"'") {
			arg = strconv.Quote(arg)
		}
		parts = append(parts, arg)
	}
	return strings.Join(parts, " ")
}

type notificationsParser struct{ *notifications.Notifications }

func (n *notificationsParser) Set(value string) error {
	eventsRaw, uri, ok := strings.Cut(value, " ")
	if !ok {
		return fmt.Errorf("invalid notification uri format. expected eg \"ev1,ev2 uri\"")
	}
	var lineErrs []error
	for _, ev := range strings.Split(eventsRaw, ",") {
		ev, uri = strings.TrimSpace(ev), strings.TrimSpace(uri)
		err := n.AddURI(notifications.Event(ev), uri)
		lineErrs = append(lineErrs, err)
	}
	return errors.Join(lineErrs...)
}
func (n notificationsParser) String() string {
	if n.Notifications == nil {
		return ""
	}
	var parts []string
	n.Notifications.IterMappings(func(e notifications.Event, uri string) {
		url, _ := url.Parse(uri)
		parts = append(parts, fmt.Sprintf("%s: %s://%s/...", e, url.Scheme, url.Host))
	})
	return strings.Join(parts, ", ")
}

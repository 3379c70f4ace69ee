// Package testcmds has stand ins for the external tools, for use with testscript.
package testcmds

import (
	"bytes"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.senan.xyz/flacr/fileutil"
)

const reencodedHeader = "reencoded"

// Flac mimics the flac encoder. Input containing "corrupt" fails to decode, input
// containing "warn" encodes but with a warning on stderr. Encoded output gets a
// header line listing the flags it was encoded with.
func Flac() {
	var test bool
	var in, out string
	var flags []string

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch arg := args[i]; {
		case arg == "-t":
			test = true
		case arg == "-o" && i+1 < len(args):
			out = args[i+1]
			i++
		case strings.HasPrefix(arg, "-"):
			flags = append(flags, arg)
		default:
			in = arg
		}
	}

	data, err := os.ReadFile(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	if bytes.Contains(data, []byte("corrupt")) {
		fmt.Fprintf(os.Stderr, "%s: ERROR while decoding data\n", filepath.Base(in))
		os.Exit(1)
	}
	if test {
		return
	}

	if out == "" {
		fmt.Fprintf(os.Stderr, "ERROR: no output\n")
		os.Exit(1)
	}
	if _, err := os.Stat(out); err == nil {
		fmt.Fprintf(os.Stderr, "ERROR: output file %s already exists\n", out)
		os.Exit(1)
	}

	if bytes.HasPrefix(data, []byte(reencodedHeader)) {
		if _, rest, ok := bytes.Cut(data, []byte("\n")); ok {
			data = rest
		}
	}
	header := fmt.Sprintf("%s %s\n", reencodedHeader, strings.Join(flags, " "))
	if err := os.WriteFile(out, append([]byte(header), data...), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	if bytes.Contains(data, []byte("warn")) {
		fmt.Fprintf(os.Stderr, "%s: WARNING, odd padding\n", filepath.Base(in))
	}
}

// Rsgain mimics rsgain. Easy mode echoes its arguments, custom mode prints a
// fixed level for every track.
func Rsgain() {
	args := os.Args[1:]
	if len(args) == 0 {
		log.Fatalf("no mode")
	}

	switch args[0] {
	case "easy":
		fmt.Printf("rsgain %s\n", strings.Join(args, " "))
	case "custom":
		var paths []string
		for i := 1; i < len(args); i++ {
			switch arg := args[i]; {
			case arg == "--tagmode":
				if args[i+1] != "s" {
					log.Fatalf("refusing to write tags")
				}
				i++
			case strings.HasPrefix(arg, "-"):
			default:
				paths = append(paths, arg)
			}
		}
		fmt.Println("Filename\tLoudness (LUFS)\tGain (dB)\tPeak\t Peak (dB)\tPeak Type\tClipping Adjustment?")
		for _, p := range paths {
			fmt.Printf("%s\t-14.00\t-4.00\t0.891251\t-1.00\tSample\tN\n", filepath.Base(p))
		}
		fmt.Println("Album\t-14.00\t-4.00\t0.891251\t-1.00\tSample\tN")
	default:
		log.Fatalf("bad mode %q", args[0])
	}
}

func Find() {
	maxDepth := flag.Int("max-depth", -1, "")
	flag.Parse()

	paths := flag.Args()
	sort.Strings(paths)

	for _, p := range paths {
		err := filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			path = filepath.Clean(path)
			if *maxDepth != -1 && strings.Count(path, string(filepath.Separator)) > *maxDepth {
				return nil
			}
			fmt.Println(path)
			return nil
		})
		if err != nil {
			log.Fatal(err)
		}
	}
}

func ModTime() {
	flag.Parse()

	pat := flag.Arg(0)
	paths := parsePattern(pat)
	if len(paths) == 0 {
		log.Fatalf("no paths to match pattern")
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			log.Fatalf("error stating: %v", err)
		}
		fmt.Println(info.ModTime().UnixNano())
	}
}

func parsePattern(pat string) []string {
	// assume the file exists if the pattern doesn't look like a glob
	if fileutil.GlobEscape(pat) == pat {
		return []string{pat}
	}
	paths, _ := filepath.Glob(pat)
	return paths
}

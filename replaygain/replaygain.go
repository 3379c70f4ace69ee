package replaygain

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
)

var ErrNoRsgain = fmt.Errorf("rsgain not found in PATH")

const Command = "rsgain"

// MinEasyThreads keeps rsgain scanning in parallel even when flacr itself runs one worker.
const MinEasyThreads = 2

func CheckPath() error {
	if _, err := exec.LookPath(Command); err != nil {
		return fmt.Errorf("%w: %w", ErrNoRsgain, err)
	}
	return nil
}

// Easy runs rsgain's easy mode on dir, which scans every album under it and writes the tags.
func Easy(ctx context.Context, dir string, threads int, stdout, stderr io.Writer) error {
	if err := CheckPath(); err != nil {
		return err
	}
	threads = max(threads, MinEasyThreads)

	cmd := exec.CommandContext(ctx, Command, "easy", "-m", strconv.Itoa(threads), dir)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run rsgain: %w", err)
	}
	return nil
}

type Level struct {
	GaindB, Peak float64
}

// Calculate scans trackPaths as one album without writing any tags.
func Calculate(ctx context.Context, truePeak bool, trackPaths []string) (album Level, tracks []Level, err error) {
	if err := CheckPath(); err != nil {
		return Level{}, nil, err
	}
	if len(trackPaths) == 0 {
		return Level{}, nil, nil
	}

	args := []string{"custom", "--output", "--tagmode", "s", "--album"}
	if truePeak {
		args = append(args, "--true-peak")
	}
	cmd := exec.CommandContext(ctx, Command, append(args, trackPaths...)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	defer func() {
		if err != nil && stderr.Len() > 0 {
			err = fmt.Errorf("%w: stderr: %q", err, stderr.String())
		}
	}()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Level{}, nil, fmt.Errorf("get stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return Level{}, nil, fmt.Errorf("start cmd: %w", err)
	}

	album, tracks, err = ReadLevels(stdout)
	if err != nil {
		_ = cmd.Wait()
		return Level{}, nil, err
	}
	if err := cmd.Wait(); err != nil {
		return Level{}, nil, fmt.Errorf("wait cmd: %w", err)
	}
	if len(tracks) != len(trackPaths) {
		return Level{}, nil, fmt.Errorf("got %d track levels for %d paths", len(tracks), len(trackPaths))
	}

	return album, tracks, nil
}

// ReadLevels parses the tab separated table printed by rsgain's --output flag.
func ReadLevels(r io.Reader) (album Level, tracks []Level, err error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.ReuseRecord = true
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		return Level{}, nil, fmt.Errorf("read header: %w", err)
	}

	for {
		columns, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Level{}, nil, fmt.Errorf("read line: %w", err)
		}
		if len(columns) != numColumns {
			return Level{}, nil, fmt.Errorf("num columns mismatch %d / %d", len(columns), numColumns)
		}

		var gaindB, peak float64
		if gaindB, err = strconv.ParseFloat(columns[GaindB], 64); err != nil {
			return Level{}, nil, fmt.Errorf("read gain dB: %w", err)
		}
		if peak, err = strconv.ParseFloat(columns[Peak], 64); err != nil {
			return Level{}, nil, fmt.Errorf("read peak: %w", err)
		}

		switch columns[Filename] {
		case "Album":
			album.GaindB = gaindB
			album.Peak = peak
		default:
			tracks = append(tracks, Level{GaindB: gaindB, Peak: peak})
		}
	}

	return album, tracks, nil
}

type Column uint8

const (
	Filename = iota
	LoudnessLUFS
	GaindB
	Peak
	PeakdB
	PeakType
	ClippingAdjustment
	numColumns
)

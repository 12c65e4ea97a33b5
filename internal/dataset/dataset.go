// Package dataset turns a project's raw images into the trainer's input format.
package dataset

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labelhub/autotrain/internal/failure"
	"github.com/labelhub/autotrain/internal/process"
	"github.com/labelhub/autotrain/internal/workspace"
)

// ValidationEvery sends every n-th image of a label, starting with the first, to the validation split.
const ValidationEvery = 5

// Split counts the manifest lines written for one preparation.
type Split struct {
	Train      int
	Validation int
}

// Preparer wipes the previous session's outputs, writes the manifests and runs
// the conversion tool.
type Preparer struct {
	tool    string
	timeout time.Duration
}

// NewPreparer creates a Preparer invoking tool as `<tool> <train> <val> <dest>`.
func NewPreparer(tool string, timeout time.Duration) *Preparer {
	return &Preparer{tool: tool, timeout: timeout}
}

// Prepare clears dataset/ and snapshot/, writes train.txt and val.txt from
// rawimages/ and converts them into dataset/. A failing tool is a conversion error.
func (p *Preparer) Prepare(ctx context.Context, l workspace.Layout) (Split, error) {
	for _, dir := range []string{l.Dataset(), l.Snapshot()} {
		if err := workspace.ClearDir(dir); err != nil {
			return Split{}, err
		}
	}

	split, err := WriteManifests(l)
	if err != nil {
		return Split{}, err
	}

	cmd := process.Command{
		Path:    p.tool,
		Args:    []string{l.TrainManifest(), l.ValManifest(), l.Dataset()},
		Dir:     l.Dir(),
		Timeout: p.timeout,
		OnStderrLine: func(line string) {
			slog.Debug("convert", "dir", l.Dir(), "line", line)
		},
	}
	result, err := process.Run(ctx, cmd)
	if err != nil {
		return split, failure.Wrap(failure.KindConversion, err, "convert dataset")
	}
	if !result.Success() {
		return split, failure.New(failure.KindConversion, "%s exited with status %d: %s",
			filepath.Base(p.tool), result.ExitCode, strings.Join(result.Tail, "; "))
	}

	slog.Info("Dataset prepared",
		"dir", l.Dir(),
		"train", split.Train,
		"validation", split.Validation,
		"duration", result.Duration,
	)
	return split, nil
}

// WriteManifests lists rawimages/<label>/ in directory order and writes one
// `<absolute path> <label>` line per image. Index 0, 5, 10 ... of each label go
// to the validation manifest, the rest to the training manifest.
func WriteManifests(l workspace.Layout) (Split, error) {
	labels, err := os.ReadDir(l.RawImages())
	if err != nil {
		return Split{}, failure.Wrap(failure.KindFileSystem, err, "read %s", l.RawImages())
	}

	trainFile, err := os.Create(l.TrainManifest())
	if err != nil {
		return Split{}, failure.Wrap(failure.KindFileSystem, err, "create training manifest")
	}
	defer func() { _ = trainFile.Close() }()

	valFile, err := os.Create(l.ValManifest())
	if err != nil {
		return Split{}, failure.Wrap(failure.KindFileSystem, err, "create validation manifest")
	}
	defer func() { _ = valFile.Close() }()

	train := bufio.NewWriter(trainFile)
	val := bufio.NewWriter(valFile)

	var split Split
	for _, label := range labels {
		if !label.IsDir() {
			continue
		}
		images, err := os.ReadDir(l.LabelDir(label.Name()))
		if err != nil {
			return Split{}, failure.Wrap(failure.KindFileSystem, err, "read label %s", label.Name())
		}

		idx := 0
		for _, img := range images {
			if !img.Type().IsRegular() {
				continue
			}
			line := fmt.Sprintf("%s %s\n", l.RawImage(label.Name(), img.Name()), label.Name())
			if idx%ValidationEvery == 0 {
				_, err = val.WriteString(line)
				split.Validation++
			} else {
				_, err = train.WriteString(line)
				split.Train++
			}
			if err != nil {
				return Split{}, failure.Wrap(failure.KindFileSystem, err, "write manifest")
			}
			idx++
		}
	}

	for _, w := range []*bufio.Writer{train, val} {
		if err := w.Flush(); err != nil {
			return Split{}, failure.Wrap(failure.KindFileSystem, err, "write manifest")
		}
	}
	return split, nil
}

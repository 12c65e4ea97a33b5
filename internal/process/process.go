// Package process runs external tools with a wall-clock limit and line-oriented
// capture of their diagnostic stream.
package process

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/labelhub/autotrain/internal/failure"
)

const (
	// waitDelay bounds how long Wait keeps reading output after the process is killed
	waitDelay = 5 * time.Second

	tailLines = 20
)

// Command describes one invocation.
type Command struct {
	Path string
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Timeout is the wall-clock limit; zero means none.
	Timeout time.Duration
	// OnStderrLine is called for every complete line written to stderr, in order.
	OnStderrLine func(line string)
}

// Result is the outcome of a process that ran to completion or was killed.
type Result struct {
	ExitCode int
	Duration time.Duration
	// Tail holds the last stderr lines, for error reporting.
	Tail []string
}

// Success reports whether the process exited zero.
func (r *Result) Success() bool {
	return r != nil && r.ExitCode == 0
}

// Run executes cmd and waits for it. A non-zero exit is reported through
// Result.ExitCode with a nil error. Failure to start, a timeout, or cancellation
// of ctx are returned as subprocess errors; on timeout the process group is killed.
func Run(ctx context.Context, cmd Command) (*Result, error) {
	runCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	lines := &lineWriter{onLine: cmd.OnStderrLine}

	c := exec.CommandContext(runCtx, cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	c.Stderr = lines
	c.WaitDelay = waitDelay
	configureKill(c)

	start := time.Now()
	if err := c.Start(); err != nil {
		return nil, failure.Wrap(failure.KindSubprocess, err, "start %s", cmd.Path)
	}

	waitErr := c.Wait()
	lines.flush()

	result := &Result{
		ExitCode: c.ProcessState.ExitCode(),
		Duration: time.Since(start),
		Tail:     lines.tail(),
	}

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		return result, failure.New(failure.KindSubprocess, "%s timed out after %s", cmd.Path, cmd.Timeout)
	case ctx.Err() != nil:
		return result, failure.Wrap(failure.KindSubprocess, ctx.Err(), "%s interrupted", cmd.Path)
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return result, failure.Wrap(failure.KindSubprocess, waitErr, "wait for %s", cmd.Path)
	}
	return result, nil
}

// Describe renders the command line for logs.
func (c Command) Describe() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

// lineWriter splits a byte stream into lines. exec copies stderr into it from
// a single goroutine; the mutex guards tail reads after Wait.
type lineWriter struct {
	mu     sync.Mutex
	onLine func(string)
	buf    bytes.Buffer
	last   []string
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		idx := bytes.IndexByte(w.buf.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := string(bytes.TrimRight(w.buf.Next(idx+1), "\r\n"))
		w.emit(line)
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() > 0 {
		w.emit(strings.TrimRight(w.buf.String(), "\r"))
		w.buf.Reset()
	}
}

func (w *lineWriter) emit(line string) {
	if w.onLine != nil {
		w.onLine(line)
	}
	w.last = append(w.last, line)
	if len(w.last) > tailLines {
		w.last = w.last[len(w.last)-tailLines:]
	}
}

func (w *lineWriter) tail() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.last...)
}

//go:build unix

package process

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelhub/autotrain/internal/failure"
)

func sh(script string) Command {
	return Command{Path: "/bin/sh", Args: []string{"-c", script}}
}

func TestRunSuccess(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var lines []string
	cmd := sh(`echo out; echo "first" >&2; printf 'second\nno newline' >&2`)
	cmd.OnStderrLine = func(l string) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, l)
	}

	result, err := Run(context.Background(), cmd)
	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Equal(t, []string{"first", "second", "no newline"}, lines)
	assert.Equal(t, lines, result.Tail)
}

func TestRunNonZeroExit(t *testing.T) {
	t.Parallel()

	result, err := Run(context.Background(), sh(`echo boom >&2; exit 3`))
	require.NoError(t, err)
	assert.False(t, result.Success())
	assert.Equal(t, 3, result.ExitCode)
	assert.Equal(t, []string{"boom"}, result.Tail)
}

func TestRunWorkingDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cmd := sh(`pwd >&2`)
	cmd.Dir = dir

	result, err := Run(context.Background(), cmd)
	require.NoError(t, err)
	require.Len(t, result.Tail, 1)
	assert.Contains(t, result.Tail[0], dir)
}

func TestRunTimeoutKillsProcessGroup(t *testing.T) {
	t.Parallel()

	cmd := sh(`sleep 30 & sleep 30`)
	cmd.Timeout = 200 * time.Millisecond

	start := time.Now()
	result, err := Run(context.Background(), cmd)
	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.KindSubprocess))
	assert.Contains(t, err.Error(), "timed out")
	assert.False(t, result.Success())
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	_, err := Run(ctx, sh(`sleep 30`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interrupted")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunMissingBinary(t *testing.T) {
	t.Parallel()

	result, err := Run(context.Background(), Command{Path: "/nonexistent/caffe"})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, failure.KindSubprocess, failure.KindOf(err))
}

func TestLineWriterKeepsTail(t *testing.T) {
	t.Parallel()

	w := &lineWriter{}
	for i := 0; i < tailLines+5; i++ {
		_, _ = w.Write([]byte("line\n"))
	}
	assert.Len(t, w.tail(), tailLines)
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	cmd := Command{Path: "caffe", Args: []string{"train", "--solver=model/solver.prototxt"}}
	assert.Equal(t, "caffe train --solver=model/solver.prototxt", cmd.Describe())
}

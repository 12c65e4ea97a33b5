package failure

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_Nil(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Wrap(KindUpstream, nil, "ignored"))
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{name: "plain error has no kind", err: cause, expected: ""},
		{name: "wrapped error keeps kind", err: Wrap(KindDownload, cause, "fetch a.jpg"), expected: KindDownload},
		{name: "fmt wrapping is transparent", err: fmt.Errorf("sync: %w", New(KindConversion, "exit 1")), expected: KindConversion},
		{name: "outermost kind wins", err: Wrap(KindFileSystem, New(KindUpstream, "x"), "y"), expected: KindFileSystem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, KindOf(tt.err))
		})
	}
}

func TestIsKind_Nested(t *testing.T) {
	t.Parallel()

	err := Wrap(KindFileSystem, New(KindUpstream, "bad response"), "publish")
	assert.True(t, IsKind(err, KindFileSystem))
	assert.True(t, IsKind(err, KindUpstream))
	assert.False(t, IsKind(err, KindDownload))
}

func TestError_Message(t *testing.T) {
	t.Parallel()

	err := Wrap(KindSubprocess, errors.New("signal: killed"), "trainer for %s", "cats")
	require.Error(t, err)
	assert.Equal(t, "subprocess error: trainer for cats: signal: killed", err.Error())
	assert.Equal(t, "upstream error: no data", New(KindUpstream, "no data").Error())
}

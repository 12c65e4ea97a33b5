package solver

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalDescription_DefaultConfig(t *testing.T) {
	t.Parallel()

	expected := `net: "model/train_val.prototxt"
test_iter: 1000
test_interval: 4000
test_initialization: false
display: 100
average_loss: 40
base_lr: 0.01
lr_policy: "step"
stepsize: 320000
gamma: 0.96
max_iter: 100
momentum: 0.9
weight_decay: 0.0002
snapshot: 200
snapshot_prefix: "snapshot/bvlc_googlenet"
solver_mode: GPU
`
	assert.Equal(t, expected, string(MarshalDescription(DefaultConfig())))
}

func TestDescription_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "halved learning rates", mutate: func(c *Config) { c.BaseLR = 0.000625 }},
		{name: "tiny learning rate uses exponent", mutate: func(c *Config) { c.BaseLR = 0.01 / 1024 }},
		{name: "cpu mode with test initialization", mutate: func(c *Config) {
			c.SolverMode = ModeCPU
			c.TestInitialization = true
		}},
		{name: "strings with quotes and spaces", mutate: func(c *Config) {
			c.Net = `model dir/"net".prototxt`
			c.SnapshotPrefix = "snapshot/google net"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(&cfg)

			parsed, err := UnmarshalDescription(MarshalDescription(cfg))
			require.NoError(t, err)
			if diff := cmp.Diff(cfg, parsed); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMarshalDescription_QuotesOnlyStringKeys(t *testing.T) {
	t.Parallel()

	quoted := map[string]bool{"net": true, "lr_policy": true, "snapshot_prefix": true}
	for _, line := range strings.Split(strings.TrimSpace(string(MarshalDescription(DefaultConfig()))), "\n") {
		key, value, ok := strings.Cut(line, ": ")
		require.True(t, ok, line)
		assert.Equal(t, quoted[key], strings.HasPrefix(value, `"`), "key %s", key)
	}
}

func TestUnmarshalDescription_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		input         string
		errorContains string
	}{
		{name: "missing separator", input: "max_iter 100\n", errorContains: "expected"},
		{name: "unknown key", input: "warmup: 3\n", errorContains: "unknown key"},
		{name: "unquoted string key", input: "net: model/train_val.prototxt\n", errorContains: "must be a quoted string"},
		{name: "quoted numeric key", input: "max_iter: \"100\"\n", errorContains: "must not be quoted"},
		{name: "bad number", input: "base_lr: fast\n", errorContains: "base_lr"},
		{name: "bad mode", input: "solver_mode: TPU\n", errorContains: "unknown solver mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := UnmarshalDescription([]byte(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestUnmarshalDescription_SkipsBlankAndComments(t *testing.T) {
	t.Parallel()

	cfg, err := UnmarshalDescription([]byte("# generated\n\nmax_iter: 400\n  base_lr: 0.005  \n"))
	require.NoError(t, err)
	assert.Equal(t, 400, cfg.MaxIter)
	assert.InDelta(t, 0.005, cfg.BaseLR, 1e-12)
}

func TestConfig_SnapshotFile(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxIter = 1600
	assert.Equal(t, "snapshot/bvlc_googlenet_iter_1600.caffemodel", cfg.SnapshotFile())
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.SolverMode = "TPU"
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.BaseLR = 0
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.Net = ""
	assert.Error(t, bad.Validate())
}

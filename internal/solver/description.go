package solver

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// DescriptionFileName is the solver description written into the project's model directory
const DescriptionFileName = "solver.prototxt"

// descriptionField binds one solver description key to a Config field
type descriptionField struct {
	key    string
	quoted bool
	format func(c *Config) string
	parse  func(c *Config, raw string) error
}

func intField(key string, ptr func(c *Config) *int) descriptionField {
	return descriptionField{
		key:    key,
		format: func(c *Config) string { return strconv.Itoa(*ptr(c)) },
		parse: func(c *Config, raw string) error {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return err
			}
			*ptr(c) = v
			return nil
		},
	}
}

func floatField(key string, ptr func(c *Config) *float64) descriptionField {
	return descriptionField{
		key:    key,
		format: func(c *Config) string { return strconv.FormatFloat(*ptr(c), 'g', -1, 64) },
		parse: func(c *Config, raw string) error {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return err
			}
			*ptr(c) = v
			return nil
		},
	}
}

func stringField(key string, ptr func(c *Config) *string) descriptionField {
	return descriptionField{
		key:    key,
		quoted: true,
		format: func(c *Config) string { return *ptr(c) },
		parse: func(c *Config, raw string) error {
			*ptr(c) = raw
			return nil
		},
	}
}

// descriptionFields lists the keys in the order the trainer expects them
var descriptionFields = []descriptionField{
	stringField("net", func(c *Config) *string { return &c.Net }),
	intField("test_iter", func(c *Config) *int { return &c.TestIter }),
	intField("test_interval", func(c *Config) *int { return &c.TestInterval }),
	{
		key:    "test_initialization",
		format: func(c *Config) string { return strconv.FormatBool(c.TestInitialization) },
		parse: func(c *Config, raw string) error {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				return err
			}
			c.TestInitialization = v
			return nil
		},
	},
	intField("display", func(c *Config) *int { return &c.Display }),
	intField("average_loss", func(c *Config) *int { return &c.AverageLoss }),
	floatField("base_lr", func(c *Config) *float64 { return &c.BaseLR }),
	stringField("lr_policy", func(c *Config) *string { return &c.LRPolicy }),
	intField("stepsize", func(c *Config) *int { return &c.StepSize }),
	floatField("gamma", func(c *Config) *float64 { return &c.Gamma }),
	intField("max_iter", func(c *Config) *int { return &c.MaxIter }),
	floatField("momentum", func(c *Config) *float64 { return &c.Momentum }),
	floatField("weight_decay", func(c *Config) *float64 { return &c.WeightDecay }),
	intField("snapshot", func(c *Config) *int { return &c.Snapshot }),
	stringField("snapshot_prefix", func(c *Config) *string { return &c.SnapshotPrefix }),
	{
		key:    "solver_mode",
		format: func(c *Config) string { return string(c.SolverMode) },
		parse: func(c *Config, raw string) error {
			switch Mode(raw) {
			case ModeCPU, ModeGPU:
				c.SolverMode = Mode(raw)
				return nil
			}
			return fmt.Errorf("unknown solver mode %q", raw)
		},
	},
}

// MarshalDescription renders c in the solver description format: one
// "key: value" per line, string keys quoted and everything else bare.
func MarshalDescription(c Config) []byte {
	var buf bytes.Buffer
	for _, f := range descriptionFields {
		value := f.format(&c)
		if f.quoted {
			value = strconv.Quote(value)
		}
		fmt.Fprintf(&buf, "%s: %s\n", f.key, value)
	}
	return buf.Bytes()
}

// UnmarshalDescription parses a solver description. Keys that are absent keep
// their zero value; unknown keys and type mismatches are errors.
func UnmarshalDescription(data []byte) (Config, error) {
	byKey := make(map[string]descriptionField, len(descriptionFields))
	for _, f := range descriptionFields {
		byKey[f.key] = f
	}

	var c Config
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, raw, ok := strings.Cut(line, ":")
		if !ok {
			return Config{}, fmt.Errorf("line %d: expected \"key: value\", got %q", lineNo, line)
		}
		key = strings.TrimSpace(key)
		raw = strings.TrimSpace(raw)

		f, known := byKey[key]
		if !known {
			return Config{}, fmt.Errorf("line %d: unknown key %q", lineNo, key)
		}

		isQuoted := len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"'
		if f.quoted != isQuoted {
			if f.quoted {
				return Config{}, fmt.Errorf("line %d: %s must be a quoted string", lineNo, key)
			}
			return Config{}, fmt.Errorf("line %d: %s must not be quoted", lineNo, key)
		}
		if isQuoted {
			unquoted, err := strconv.Unquote(raw)
			if err != nil {
				return Config{}, fmt.Errorf("line %d: %s: %w", lineNo, key, err)
			}
			raw = unquoted
		}

		if err := f.parse(&c, raw); err != nil {
			return Config{}, fmt.Errorf("line %d: %s: %w", lineNo, key, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return Config{}, fmt.Errorf("failed to read solver description: %w", err)
	}

	return c, nil
}

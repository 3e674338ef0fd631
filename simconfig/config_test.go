package simconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestParseConfigOverridesDefaults(t *testing.T) {
	path := writeScenario(t, `
protocol: selective-repeat
maxSeq: 15
errorProb: 0.1
lossProb: 0.05
minDelayMs: 10
maxDelayMs: 40
timeoutMs: 200
ackTimeoutMs: 80
payloadA: "abc"
payloadB: "def"
repeat: 3
`)
	cfg, err := ParseConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "selective-repeat", cfg.Protocol)
	assert.Equal(t, 15, cfg.MaxSeq)
	assert.Equal(t, 0.1, cfg.ErrorProb)
	assert.Equal(t, 0.05, cfg.LossProb)
	assert.Equal(t, 10, cfg.MinDelayMs)
	assert.Equal(t, 40, cfg.MaxDelayMs)
	assert.Equal(t, 200, cfg.TimeoutMs)
	assert.Equal(t, 80, cfg.AckTimeoutMs)
	assert.Equal(t, "abc", cfg.PayloadA)
	assert.Equal(t, "def", cfg.PayloadB)
	assert.Equal(t, 3, cfg.Repeat)
}

func TestParseConfigKeepsDefaultsForMissingFields(t *testing.T) {
	path := writeScenario(t, "protocol: utopia\n")
	cfg, err := ParseConfig(path)
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, "utopia", cfg.Protocol)
	assert.Equal(t, def.MaxSeq, cfg.MaxSeq)
	assert.Equal(t, def.MinDelayMs, cfg.MinDelayMs)
	assert.Equal(t, def.MaxDelayMs, cfg.MaxDelayMs)
	assert.Equal(t, def.PayloadA, cfg.PayloadA)
	assert.Equal(t, def.Repeat, cfg.Repeat)
}

func TestParseConfigMissingFile(t *testing.T) {
	_, err := ParseConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestParseConfigMalformedYAML(t *testing.T) {
	path := writeScenario(t, "protocol: [unclosed\n")
	_, err := ParseConfig(path)
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty protocol", func(c *Config) { c.Protocol = "" }},
		{"maxSeq zero", func(c *Config) { c.MaxSeq = 0 }},
		{"errorProb above one", func(c *Config) { c.ErrorProb = 1.5 }},
		{"lossProb negative", func(c *Config) { c.LossProb = -0.1 }},
		{"inverted delay bounds", func(c *Config) { c.MinDelayMs = 100; c.MaxDelayMs = 50 }},
		{"negative minDelay", func(c *Config) { c.MinDelayMs = -1 }},
		{"negative timeout", func(c *Config) { c.TimeoutMs = -5 }},
		{"negative repeat", func(c *Config) { c.Repeat = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

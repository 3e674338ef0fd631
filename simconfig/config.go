package simconfig

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config describes one simulation scenario, typically loaded from a YAML
// file. Delays and timeouts are in milliseconds.
type Config struct {
	Protocol     string  `yaml:"protocol"`
	MaxSeq       int     `yaml:"maxSeq"`
	ErrorProb    float64 `yaml:"errorProb"`
	LossProb     float64 `yaml:"lossProb"`
	MinDelayMs   int     `yaml:"minDelayMs"`
	MaxDelayMs   int     `yaml:"maxDelayMs"`
	TimeoutMs    int     `yaml:"timeoutMs"`
	AckTimeoutMs int     `yaml:"ackTimeoutMs"`
	PayloadA     string  `yaml:"payloadA"`
	PayloadB     string  `yaml:"payloadB"`
	Repeat       int     `yaml:"repeat"`
}

// DefaultConfig returns the scenario used when no file is given.
func DefaultConfig() Config {
	return Config{
		Protocol:   "go-back-n",
		MaxSeq:     7,
		ErrorProb:  0.0,
		LossProb:   0.0,
		MinDelayMs: 50,
		MaxDelayMs: 150,
		PayloadA:   "HELLO FROM A HELLO FROM A HELLO FROM A ",
		PayloadB:   "HELLO FROM B HELLO FROM B HELLO FROM B ",
		Repeat:     2,
	}
}

// ParseConfig reads and validates a scenario file. Fields missing from the
// file keep their defaults.
func ParseConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading scenario file %s", path)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing scenario file %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid scenario file %s", path)
	}
	return &cfg, nil
}

// Validate checks the ranges the simulator depends on.
func (cfg *Config) Validate() error {
	if cfg.Protocol == "" {
		return errors.New("protocol must be set")
	}
	if cfg.MaxSeq < 1 {
		return errors.New("maxSeq must be at least 1")
	}
	if cfg.ErrorProb < 0 || cfg.ErrorProb > 1 {
		return errors.Errorf("errorProb %v out of range [0,1]", cfg.ErrorProb)
	}
	if cfg.LossProb < 0 || cfg.LossProb > 1 {
		return errors.Errorf("lossProb %v out of range [0,1]", cfg.LossProb)
	}
	if cfg.MinDelayMs < 0 || cfg.MaxDelayMs < cfg.MinDelayMs {
		return errors.Errorf("delay bounds %d..%d ms are not a valid range", cfg.MinDelayMs, cfg.MaxDelayMs)
	}
	if cfg.TimeoutMs < 0 || cfg.AckTimeoutMs < 0 {
		return errors.New("timer intervals must not be negative")
	}
	if cfg.Repeat < 0 {
		return errors.New("repeat must not be negative")
	}
	return nil
}

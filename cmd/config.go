package cmd

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	z "go.dedis.ch/syfer/internal/testing"
	"go.dedis.ch/syfer/ring"
)

// Config is the YAML node configuration.
type Config struct {
	// Listen is the UDP address the node binds to. Port 0 picks a free one.
	Listen string `yaml:"listen"`

	Modulus      uint64 `yaml:"modulus"`
	FracBits     uint   `yaml:"fracBits"`
	CompareBits  uint   `yaml:"compareBits"`
	SecurityBits uint   `yaml:"securityBits"`

	AckTimeout string `yaml:"ackTimeout"`
	Heartbeat  string `yaml:"heartbeat"`
	LeaseTTL   string `yaml:"leaseTTL"`

	// Peers are announced and keyed at startup.
	Peers []string `yaml:"peers"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Listen:       "127.0.0.1:0",
		Modulus:      ring.DefaultModulus,
		FracBits:     16,
		CompareBits:  32,
		SecurityBits: 20,
		AckTimeout:   "30s",
	}
}

// LoadConfig reads a YAML file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(raw, &cfg)
	return cfg, err
}

func (c Config) options() ([]z.Option, error) {
	opts := []z.Option{
		z.WithModulus(c.Modulus),
		z.WithFracBits(c.FracBits),
		z.WithCompareBits(c.CompareBits),
		z.WithSecurityBits(c.SecurityBits),
	}

	for _, d := range []struct {
		raw string
		opt func(time.Duration) z.Option
	}{
		{c.AckTimeout, z.WithAckTimeout},
		{c.Heartbeat, z.WithHeartbeat},
		{c.LeaseTTL, z.WithLeaseTTL},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return nil, err
		}
		opts = append(opts, d.opt(parsed))
	}

	return opts, nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Config struct {
	RPCAddress      string         `toml:"RPCAddress" yaml:"RPCAddress"`
	RPCReadTimeout  int            `toml:"RPCReadTimeout" yaml:"RPCReadTimeout"`
	RPCWriteTimeout int            `toml:"RPCWriteTimeout" yaml:"RPCWriteTimeout"`
	RPCIdleTimeout  int            `toml:"RPCIdleTimeout" yaml:"RPCIdleTimeout"`
	RPCMaxBodyBytes int64          `toml:"RPCMaxBodyBytes" yaml:"RPCMaxBodyBytes"`
	DataDir         string         `toml:"DataDir" yaml:"DataDir"`
	Env             string         `toml:"Env" yaml:"Env"`
	LogLevel        string         `toml:"LogLevel" yaml:"LogLevel"`
	LogFile         string         `toml:"LogFile" yaml:"LogFile"`
	Auth            Auth           `toml:"auth" yaml:"auth"`
	RateLimit       RateLimit      `toml:"rate_limit" yaml:"rate_limit"`
	Pauses          Pauses         `toml:"pauses" yaml:"pauses"`
	Campaigns       []CampaignConfig `toml:"campaigns" yaml:"campaigns"`
}

const (
	DefaultRPCAddress      = "127.0.0.1:8545"
	DefaultRPCReadTimeout  = 15
	DefaultRPCWriteTimeout = 15
	DefaultRPCIdleTimeout  = 60
	DefaultRPCMaxBodyBytes = 1 << 20
	DefaultDataDir         = "./crowdfund-data"
	DefaultRequestsPerMin  = 120
	DefaultBurst           = 20
	DefaultClockSkew       = 30
)

// Load loads the configuration from the given path. TOML is the default
// format; files ending in .yaml or .yml are decoded as YAML. A default TOML
// file is created when path does not exist.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if isYAML(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		dec := yaml.NewDecoder(strings.NewReader(string(data)))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config: unknown field %s in %s", undecoded[0].String(), path)
		}
	}
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration populated with defaults.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = DefaultRPCAddress
	}
	if c.RPCReadTimeout <= 0 {
		c.RPCReadTimeout = DefaultRPCReadTimeout
	}
	if c.RPCWriteTimeout <= 0 {
		c.RPCWriteTimeout = DefaultRPCWriteTimeout
	}
	if c.RPCIdleTimeout <= 0 {
		c.RPCIdleTimeout = DefaultRPCIdleTimeout
	}
	if c.RPCMaxBodyBytes <= 0 {
		c.RPCMaxBodyBytes = DefaultRPCMaxBodyBytes
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = DefaultDataDir
	}
	if strings.TrimSpace(c.Env) == "" {
		c.Env = "local"
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = "info"
	}
	if c.RateLimit.RequestsPerMinute == 0 {
		c.RateLimit.RequestsPerMinute = DefaultRequestsPerMin
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = DefaultBurst
	}
	if c.Auth.ClockSkewSeconds == 0 {
		c.Auth.ClockSkewSeconds = DefaultClockSkew
	}
	if c.Campaigns == nil {
		c.Campaigns = []CampaignConfig{}
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		defer enc.Close()
		return enc.Encode(cfg)
	}
	return toml.NewEncoder(f).Encode(cfg)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

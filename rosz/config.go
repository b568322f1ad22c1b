package rosz

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read by Build.
const (
	EnvDomainID      = "ROS_DOMAIN_ID"
	EnvSessionConfig = "ROSZ_SESSION_CONFIG_URI"
)

// DefaultNATSEndpoint is used in ModeNATS when no endpoint is configured.
const DefaultNATSEndpoint = "nats://localhost:4222"

// Mode selects the transport a context connects with.
type Mode string

const (
	// ModeMemory uses the process-wide in-memory bus (default)
	ModeMemory Mode = "memory"
	// ModeNATS connects to a NATS server
	ModeNATS Mode = "nats"
)

// Config is the file form of the context configuration.
//
//	domain_id: 3
//	mode: nats
//	connect: [nats://10.0.0.2:4222]
//	connect_timeout: 2s
//	enclave: /secure
//	remap: ["chatter:=/talk"]
//	params_files: [params.yaml]
//	log_level: INFO
type Config struct {
	DomainID       *uint32       `yaml:"domain_id,omitempty"`
	Mode           Mode          `yaml:"mode,omitempty"`
	Connect        []string      `yaml:"connect,omitempty"`
	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty"`
	Enclave        string        `yaml:"enclave,omitempty"`
	Remap          []string      `yaml:"remap,omitempty"`
	ParamsFiles    []string      `yaml:"params_files,omitempty"`
	LogLevel       string        `yaml:"log_level,omitempty"`
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wrapError(ErrorCodeInvalidConfig, err, "failed to read config file %s", path)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, wrapError(ErrorCodeInvalidConfig, err, "failed to parse config file %s", path)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Mode {
	case "", ModeMemory, ModeNATS:
	default:
		return NewRoszError(ErrorCodeInvalidConfig, fmt.Sprintf("unknown mode %q", c.Mode))
	}
	return nil
}

func (c Config) applyDefaults() Config {
	if c.DomainID == nil {
		var zero uint32
		c.DomainID = &zero
	}
	if c.Mode == "" {
		c.Mode = ModeMemory
	}
	if c.Mode == ModeNATS && len(c.Connect) == 0 {
		c.Connect = []string{DefaultNATSEndpoint}
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	return c
}

// domainFromEnv parses ROS_DOMAIN_ID. It returns nil when unset.
func domainFromEnv() (*uint32, error) {
	v := os.Getenv(EnvDomainID)
	if v == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return nil, wrapError(ErrorCodeInvalidConfig, err, "invalid %s %q", EnvDomainID, v)
	}
	d := uint32(id)
	return &d, nil
}

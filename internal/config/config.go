// Package config defines the agent configuration, loadable from an optional
// YAML file with CLI flags taking precedence.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML either as a duration
// string ("30s") or as a bare number of seconds, matching the original flag
// behavior.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var seconds float64
	if err := value.Decode(&seconds); err == nil {
		*d = Duration(time.Duration(seconds * float64(time.Second)))
		return nil
	}
	var text string
	if err := value.Decode(&text); err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full agent configuration.
type Config struct {
	Listen     ListenConfig     `yaml:"listen"`
	TLS        TLSConfig        `yaml:"tls"`
	Controller ControllerConfig `yaml:"controller"`
	Reload     ReloadConfig     `yaml:"reload"`
	Log        LogConfig        `yaml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ListenConfig is the gNMI listener address.
type ListenConfig struct {
	Addr string `yaml:"addr"`
	Port int    `yaml:"port"`
}

// HostPort renders the listen address as host:port.
func (l ListenConfig) HostPort() string {
	return fmt.Sprintf("%s:%d", l.Addr, l.Port)
}

// TLSConfig holds the server certificate and key paths.
type TLSConfig struct {
	CertFile string `yaml:"cert"`
	KeyFile  string `yaml:"key"`
}

// ControllerConfig describes the managed FAUCET process.
type ControllerConfig struct {
	// ConfigFile is the configuration file shared between agent and
	// controller.
	ConfigFile string `yaml:"config_file"`

	// StatusAddr/StatusPort locate the controller's prometheus endpoint.
	StatusAddr string `yaml:"status_addr"`
	StatusPort int    `yaml:"status_port"`
}

// StatusURL renders the controller's prometheus endpoint URL.
func (c ControllerConfig) StatusURL() string {
	return fmt.Sprintf("%s:%d", c.StatusAddr, c.StatusPort)
}

// ReloadConfig tunes the reload coordinator.
type ReloadConfig struct {
	// Timeout bounds a write-and-reload attempt.
	Timeout Duration `yaml:"timeout"`

	// PollInterval is the status poll cadence.
	PollInterval Duration `yaml:"poll_interval"`

	// DPWaitFraction is the fraction of datapaths that must acknowledge a
	// new configuration before a Set is reported successful.
	DPWaitFraction float64 `yaml:"dp_wait_fraction"`

	// NoHUP disables the reload signal; the controller is assumed to
	// stat-poll its config file itself.
	NoHUP bool `yaml:"nohup"`
}

// LogConfig selects log level and format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the agent's own metrics endpoint. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Addr: "[::]", Port: 9339},
		Controller: ControllerConfig{
			StatusAddr: "http://localhost",
			StatusPort: 9302,
		},
		Reload: ReloadConfig{
			Timeout:      Duration(120 * time.Second),
			PollInterval: Duration(time.Second),
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads a YAML configuration file over the defaults. Unknown fields are
// rejected so typos fail loudly instead of silently using a default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for completeness and range errors.
func (c *Config) Validate() error {
	if c.TLS.CertFile == "" {
		return fmt.Errorf("tls.cert is required")
	}
	if c.TLS.KeyFile == "" {
		return fmt.Errorf("tls.key is required")
	}
	if c.Controller.ConfigFile == "" {
		return fmt.Errorf("controller.config_file is required")
	}
	if c.Listen.Port <= 0 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port %d out of range", c.Listen.Port)
	}
	if c.Controller.StatusPort <= 0 || c.Controller.StatusPort > 65535 {
		return fmt.Errorf("controller.status_port %d out of range", c.Controller.StatusPort)
	}
	if c.Reload.DPWaitFraction < 0 || c.Reload.DPWaitFraction > 1 {
		return fmt.Errorf("reload.dp_wait_fraction %v must be within [0, 1]", c.Reload.DPWaitFraction)
	}
	if c.Reload.Timeout <= 0 {
		return fmt.Errorf("reload.timeout must be positive")
	}
	if c.Reload.PollInterval <= 0 {
		return fmt.Errorf("reload.poll_interval must be positive")
	}
	return nil
}

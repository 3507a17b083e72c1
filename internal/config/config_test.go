package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func validConfig() *Config {
	cfg := Default()
	cfg.TLS.CertFile = "agent.crt"
	cfg.TLS.KeyFile = "agent.key"
	cfg.Controller.ConfigFile = "/etc/faucet.yaml"
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	if got := cfg.Listen.HostPort(); got != "[::]:9339" {
		t.Errorf("listen = %q", got)
	}
	if got := cfg.Controller.StatusURL(); got != "http://localhost:9302" {
		t.Errorf("status URL = %q", got)
	}
	if cfg.Reload.Timeout.Std() != 120*time.Second {
		t.Errorf("timeout = %v", cfg.Reload.Timeout)
	}
	if cfg.Reload.PollInterval.Std() != time.Second {
		t.Errorf("poll interval = %v", cfg.Reload.PollInterval)
	}
	if cfg.Reload.DPWaitFraction != 0 {
		t.Errorf("dp_wait_fraction = %v", cfg.Reload.DPWaitFraction)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
tls:
  cert: /certs/agent.crt
  key: /certs/agent.key
controller:
  config_file: /etc/faucet/faucet.yaml
  status_port: 9402
reload:
  timeout: 30s
  dp_wait_fraction: 0.5
  nohup: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Controller.StatusURL() != "http://localhost:9402" {
		t.Errorf("status URL = %q", cfg.Controller.StatusURL())
	}
	if cfg.Reload.Timeout.Std() != 30*time.Second {
		t.Errorf("timeout = %v", cfg.Reload.Timeout)
	}
	if !cfg.Reload.NoHUP {
		t.Error("nohup not set")
	}
	if cfg.Listen.Port != 9339 {
		t.Errorf("unrelated default clobbered: port = %d", cfg.Listen.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestDurationAcceptsBareSeconds(t *testing.T) {
	path := writeConfig(t, "reload:\n  timeout: 120\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Reload.Timeout.Std() != 120*time.Second {
		t.Errorf("timeout = %v, want 120s", cfg.Reload.Timeout.Std())
	}
}

func TestDurationRejectsGarbage(t *testing.T) {
	path := writeConfig(t, "reload:\n  timeout: soon\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unparseable duration")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
listen:
  addr: "[::]"
  prot: 9339
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidateRequiredFields(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing cert", func(c *Config) { c.TLS.CertFile = "" }, "tls.cert"},
		{"missing key", func(c *Config) { c.TLS.KeyFile = "" }, "tls.key"},
		{"missing config file", func(c *Config) { c.Controller.ConfigFile = "" }, "config_file"},
		{"bad listen port", func(c *Config) { c.Listen.Port = 0 }, "listen.port"},
		{"bad status port", func(c *Config) { c.Controller.StatusPort = 70000 }, "status_port"},
		{"fraction above one", func(c *Config) { c.Reload.DPWaitFraction = 1.5 }, "dp_wait_fraction"},
		{"negative fraction", func(c *Config) { c.Reload.DPWaitFraction = -0.1 }, "dp_wait_fraction"},
		{"zero timeout", func(c *Config) { c.Reload.Timeout = 0 }, "timeout"},
		{"zero poll interval", func(c *Config) { c.Reload.PollInterval = 0 }, "poll_interval"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

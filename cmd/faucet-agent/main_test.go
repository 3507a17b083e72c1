package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeAgentConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const baseConfig = `
tls:
  cert: /certs/agent.crt
  key: /certs/agent.key
controller:
  config_file: /etc/faucet.yaml
  status_port: 9402
reload:
  timeout: 30s
`

func TestResolveConfigReadsFile(t *testing.T) {
	cmd := newServeCmd()
	cfg, err := resolveConfig(cmd, writeAgentConfig(t, baseConfig))
	if err != nil {
		t.Fatalf("resolveConfig: %v", err)
	}
	if cfg.Controller.StatusPort != 9402 {
		t.Errorf("status port = %d, want 9402", cfg.Controller.StatusPort)
	}
	if cfg.Reload.Timeout.Std() != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", cfg.Reload.Timeout)
	}
}

func TestResolveConfigFlagsOverrideFile(t *testing.T) {
	cmd := newServeCmd()
	for name, value := range map[string]string{
		"status-port": "9500",
		"timeout":     "45s",
		"nohup":       "true",
	} {
		if err := cmd.Flags().Set(name, value); err != nil {
			t.Fatalf("set flag %s: %v", name, err)
		}
	}

	cfg, err := resolveConfig(cmd, writeAgentConfig(t, baseConfig))
	if err != nil {
		t.Fatalf("resolveConfig: %v", err)
	}
	if cfg.Controller.StatusPort != 9500 {
		t.Errorf("status port = %d, want flag value 9500", cfg.Controller.StatusPort)
	}
	if cfg.Reload.Timeout.Std() != 45*time.Second {
		t.Errorf("timeout = %v, want flag value 45s", cfg.Reload.Timeout)
	}
	if !cfg.Reload.NoHUP {
		t.Error("nohup flag not applied")
	}
	// Values with no flag set keep the file's values.
	if cfg.TLS.CertFile != "/certs/agent.crt" {
		t.Errorf("cert = %q", cfg.TLS.CertFile)
	}
}

func TestResolveConfigRequiresCertAndConfigFile(t *testing.T) {
	cmd := newServeCmd()
	_, err := resolveConfig(cmd, "")
	if err == nil {
		t.Fatal("expected validation error with no cert/key/config-file")
	}
	if !strings.Contains(err.Error(), "tls.cert") {
		t.Errorf("error %q does not mention tls.cert", err)
	}
}

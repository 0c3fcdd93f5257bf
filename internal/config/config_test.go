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
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Basic(t *testing.T) {
	path := writeConfig(t, `
instance:
  id: gw-test-1
  az: local
server:
  addr: ":9090"
  ws_path: /socket
hub:
  heartbeat_interval: 10s
  liveness_timeout: 30s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Instance.ID != "gw-test-1" {
		t.Errorf("Instance.ID = %s, want gw-test-1", cfg.Instance.ID)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("Server.Addr = %s, want :9090", cfg.Server.Addr)
	}
	if cfg.Server.WSPath != "/socket" {
		t.Errorf("Server.WSPath = %s, want /socket", cfg.Server.WSPath)
	}
	if cfg.Hub.HeartbeatInterval != 10*time.Second {
		t.Errorf("Hub.HeartbeatInterval = %v, want 10s", cfg.Hub.HeartbeatInterval)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("GW_TEST_PASSWORD", "sekret")

	path := writeConfig(t, `
instance:
  id: gw-test-1
database:
  postgres:
    host: localhost
    name: assistant
    user: gateway
    password: ${GW_TEST_PASSWORD}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Postgres.Password != "sekret" {
		t.Errorf("Password = %s, want sekret", cfg.Database.Postgres.Password)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() error = nil, want error for missing file")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeConfig(t, `
instance:
  id: gw-test-1
`)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults() error = %v", err)
	}

	if cfg.Server.Addr != DefaultAddr {
		t.Errorf("Server.Addr = %s, want %s", cfg.Server.Addr, DefaultAddr)
	}
	if cfg.Server.WSPath != DefaultWSPath {
		t.Errorf("Server.WSPath = %s, want %s", cfg.Server.WSPath, DefaultWSPath)
	}
	if cfg.Hub.HeartbeatInterval != DefaultHeartbeatInterval {
		t.Errorf("Hub.HeartbeatInterval = %v, want %v", cfg.Hub.HeartbeatInterval, DefaultHeartbeatInterval)
	}
	if cfg.Hub.LivenessTimeout != DefaultLivenessTimeout {
		t.Errorf("Hub.LivenessTimeout = %v, want %v", cfg.Hub.LivenessTimeout, DefaultLivenessTimeout)
	}
	if cfg.Archive.BatchSize != DefaultBatchSize {
		t.Errorf("Archive.BatchSize = %d, want %d", cfg.Archive.BatchSize, DefaultBatchSize)
	}

	// No database host configured, so DB defaults stay unset
	if cfg.Database.Postgres.Port != 0 {
		t.Errorf("Postgres.Port = %d, want 0 without host", cfg.Database.Postgres.Port)
	}
}

func TestLoadWithDefaults_DBDefaults(t *testing.T) {
	path := writeConfig(t, `
instance:
  id: gw-test-1
database:
  postgres:
    host: localhost
    name: assistant
    user: gateway
    password: pw
`)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults() error = %v", err)
	}

	if cfg.Database.Postgres.Port != DefaultDBPort {
		t.Errorf("Postgres.Port = %d, want %d", cfg.Database.Postgres.Port, DefaultDBPort)
	}
	if cfg.Database.Postgres.SSLMode != DefaultDBSSLMode {
		t.Errorf("Postgres.SSLMode = %s, want %s", cfg.Database.Postgres.SSLMode, DefaultDBSSLMode)
	}
	if cfg.Database.Postgres.MaxConns != DefaultMaxConns {
		t.Errorf("Postgres.MaxConns = %d, want %d", cfg.Database.Postgres.MaxConns, DefaultMaxConns)
	}
}

func TestLoadAndValidate_Valid(t *testing.T) {
	path := writeConfig(t, `
instance:
  id: gw-test-1
`)

	if _, err := LoadAndValidate(path); err != nil {
		t.Fatalf("LoadAndValidate() error = %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*GatewayConfig)
		wantSub string
	}{
		{
			name:    "missing instance id",
			mutate:  func(c *GatewayConfig) { c.Instance.ID = "" },
			wantSub: "instance.id",
		},
		{
			name:    "liveness shorter than heartbeat",
			mutate:  func(c *GatewayConfig) { c.Hub.LivenessTimeout = 5 * time.Second },
			wantSub: "liveness_timeout",
		},
		{
			name: "db missing password",
			mutate: func(c *GatewayConfig) {
				c.Database.Postgres = DBConfig{
					Host: "localhost", Name: "db", User: "u", MaxConns: 5,
				}
			},
			wantSub: "password",
		},
		{
			name: "db min conns over max",
			mutate: func(c *GatewayConfig) {
				c.Database.Postgres = DBConfig{
					Host: "localhost", Name: "db", User: "u", Password: "pw",
					MaxConns: 2, MinConns: 5,
				}
			},
			wantSub: "min_conns",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &GatewayConfig{
				Instance: InstanceConfig{ID: "gw-test-1"},
			}
			cfg.applyDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantSub)
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error = %q, want substring %q", err.Error(), tt.wantSub)
			}
		})
	}
}

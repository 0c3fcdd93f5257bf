package config

import "time"

// GatewayConfig is the root configuration for a gateway instance.
type GatewayConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Server   ServerConfig   `yaml:"server"`
	Hub      HubConfig      `yaml:"hub"`
	Database DatabaseConfig `yaml:"database"`
	Archive  ArchiveConfig  `yaml:"archive"`
}

// InstanceConfig identifies this gateway.
type InstanceConfig struct {
	ID string `yaml:"id"`
	AZ string `yaml:"az"`
}

// ServerConfig holds the HTTP/WebSocket listener settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`             // listen address (e.g., ":8080")
	WSPath          string        `yaml:"ws_path"`          // WebSocket endpoint path
	AllowedOrigins  []string      `yaml:"allowed_origins"`  // empty = reject browser origins, "*" = allow all
	MaxMessageSize  int64         `yaml:"max_message_size"` // read limit in bytes
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AuthSecret      string        `yaml:"auth_secret"` // empty = tokens not accepted, identity from query params
}

// HubConfig holds connection registry and liveness settings.
type HubConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"` // PING sweep interval
	LivenessTimeout   time.Duration `yaml:"liveness_timeout"`   // max silence before eviction
	WriteTimeout      time.Duration `yaml:"write_timeout"`      // write deadline for sends
}

// DatabaseConfig holds the optional Postgres connection for chat archival.
// The gateway runs fully in-memory when no host is configured.
type DatabaseConfig struct {
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// ArchiveConfig holds chat archive batch writer settings.
type ArchiveConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

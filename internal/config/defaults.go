package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAddr              = ":8080"
	DefaultWSPath            = "/ws"
	DefaultMaxMessageSize    = 64 * 1024
	DefaultShutdownTimeout   = 30 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultLivenessTimeout   = 90 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 10
	DefaultMinConns          = 2
	DefaultBatchSize         = 500
	DefaultFlushInterval     = 1 * time.Second
	DefaultBufferSize        = 10000
)

func (c *GatewayConfig) applyDefaults() {
	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.WSPath == "" {
		c.Server.WSPath = DefaultWSPath
	}
	if c.Server.MaxMessageSize == 0 {
		c.Server.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Hub defaults
	if c.Hub.HeartbeatInterval == 0 {
		c.Hub.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Hub.LivenessTimeout == 0 {
		c.Hub.LivenessTimeout = DefaultLivenessTimeout
	}
	if c.Hub.WriteTimeout == 0 {
		c.Hub.WriteTimeout = DefaultWriteTimeout
	}

	// Database defaults (only when archival is configured)
	if c.Database.Postgres.Host != "" {
		applyDBDefaults(&c.Database.Postgres)
	}

	// Archive defaults
	if c.Archive.BatchSize == 0 {
		c.Archive.BatchSize = DefaultBatchSize
	}
	if c.Archive.FlushInterval == 0 {
		c.Archive.FlushInterval = DefaultFlushInterval
	}
	if c.Archive.BufferSize == 0 {
		c.Archive.BufferSize = DefaultBufferSize
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

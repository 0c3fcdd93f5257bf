package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *GatewayConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Server.MaxMessageSize < 1 {
		return errors.New("server.max_message_size must be >= 1")
	}

	if c.Hub.HeartbeatInterval <= 0 {
		return errors.New("hub.heartbeat_interval must be positive")
	}
	if c.Hub.LivenessTimeout <= 0 {
		return errors.New("hub.liveness_timeout must be positive")
	}
	if c.Hub.LivenessTimeout < c.Hub.HeartbeatInterval {
		return fmt.Errorf("hub.liveness_timeout (%s) must not be shorter than hub.heartbeat_interval (%s)",
			c.Hub.LivenessTimeout, c.Hub.HeartbeatInterval)
	}

	if c.Database.Postgres.Host != "" {
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
	}

	if c.Archive.BatchSize < 1 {
		return errors.New("archive.batch_size must be >= 1")
	}
	if c.Archive.BufferSize < 1 {
		return errors.New("archive.buffer_size must be >= 1")
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

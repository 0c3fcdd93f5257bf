package database

import (
	"fmt"
	"net/url"

	"github.com/lhchen/assistant-realtime/internal/config"
)

// BuildConnString renders a pgx connection URL from a DBConfig. The
// password is URL-escaped; ssl_mode comes straight from config, where
// defaults fill in prefer whenever a host is set.
func BuildConnString(cfg config.DBConfig) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		url.QueryEscape(cfg.Password),
		cfg.Host,
		cfg.Port,
		cfg.Name,
		cfg.SSLMode,
	)
}

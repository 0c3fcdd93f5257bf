// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// Chat archival is optional: leave database.postgres.host empty to run in-memory only.
package config

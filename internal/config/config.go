// Package config loads runtime settings from an optional TOML file, a .env
// file and the process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Backend selects the persistence gateway.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendFile     Backend = "file"
	BackendPostgres Backend = "postgres"
)

const (
	DefaultPort        = 8080
	DefaultDataFile    = "todos.json"
	DefaultOwnerHeader = "X-User-ID"
	DefaultQueueSize   = 64
)

// Config holds every setting the binaries need.
type Config struct {
	Port      int      `toml:"port"`
	Backend   Backend  `toml:"backend"`
	DataFile  string   `toml:"data_file"`
	LogLevel  string   `toml:"log_level"`
	QueueSize int      `toml:"queue_size"`
	Auth      Auth     `toml:"auth"`
	Database  Database `toml:"database"`
}

// Auth controls how the owner identity is resolved.
type Auth struct {
	// JWTSecret verifies HS256 bearer tokens. Empty disables token auth.
	JWTSecret string `toml:"jwt_secret"`
	// OwnerHeader is trusted as the owner id when JWTSecret is empty.
	OwnerHeader string `toml:"owner_header"`
}

// Database holds the Postgres connection settings.
type Database struct {
	Host     string `toml:"host"`
	Port     string `toml:"port"`
	Name     string `toml:"name"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Schema   string `toml:"schema"`
	SSLMode  string `toml:"sslmode"`
}

// DSN renders the key/value connection string understood by pgx.
func (d Database) DSN() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.Username, d.Password, d.Name, d.Port, sslMode)
	if d.Schema != "" {
		dsn += " search_path=" + d.Schema
	}
	return dsn
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Port:      DefaultPort,
		Backend:   BackendMemory,
		DataFile:  DefaultDataFile,
		LogLevel:  "info",
		QueueSize: DefaultQueueSize,
		Auth:      Auth{OwnerHeader: DefaultOwnerHeader},
		Database:  Database{Host: "localhost", Port: "5432"},
	}
}

// Load reads .env (if present), then the TOML file named by TODO_CONFIG_FILE
// (if set), then applies environment overrides.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return LoadFrom(os.Getenv("TODO_CONFIG_FILE"), os.LookupEnv)
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(string) (string, bool)

// LoadFrom builds a Config from an optional TOML file and an env lookup.
func LoadFrom(path string, lookup LookupFunc) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config file %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = n
		return nil
	}

	if err := integer("PORT", &cfg.Port); err != nil {
		return err
	}
	if err := integer("TODO_QUEUE_SIZE", &cfg.QueueSize); err != nil {
		return err
	}
	if v, ok := lookup("TODO_BACKEND"); ok && v != "" {
		cfg.Backend = Backend(strings.ToLower(v))
	}
	str("TODO_DATA_FILE", &cfg.DataFile)
	str("TODO_LOG_LEVEL", &cfg.LogLevel)
	str("TODO_JWT_SECRET", &cfg.Auth.JWTSecret)
	str("TODO_DEV_OWNER_HEADER", &cfg.Auth.OwnerHeader)

	str("BLUEPRINT_DB_HOST", &cfg.Database.Host)
	str("BLUEPRINT_DB_PORT", &cfg.Database.Port)
	str("BLUEPRINT_DB_DATABASE", &cfg.Database.Name)
	str("BLUEPRINT_DB_USERNAME", &cfg.Database.Username)
	str("BLUEPRINT_DB_PASSWORD", &cfg.Database.Password)
	str("BLUEPRINT_DB_SCHEMA", &cfg.Database.Schema)
	str("BLUEPRINT_DB_SSLMODE", &cfg.Database.SSLMode)
	return nil
}

// Validate rejects settings the binaries cannot run with.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("invalid queue size %d", c.QueueSize)
	}
	switch c.Backend {
	case BackendMemory:
	case BackendFile:
		if c.DataFile == "" {
			return errors.New("file backend requires a data file")
		}
	case BackendPostgres:
		if c.Database.Name == "" {
			return errors.New("postgres backend requires a database name")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Auth.JWTSecret == "" && c.Auth.OwnerHeader == "" {
		return errors.New("either a JWT secret or an owner header is required")
	}
	return nil
}

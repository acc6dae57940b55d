// Package config loads the snippets server configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"snippets/internal/dbclient"
	"snippets/internal/storage"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SNIPPETS_"

// Config holds the full server configuration.
type Config struct {
	LogLevel       string            `yaml:"log_level"`
	DataDir        string            `yaml:"data_dir"`
	Storage        StorageConfig     `yaml:"storage"`
	SnippetBackend string            `yaml:"snippet_backend"` // sql | mongodb
	Mongo          MongoConfig       `yaml:"mongo"`
	Autosave       AutosaveConfig    `yaml:"autosave"`
	Maintenance    MaintenanceConfig `yaml:"maintenance"`
	HTTP           HTTPConfig        `yaml:"http"`
	MDNS           MDNSConfig        `yaml:"mdns"`
	Local          LocalConfig       `yaml:"local"`
	Remote         RemoteConfig      `yaml:"remote"`
}

// StorageConfig locates the SQL database holding the hierarchy.
type StorageConfig struct {
	Driver   string `yaml:"driver"` // sqlite | mysql | postgres
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// PasswordSecret names a secret looked up when Password is empty.
	PasswordSecret string     `yaml:"password_secret"`
	SSLMode        string     `yaml:"sslmode"`
	Pool           PoolConfig `yaml:"pool"`
}

type PoolConfig struct {
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// MongoConfig is used when snippet_backend is mongodb.
type MongoConfig struct {
	Host           string            `yaml:"host"`
	Port           int               `yaml:"port"`
	Database       string            `yaml:"database"`
	Username       string            `yaml:"username"`
	Password       string            `yaml:"password"`
	PasswordSecret string            `yaml:"password_secret"`
	Options        map[string]string `yaml:"options"`
}

type AutosaveConfig struct {
	Delay   time.Duration `yaml:"delay"`
	Timeout time.Duration `yaml:"timeout"`
}

// MaintenanceConfig holds cron expressions; an empty one disables the job.
type MaintenanceConfig struct {
	PruneSchedule string        `yaml:"prune_schedule"`
	ReapSchedule  string        `yaml:"reap_schedule"`
	KeepRevisions int           `yaml:"keep_revisions"`
	MaxIdle       time.Duration `yaml:"max_idle"`
}

type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

type MDNSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance"`
}

type LocalConfig struct {
	Dir string `yaml:"dir"`
}

// RemoteConfig points the editor at another snippets server instead of
// the local services.
type RemoteConfig struct {
	Endpoint string        `yaml:"endpoint"`
	User     string        `yaml:"user"`
	Timeout  time.Duration `yaml:"timeout"`
}

// DefaultDataDir is ~/.local/share/snippets, or ./data without a home.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "data"
	}
	return filepath.Join(home, ".local", "share", "snippets")
}

// DefaultConfig returns sane defaults rooted at DefaultDataDir.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:       "info",
		DataDir:        DefaultDataDir(),
		Storage:        StorageConfig{Driver: storage.DriverSQLite},
		SnippetBackend: dbclient.BackendSQL,
		Autosave: AutosaveConfig{
			Delay:   time.Second,
			Timeout: 10 * time.Second,
		},
		Maintenance: MaintenanceConfig{
			PruneSchedule: "@every 1h",
			ReapSchedule:  "@every 5m",
			KeepRevisions: storage.MaxRevisions,
			MaxIdle:       30 * time.Minute,
		},
		HTTP: HTTPConfig{Listen: ":7420"},
		Remote: RemoteConfig{
			Timeout: 15 * time.Second,
		},
	}
}

// LoadConfig reads a YAML file over DefaultConfig, applies environment
// overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// Load is LoadConfig when path is set, and the defaults plus environment
// otherwise.
func Load(path string) (*Config, error) {
	if path != "" {
		return LoadConfig(path)
	}
	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from SNIPPETS_* variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
		return nil
	}
	dur := func(name string, dst *time.Duration) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
		return nil
	}

	str("LOG_LEVEL", &c.LogLevel)
	str("DATA_DIR", &c.DataDir)
	str("DB_DRIVER", &c.Storage.Driver)
	str("DB_PATH", &c.Storage.Path)
	str("DB_HOST", &c.Storage.Host)
	str("DB_NAME", &c.Storage.Database)
	str("DB_USER", &c.Storage.Username)
	str("DB_PASSWORD", &c.Storage.Password)
	str("DB_SSLMODE", &c.Storage.SSLMode)
	str("SNIPPET_BACKEND", &c.SnippetBackend)
	str("MONGO_HOST", &c.Mongo.Host)
	str("MONGO_DATABASE", &c.Mongo.Database)
	str("MONGO_USER", &c.Mongo.Username)
	str("MONGO_PASSWORD", &c.Mongo.Password)
	str("HTTP_LISTEN", &c.HTTP.Listen)
	str("LOCAL_DIR", &c.Local.Dir)
	str("REMOTE_ENDPOINT", &c.Remote.Endpoint)
	str("REMOTE_USER", &c.Remote.User)
	if v, ok := lookup(EnvPrefix + "MDNS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sMDNS: %w", EnvPrefix, err)
		}
		c.MDNS.Enabled = b
	}
	if err := num("DB_PORT", &c.Storage.Port); err != nil {
		return err
	}
	if err := num("MONGO_PORT", &c.Mongo.Port); err != nil {
		return err
	}
	if err := dur("AUTOSAVE_DELAY", &c.Autosave.Delay); err != nil {
		return err
	}
	return dur("AUTOSAVE_TIMEOUT", &c.Autosave.Timeout)
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log_level %q", c.LogLevel)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	switch c.Storage.Driver {
	case storage.DriverSQLite:
	case storage.DriverMySQL, storage.DriverPostgres:
		if c.Storage.Host == "" {
			return fmt.Errorf("storage.host is required for %s", c.Storage.Driver)
		}
		if c.Storage.Database == "" {
			return fmt.Errorf("storage.database is required for %s", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unsupported storage.driver %q (use sqlite, mysql or postgres)", c.Storage.Driver)
	}
	switch c.SnippetBackend {
	case "", dbclient.BackendSQL:
	case dbclient.BackendMongoDB:
		if c.Mongo.Host == "" {
			return fmt.Errorf("mongo.host is required for the mongodb backend")
		}
	default:
		return fmt.Errorf("unsupported snippet_backend %q (use sql or mongodb)", c.SnippetBackend)
	}
	if c.Autosave.Delay < 0 {
		return fmt.Errorf("autosave.delay must be >= 0")
	}
	if c.Autosave.Timeout < 0 {
		return fmt.Errorf("autosave.timeout must be >= 0")
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, spec := range map[string]string{
		"maintenance.prune_schedule": c.Maintenance.PruneSchedule,
		"maintenance.reap_schedule":  c.Maintenance.ReapSchedule,
	} {
		if spec == "" {
			continue
		}
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if c.Maintenance.KeepRevisions < 0 {
		return fmt.Errorf("maintenance.keep_revisions must be >= 0")
	}
	if c.Remote.Endpoint != "" && !strings.HasPrefix(c.Remote.Endpoint, "http://") && !strings.HasPrefix(c.Remote.Endpoint, "https://") {
		return fmt.Errorf("remote.endpoint must be an http(s) URL")
	}
	return nil
}

// DatabasePath is the SQLite file, defaulting to snippets.db in DataDir.
func (c *Config) DatabasePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	return filepath.Join(c.DataDir, "snippets.db")
}

// LocalDir is where the local document store keeps its files.
func (c *Config) LocalDir() string {
	if c.Local.Dir != "" {
		return c.Local.Dir
	}
	return filepath.Join(c.DataDir, "local")
}

// StorageOptions converts the storage section. password is used when the
// file leaves the password empty.
func (c *Config) StorageOptions(password string) storage.Options {
	s := c.Storage
	if s.Password != "" {
		password = s.Password
	}
	return storage.Options{
		Driver:          s.Driver,
		Path:            c.DatabasePath(),
		Host:            s.Host,
		Port:            s.Port,
		Database:        s.Database,
		Username:        s.Username,
		Password:        password,
		SSLMode:         s.SSLMode,
		MaxOpenConns:    s.Pool.MaxOpenConns,
		MaxIdleConns:    s.Pool.MaxIdleConns,
		ConnMaxLifetime: s.Pool.ConnMaxLifetime,
	}
}

// MongoOptions converts the mongo section.
func (c *Config) MongoOptions(password string) dbclient.MongoOptions {
	m := c.Mongo
	if m.Password != "" {
		password = m.Password
	}
	return dbclient.MongoOptions{
		Host:     m.Host,
		Port:     m.Port,
		Database: m.Database,
		Username: m.Username,
		Password: password,
		Extra:    m.Options,
	}
}

// NewLogger builds the JSON logger for level.
func NewLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

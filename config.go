package showtrack

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every environment variable read by LoadConfig.
const EnvPrefix = "SHOWTRACK_"

// Config is the program configuration. It is read from a JSON file and can be
// overridden from the environment.
type Config struct {
	DB   DBConfig   `json:"db" envPrefix:"DB_"`
	HTTP HTTPConfig `json:"http" envPrefix:"HTTP_"`
	Log  LogConfig  `json:"log" envPrefix:"LOG_"`
}

type DBConfig struct {
	Path        string   `json:"path" env:"PATH"`
	Driver      string   `json:"driver" env:"DRIVER"` // sqlite3 (cgo) or sqlite (pure go)
	ReadOnly    bool     `json:"read_only" env:"READ_ONLY"`
	BusyTimeout Duration `json:"busy_timeout" env:"BUSY_TIMEOUT"`
	LogQueries  bool     `json:"log_queries" env:"LOG_QUERIES"`
}

type HTTPConfig struct {
	Addr string `json:"addr" env:"ADDR"`
}

type LogConfig struct {
	Level  string `json:"level" env:"LEVEL"`
	Format string `json:"format" env:"FORMAT"` // text or json
}

// Duration is a time.Duration that reads from strings such as "5s".
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		DB: DBConfig{
			Path:        "showtrack.db",
			Driver:      "sqlite3",
			ReadOnly:    true,
			BusyTimeout: Duration(5 * time.Second),
		},
		HTTP: HTTPConfig{Addr: ":8080"},
		Log:  LogConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig builds the config from defaults, then the JSON file at path (if
// path is not empty), then SHOWTRACK_* environment variables.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	if path != "" {
		f, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := json.Unmarshal(f, &config); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&config, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	return config, config.Validate()
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.DB.Path == "" {
		return Errorf(EINVALID, "db.path is required")
	}
	switch c.DB.Driver {
	case "sqlite3", "sqlite":
	default:
		return Errorf(EINVALID, "db.driver must be sqlite3 or sqlite, got %q", c.DB.Driver)
	}
	if c.DB.BusyTimeout < 0 {
		return Errorf(EINVALID, "db.busy_timeout must not be negative")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return Errorf(EINVALID, "log.format must be text or json, got %q", c.Log.Format)
	}
	if c.HTTP.Addr == "" {
		return Errorf(EINVALID, "http.addr is required")
	}
	return nil
}

package config

import (
	"fmt"
	"time"
)

// DatabaseConfig defines the relational store connection.
// Driver is "postgres" or "sqlite". For postgres, URL wins over the discrete fields.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	URL             string        `mapstructure:"url"`
	Path            string        `mapstructure:"path"` // sqlite file, or ":memory:"
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// DSN returns the driver-specific data source name.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		if c.URL != "" {
			return c.URL
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	}
	if c.IsMemory() {
		return "file::memory:?cache=shared"
	}
	return c.Path
}

// IsMemory reports whether sqlite should run without a backing file.
func (c *DatabaseConfig) IsMemory() bool {
	return c.Driver == "sqlite" && (c.Path == "" || c.Path == ":memory:")
}

// Validate checks that the selected driver has what it needs to connect.
func (c *DatabaseConfig) Validate() error {
	switch c.Driver {
	case "postgres":
		if c.URL == "" && (c.Host == "" || c.DBName == "") {
			return fmt.Errorf("database: postgres needs url or host and dbname")
		}
	case "sqlite":
	default:
		return fmt.Errorf("database: unknown driver %q", c.Driver)
	}
	return nil
}

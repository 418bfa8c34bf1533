package app

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config for the YAML override file. All fields are
// pointers so absent keys leave the environment-derived value alone.
type fileConfig struct {
	HTTPAddr  *string `yaml:"http_addr"`
	LogLevel  *string `yaml:"log_level"`
	LogFormat *string `yaml:"log_format"`

	ReadHeaderTimeout *string `yaml:"read_header_timeout"`
	ReadTimeout       *string `yaml:"read_timeout"`
	WriteTimeout      *string `yaml:"write_timeout"`
	IdleTimeout       *string `yaml:"idle_timeout"`

	DatabaseURL *string `yaml:"database_url"`
	SQLitePath  *string `yaml:"sqlite_path"`
	RedisURL    *string `yaml:"redis_url"`

	PasswordHasher *string `yaml:"password_hasher"`

	ReadinessRequireDB *bool `yaml:"readiness_require_db"`

	BootstrapAdminEnabled    *bool   `yaml:"bootstrap_admin"`
	BootstrapAdminUsername   *string `yaml:"bootstrap_admin_username"`
	InitialAdminPasswordPath *string `yaml:"initial_admin_password_path"`
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}

	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	setDuration := func(dst *time.Duration, src *string) error {
		if src == nil {
			return nil
		}
		d, err := time.ParseDuration(*src)
		if err != nil || d <= 0 {
			return fmt.Errorf("config file %s: invalid duration %q", path, *src)
		}
		*dst = d
		return nil
	}

	setString(&c.HTTPAddr, fc.HTTPAddr)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.LogFormat, fc.LogFormat)
	setString(&c.DatabaseURL, fc.DatabaseURL)
	setString(&c.SQLitePath, fc.SQLitePath)
	setString(&c.RedisURL, fc.RedisURL)
	setString(&c.PasswordHasher, fc.PasswordHasher)
	setString(&c.BootstrapAdminUsername, fc.BootstrapAdminUsername)
	setString(&c.InitialAdminPasswordPath, fc.InitialAdminPasswordPath)
	setBool(&c.ReadinessRequireDB, fc.ReadinessRequireDB)
	setBool(&c.BootstrapAdminEnabled, fc.BootstrapAdminEnabled)

	for _, pair := range []struct {
		dst *time.Duration
		src *string
	}{
		{&c.ReadHeaderTimeout, fc.ReadHeaderTimeout},
		{&c.ReadTimeout, fc.ReadTimeout},
		{&c.WriteTimeout, fc.WriteTimeout},
		{&c.IdleTimeout, fc.IdleTimeout},
	} {
		if err := setDuration(pair.dst, pair.src); err != nil {
			return err
		}
	}
	return nil
}

// Package config loads twinctl configuration.
//
// Configuration is read from, in increasing priority:
// 1. built-in defaults
// 2. twincore.yaml (optional; the working directory or an explicit path)
// 3. TWINCORE_-prefixed environment variables (storage.driver → TWINCORE_STORAGE_DRIVER)
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"twincore/internal/persistence"
	"twincore/pkg/domain"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TWINCORE"

// Config is the root configuration structure.
type Config struct {
	Project ProjectConfig `mapstructure:"project"`
	Storage StorageConfig `mapstructure:"storage"`
	Codes   CodesConfig   `mapstructure:"codes"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ProjectConfig locates the project.
type ProjectConfig struct {
	Dir  string `mapstructure:"dir" validate:"required"`
	Name string `mapstructure:"name"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver      string   `mapstructure:"driver" validate:"required,oneof=fs memory sqlite postgres s3"`
	SQLitePath  string   `mapstructure:"sqlite_path"`
	PostgresDSN string   `mapstructure:"postgres_dsn" validate:"required_if=Driver postgres"`
	S3          S3Config `mapstructure:"s3"`
}

// S3Config configures the s3 driver. Credentials fall back to the default
// AWS chain when AccessKeyID is empty.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint" validate:"omitempty,url"`
	Prefix          string `mapstructure:"prefix"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" validate:"required_with=AccessKeyID"`
	PathStyle       bool   `mapstructure:"path_style"`
}

// CodesConfig holds the code layout of each entity kind.
type CodesConfig struct {
	Systems            LayoutConfig `mapstructure:"systems"`
	Technologies       LayoutConfig `mapstructure:"technologies"`
	ConnectionElements LayoutConfig `mapstructure:"connection_elements"`
}

// LayoutConfig mirrors domain.Layout.
type LayoutConfig struct {
	HierarchyDigits int `mapstructure:"hierarchy_digits" validate:"min=1,max=9"`
	SiblingDigits   int `mapstructure:"sibling_digits" validate:"min=1,max=9"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// MetricsConfig selects the operation metrics exporter.
type MetricsConfig struct {
	Exporter  string `mapstructure:"exporter" validate:"oneof=none expvar prometheus"`
	Namespace string `mapstructure:"namespace" validate:"required_if=Exporter prometheus"`
}

var validate = validator.New()

// Load reads configuration. An empty path searches dir/twincore.yaml,
// where dir defaults to the working directory; a missing file is not an error.
// An explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("twincore")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Validate checks struct tags and cross-section rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Storage.Driver == string(persistence.DriverS3) && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("storage.s3.bucket is required for the s3 driver")
	}
	return nil
}

// PersistenceOptions converts the storage section for persistence.Open.
func (c *Config) PersistenceOptions() persistence.Options {
	return persistence.Options{
		Driver:      persistence.Driver(c.Storage.Driver),
		Dir:         c.Project.Dir,
		Project:     c.ProjectName(),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
		S3: persistence.S3Options{
			Bucket:          c.Storage.S3.Bucket,
			Region:          c.Storage.S3.Region,
			Endpoint:        c.Storage.S3.Endpoint,
			Prefix:          c.Storage.S3.Prefix,
			AccessKeyID:     c.Storage.S3.AccessKeyID,
			SecretAccessKey: c.Storage.S3.SecretAccessKey,
			PathStyle:       c.Storage.S3.PathStyle,
		},
	}
}

// ProjectName returns the configured name or the base name of the project dir.
func (c *Config) ProjectName() string {
	if c.Project.Name != "" {
		return c.Project.Name
	}
	if base := filepath.Base(filepath.Clean(c.Project.Dir)); base != "." && base != string(filepath.Separator) {
		return base
	}
	return "default"
}

// Layouts returns the per-kind code layouts.
func (c *Config) Layouts() map[domain.Kind]domain.Layout {
	return map[domain.Kind]domain.Layout{
		domain.KindSystem:            c.Codes.Systems.layout(),
		domain.KindTechnology:        c.Codes.Technologies.layout(),
		domain.KindConnectionElement: c.Codes.ConnectionElements.layout(),
	}
}

func (l LayoutConfig) layout() domain.Layout {
	return domain.Layout{HierarchyDigits: l.HierarchyDigits, SiblingDigits: l.SiblingDigits}
}

func setDefaults(v *viper.Viper) {
	// Project
	v.SetDefault("project.dir", ".")
	v.SetDefault("project.name", "")

	// Storage
	v.SetDefault("storage.driver", string(persistence.DriverFilesystem))
	v.SetDefault("storage.sqlite_path", "")
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.prefix", "")
	v.SetDefault("storage.s3.access_key_id", "")
	v.SetDefault("storage.s3.secret_access_key", "")
	v.SetDefault("storage.s3.path_style", false)

	// Codes
	def := domain.DefaultLayout()
	ce := domain.DefaultLayoutFor(domain.KindConnectionElement)
	v.SetDefault("codes.systems.hierarchy_digits", def.HierarchyDigits)
	v.SetDefault("codes.systems.sibling_digits", def.SiblingDigits)
	v.SetDefault("codes.technologies.hierarchy_digits", def.HierarchyDigits)
	v.SetDefault("codes.technologies.sibling_digits", def.SiblingDigits)
	v.SetDefault("codes.connection_elements.hierarchy_digits", ce.HierarchyDigits)
	v.SetDefault("codes.connection_elements.sibling_digits", ce.SiblingDigits)

	// Log
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")

	// Metrics
	v.SetDefault("metrics.exporter", "none")
	v.SetDefault("metrics.namespace", "twincore")
}

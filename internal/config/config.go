package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var configLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	configLogger = l
}

// Config represents the complete configuration structure
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Server   ServerConfig   `yaml:"server"`
	Theme    ThemeConfig    `yaml:"theme"`
	Content  ContentConfig  `yaml:"content"`
	Storage  StorageConfig  `yaml:"storage"`
	Features FeaturesConfig `yaml:"features"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `yaml:"format" default:"console" validate:"oneof=console json"`
}

type SiteConfig struct {
	Name    string `yaml:"name" default:"Postboard" validate:"required"`
	Tagline string `yaml:"tagline" default:"Posts, in no particular order"`
}

type ServerConfig struct {
	Host string `yaml:"host" default:"0.0.0.0"`
	Port string `yaml:"port" default:"5000" validate:"required,numeric"`
}

type ThemeConfig struct {
	Default            string       `yaml:"default" default:"dark" validate:"oneof=dark light"`
	AllowSwitching     bool         `yaml:"allow_switching" default:"true"`
	SyntaxHighlighting SyntaxConfig `yaml:"syntax_highlighting"`
}

type SyntaxConfig struct {
	DefaultDark  string `yaml:"default_dark" default:"gruvbox"`
	DefaultLight string `yaml:"default_light" default:"catppuccin-latte"`
}

type ContentConfig struct {
	MarkdownRenderer string `yaml:"markdown_renderer" default:"classic" validate:"oneof=classic mmark"`
}

type StorageConfig struct {
	Backend     string `yaml:"backend" default:"file" validate:"oneof=file sqlite s3"`
	Compression string `yaml:"compression" default:"none" validate:"oneof=none gzip zstd"`

	// Path of the posts document when Backend is "file".
	Path string `yaml:"path" default:"static/data/data.json"`

	SQLite SQLiteConfig `yaml:"sqlite"`
	S3     S3Config     `yaml:"s3"`
}

type SQLiteConfig struct {
	Path     string `yaml:"path" default:"./database.db"`
	Document string `yaml:"document" default:"posts"`
}

type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Key      string `yaml:"key" default:"data.json"`
	Region   string `yaml:"region" default:"auto"`
	Endpoint string `yaml:"endpoint"`

	// Credentials are usually supplied through S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type FeaturesConfig struct {
	Likes      LikesConfig   `yaml:"likes"`
	Metrics    MetricsConfig `yaml:"metrics"`
	LiveReload FeatureFlag   `yaml:"live_reload"`
}

type LikesConfig struct {
	// Likes allowed per second for a single client address. Zero disables the limit.
	RatePerSecond float64 `yaml:"rate_per_second" default:"1" validate:"gte=0"`
	Burst         int     `yaml:"burst" default:"5" validate:"gte=1"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics" validate:"startswith=/"`
}

type FeatureFlag struct {
	Enabled bool `yaml:"enabled" default:"true"`
}

var AppConfig = Default()

// Default returns a configuration with every default value applied.
func Default() *Config {
	c := &Config{}
	applyDefaults(c)
	return c
}

// LoadConfig reads the YAML file at path on top of the defaults, applies environment
// overrides and validates the result. A missing file is not an error.
// Load reads the config file at path over the defaults, then applies environment
// overrides and validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		configLogger.Info().Str("path", path).Msg("Config file not found, using defaults")
	case err != nil:
		return nil, fmt.Errorf(ErrReadConfigFmt, err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf(ErrParseConfigFmt, err)
		}
	}

	applyEnv(config)

	if err := Validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadConfig loads path into AppConfig.
func LoadConfig(path string) error {
	config, err := Load(path)
	if err != nil {
		return err
	}

	AppConfig = config
	return nil
}

func ApplyDefaults(config interface{}) {
	applyDefaults(config)
}

func applyDefaults(config interface{}) {
	v := reflect.ValueOf(config)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.IsValid() || !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct {
			applyDefaults(field.Addr().Interface())
			continue
		}

		defaultValue := fieldType.Tag.Get("default")
		if defaultValue == "" {
			continue
		}

		switch field.Kind() {
		case reflect.String:
			field.SetString(defaultValue)
		case reflect.Bool:
			if val, err := strconv.ParseBool(defaultValue); err == nil {
				field.SetBool(val)
			}
		case reflect.Int:
			if val, err := strconv.ParseInt(defaultValue, 10, 64); err == nil {
				field.SetInt(val)
			}
		case reflect.Float64:
			if val, err := strconv.ParseFloat(defaultValue, 64); err == nil {
				field.SetFloat(val)
			}
		case reflect.Slice:
			if field.Len() == 0 && field.Type().Elem().Kind() == reflect.String {
				parts := strings.Split(defaultValue, ",")
				slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
				for j, part := range parts {
					slice.Index(j).SetString(strings.TrimSpace(part))
				}
				field.Set(slice)
			}
		default:
			configLogger.Warn().
				Str("field_name", fieldType.Name).
				Str("field_type", field.Kind().String()).
				Msg("Unsupported field type for default value")
		}
	}
}

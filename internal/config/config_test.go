package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func quietLogger() {
	SetLogger(zerolog.New(os.Stdout).Level(zerolog.ErrorLevel))
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config content: %v", err)
	}
	return path
}

func TestApplyDefaults(t *testing.T) {
	t.Run("Config struct defaults", func(t *testing.T) {
		config := &Config{}
		applyDefaults(config)

		if config.Site.Name != "Postboard" {
			t.Errorf("Expected site name 'Postboard', got %q", config.Site.Name)
		}
		if config.Server.Host != "0.0.0.0" {
			t.Errorf("Expected host '0.0.0.0', got %q", config.Server.Host)
		}
		if config.Server.Port != "5000" {
			t.Errorf("Expected port '5000', got %q", config.Server.Port)
		}
		if config.Theme.Default != DarkTheme {
			t.Errorf("Expected theme %q, got %q", DarkTheme, config.Theme.Default)
		}
		if config.Storage.Backend != BackendFile {
			t.Errorf("Expected backend %q, got %q", BackendFile, config.Storage.Backend)
		}
		if config.Storage.Path != "static/data/data.json" {
			t.Errorf("Expected storage path 'static/data/data.json', got %q", config.Storage.Path)
		}
		if config.Storage.Compression != CompressionNone {
			t.Errorf("Expected compression %q, got %q", CompressionNone, config.Storage.Compression)
		}
		if config.Features.Likes.RatePerSecond != 1 {
			t.Errorf("Expected like rate 1, got %f", config.Features.Likes.RatePerSecond)
		}
		if config.Features.Likes.Burst != 5 {
			t.Errorf("Expected like burst 5, got %d", config.Features.Likes.Burst)
		}
		if !config.Features.Metrics.Enabled {
			t.Error("Expected metrics to be enabled by default")
		}
		if !config.Features.LiveReload.Enabled {
			t.Error("Expected live reload to be enabled by default")
		}
		if config.Logging.Level != "info" {
			t.Errorf("Expected logging level 'info', got %q", config.Logging.Level)
		}
	})

	t.Run("Custom struct with various field types", func(t *testing.T) {
		type TestStruct struct {
			StringField  string   `default:"test-string"`
			BoolField    bool     `default:"true"`
			IntField     int      `default:"42"`
			Float64Field float64  `default:"3.14"`
			SliceField   []string `default:"a,b,c"`
			NoDefault    string
		}

		test := &TestStruct{}
		applyDefaults(test)

		if test.StringField != "test-string" {
			t.Errorf("Expected string field 'test-string', got %q", test.StringField)
		}
		if !test.BoolField {
			t.Error("Expected bool field to be true")
		}
		if test.IntField != 42 {
			t.Errorf("Expected int field 42, got %d", test.IntField)
		}
		if test.Float64Field != 3.14 {
			t.Errorf("Expected float64 field 3.14, got %f", test.Float64Field)
		}
		if !reflect.DeepEqual(test.SliceField, []string{"a", "b", "c"}) {
			t.Errorf("Expected slice [a b c], got %v", test.SliceField)
		}
		if test.NoDefault != "" {
			t.Errorf("Expected no default field to be empty, got %q", test.NoDefault)
		}
	})

	t.Run("Non-struct input", func(t *testing.T) {
		stringVar := "test"
		applyDefaults(&stringVar)
		applyDefaults(stringVar)
		applyDefaults(42)
		applyDefaults(nil)
	})
}

func TestLoadConfig(t *testing.T) {
	quietLogger()
	t.Cleanup(func() { AppConfig = Default() })

	t.Run("Missing file uses defaults", func(t *testing.T) {
		err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if !reflect.DeepEqual(AppConfig, Default()) {
			t.Errorf("Expected defaults, got %+v", AppConfig)
		}
	})

	t.Run("File values override defaults", func(t *testing.T) {
		path := writeConfig(t, `
site:
  name: My Board
server:
  port: "8080"
storage:
  backend: sqlite
  compression: zstd
  sqlite:
    path: /tmp/board.db
`)
		if err := LoadConfig(path); err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}

		if AppConfig.Site.Name != "My Board" {
			t.Errorf("Expected site name 'My Board', got %q", AppConfig.Site.Name)
		}
		if AppConfig.Server.Port != "8080" {
			t.Errorf("Expected port 8080, got %q", AppConfig.Server.Port)
		}
		if AppConfig.Storage.Backend != BackendSQLite {
			t.Errorf("Expected sqlite backend, got %q", AppConfig.Storage.Backend)
		}
		if AppConfig.Storage.SQLite.Path != "/tmp/board.db" {
			t.Errorf("Expected sqlite path /tmp/board.db, got %q", AppConfig.Storage.SQLite.Path)
		}
		// Untouched nested defaults survive.
		if AppConfig.Storage.SQLite.Document != "posts" {
			t.Errorf("Expected default document name 'posts', got %q", AppConfig.Storage.SQLite.Document)
		}
		if AppConfig.Server.Host != "0.0.0.0" {
			t.Errorf("Expected default host, got %q", AppConfig.Server.Host)
		}
	})

	t.Run("Malformed YAML", func(t *testing.T) {
		path := writeConfig(t, "site: [unterminated")
		err := LoadConfig(path)
		if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
			t.Errorf("Expected parse error, got %v", err)
		}
	})

	t.Run("Invalid values are rejected", func(t *testing.T) {
		testCases := []struct {
			name    string
			content string
			want    string
		}{
			{"unknown backend", "storage:\n  backend: mongo\n", "Backend"},
			{"unknown compression", "storage:\n  compression: lz4\n", "Compression"},
			{"non numeric port", "server:\n  port: http\n", "Port"},
			{"unknown renderer", "content:\n  markdown_renderer: pandoc\n", "MarkdownRenderer"},
			{"unknown theme", "theme:\n  default: blue\n", "Default"},
			{"negative like rate", "features:\n  likes:\n    rate_per_second: -1\n", "RatePerSecond"},
			{"s3 without bucket", "storage:\n  backend: s3\n", "storage.s3.bucket"},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				before := AppConfig
				err := LoadConfig(writeConfig(t, tc.content))
				if err == nil {
					t.Fatal("Expected validation error")
				}
				if !strings.Contains(err.Error(), tc.want) {
					t.Errorf("Expected error mentioning %q, got %v", tc.want, err)
				}
				if AppConfig != before {
					t.Error("Expected AppConfig to be left untouched on error")
				}
			})
		}
	})
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvPort, "9999")
	t.Setenv(EnvStorageBackend, BackendS3)
	t.Setenv(EnvS3Bucket, "posts-bucket")
	t.Setenv(EnvS3AccessKeyID, "key-id")
	t.Setenv(EnvS3SecretKey, "secret")

	c := Default()
	applyEnv(c)

	if c.Server.Port != "9999" {
		t.Errorf("Expected port 9999, got %q", c.Server.Port)
	}
	if c.Storage.Backend != BackendS3 {
		t.Errorf("Expected s3 backend, got %q", c.Storage.Backend)
	}
	if c.Storage.S3.Bucket != "posts-bucket" {
		t.Errorf("Expected bucket posts-bucket, got %q", c.Storage.S3.Bucket)
	}
	if c.Storage.S3.AccessKeyID != "key-id" || c.Storage.S3.SecretAccessKey != "secret" {
		t.Error("Expected S3 credentials from the environment")
	}
	if err := Validate(c); err != nil {
		t.Errorf("Expected env-completed config to validate, got %v", err)
	}
	// Unset variables leave values alone.
	if c.Storage.Path != "static/data/data.json" {
		t.Errorf("Expected default storage path, got %q", c.Storage.Path)
	}
}

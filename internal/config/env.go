package config

import "os"

const (
	EnvPort           = "POSTBOARD_PORT"
	EnvStoragePath    = "POSTBOARD_STORAGE_PATH"
	EnvStorageBackend = "POSTBOARD_STORAGE_BACKEND"
	EnvLogLevel       = "POSTBOARD_LOG_LEVEL"
	EnvS3AccessKeyID  = "S3_ACCESS_KEY_ID"
	EnvS3SecretKey    = "S3_SECRET_ACCESS_KEY"
	EnvS3Bucket       = "S3_BUCKET"
	EnvS3Endpoint     = "S3_ENDPOINT"
)

// applyEnv overrides file values with any non-empty environment variables.
func applyEnv(c *Config) {
	overrides := []struct {
		env    string
		target *string
	}{
		{EnvPort, &c.Server.Port},
		{EnvStoragePath, &c.Storage.Path},
		{EnvStorageBackend, &c.Storage.Backend},
		{EnvLogLevel, &c.Logging.Level},
		{EnvS3AccessKeyID, &c.Storage.S3.AccessKeyID},
		{EnvS3SecretKey, &c.Storage.S3.SecretAccessKey},
		{EnvS3Bucket, &c.Storage.S3.Bucket},
		{EnvS3Endpoint, &c.Storage.S3.Endpoint},
	}

	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

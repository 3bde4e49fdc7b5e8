package config

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendS3     = "s3"

	CompressionNone = "none"
)

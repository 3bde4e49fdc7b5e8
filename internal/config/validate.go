package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks field constraints and the settings each storage backend needs.
func Validate(c *Config) error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf(ErrInvalidFieldFmt, fe.Namespace(), fe.Value(), fe.Tag())
		}
		return fmt.Errorf(ErrValidateConfigFmt, err)
	}

	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.Path == "" {
			return fmt.Errorf(ErrBackendFieldRequiredFmt, "storage.path", BackendFile)
		}
	case BackendSQLite:
		if c.Storage.SQLite.Path == "" || c.Storage.SQLite.Document == "" {
			return fmt.Errorf(ErrBackendFieldRequiredFmt, "storage.sqlite.path and storage.sqlite.document", BackendSQLite)
		}
	case BackendS3:
		if c.Storage.S3.Bucket == "" || c.Storage.S3.Key == "" {
			return fmt.Errorf(ErrBackendFieldRequiredFmt, "storage.s3.bucket and storage.s3.key", BackendS3)
		}
	}

	return nil
}

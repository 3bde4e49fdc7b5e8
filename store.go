package main

import (
	"context"
	"fmt"

	"github.com/debemdeboas/postboard/internal/config"
	"github.com/debemdeboas/postboard/internal/db"
	"github.com/debemdeboas/postboard/internal/repository"
	"github.com/debemdeboas/postboard/internal/util/compression"
)

// openStore builds the document store described by the storage section of cfg.
// The returned close function releases the backend and is never nil.
func openStore(ctx context.Context, cfg config.StorageConfig) (repository.DocumentStore, func() error, error) {
	var (
		store   repository.DocumentStore
		closeFn = func() error { return nil }
	)

	switch cfg.Backend {
	case config.BackendFile:
		store = repository.NewFileStore(cfg.Path)

	case config.BackendSQLite:
		sqlite := db.NewSQLite(cfg.SQLite.Path)
		if err := sqlite.InitDb(); err != nil {
			return nil, closeFn, fmt.Errorf("opening sqlite store: %w", err)
		}
		store = repository.NewSQLiteStore(sqlite, cfg.SQLite.Document)
		closeFn = sqlite.Close

	case config.BackendS3:
		client, err := repository.NewS3Client(ctx,
			cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey, cfg.S3.Region, cfg.S3.Endpoint)
		if err != nil {
			return nil, closeFn, fmt.Errorf("opening s3 store: %w", err)
		}
		store = repository.NewS3Store(client, cfg.S3.Bucket, cfg.S3.Key)

	default:
		return nil, closeFn, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	compressor, err := compression.ForName(cfg.Compression)
	if err != nil {
		closeFn()
		return nil, func() error { return nil }, err
	}

	return repository.WithCompression(store, compressor), closeFn, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/debemdeboas/postboard/internal/db"
	"github.com/debemdeboas/postboard/internal/util"
)

type SQLiteStore struct { // implements DocumentStore
	db       db.Db
	document string
}

// NewSQLiteStore keeps the document as a single row of the documents table, keyed by name.
func NewSQLiteStore(db db.Db, document string) *SQLiteStore {
	return &SQLiteStore{
		db:       db,
		document: document,
	}
}

func (s *SQLiteStore) Name() string {
	return "sqlite:" + s.document
}

func (s *SQLiteStore) Load(ctx context.Context) ([]byte, error) {
	var content []byte
	row := s.db.QueryRowContext(ctx, `SELECT content FROM documents WHERE name = ?`, s.document)
	if err := row.Scan(&content); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: document %q", ErrStoreNotFound, s.document)
		}
		return nil, fmt.Errorf("%w: reading document %q: %w", ErrStoreIO, s.document, err)
	}
	return content, nil
}

func (s *SQLiteStore) Save(ctx context.Context, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (name, content, content_hash, modified_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			content = excluded.content,
			content_hash = excluded.content_hash,
			modified_at = excluded.modified_at`,
		s.document, data, util.ContentHash(data), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: writing document %q: %w", ErrStoreIO, s.document, err)
	}

	repoLogger.Debug().Str("document", s.document).Int("bytes", len(data)).Msg("Document written")
	return nil
}

// Package repository mediates every read and write of the post collection.
//
// The collection lives in a single JSON document kept by a DocumentStore. A
// PostRepository loads it once, serves reads from memory and rewrites the whole
// document on every mutation.
package repository

import (
	"context"

	"github.com/debemdeboas/postboard/internal/model"
	"github.com/rs/zerolog"
)

var repoLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	repoLogger = l
}

// DocumentStore reads and overwrites the document holding the post collection.
// Implementations classify failures with ErrStoreNotFound, ErrStoreIO and ErrUnexpected.
type DocumentStore interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Name() string
}

type PostRepository interface {
	FetchAll(ctx context.Context) Result[[]model.Post]
	// FetchByID reports false when no post has the id. A failed load also reports false.
	FetchByID(ctx context.Context, id model.PostID) (model.Post, bool)

	Add(ctx context.Context, author, title, content string) Result[model.Post]
	Update(ctx context.Context, id model.PostID, author, title, content string, like int) Result[model.Post]
	Delete(ctx context.Context, id model.PostID) Result[model.Post]
	Like(ctx context.Context, id model.PostID) Result[model.Post]

	// Reload drops the cached collection so the next call reads the store again.
	Reload()

	// SetChangeNotifier sets a function that will be called after every successful mutation.
	SetChangeNotifier(notifier func(model.PostID))
}

// OperationObserver is told the outcome of every repository operation.
type OperationObserver interface {
	ObserveOperation(operation string, success bool)
}

const (
	OpLoad   = "load"
	OpAdd    = "add"
	OpUpdate = "update"
	OpDelete = "delete"
	OpLike   = "like"
)

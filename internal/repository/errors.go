package repository

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/debemdeboas/postboard/internal/model"
)

var (
	ErrStoreNotFound = errors.New("document not found")
	ErrStoreIO       = errors.New("document i/o failed")
	ErrDecode        = errors.New("document could not be decoded")
	ErrUnexpected    = errors.New("unexpected error")

	// ErrPostNotFound is returned by mutations addressing an id that does not exist.
	ErrPostNotFound = errors.New("post not found")
)

const (
	MsgLoaded  = "File loaded successfully."
	MsgWritten = "File written successfully."

	msgNotFoundFmt   = "Error: The file was not found. %v"
	msgReadFmt       = "Error: Could not read the file. %v"
	msgWriteFmt      = "Error: Could not write to the file. %v"
	msgDecodeFmt     = "Error: Could not decode the file. %v"
	msgUnexpectedFmt = "An unexpected error occurred: %v"
	msgPostFmt       = "Error: Post %d not found."
)

type direction int

const (
	reading direction = iota
	writing
)

// describe renders the diagnostic message for a failed operation.
func describe(dir direction, err error) string {
	switch {
	case errors.Is(err, ErrStoreNotFound):
		return fmt.Sprintf(msgNotFoundFmt, err)
	case errors.Is(err, ErrDecode):
		return fmt.Sprintf(msgDecodeFmt, err)
	case errors.Is(err, ErrStoreIO) && dir == reading:
		return fmt.Sprintf(msgReadFmt, err)
	case errors.Is(err, ErrStoreIO):
		return fmt.Sprintf(msgWriteFmt, err)
	default:
		return fmt.Sprintf(msgUnexpectedFmt, err)
	}
}

type postNotFoundError struct {
	id model.PostID
}

func (e *postNotFoundError) Error() string {
	return fmt.Sprintf("%v: %d", ErrPostNotFound, e.id)
}

func (e *postNotFoundError) Unwrap() error {
	return ErrPostNotFound
}

func postNotFound(id model.PostID) error {
	return &postNotFoundError{id: id}
}

// describeMutation renders the message for a mutation rejected before any write.
func describeMutation(err error) string {
	var nf *postNotFoundError
	if errors.As(err, &nf) {
		return fmt.Sprintf(msgPostFmt, nf.id)
	}
	return describe(writing, err)
}

// classifyFSError wraps a filesystem error with the matching sentinel.
func classifyFSError(err error) error {
	var pathErr *fs.PathError
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %w", ErrStoreNotFound, err)
	case errors.As(err, &pathErr):
		return fmt.Errorf("%w: %w", ErrStoreIO, err)
	default:
		return fmt.Errorf("%w: %w", ErrUnexpected, err)
	}
}

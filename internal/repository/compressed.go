package repository

import (
	"context"
	"fmt"

	"github.com/debemdeboas/postboard/internal/util/compression"
)

// CompressedStore compresses the document before handing it to the wrapped store.
type CompressedStore struct { // implements DocumentStore
	store      DocumentStore
	compressor compression.Compressor
}

// WithCompression wraps store with compressor. A nil compressor returns store unchanged.
func WithCompression(store DocumentStore, compressor compression.Compressor) DocumentStore {
	if compressor == nil {
		return store
	}
	return &CompressedStore{store: store, compressor: compressor}
}

func (s *CompressedStore) Name() string {
	return s.store.Name() + "+" + s.compressor.Name()
}

func (s *CompressedStore) Load(ctx context.Context) ([]byte, error) {
	data, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	plain, err := s.compressor.Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, s.compressor.Name(), err)
	}
	return plain, nil
}

func (s *CompressedStore) Save(ctx context.Context, data []byte) error {
	packed, err := s.compressor.Compress(data)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnexpected, s.compressor.Name(), err)
	}
	return s.store.Save(ctx, packed)
}

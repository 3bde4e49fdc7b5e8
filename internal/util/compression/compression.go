// Package compression provides the codecs a post document may be stored with.
package compression

import "fmt"

type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Name() string
}

// ForName returns the compressor registered under name. "none" and "" return nil.
func ForName(name string) (Compressor, error) {
	switch name {
	case "", "none":
		return nil, nil
	case "gzip":
		return GzipCompressor{}, nil
	case "zstd":
		return ZstdCompressor{}, nil
	default:
		return nil, fmt.Errorf("unknown compression %q", name)
	}
}

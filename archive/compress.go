package archive

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the codec used for archived blobs.
type Compression byte

const (
	// CompressionNone stores blobs uncompressed.
	CompressionNone Compression = iota
	// CompressionZstd is the default: best ratio on tig payloads.
	CompressionZstd
	// CompressionLZ4 trades ratio for speed; useful when the upload link is
	// fast and CPU is the bottleneck.
	CompressionLZ4
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return "invalid"
	}
}

func (c Compression) valid() bool {
	return c <= CompressionLZ4
}

// compressor returns a WriteCloser encoding w with c. The caller must close
// it to flush the codec's trailer before closing w.
func (c Compression) compressor(w io.Writer) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionZstd:
		return zstd.NewWriter(w)
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("unknown compression tag %d", c)
	}
}

// decompressor returns a reader decoding r with c.
func (c Compression) decompressor(r io.Reader) (io.ReadCloser, error) {
	switch c {
	case CompressionNone:
		return io.NopCloser(r), nil
	case CompressionZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("unknown compression tag %d", c)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

//go:build windows

package mmap

import (
	"io"
	"os"
)

// Windows builds fall back to reading the whole file into memory. Index
// files are small relative to payload files, so this stays acceptable.
func mmap(f *os.File, size int) ([]byte, error) {
	data := make([]byte, size)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, err
	}
	return data, nil
}

func munmap(data []byte) error {
	return nil
}

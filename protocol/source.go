package protocol

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// ContentSource is where response body bytes come from. Reads are addressed
// by offset so the response owns the running position.
type ContentSource interface {
	io.ReaderAt
	// Size is the exact number of bytes the source holds.
	Size() int64
	// Close releases the underlying handle.
	Close() error
}

// FileOpener opens regular files as content sources
type FileOpener interface {
	Open(path string) (ContentSource, error)
}

type bytesSource struct {
	*bytes.Reader
}

// NewBytesSource serves an in-memory buffer
func NewBytesSource(b []byte) ContentSource {
	return bytesSource{bytes.NewReader(b)}
}

func (bytesSource) Close() error {
	return nil
}

// FileSource serves a regular file through os.File.ReadAt
type FileSource struct {
	file *os.File
	size int64
}

// OpenFile opens path for reading. Directories are rejected.
func OpenFile(path string) (*FileSource, error) {
	file, size, err := openRegular(path)
	if err != nil {
		return nil, err
	}
	return &FileSource{file: file, size: size}, nil
}

func (s *FileSource) ReadAt(p []byte, off int64) (int, error) {
	return s.file.ReadAt(p, off)
}

func (s *FileSource) Size() int64 {
	return s.size
}

func (s *FileSource) Close() error {
	return s.file.Close()
}

// StdOpener opens files with the os package
type StdOpener struct{}

func (StdOpener) Open(path string) (ContentSource, error) {
	src, err := OpenFile(path)
	if err != nil {
		return nil, err
	}
	return src, nil
}

func openRegular(path string) (*os.File, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, err
	}

	if info.IsDir() {
		file.Close()
		return nil, 0, fmt.Errorf("%s: is a directory", path)
	}

	return file, info.Size(), nil
}

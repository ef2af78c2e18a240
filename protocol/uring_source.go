package protocol

import (
	"io"
	"os"

	"github.com/godzie44/go-uring/uring"

	"github.com/nicklauri/aden/errors"
)

// UringFileSource reads a regular file with io_uring read operations. Each
// source owns its ring, so it must be used from one goroutine at a time.
type UringFileSource struct {
	ring *uring.Ring
	file *os.File
	size int64
}

// OpenUringFile opens path and sets up a ring with the given queue depth
func OpenUringFile(path string, entries uint32) (*UringFileSource, error) {
	file, size, err := openRegular(path)
	if err != nil {
		return nil, err
	}

	ring, err := uring.New(entries)
	if err != nil {
		file.Close()
		return nil, errors.NewTransportError(
			errors.TransportErrorIoUringInit,
			"failed to initialize io_uring",
			err,
		)
	}

	return &UringFileSource{ring: ring, file: file, size: size}, nil
}

// ReadAt submits a single read at off and waits for its completion
func (s *UringFileSource) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	sqe := uring.Read(s.file.Fd(), p, uint64(off))
	if err := s.ring.QueueSQE(sqe, 0, 0); err != nil {
		return 0, errors.NewTransportError(
			errors.TransportErrorIoUringSubmit,
			"failed to queue read request",
			err,
		)
	}

	if _, err := s.ring.Submit(); err != nil {
		return 0, errors.NewTransportError(
			errors.TransportErrorIoUringSubmit,
			"failed to submit read request",
			err,
		)
	}

	cqe, err := s.ring.WaitCQEvents(1)
	if err != nil {
		return 0, errors.NewTransportError(
			errors.TransportErrorSocketReadFailure,
			"failed to wait for read completion",
			err,
		)
	}

	if err := cqe.Error(); err != nil {
		s.ring.SeenCQE(cqe)
		return 0, errors.NewTransportError(
			errors.TransportErrorSocketReadFailure,
			"read operation failed",
			err,
		)
	}

	n := int(cqe.Res)
	s.ring.SeenCQE(cqe)

	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s *UringFileSource) Size() int64 {
	return s.size
}

// Close releases the ring and the file
func (s *UringFileSource) Close() error {
	if s.ring != nil {
		s.ring.Close()
		s.ring = nil
	}
	if s.file != nil {
		err := s.file.Close()
		s.file = nil
		return err
	}
	return nil
}

// UringOpener opens files as UringFileSources
type UringOpener struct {
	Entries uint32
}

func (o UringOpener) Open(path string) (ContentSource, error) {
	entries := o.Entries
	if entries == 0 {
		entries = 8
	}
	src, err := OpenUringFile(path, entries)
	if err != nil {
		return nil, err
	}
	return src, nil
}

package transport

import "time"

// Transport defines the per-connection socket operations the server needs.
// Implementations include a plain net.Conn wrapper and an io_uring backed
// writer.
type Transport interface {
	// Read receives data from the peer.
	// Returns the number of bytes read.
	Read(buf []byte) (int, error)

	// Write sends data to the peer.
	// Returns the number of bytes written.
	Write(buf []byte) (int, error)

	// SetReadTimeout bounds every following Read. Zero waits indefinitely.
	SetReadTimeout(d time.Duration) error

	// SetWriteTimeout bounds every following Write. Zero waits indefinitely.
	SetWriteTimeout(d time.Duration) error

	// RemoteIP returns the peer's IP address.
	RemoteIP() string

	// Close closes the connection.
	Close() error
}

package transport

import (
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	httperrors "github.com/nicklauri/aden/errors"
)

// TcpTransport implements the Transport interface over an accepted net.Conn
type TcpTransport struct {
	conn net.Conn
}

// NewTcpTransport wraps an accepted connection
func NewTcpTransport(conn net.Conn) *TcpTransport {
	return &TcpTransport{
		conn: conn,
	}
}

// Conn returns the wrapped connection
func (t *TcpTransport) Conn() net.Conn {
	return t.conn
}

// Read receives data from the TCP connection
func (t *TcpTransport) Read(buf []byte) (int, error) {
	if t.conn == nil {
		return 0, httperrors.NewTransportError(httperrors.TransportErrorSocketReadFailure, "not connected", nil)
	}

	n, err := t.conn.Read(buf)
	if err != nil {
		return n, classifyReadError(err)
	}

	return n, nil
}

// Write sends data over the TCP connection
func (t *TcpTransport) Write(buf []byte) (int, error) {
	if t.conn == nil {
		return 0, httperrors.NewTransportError(httperrors.TransportErrorSocketWriteFailure, "not connected", nil)
	}

	n, err := t.conn.Write(buf)
	if err != nil {
		return n, classifyWriteError(err)
	}

	return n, nil
}

// SetReadTimeout sets an absolute read deadline d from now, or clears it
func (t *TcpTransport) SetReadTimeout(d time.Duration) error {
	if t.conn == nil {
		return httperrors.NewTransportError(httperrors.TransportErrorSocketReadFailure, "not connected", nil)
	}
	return t.conn.SetReadDeadline(deadline(d))
}

// SetWriteTimeout sets an absolute write deadline d from now, or clears it
func (t *TcpTransport) SetWriteTimeout(d time.Duration) error {
	if t.conn == nil {
		return httperrors.NewTransportError(httperrors.TransportErrorSocketWriteFailure, "not connected", nil)
	}
	return t.conn.SetWriteDeadline(deadline(d))
}

// RemoteIP returns the peer address without its port
func (t *TcpTransport) RemoteIP() string {
	if t.conn == nil {
		return "<null>"
	}
	addr := t.conn.RemoteAddr()
	if tcpAddr, ok := addr.(*net.TCPAddr); ok {
		return tcpAddr.IP.String()
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

// Close closes the TCP connection
func (t *TcpTransport) Close() error {
	if t.conn == nil {
		return nil // Idempotent close
	}

	err := t.conn.Close()
	t.conn = nil

	if err != nil {
		return httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "close failed", err)
	}

	return nil
}

func deadline(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}
	return time.Now().Add(d)
}

func classifyReadError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return httperrors.NewTransportError(httperrors.TransportErrorTimeout, "read timed out", err)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, net.ErrClosed) {
		return httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "connection closed by peer", err)
	}
	return httperrors.NewTransportError(httperrors.TransportErrorSocketReadFailure, "read failed", err)
}

func classifyWriteError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return httperrors.NewTransportError(httperrors.TransportErrorTimeout, "write timed out", err)
	}
	// Broken pipe or connection reset
	if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, net.ErrClosed) {
		return httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "connection closed during write", err)
	}
	return httperrors.NewTransportError(httperrors.TransportErrorSocketWriteFailure, "write failed", err)
}

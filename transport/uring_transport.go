package transport

import (
	"errors"
	"net"
	"time"

	"github.com/iceber/iouring-go"
	"golang.org/x/sys/unix"

	httperrors "github.com/nicklauri/aden/errors"
)

// UringTransport reads through the runtime poller like TcpTransport but
// submits writes as io_uring send requests on a duplicate of the socket
// descriptor. The ring is shared between connections.
type UringTransport struct {
	*TcpTransport
	iour         *iouring.IOURing
	fd           int
	writeTimeout time.Duration
}

// NewRing creates the io_uring instance shared by all UringTransports
func NewRing(entries uint) (*iouring.IOURing, error) {
	iour, err := iouring.New(entries)
	if err != nil {
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorIoUringInit,
			"failed to initialize io_uring",
			err,
		)
	}
	return iour, nil
}

// NewUringTransport wraps an accepted TCP connection
func NewUringTransport(iour *iouring.IOURing, conn *net.TCPConn) *UringTransport {
	return &UringTransport{
		TcpTransport: NewTcpTransport(conn),
		iour:         iour,
		fd:           -1,
	}
}

// SetWriteTimeout bounds each send with SO_SNDTIMEO once the descriptor exists
func (t *UringTransport) SetWriteTimeout(d time.Duration) error {
	t.writeTimeout = d
	if t.fd < 0 {
		return nil
	}
	return t.applyWriteTimeout()
}

// Write sends data over the connection using io_uring. The first call
// duplicates the descriptor and switches it to blocking mode; no reads are
// expected after the response starts.
func (t *UringTransport) Write(buf []byte) (int, error) {
	if t.conn == nil {
		return 0, httperrors.NewTransportError(httperrors.TransportErrorSocketWriteFailure, "not connected", nil)
	}

	if t.fd < 0 {
		if err := t.arm(); err != nil {
			return 0, err
		}
	}

	totalWritten := 0
	for totalWritten < len(buf) {
		ch := make(chan iouring.Result, 1)
		prepReq := iouring.Send(t.fd, buf[totalWritten:], 0)
		if _, err := t.iour.SubmitRequest(prepReq, ch); err != nil {
			return totalWritten, httperrors.NewTransportError(
				httperrors.TransportErrorIoUringSubmit,
				"failed to submit write request",
				err,
			)
		}

		result := <-ch
		n, err := result.ReturnInt()
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				if t.writeTimeout > 0 {
					return totalWritten, httperrors.NewTransportError(httperrors.TransportErrorTimeout, "write timed out", err)
				}
				if err := t.waitWritable(); err != nil {
					return totalWritten, err
				}
				continue
			}
			if errors.Is(err, unix.EPIPE) || errors.Is(err, unix.ECONNRESET) {
				return totalWritten, httperrors.NewTransportError(
					httperrors.TransportErrorConnectionClosed,
					"connection closed during write",
					err,
				)
			}
			return totalWritten, httperrors.NewTransportError(
				httperrors.TransportErrorSocketWriteFailure,
				"write failed",
				err,
			)
		}

		if n <= 0 {
			return totalWritten, httperrors.NewTransportError(
				httperrors.TransportErrorConnectionClosed,
				"connection closed during write",
				nil,
			)
		}

		totalWritten += n
	}

	return totalWritten, nil
}

// Close closes the duplicate descriptor and the connection
func (t *UringTransport) Close() error {
	if t.fd >= 0 {
		unix.Close(t.fd)
		t.fd = -1
	}
	return t.TcpTransport.Close()
}

func (t *UringTransport) arm() error {
	tcpConn, ok := t.conn.(*net.TCPConn)
	if !ok {
		return httperrors.NewTransportError(httperrors.TransportErrorSocketWriteFailure, "not a TCP connection", nil)
	}

	raw, err := tcpConn.SyscallConn()
	if err != nil {
		return httperrors.NewTransportError(httperrors.TransportErrorSocketWriteFailure, "failed to access socket", err)
	}

	var dupErr error
	ctlErr := raw.Control(func(fd uintptr) {
		t.fd, dupErr = unix.Dup(int(fd))
	})
	if ctlErr != nil {
		dupErr = ctlErr
	}
	if dupErr != nil {
		t.fd = -1
		return httperrors.NewTransportError(httperrors.TransportErrorSocketWriteFailure, "failed to duplicate socket", dupErr)
	}

	if err := unix.SetNonblock(t.fd, false); err != nil {
		unix.Close(t.fd)
		t.fd = -1
		return httperrors.NewTransportError(httperrors.TransportErrorSocketWriteFailure, "failed to set blocking mode", err)
	}

	return t.applyWriteTimeout()
}

func (t *UringTransport) applyWriteTimeout() error {
	tv := unix.NsecToTimeval(t.writeTimeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(t.fd, unix.SOL_SOCKET, unix.SO_SNDTIMEO, &tv); err != nil {
		return httperrors.NewTransportError(httperrors.TransportErrorSocketWriteFailure, "failed to set write timeout", err)
	}
	return nil
}

func (t *UringTransport) waitWritable() error {
	fds := []unix.PollFd{{Fd: int32(t.fd), Events: unix.POLLOUT}}
	for {
		_, err := unix.Poll(fds, -1)
		if err == nil {
			return nil
		}
		if !errors.Is(err, unix.EINTR) {
			return httperrors.NewTransportError(httperrors.TransportErrorSocketWriteFailure, "poll failed", err)
		}
	}
}

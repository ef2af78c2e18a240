package transport

import (
	"net"
	"testing"
	"time"

	httperrors "github.com/nicklauri/aden/errors"
)

// setupTcpPair returns the server side of an accepted connection wrapped in a
// TcpTransport and the raw client side.
func setupTcpPair(t *testing.T) (*TcpTransport, net.Conn, func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to create test listener: %v", err)
	}

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- conn
	}()

	client, err := net.Dial("tcp", listener.Addr().String())
	if err != nil {
		listener.Close()
		t.Fatalf("Failed to dial test listener: %v", err)
	}

	serverConn, ok := <-accepted
	if !ok {
		client.Close()
		listener.Close()
		t.Fatal("Accept failed")
	}

	transport := NewTcpTransport(serverConn)
	cleanup := func() {
		transport.Close()
		client.Close()
		listener.Close()
	}

	return transport, client, cleanup
}

func expectTransportError(t *testing.T, err error, code httperrors.TransportError) {
	t.Helper()

	if err == nil {
		t.Fatal("Expected an error")
	}

	httpErr, ok := err.(*httperrors.HttpError)
	if !ok {
		t.Fatalf("Expected *httperrors.HttpError, got %T", err)
	}

	if httpErr.Type != httperrors.ErrorTransport {
		t.Fatalf("Expected transport error, got %v", httpErr.Type)
	}

	if httpErr.TransportErr != code {
		t.Errorf("Expected transport error %d, got %d", code, httpErr.TransportErr)
	}
}

func TestTcpTransport_Read_Success(t *testing.T) {
	transport, client, cleanup := setupTcpPair(t)
	defer cleanup()

	message := "GET / HTTP/1.1\r\n\r\n"
	if _, err := client.Write([]byte(message)); err != nil {
		t.Fatalf("Client write failed: %v", err)
	}

	buf := make([]byte, 1024)
	n, err := transport.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if string(buf[:n]) != message {
		t.Errorf("Expected %q, got %q", message, string(buf[:n]))
	}
}

func TestTcpTransport_Read_Failure_ConnectionClosed(t *testing.T) {
	transport, client, cleanup := setupTcpPair(t)
	defer cleanup()

	client.Close()

	buf := make([]byte, 1024)
	_, err := transport.Read(buf)

	expectTransportError(t, err, httperrors.TransportErrorConnectionClosed)
}

func TestTcpTransport_Read_Failure_Timeout(t *testing.T) {
	transport, _, cleanup := setupTcpPair(t)
	defer cleanup()

	if err := transport.SetReadTimeout(20 * time.Millisecond); err != nil {
		t.Fatalf("SetReadTimeout failed: %v", err)
	}

	buf := make([]byte, 1)
	_, err := transport.Read(buf)

	expectTransportError(t, err, httperrors.TransportErrorTimeout)
}

func TestTcpTransport_SetReadTimeout_ZeroClearsDeadline(t *testing.T) {
	transport, client, cleanup := setupTcpPair(t)
	defer cleanup()

	transport.SetReadTimeout(10 * time.Millisecond)
	transport.SetReadTimeout(0)

	go func() {
		time.Sleep(50 * time.Millisecond)
		client.Write([]byte("x"))
	}()

	buf := make([]byte, 1)
	if _, err := transport.Read(buf); err != nil {
		t.Fatalf("Expected read to wait without deadline, got %v", err)
	}
}

func TestTcpTransport_Write_Success(t *testing.T) {
	transport, client, cleanup := setupTcpPair(t)
	defer cleanup()

	message := "HTTP/1.1 200 OK\r\n"
	n, err := transport.Write([]byte(message))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != len(message) {
		t.Errorf("Expected to write %d bytes, wrote %d", len(message), n)
	}

	buf := make([]byte, len(message))
	client.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := client.Read(buf); err != nil {
		t.Fatalf("Client read failed: %v", err)
	}
	if string(buf) != message {
		t.Errorf("Expected %q, got %q", message, string(buf))
	}
}

func TestTcpTransport_RemoteIP(t *testing.T) {
	transport, _, cleanup := setupTcpPair(t)
	defer cleanup()

	if ip := transport.RemoteIP(); ip != "127.0.0.1" {
		t.Errorf("Expected 127.0.0.1, got %q", ip)
	}
}

func TestTcpTransport_Close_Idempotent(t *testing.T) {
	transport, _, cleanup := setupTcpPair(t)
	defer cleanup()

	if err := transport.Close(); err != nil {
		t.Errorf("First close failed: %v", err)
	}

	if err := transport.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
}

func TestTcpTransport_Write_Failure_NoConnection(t *testing.T) {
	transport := NewTcpTransport(nil)

	_, err := transport.Write([]byte("test"))

	expectTransportError(t, err, httperrors.TransportErrorSocketWriteFailure)
}

func TestTcpTransport_Read_Failure_NoConnection(t *testing.T) {
	transport := NewTcpTransport(nil)

	buf := make([]byte, 16)
	_, err := transport.Read(buf)

	expectTransportError(t, err, httperrors.TransportErrorSocketReadFailure)
}

func TestListen_Success(t *testing.T) {
	listener, err := Listen("127.0.0.1", "0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer listener.Close()

	addr := listener.Addr().(*net.TCPAddr)
	if !addr.IP.Equal(net.ParseIP("127.0.0.1")) {
		t.Errorf("Expected 127.0.0.1, got %v", addr.IP)
	}
}

func TestListen_Failure_BadPort(t *testing.T) {
	_, err := Listen("127.0.0.1", "http")

	expectTransportError(t, err, httperrors.TransportErrorListenFailure)
}

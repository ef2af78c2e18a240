package client

import (
	"net"
	"strconv"
	"time"

	"github.com/nicklauri/aden/errors"
	"github.com/nicklauri/aden/protocol"
	"github.com/nicklauri/aden/transport"
)

// DefaultTimeout bounds dialing and every read of a response
const DefaultTimeout = 5 * time.Second

// HttpClient sends single requests to one server. The server closes the
// connection after every response, so each call dials anew.
type HttpClient struct {
	address string
	Timeout time.Duration
}

// NewHttpClient creates a client for address ("host:port")
func NewHttpClient(address string) *HttpClient {
	return &HttpClient{
		address: address,
		Timeout: DefaultTimeout,
	}
}

// Address is the server address the client dials
func (c *HttpClient) Address() string {
	return c.address
}

// Get performs a GET request for path
func (c *HttpClient) Get(path string, headers ...protocol.HttpHeader) (*Response, error) {
	req := &Request{
		Method:  protocol.MethodGet,
		Path:    path,
		Headers: c.withHost(headers),
	}
	return c.Do(req)
}

// Post performs a POST request. Content-Length is derived from body.
func (c *HttpClient) Post(path string, body []byte, headers ...protocol.HttpHeader) (*Response, error) {
	if len(body) == 0 {
		return nil, errors.NewInvalidArgumentError("POST request must have a body")
	}

	all := c.withHost(headers)
	all.Set("Content-Length", strconv.Itoa(len(body)))

	req := &Request{
		Method:  protocol.MethodPost,
		Path:    path,
		Headers: all,
		Body:    body,
	}
	return c.Do(req)
}

// Do performs req over a fresh connection
func (c *HttpClient) Do(req *Request) (*Response, error) {
	if req.Method == protocol.MethodGet && len(req.Body) > 0 {
		return nil, errors.NewInvalidArgumentError("GET request cannot have a body")
	}

	t, err := c.dial()
	if err != nil {
		return nil, err
	}
	defer t.Close()

	return NewHttp1Protocol(t).PerformRequest(req)
}

// Raw writes raw as the whole request and reads the response
func (c *HttpClient) Raw(raw []byte) (*Response, error) {
	t, err := c.dial()
	if err != nil {
		return nil, err
	}
	defer t.Close()

	return NewHttp1Protocol(t).PerformRaw(raw)
}

func (c *HttpClient) dial() (*transport.TcpTransport, error) {
	conn, err := net.DialTimeout("tcp", c.address, c.Timeout)
	if err != nil {
		return nil, errors.NewTransportError(errors.TransportErrorConnectFailure, "failed to connect to "+c.address, err)
	}

	t := transport.NewTcpTransport(conn)
	if err := t.SetReadTimeout(c.Timeout); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

func (c *HttpClient) withHost(headers []protocol.HttpHeader) protocol.HttpHeaders {
	all := protocol.HttpHeaders{{Key: "Host", Value: c.address}}
	for _, h := range headers {
		all.Set(h.Key, h.Value)
	}
	return all
}

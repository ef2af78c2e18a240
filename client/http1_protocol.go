package client

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/nicklauri/aden/errors"
	"github.com/nicklauri/aden/protocol"
	"github.com/nicklauri/aden/transport"
)

var (
	headerSeparator  = []byte("\r\n\r\n")
	contentLengthKey = []byte("content-length:")
)

// Request is a client-side HTTP/1.1 request
type Request struct {
	Method  string
	Path    string
	Headers protocol.HttpHeaders
	Body    []byte
}

// Response is a fully read HTTP response. ContentLength is -1 when the
// server did not declare one.
type Response struct {
	StatusCode    int
	StatusMessage string
	Headers       protocol.HttpHeaders
	Body          []byte
	ContentLength int
}

// Header returns the value of key
func (r *Response) Header(key string) (string, bool) {
	return r.Headers.Get(key)
}

// Http1Protocol writes one request and reads one response over a transport
type Http1Protocol struct {
	transport     transport.Transport
	buffer        []byte
	headerSize    int
	contentLength int
}

// NewHttp1Protocol creates a new HTTP/1.1 protocol handler
func NewHttp1Protocol(t transport.Transport) *Http1Protocol {
	return &Http1Protocol{
		transport:     t,
		buffer:        make([]byte, 0, 1024),
		contentLength: -1,
	}
}

// buildRequest formats an HTTP request into the internal buffer
func (p *Http1Protocol) buildRequest(req *Request) {
	p.buffer = p.buffer[:0]

	p.buffer = append(p.buffer, fmt.Sprintf("%s %s HTTP/%s\r\n",
		strings.ToUpper(req.Method), req.Path, protocol.HTTPVersion)...)

	for _, header := range req.Headers {
		p.buffer = append(p.buffer, fmt.Sprintf("%s: %s\r\n", header.Key, header.Value)...)
	}

	p.buffer = append(p.buffer, "\r\n"...)
	p.buffer = append(p.buffer, req.Body...)
}

// readFullResponse reads until Content-Length is satisfied or the server
// closes the connection.
func (p *Http1Protocol) readFullResponse() error {
	p.buffer = p.buffer[:0]
	p.headerSize = 0
	p.contentLength = -1

	readBuf := make([]byte, 4096)

	for {
		n, err := p.transport.Read(readBuf)
		p.buffer = append(p.buffer, readBuf[:n]...)

		if p.headerSize == 0 {
			if pos := bytes.Index(p.buffer, headerSeparator); pos >= 0 {
				p.headerSize = pos + len(headerSeparator)
				p.contentLength = parseContentLength(p.buffer[:p.headerSize])
			}
		}

		if p.contentLength >= 0 && len(p.buffer) >= p.headerSize+p.contentLength {
			return nil
		}

		if err != nil {
			if !errors.IsTransport(err, errors.TransportErrorConnectionClosed) {
				return err
			}
			if len(p.buffer) == 0 {
				return err
			}
			if p.contentLength >= 0 {
				return errors.NewProtocolError(
					errors.ProtocolErrorIncompleteResponse,
					"connection closed before complete response received",
				)
			}
			break
		}
	}

	if p.headerSize == 0 {
		return errors.NewProtocolError(
			errors.ProtocolErrorInvalidStatusLine,
			"failed to parse HTTP response headers",
		)
	}

	return nil
}

// parseContentLength extracts Content-Length from a response head
func parseContentLength(head []byte) int {
	lines := bytes.Split(head, []byte("\n"))
	for _, line := range lines[1:] {
		line = bytes.TrimSuffix(line, []byte("\r"))
		if len(line) == 0 {
			break
		}

		if bytes.HasPrefix(bytes.ToLower(line), contentLengthKey) {
			value := strings.TrimSpace(string(line[len(contentLengthKey):]))
			if length, err := strconv.Atoi(value); err == nil {
				return length
			}
		}
	}
	return -1
}

// parseResponse parses the response buffer into a Response that owns its
// memory.
func (p *Http1Protocol) parseResponse() (*Response, error) {
	headBlock := p.buffer[:p.headerSize-len(headerSeparator)]

	parts := bytes.SplitN(headBlock, []byte("\n"), 2)
	statusLine := bytes.TrimSuffix(parts[0], []byte("\r"))

	// "HTTP/1.1 200 OK"
	statusParts := bytes.SplitN(statusLine, []byte(" "), 3)
	if len(statusParts) < 2 || !bytes.HasPrefix(statusParts[0], []byte("HTTP/")) {
		return nil, errors.NewProtocolError(
			errors.ProtocolErrorInvalidStatusLine,
			"invalid status line format",
		)
	}

	statusCode, err := strconv.Atoi(string(statusParts[1]))
	if err != nil {
		return nil, errors.NewProtocolError(
			errors.ProtocolErrorInvalidStatusLine,
			fmt.Sprintf("invalid status code: %s", statusParts[1]),
		)
	}

	statusMessage := ""
	if len(statusParts) == 3 {
		statusMessage = string(statusParts[2])
	}

	var headers protocol.HttpHeaders
	if len(parts) > 1 {
		for _, line := range bytes.Split(parts[1], []byte("\n")) {
			line = bytes.TrimSuffix(line, []byte("\r"))
			if len(line) == 0 {
				break
			}

			key, value, ok := bytes.Cut(line, []byte(":"))
			if ok {
				headers = append(headers, protocol.HttpHeader{
					Key:   string(key),
					Value: strings.TrimSpace(string(value)),
				})
			}
		}
	}

	var body []byte
	if p.contentLength >= 0 {
		body = p.buffer[p.headerSize : p.headerSize+p.contentLength]
	} else {
		body = p.buffer[p.headerSize:]
	}

	return &Response{
		StatusCode:    statusCode,
		StatusMessage: statusMessage,
		Headers:       headers,
		Body:          bytes.Clone(body),
		ContentLength: p.contentLength,
	}, nil
}

// PerformRequest writes req and reads the response
func (p *Http1Protocol) PerformRequest(req *Request) (*Response, error) {
	p.buildRequest(req)
	return p.PerformRaw(p.buffer)
}

// PerformRaw writes raw bytes as-is and reads the response
func (p *Http1Protocol) PerformRaw(raw []byte) (*Response, error) {
	if _, err := p.transport.Write(raw); err != nil {
		return nil, err
	}

	if err := p.readFullResponse(); err != nil {
		return nil, err
	}

	return p.parseResponse()
}

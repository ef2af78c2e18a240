package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nicklauri/aden/errors"
)

// Request is a parsed HTTP request head with its optional body
type Request struct {
	Method      string
	Path        string
	HTTPVersion string
	Headers     HttpHeaders
	Body        []byte
}

// ParseRequest builds a Request from a framed buffer. The buffer must start
// with a request line of exactly three tokens naming GET or POST; anything
// else is a BadRequest protocol error.
func ParseRequest(raw []byte) (*Request, error) {
	if len(raw) == 0 {
		return nil, errors.NewProtocolError(errors.ProtocolErrorBadRequest, "empty request")
	}

	lines := splitLines(string(raw))

	requestLine := strings.Fields(lines[0])
	if len(requestLine) != 3 {
		return nil, errors.NewProtocolError(
			errors.ProtocolErrorBadRequest,
			fmt.Sprintf("malformed request line %q", lines[0]),
		)
	}

	method := strings.ToLower(requestLine[0])
	if method != MethodGet && method != MethodPost {
		return nil, errors.NewProtocolError(
			errors.ProtocolErrorBadRequest,
			fmt.Sprintf("unsupported method %q", requestLine[0]),
		)
	}

	req := &Request{
		Method:      method,
		Path:        requestLine[1],
		HTTPVersion: requestLine[2],
	}

	i := 1
	for ; i < len(lines); i++ {
		line := lines[i]
		if line == "" {
			i++
			break
		}
		key, value := parseHeaderLine(line)
		req.Headers.Set(key, value)
	}

	// One line after the blank line stands in for the body until the exact
	// Content-Length read replaces it.
	if i < len(lines) && lines[i] != "" {
		req.Body = []byte(lines[i])
	}

	return req, nil
}

// GetHeader returns the first header matching key, case-insensitively
func (r *Request) GetHeader(key string) (string, error) {
	value, ok := r.Headers.Get(key)
	if !ok {
		return "", errors.NewProtocolError(errors.ProtocolErrorFieldNotFound, "field not found: "+key)
	}
	return value, nil
}

// ContentLength returns the declared body length, 0 when the header is absent
func (r *Request) ContentLength() (int64, error) {
	value, ok := r.Headers.Get("Content-Length")
	if !ok {
		return 0, nil
	}

	length, err := strconv.ParseInt(value, 10, 64)
	if err != nil || length < 0 {
		return 0, errors.NewProtocolError(
			errors.ProtocolErrorInvalidContentLength,
			fmt.Sprintf("invalid Content-Length %q", value),
		)
	}

	return length, nil
}

// SetBody replaces the body placeholder
func (r *Request) SetBody(body []byte) {
	r.Body = body
}

func parseHeaderLine(line string) (string, string) {
	colon := strings.IndexByte(line, ':')
	if colon < 0 {
		return "", strings.TrimSpace(line)
	}
	return strings.TrimSpace(line[:colon]), strings.TrimSpace(line[colon+1:])
}

// splitLines splits on LF and strips one trailing CR from every line
func splitLines(s string) []string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

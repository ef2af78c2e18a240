package protocol

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/nicklauri/aden/errors"
)

// DefaultBufferFloor is the smallest read buffer used for file content
const DefaultBufferFloor = 5 * 1024 * 1024

// maxStalls is how many reads in a row may make no progress before
// streaming gives up.
const maxStalls = 3

// Response accumulates a status line, headers and a content source, then
// serializes the head and drains the content in bounded chunks.
type Response struct {
	httpVersion   string
	status        Status
	headers       HttpHeaders
	source        ContentSource
	contentLength int64
	sent          int64
	bufferFloor   int
	buf           []byte
}

// NewResponse creates an empty response
func NewResponse() *Response {
	return &Response{bufferFloor: DefaultBufferFloor}
}

// SetBufferFloor sets the read buffer size used by BuildContent
func (r *Response) SetBufferFloor(n int) {
	if n > 0 {
		r.bufferFloor = n
	}
}

// AddHeader sets a header, replacing an existing value with the same key.
// Content-Length is always computed and cannot be set.
func (r *Response) AddHeader(key, value string) {
	if strings.EqualFold(key, "Content-Length") {
		return
	}
	r.headers.Set(key, value)
}

// RemoveHeader deletes key if present
func (r *Response) RemoveHeader(key string) {
	r.headers.Del(key)
}

// Header returns the value of key
func (r *Response) Header(key string) (string, bool) {
	return r.headers.Get(key)
}

// Headers returns a copy of the headers in insertion order
func (r *Response) Headers() HttpHeaders {
	out := make(HttpHeaders, len(r.headers))
	copy(out, r.headers)
	return out
}

// SetStatus sets the version and status of the status line
func (r *Response) SetStatus(httpVersion string, status Status) {
	r.httpVersion = httpVersion
	r.status = status
}

// Status returns the response status
func (r *Response) Status() Status {
	return r.status
}

// SetContentBytes binds an in-memory body
func (r *Response) SetContentBytes(b []byte) {
	r.SetContentSource(NewBytesSource(b))
}

// SetContentSource binds src as the body, closing any previous source
func (r *Response) SetContentSource(src ContentSource) {
	if r.source != nil {
		r.source.Close()
	}
	r.source = src
	r.contentLength = 0
	if src != nil {
		r.contentLength = src.Size()
	}
	r.sent = 0
	r.buf = nil
}

// ContentLength is the exact number of body bytes
func (r *Response) ContentLength() int64 {
	return r.contentLength
}

// Remaining is the number of body bytes not yet returned by BuildContent
func (r *Response) Remaining() int64 {
	return r.contentLength - r.sent
}

// Ready reports whether the head can be serialized
func (r *Response) Ready() bool {
	return r.httpVersion != "" &&
		r.status.Code != 0 &&
		r.status.Reason != "" &&
		len(r.headers) > 0 &&
		r.contentLength > 0
}

// BuildHeader serializes the status line, the headers and the computed
// Content-Length, followed by the blank line.
func (r *Response) BuildHeader() ([]byte, error) {
	if !r.Ready() {
		return nil, errors.NewBuildError(errors.BuildErrorNotReady, "response is incomplete", nil)
	}

	var b strings.Builder
	b.WriteString("HTTP/")
	b.WriteString(r.httpVersion)
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(r.status.Code))
	b.WriteByte(' ')
	b.WriteString(r.status.Reason)
	b.WriteString("\r\n")

	for _, header := range r.headers {
		b.WriteString(header.Key)
		b.WriteString(": ")
		b.WriteString(header.Value)
		b.WriteString("\r\n")
	}

	b.WriteString("Content-Length: ")
	b.WriteString(strconv.FormatInt(r.contentLength, 10))
	b.WriteString("\r\n\r\n")

	return []byte(b.String()), nil
}

// BuildContent returns the next chunk of the body and how many bytes remain
// after it. The chunk aliases an internal buffer that the next call reuses.
// A short read returns a nil chunk with the remaining count unchanged.
func (r *Response) BuildContent() ([]byte, int64, error) {
	remaining := r.Remaining()
	if r.source == nil || remaining <= 0 {
		return nil, 0, nil
	}

	if r.buf == nil {
		size := int64(r.bufferFloor)
		if size > r.contentLength {
			size = r.contentLength
		}
		r.buf = make([]byte, size)
	}

	want := int64(len(r.buf))
	if want > remaining {
		want = remaining
	}

	n, err := r.source.ReadAt(r.buf[:want], r.sent)
	if int64(n) < want {
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return nil, remaining, errors.NewBuildError(errors.BuildErrorContentRead, "failed to read content", err)
		}
		return nil, remaining, nil
	}

	r.sent += want
	return r.buf[:want], r.Remaining(), nil
}

// WriteTo writes the head and then drains the body into w, flushing after
// every chunk.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	head, err := r.BuildHeader()
	if err != nil {
		return 0, err
	}

	bw := bufio.NewWriter(w)
	written, err := bw.Write(head)
	total := int64(written)
	if err != nil {
		return total, err
	}

	stalls := 0
	for {
		chunk, remaining, err := r.BuildContent()
		if err != nil {
			return total, err
		}

		if len(chunk) == 0 && remaining > 0 {
			stalls++
			if stalls >= maxStalls {
				return total, errors.NewBuildError(errors.BuildErrorContentRead, "content source made no progress", io.ErrUnexpectedEOF)
			}
			continue
		}
		stalls = 0

		written, err := bw.Write(chunk)
		total += int64(written)
		if err != nil {
			return total, err
		}
		if err := bw.Flush(); err != nil {
			return total, err
		}

		if remaining == 0 {
			return total, nil
		}
	}
}

// Close releases the content source
func (r *Response) Close() error {
	if r.source == nil {
		return nil
	}
	err := r.source.Close()
	r.source = nil
	return err
}

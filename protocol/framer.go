package protocol

import (
	"fmt"
	"io"
	"time"

	"github.com/nicklauri/aden/errors"
	"github.com/nicklauri/aden/transport"
)

// ChunkSize is the size of each head read after the first byte
const ChunkSize = 1000

// TimeoutPolicy holds one read or write timeout per connection phase.
// Zero means no timeout.
type TimeoutPolicy struct {
	// FirstByte bounds the wait for the first byte of a request.
	FirstByte time.Duration
	// HeadRest bounds each read of the remaining head bytes.
	HeadRest time.Duration
	// Body bounds each read of a declared request body.
	Body time.Duration
	// Write bounds each write of the response.
	Write time.Duration
}

// Head is a framed request head plus whatever was read past its end
type Head struct {
	raw        []byte
	headLength int
	terminated bool
}

// Bytes returns the head, terminator included when one was found
func (h *Head) Bytes() []byte {
	return h.raw[:h.headLength]
}

// Overread returns bytes received after the head terminator
func (h *Head) Overread() []byte {
	return h.raw[h.headLength:]
}

// Terminated reports whether the head ended with CR LF CR LF
func (h *Head) Terminated() bool {
	return h.terminated
}

// Framer reads request heads and bodies from a transport
type Framer struct {
	transport   transport.Transport
	policy      TimeoutPolicy
	maxHeadSize int
	maxBodySize int64
	chunk       []byte
}

// NewFramer creates a framer. Non-positive limits disable the check.
func NewFramer(t transport.Transport, policy TimeoutPolicy, maxHeadSize int, maxBodySize int64) *Framer {
	return &Framer{
		transport:   t,
		policy:      policy,
		maxHeadSize: maxHeadSize,
		maxBodySize: maxBodySize,
		chunk:       make([]byte, ChunkSize),
	}
}

// ReadHead waits for the first byte, then reads chunks until the head
// terminator is seen or a read comes back short.
func (f *Framer) ReadHead() (*Head, error) {
	if err := f.transport.SetReadTimeout(f.policy.FirstByte); err != nil {
		return nil, errors.NewFramingError(errors.FramingErrorNoData, "failed to arm first byte timeout", err)
	}

	first := make([]byte, 1)
	n, err := f.transport.Read(first)
	if err != nil || n == 0 {
		if errors.IsTransport(err, errors.TransportErrorTimeout) {
			return nil, errors.NewFramingError(errors.FramingErrorTimeout, "no request before timeout", err)
		}
		return nil, errors.NewFramingError(errors.FramingErrorNoData, "no request received", err)
	}

	acc := make([]byte, 0, ChunkSize+1)
	acc = append(acc, first[0])

	var scanner HeadScanner
	scanner.Feed(acc)

	if err := f.transport.SetReadTimeout(f.policy.HeadRest); err != nil {
		return nil, errors.NewFramingError(errors.FramingErrorTimeout, "failed to arm head timeout", err)
	}

	for !scanner.Done() {
		n, err := f.transport.Read(f.chunk)
		if n > 0 {
			scanner.Feed(f.chunk[:n])
			acc = append(acc, f.chunk[:n]...)
			if f.tooLarge(&scanner, len(acc)) {
				return nil, errors.NewFramingError(
					errors.FramingErrorHeadTooLarge,
					fmt.Sprintf("request head exceeds %d bytes", f.maxHeadSize),
					nil,
				)
			}
		}
		if err != nil {
			if len(acc) == 0 {
				return nil, errors.NewFramingError(errors.FramingErrorTimeout, "no request head", err)
			}
			// best-effort: whatever arrived is the head
			break
		}
		if n < ChunkSize {
			break
		}
	}

	head := &Head{raw: acc, headLength: len(acc)}
	if scanner.Done() {
		head.headLength = scanner.HeadLength()
		head.terminated = true
	}
	return head, nil
}

// ReadBody returns exactly length body bytes, counting the head's over-read
// bytes first. A short read is a BodyTruncated framing error.
func (f *Framer) ReadBody(head *Head, length int64) ([]byte, error) {
	if length <= 0 {
		return nil, nil
	}
	if f.maxBodySize > 0 && length > f.maxBodySize {
		return nil, errors.NewProtocolError(
			errors.ProtocolErrorInvalidContentLength,
			fmt.Sprintf("Content-Length %d exceeds %d", length, f.maxBodySize),
		)
	}

	over := head.Overread()
	body := make([]byte, length)
	if int64(len(over)) >= length {
		copy(body, over[:length])
		return body, nil
	}
	copied := copy(body, over)

	if err := f.transport.SetReadTimeout(f.policy.Body); err != nil {
		return nil, errors.NewFramingError(errors.FramingErrorBodyTruncated, "failed to arm body timeout", err)
	}

	if _, err := io.ReadFull(f.transport, body[copied:]); err != nil {
		return nil, errors.NewFramingError(
			errors.FramingErrorBodyTruncated,
			fmt.Sprintf("body shorter than %d bytes", length),
			err,
		)
	}

	return body, nil
}

// PrepareWrite lifts the read deadline and applies the write timeout
func (f *Framer) PrepareWrite() error {
	if err := f.transport.SetReadTimeout(0); err != nil {
		return err
	}
	return f.transport.SetWriteTimeout(f.policy.Write)
}

func (f *Framer) tooLarge(scanner *HeadScanner, accumulated int) bool {
	if f.maxHeadSize <= 0 {
		return false
	}
	if scanner.Done() {
		return scanner.HeadLength() > f.maxHeadSize
	}
	return accumulated > f.maxHeadSize
}

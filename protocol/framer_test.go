package protocol

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/nicklauri/aden/errors"
)

type readStep struct {
	data []byte
	err  error
}

// scriptedTransport replays reads step by step. A data step may be consumed
// by several reads; an error step is returned once.
type scriptedTransport struct {
	steps         []readStep
	written       bytes.Buffer
	readTimeouts  []time.Duration
	writeTimeouts []time.Duration
}

func newScriptedTransport(steps ...readStep) *scriptedTransport {
	return &scriptedTransport{steps: steps}
}

func data(s string) readStep {
	return readStep{data: []byte(s)}
}

func fail(err error) readStep {
	return readStep{err: err}
}

func (s *scriptedTransport) Read(buf []byte) (int, error) {
	if len(s.steps) == 0 {
		return 0, errors.NewTransportError(errors.TransportErrorConnectionClosed, "connection closed by peer", io.EOF)
	}

	step := &s.steps[0]
	if step.err != nil {
		s.steps = s.steps[1:]
		return 0, step.err
	}

	n := copy(buf, step.data)
	step.data = step.data[n:]
	if len(step.data) == 0 {
		s.steps = s.steps[1:]
	}
	return n, nil
}

func (s *scriptedTransport) Write(buf []byte) (int, error) {
	return s.written.Write(buf)
}

func (s *scriptedTransport) SetReadTimeout(d time.Duration) error {
	s.readTimeouts = append(s.readTimeouts, d)
	return nil
}

func (s *scriptedTransport) SetWriteTimeout(d time.Duration) error {
	s.writeTimeouts = append(s.writeTimeouts, d)
	return nil
}

func (s *scriptedTransport) RemoteIP() string {
	return "127.0.0.1"
}

func (s *scriptedTransport) Close() error {
	return nil
}

var timeoutErr = errors.NewTransportError(errors.TransportErrorTimeout, "read timed out", nil)

func testPolicy() TimeoutPolicy {
	return TimeoutPolicy{
		FirstByte: time.Second,
		HeadRest:  50 * time.Millisecond,
		Body:      0,
		Write:     0,
	}
}

func TestFramer_ReadHead_SingleSegment(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nHost: x\r\n\r\n"
	tr := newScriptedTransport(data(raw))

	head, err := NewFramer(tr, testPolicy(), 0, 0).ReadHead()
	if err != nil {
		t.Fatalf("ReadHead failed: %v", err)
	}

	if string(head.Bytes()) != raw {
		t.Errorf("Expected head %q, got %q", raw, head.Bytes())
	}
	if !head.Terminated() {
		t.Error("Expected head to be terminated")
	}
	if len(head.Overread()) != 0 {
		t.Errorf("Expected no over-read, got %q", head.Overread())
	}
}

func TestFramer_ReadHead_AppliesPhaseTimeouts(t *testing.T) {
	tr := newScriptedTransport(data("GET / HTTP/1.1\r\n\r\n"))
	policy := testPolicy()

	if _, err := NewFramer(tr, policy, 0, 0).ReadHead(); err != nil {
		t.Fatalf("ReadHead failed: %v", err)
	}

	if len(tr.readTimeouts) != 2 {
		t.Fatalf("Expected 2 read timeouts, got %v", tr.readTimeouts)
	}
	if tr.readTimeouts[0] != policy.FirstByte || tr.readTimeouts[1] != policy.HeadRest {
		t.Errorf("Expected [%v %v], got %v", policy.FirstByte, policy.HeadRest, tr.readTimeouts)
	}
}

func TestFramer_ReadHead_OverRead(t *testing.T) {
	tr := newScriptedTransport(data("POST / HTTP/1.1\r\nContent-Length: 5\r\n\r\nhel"))

	head, err := NewFramer(tr, testPolicy(), 0, 0).ReadHead()
	if err != nil {
		t.Fatalf("ReadHead failed: %v", err)
	}

	if string(head.Overread()) != "hel" {
		t.Errorf("Expected over-read %q, got %q", "hel", head.Overread())
	}
}

func TestFramer_ReadHead_TerminatorAcrossFullChunks(t *testing.T) {
	prefix := "GET / HTTP/1.1\r\nX-Pad: "
	suffix := "\r\n\r"
	pad := strings.Repeat("p", 1+ChunkSize-len(prefix)-len(suffix))
	first := prefix + pad + suffix
	if len(first) != 1+ChunkSize {
		t.Fatalf("bad fixture length %d", len(first))
	}

	tr := newScriptedTransport(data(first), data("\nbody"))

	head, err := NewFramer(tr, testPolicy(), 0, 0).ReadHead()
	if err != nil {
		t.Fatalf("ReadHead failed: %v", err)
	}

	if string(head.Bytes()) != first+"\n" {
		t.Errorf("Expected head of %d bytes, got %d", len(first)+1, len(head.Bytes()))
	}
	if string(head.Overread()) != "body" {
		t.Errorf("Expected over-read %q, got %q", "body", head.Overread())
	}
}

func TestFramer_ReadHead_ShortReadStopsWithoutTerminator(t *testing.T) {
	tr := newScriptedTransport(data("GET / HTTP/1.1\r\nHost: x\r\n"), data("\r\n"))

	head, err := NewFramer(tr, testPolicy(), 0, 0).ReadHead()
	if err != nil {
		t.Fatalf("ReadHead failed: %v", err)
	}

	if head.Terminated() {
		t.Error("Expected unterminated head after short read")
	}
	if _, err := ParseRequest(head.Bytes()); err != nil {
		t.Errorf("Expected best-effort head to parse, got %v", err)
	}
}

func TestFramer_ReadHead_ErrorAfterBytesIsBestEffort(t *testing.T) {
	first := "G" + strings.Repeat("x", ChunkSize)
	tr := newScriptedTransport(data(first), fail(timeoutErr))

	head, err := NewFramer(tr, testPolicy(), 0, 0).ReadHead()
	if err != nil {
		t.Fatalf("Expected accumulated bytes to be kept, got %v", err)
	}
	if len(head.Bytes()) != len(first) {
		t.Errorf("Expected %d bytes, got %d", len(first), len(head.Bytes()))
	}
}

func TestFramer_ReadHead_FirstByteTimeout(t *testing.T) {
	tr := newScriptedTransport(fail(timeoutErr))

	_, err := NewFramer(tr, testPolicy(), 0, 0).ReadHead()
	if !errors.IsFraming(err, errors.FramingErrorTimeout) {
		t.Errorf("Expected framing Timeout, got %v", err)
	}
}

func TestFramer_ReadHead_NoData(t *testing.T) {
	tr := newScriptedTransport()

	_, err := NewFramer(tr, testPolicy(), 0, 0).ReadHead()
	if !errors.IsFraming(err, errors.FramingErrorNoData) {
		t.Errorf("Expected framing NoData, got %v", err)
	}
}

func TestFramer_ReadHead_TooLarge(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nX-Big: " + strings.Repeat("b", 3*ChunkSize) + "\r\n\r\n"
	tr := newScriptedTransport(data(raw))

	_, err := NewFramer(tr, testPolicy(), 2*ChunkSize, 0).ReadHead()
	if !errors.IsFraming(err, errors.FramingErrorHeadTooLarge) {
		t.Errorf("Expected HeadTooLarge, got %v", err)
	}
}

func TestFramer_ReadBody_FromOverReadOnly(t *testing.T) {
	tr := newScriptedTransport(data("POST / HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello"))
	framer := NewFramer(tr, testPolicy(), 0, 0)

	head, err := framer.ReadHead()
	if err != nil {
		t.Fatalf("ReadHead failed: %v", err)
	}

	body, err := framer.ReadBody(head, 5)
	if err != nil {
		t.Fatalf("ReadBody failed: %v", err)
	}
	if string(body) != "hello" {
		t.Errorf("Expected %q, got %q", "hello", body)
	}
}

func TestFramer_ReadBody_ReadsRemainder(t *testing.T) {
	tr := newScriptedTransport(
		data("POST / HTTP/1.1\r\nContent-Length: 11\r\n\r\nhel"),
		data("lo "),
		data("world"),
	)
	framer := NewFramer(tr, testPolicy(), 0, 0)

	head, err := framer.ReadHead()
	if err != nil {
		t.Fatalf("ReadHead failed: %v", err)
	}

	body, err := framer.ReadBody(head, 11)
	if err != nil {
		t.Fatalf("ReadBody failed: %v", err)
	}
	if string(body) != "hello world" {
		t.Errorf("Expected %q, got %q", "hello world", body)
	}

	last := tr.readTimeouts[len(tr.readTimeouts)-1]
	if last != 0 {
		t.Errorf("Expected no body timeout, got %v", last)
	}
}

func TestFramer_ReadBody_Truncated(t *testing.T) {
	tr := newScriptedTransport(data("POST / HTTP/1.1\r\nContent-Length: 10\r\n\r\nabc"))
	framer := NewFramer(tr, testPolicy(), 0, 0)

	head, err := framer.ReadHead()
	if err != nil {
		t.Fatalf("ReadHead failed: %v", err)
	}

	_, err = framer.ReadBody(head, 10)
	if !errors.IsFraming(err, errors.FramingErrorBodyTruncated) {
		t.Errorf("Expected BodyTruncated, got %v", err)
	}
}

func TestFramer_ReadBody_TooLarge(t *testing.T) {
	framer := NewFramer(newScriptedTransport(), testPolicy(), 0, 16)

	_, err := framer.ReadBody(&Head{}, 17)
	if !errors.IsProtocol(err, errors.ProtocolErrorInvalidContentLength) {
		t.Errorf("Expected InvalidContentLength, got %v", err)
	}
}

func TestFramer_PrepareWrite(t *testing.T) {
	tr := newScriptedTransport()
	policy := testPolicy()
	policy.Write = 2 * time.Second

	if err := NewFramer(tr, policy, 0, 0).PrepareWrite(); err != nil {
		t.Fatalf("PrepareWrite failed: %v", err)
	}

	if len(tr.readTimeouts) != 1 || tr.readTimeouts[0] != 0 {
		t.Errorf("Expected read deadline cleared, got %v", tr.readTimeouts)
	}
	if len(tr.writeTimeouts) != 1 || tr.writeTimeouts[0] != policy.Write {
		t.Errorf("Expected write timeout %v, got %v", policy.Write, tr.writeTimeouts)
	}
}

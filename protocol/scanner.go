package protocol

// headScannerState counts how much of CR LF CR LF has been matched so far
type headScannerState uint8

const (
	scanStart headScannerState = iota
	scanCR
	scanCRLF
	scanCRLFCR
	scanDone
)

// HeadScanner finds the end of a request head in a byte stream fed in
// arbitrary pieces. It only remembers the partial match, never the bytes.
type HeadScanner struct {
	state    headScannerState
	consumed int
}

// Feed scans p. When the terminator completes inside p it returns the index
// just past it and true; otherwise it returns len(p) and false. Feeding a
// finished scanner returns 0, true.
func (s *HeadScanner) Feed(p []byte) (int, bool) {
	if s.state == scanDone {
		return 0, true
	}

	for i, b := range p {
		switch {
		case b == '\r' && (s.state == scanStart || s.state == scanCRLF):
			s.state++
		case b == '\r':
			// a stray CR restarts the match at one
			s.state = scanCR
		case b == '\n' && (s.state == scanCR || s.state == scanCRLFCR):
			s.state++
		default:
			s.state = scanStart
		}

		if s.state == scanDone {
			s.consumed += i + 1
			return i + 1, true
		}
	}

	s.consumed += len(p)
	return len(p), false
}

// Done reports whether the terminator has been seen
func (s *HeadScanner) Done() bool {
	return s.state == scanDone
}

// HeadLength is the number of bytes up to and including the terminator,
// valid once Done is true.
func (s *HeadScanner) HeadLength() int {
	return s.consumed
}

// Reset prepares the scanner for a new stream
func (s *HeadScanner) Reset() {
	s.state = scanStart
	s.consumed = 0
}

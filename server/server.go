package server

import (
	stderrors "errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/iceber/iouring-go"
	"github.com/rs/zerolog"

	"github.com/nicklauri/aden/errors"
	"github.com/nicklauri/aden/mimetype"
	"github.com/nicklauri/aden/protocol"
	"github.com/nicklauri/aden/router"
	"github.com/nicklauri/aden/transport"
)

// acceptBackoff is the pause after a failed Accept
const acceptBackoff = 5 * time.Millisecond

// Server accepts connections and answers one request on each
type Server struct {
	settings Settings
	mimes    *mimetype.Table
	router   *router.Router
	logger   zerolog.Logger
	ring     *iouring.IOURing
	slots    chan struct{}

	mu       sync.Mutex
	listener net.Listener
	closed   bool
	wg       sync.WaitGroup
}

// New creates a server. The MIME table is cloned and then shared read-only
// by every connection.
func New(settings Settings, mimes *mimetype.Table, logger zerolog.Logger) (*Server, error) {
	if mimes == nil {
		mimes = mimetype.Builtin()
	}

	s := &Server{
		settings: settings,
		mimes:    mimes.Clone(),
		logger:   logger,
	}

	if settings.MaxAlive > 0 {
		s.slots = make(chan struct{}, settings.MaxAlive)
	}

	var opener protocol.FileOpener = protocol.StdOpener{}
	if settings.FileEngine == EngineUring {
		opener = protocol.UringOpener{}
	}
	s.router = router.New(settings.Router, router.NewFilesystem(opener), s.mimes)

	if settings.SocketEngine == EngineIOUring {
		entries := settings.RingEntries
		if entries == 0 {
			entries = defaultRingEntries
		}
		ring, err := transport.NewRing(entries)
		if err != nil {
			return nil, err
		}
		s.ring = ring
	}

	return s, nil
}

// ListenAndServe binds the configured address and serves until Close
func (s *Server) ListenAndServe() error {
	listener, err := transport.Listen(s.settings.Address, s.settings.Port)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Serve runs the accept loop on listener until it is closed. Each accepted
// connection holds a worker slot until its handler returns.
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		listener.Close()
		return errors.NewTransportError(errors.TransportErrorListenFailure, "server is closed", nil)
	}
	s.listener = listener
	s.mu.Unlock()

	for {
		s.acquire()
		conn, err := listener.Accept()
		if err != nil {
			s.release()
			if stderrors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn().Err(err).Msg("accept failed")
			time.Sleep(acceptBackoff)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.release()
			s.handle(conn)
		}()
	}
}

// Close stops the accept loop and waits for in-flight connections
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	listener := s.listener
	s.mu.Unlock()

	var err error
	if listener != nil {
		err = listener.Close()
	}
	s.wg.Wait()

	if s.ring != nil {
		s.ring.Close()
	}
	return err
}

func (s *Server) acquire() {
	if s.slots != nil {
		s.slots <- struct{}{}
	}
}

func (s *Server) release() {
	if s.slots != nil {
		<-s.slots
	}
}

func (s *Server) wrap(conn net.Conn) transport.Transport {
	if s.ring != nil {
		if tcp, ok := conn.(*net.TCPConn); ok {
			return transport.NewUringTransport(s.ring, tcp)
		}
	}
	return transport.NewTcpTransport(conn)
}

// exchange is what one connection did, for the log line
type exchange struct {
	status int
	path   string
	kind   router.Kind
	sent   int64
}

func (s *Server) handle(conn net.Conn) {
	start := time.Now()
	t := s.wrap(conn)
	defer t.Close()

	ex, err := s.serveConn(t)
	s.logExchange(t.RemoteIP(), ex, time.Since(start), err)
}

// serveConn runs Accepted -> HeadRead -> Parsed -> Routed -> HeaderSent ->
// BodyStreamed for one connection. Any error ends the exchange early.
func (s *Server) serveConn(t transport.Transport) (exchange, error) {
	var ex exchange
	framer := protocol.NewFramer(t, s.settings.Timeouts, s.settings.MaxHeaderSize, s.settings.MaxBodySize)

	head, err := framer.ReadHead()
	if err != nil {
		if errors.IsFraming(err, errors.FramingErrorHeadTooLarge) {
			return s.badRequest(framer, t, ex, err)
		}
		return ex, err
	}

	req, err := protocol.ParseRequest(head.Bytes())
	if err != nil {
		return s.badRequest(framer, t, ex, err)
	}
	ex.path = req.Path

	length, err := req.ContentLength()
	if err != nil {
		return s.badRequest(framer, t, ex, err)
	}

	var body []byte
	if req.Method == protocol.MethodPost && length > 0 {
		body, err = framer.ReadBody(head, length)
		if err != nil {
			if errors.IsProtocol(err, errors.ProtocolErrorInvalidContentLength) {
				return s.badRequest(framer, t, ex, err)
			}
			return ex, err
		}
	}
	req.SetBody(body)

	res, outcome, err := s.router.Route(req.Path)
	ex.kind = outcome.Kind
	if err != nil {
		return ex, err
	}
	defer res.Close()

	ex.status = res.Status().Code
	ex.sent, err = s.send(framer, t, res)
	return ex, err
}

func (s *Server) badRequest(framer *protocol.Framer, t transport.Transport, ex exchange, cause error) (exchange, error) {
	res := router.RespondBadRequest()
	defer res.Close()

	ex.status = res.Status().Code
	sent, err := s.send(framer, t, res)
	ex.sent = sent
	if err != nil {
		return ex, err
	}
	return ex, cause
}

func (s *Server) send(framer *protocol.Framer, t transport.Transport, res *protocol.Response) (int64, error) {
	if !res.Ready() {
		return 0, errors.NewBuildError(errors.BuildErrorNotReady, "response is incomplete", nil)
	}
	if err := framer.PrepareWrite(); err != nil {
		return 0, err
	}
	return res.WriteTo(t)
}

func (s *Server) logExchange(client string, ex exchange, elapsed time.Duration, err error) {
	status := "-"
	if ex.status != 0 {
		status = strconv.Itoa(ex.status)
	}
	path := "<null>"
	if ex.path != "" {
		path = ex.path
	}

	var event *zerolog.Event
	switch {
	case err == nil:
		event = s.logger.Info()
	case errors.IsFraming(err, errors.FramingErrorNoData):
		event = s.logger.Debug().Err(err)
	default:
		event = s.logger.Warn().Err(err)
	}

	if ex.kind != 0 {
		event = event.Stringer("outcome", ex.kind)
	}

	event.
		Str("client", client).
		Str("status", status).
		Str("path", path).
		Int64("elapsed_ms", elapsed.Milliseconds()).
		Str("sent", humanize.Bytes(uint64(ex.sent))).
		Msg("request")
}

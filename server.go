package eio

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/fatih/structs"
	"nhooyr.io/websocket"

	"github.com/karagenc/eio-server/internal/sync"
	"github.com/karagenc/eio-server/parser"
	"github.com/karagenc/eio-server/transport"
	"github.com/karagenc/eio-server/transport/polling"
	_websocket "github.com/karagenc/eio-server/transport/websocket"
)

type AuthFunc func(w http.ResponseWriter, r *http.Request) (ok bool)

// session is the server's bookkeeping around a Socket.
type session struct {
	socket *Socket

	// Cancelled when the session is closed. Handlers and the heartbeat run under it.
	ctx    context.Context
	cancel context.CancelFunc

	// Packets of one session are dispatched one at a time, in arrival order.
	dispatchMu sync.Mutex

	closeOnce sync.Once
}

type Server struct {
	handler       Handler
	authenticator AuthFunc

	pingInterval   time.Duration
	pingTimeout    time.Duration
	pingGrace      time.Duration
	upgradeTimeout time.Duration

	maxBufferSize int64
	compression   bool
	gzip          func(http.Handler) http.Handler

	wsAcceptOptions *websocket.AcceptOptions

	callbacks Callbacks
	debug     Debugger
	config    ServerConfig

	store *socketStore

	closed    chan struct{}
	closeOnce sync.Once
}

// NewServer creates a server that hands the messages of every socket to handler.
// Missing config values are set to their defaults.
func NewServer(handler Handler, config *ServerConfig) *Server {
	if handler == nil {
		handler = HandlerFuncs{}
	}
	if config == nil {
		config = new(ServerConfig)
	}

	s := &Server{
		handler:       handler,
		authenticator: config.Authenticator,

		pingInterval:   config.PingInterval,
		pingTimeout:    config.PingTimeout,
		pingGrace:      config.PingGrace,
		upgradeTimeout: config.UpgradeTimeout,

		maxBufferSize: config.MaxBufferSize,
		compression:   config.Compression,

		wsAcceptOptions: config.WebSocketAcceptOptions,

		callbacks: config.Callbacks,
		debug:     config.Debugger,

		store: newSocketStore(),

		closed: make(chan struct{}),
	}

	if s.authenticator == nil {
		s.authenticator = func(w http.ResponseWriter, r *http.Request) (ok bool) { return true }
	}
	if s.pingInterval == 0 {
		s.pingInterval = defaultPingInterval
	}
	if s.pingTimeout == 0 {
		s.pingTimeout = defaultPingTimeout
	}
	if s.pingGrace == 0 {
		s.pingGrace = s.pingInterval
	}
	if s.upgradeTimeout == 0 {
		s.upgradeTimeout = defaultUpgradeTimeout
	}
	if config.DisableMaxBufferSize {
		s.maxBufferSize = 0
	} else if s.maxBufferSize == 0 {
		s.maxBufferSize = defaultMaxBufferSize
	}
	if s.debug == nil {
		s.debug = NewNoopDebugger()
	}
	s.debug = s.debug.WithContext("[eio/server]")
	s.callbacks.setMissing()

	s.config = *config
	s.config.PingInterval = s.pingInterval
	s.config.PingTimeout = s.pingTimeout
	s.config.PingGrace = s.pingGrace
	s.config.UpgradeTimeout = s.upgradeTimeout
	s.config.MaxBufferSize = s.maxBufferSize
	return s
}

// Run validates the configuration. It must be called before the server is used.
func (s *Server) Run() error {
	if s.IsClosed() {
		return fmt.Errorf("eio: server is closed. an engine.io server cannot be restarted")
	}
	if s.pingInterval < 0 || s.pingTimeout < 0 || s.pingGrace < 0 || s.upgradeTimeout < 0 {
		return fmt.Errorf("eio: durations must not be negative")
	}
	if s.pingTimeout >= s.pingInterval {
		return fmt.Errorf("eio: pingTimeout (%s) must be less than pingInterval (%s)", s.pingTimeout, s.pingInterval)
	}

	if s.compression {
		// Compress everything. Polling chunks are small and the stream is flushed after each write.
		gz, err := gziphandler.NewGzipLevelAndMinSize(gzip.DefaultCompression, 0)
		if err != nil {
			return err
		}
		s.gzip = gz
	}

	s.debug.Log("Running with", structs.Map(&s.config))
	return nil
}

func (s *Server) PollTimeout() time.Duration {
	return s.pingInterval + s.pingTimeout
}

// HTTPWriteTimeout returns 0. Polling responses are streams that stay open
// for the lifetime of the socket, so http.Server.WriteTimeout must not cut them.
func (s *Server) HTTPWriteTimeout() time.Duration { return 0 }

// SocketCount returns the number of open sockets.
func (s *Server) SocketCount() int { return s.store.len() }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.IsClosed() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	q := r.URL.Query()

	version, err := strconv.Atoi(q.Get("EIO"))
	if err != nil || version != ProtocolVersion {
		writeServerError(w, ErrorUnsupportedProtocolVersion)
		return
	}

	transportName := q.Get("transport")
	if transportName != transport.NamePolling && transportName != transport.NameWebSocket {
		writeServerError(w, ErrorUnknownTransport)
		return
	}

	sidParam := q.Get("sid")
	if sidParam == "" {
		s.handleHandshake(w, r, transportName)
		return
	}

	sid, err := strconv.ParseInt(sidParam, 10, 64)
	if err != nil {
		writeServerError(w, ErrorUnknownSID)
		return
	}
	ss, ok := s.store.get(sid)
	if !ok {
		writeServerError(w, ErrorUnknownSID)
		return
	}

	if transportName == transport.NameWebSocket {
		s.handleUpgrade(w, r, ss)
		return
	}

	if r.Method != "POST" || !ss.socket.IsHTTP() {
		writeServerError(w, ErrorBadRequest)
		return
	}
	s.handleData(w, r, ss)
}

func (s *Server) newHandshakePacket(sid int64, upgrades []string) (*parser.Packet, error) {
	return parser.NewHandshakePacket(&parser.HandshakeResponse{
		SID:          strconv.FormatInt(sid, 10),
		Upgrades:     upgrades,
		PingInterval: s.pingInterval.Milliseconds(),
		PingTimeout:  s.pingTimeout.Milliseconds(),
		MaxPayload:   s.maxBufferSize,
	})
}

func (s *Server) handleHandshake(w http.ResponseWriter, r *http.Request, transportName string) {
	if r.Method != "GET" {
		writeServerError(w, ErrorBadHandshakeMethod)
		return
	}

	ok := s.authenticator(w, r)
	if !ok {
		writeServerError(w, ErrorForbidden)
		return
	}

	sid := nextSID()

	if transportName == transport.NamePolling {
		s.handlePollingHandshake(w, r, sid)
	} else {
		s.handleWebSocketHandshake(w, r, sid)
	}
}

func (s *Server) handlePollingHandshake(w http.ResponseWriter, r *http.Request, sid int64) {
	handshakePacket, err := s.newHandshakePacket(sid, []string{transport.NameWebSocket})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		s.callbacks.OnError(wrapInternalError(fmt.Errorf("newHandshakePacket failed: %w", err)))
		return
	}

	sender := polling.NewSender()
	ss, ok := s.open(NewHTTPSocket(sid, sender, s.debug), handshakePacket)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err = sender.Serve(w, r)
	})
	if s.gzip != nil {
		h = s.gzip(h)
	}
	// Blocks until the stream ends. An aborted stream unwinds from here with http.ErrAbortHandler.
	h.ServeHTTP(w, r)

	if err != nil {
		s.debug.Log("Polling stream ended", sid, err)
		s.closeSession(ss, ReasonTransportClose, nil)
	}
}

func (s *Server) handleWebSocketHandshake(w http.ResponseWriter, r *http.Request, sid int64) {
	handshakePacket, err := s.newHandshakePacket(sid, nil)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		s.callbacks.OnError(wrapInternalError(fmt.Errorf("newHandshakePacket failed: %w", err)))
		return
	}

	conn, err := _websocket.Accept(w, r, s.wsAcceptOptions, s.maxBufferSize)
	if err != nil {
		s.callbacks.OnError(err)
		return
	}

	ss, ok := s.open(NewWebSocketSocket(sid, _websocket.NewSink(conn), s.debug), handshakePacket)
	if !ok {
		conn.Close(websocket.StatusInternalError, "")
		return
	}
	s.readLoop(ss, _websocket.NewReader(conn))
}

// open registers the socket, sends the handshake packet and starts the heartbeat.
func (s *Server) open(socket *Socket, handshakePacket *parser.Packet) (*session, bool) {
	ctx, cancel := context.WithCancel(context.Background())
	ss := &session{
		socket: socket,
		ctx:    ctx,
		cancel: cancel,
	}

	if !s.store.set(ss) {
		cancel()
		socket.Close()
		s.callbacks.OnError(wrapInternalError(fmt.Errorf("sid's overlap")))
		return nil, false
	}

	err := socket.Send(ctx, handshakePacket)
	if err != nil {
		s.closeSession(ss, ReasonTransportError, err)
		return nil, false
	}

	s.debug.Log("New socket", socket.ID(), socket.TransportName())
	s.callbacks.OnSocket(socket)

	go s.watchHeartbeat(ss)
	return ss, true
}

// watchHeartbeat runs the socket's heartbeat and closes the session when it stops.
func (s *Server) watchHeartbeat(ss *session) {
	err := ss.socket.Heartbeat(ss.ctx, HeartbeatConfig{
		Interval: s.pingInterval,
		Timeout:  s.pingTimeout,
		Grace:    s.pingGrace,
	})

	switch {
	case errors.Is(err, ErrPingTimeout):
		s.closeSession(ss, ReasonPingTimeout, nil)
	case err != nil:
		s.closeSession(ss, ReasonTransportError, err)
	case ss.ctx.Err() == nil:
		// Stopped without the session being closed: the application closed the socket.
		s.closeSession(ss, ReasonForcedClose, nil)
	}
}

// handleData dispatches the packets of a polling POST request.
func (s *Server) handleData(w http.ResponseWriter, r *http.Request, ss *session) {
	if s.maxBufferSize > 0 && r.ContentLength > s.maxBufferSize {
		writeServerError(w, ErrorBadRequest)
		s.closeSession(ss, ReasonTransportError, polling.ErrPayloadTooBig)
		return
	}

	packets, err := polling.ReadPayloads(r.Body, s.maxBufferSize)
	if err != nil {
		writeServerError(w, ErrorBadRequest)
		s.closeSession(ss, ReasonTransportError, err)
		return
	}

	ss.dispatchMu.Lock()
	for _, packet := range packets {
		if !s.dispatch(ss, packet) {
			break
		}
	}
	ss.dispatchMu.Unlock()

	// text/html is required instead of text/plain to avoid an
	// unwanted download dialog on certain user-agents (GH-43)
	wh := w.Header()
	wh.Set("Content-Type", "text/html")
	wh.Set("Content-Length", "2")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// readLoop reads and dispatches WebSocket frames until the session ends.
func (s *Server) readLoop(ss *session, reader *_websocket.Reader) {
	for {
		packet, err := reader.Read(ss.ctx)
		if err != nil {
			var decodeErr *_websocket.DecodeError
			if errors.As(err, &decodeErr) {
				s.callbacks.OnError(err)
				continue
			}
			if ss.ctx.Err() != nil {
				return
			}
			if _websocket.IsCleanClose(err) {
				s.closeSession(ss, ReasonTransportClose, nil)
			} else {
				s.closeSession(ss, ReasonTransportError, &TransportError{Op: "read", Transport: transport.NameWebSocket, Err: err})
			}
			return
		}

		ss.dispatchMu.Lock()
		ok := s.dispatch(ss, packet)
		ss.dispatchMu.Unlock()
		if !ok {
			return
		}
	}
}

// dispatch returns false once the session should stop reading.
func (s *Server) dispatch(ss *session, packet *parser.Packet) bool {
	var (
		control = Continue
		err     error
	)
	if packet.IsBinary {
		err = ss.socket.HandleBinary(ss.ctx, packet.Data, s.handler)
	} else {
		control, err = ss.socket.HandlePacket(ss.ctx, packet, s.handler)
	}

	if control == Terminate {
		reason := ReasonTransportClose
		if err != nil {
			reason = ReasonTransportError
		}
		s.closeSession(ss, reason, err)
		return false
	}
	if err != nil {
		s.debug.Log("Packet error", ss.socket.ID(), err)
		s.callbacks.OnError(err)
	}
	return ss.ctx.Err() == nil
}

// closeSession closes the socket, removes it from the store and calls OnClose. Only the first call does anything.
func (s *Server) closeSession(ss *session, reason Reason, err error) {
	ss.closeOnce.Do(func() {
		s.debug.Log("Closing socket", ss.socket.ID(), reason)

		s.store.delete(ss.socket.ID())

		// Close before cancelling, so that the read loop is still
		// there to receive the peer's answer to the close handshake.
		// Close doesn't wait for a stalled send; it cancels it.
		cerr := ss.socket.Close()
		ss.cancel()
		if cerr != nil && !errors.Is(cerr, ErrSocketClosed) {
			s.callbacks.OnError(cerr)
		}
		s.callbacks.OnClose(ss.socket, reason, err)
	})
}

func (s *Server) IsClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// Close stops accepting new connections and closes every open socket.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
	})

	for _, ss := range s.store.getAll() {
		s.closeSession(ss, ReasonServerShutdown, nil)
	}
	return nil
}

package websocket

import (
	"context"
	"net/http"

	"github.com/karagenc/eio-server/internal/sync"
	"github.com/karagenc/eio-server/parser"
	"github.com/karagenc/eio-server/transport"
	"nhooyr.io/websocket"
)

// Accept completes the WebSocket handshake for r.
// On failure the response has already been written.
func Accept(w http.ResponseWriter, r *http.Request, opts *websocket.AcceptOptions, readLimit int64) (*websocket.Conn, error) {
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		return nil, err
	}
	if readLimit > 0 {
		conn.SetReadLimit(readLimit)
	}
	return conn, nil
}

// Sink is the write half of a connection.
type Sink struct {
	conn *websocket.Conn

	closeOnce sync.Once
	closeErr  error
}

func NewSink(conn *websocket.Conn) *Sink {
	return &Sink{conn: conn}
}

func (s *Sink) SendFrame(ctx context.Context, ft transport.FrameType, data []byte) error {
	mt := websocket.MessageText
	if ft == transport.FrameBinary {
		mt = websocket.MessageBinary
	}
	return s.conn.Write(ctx, mt, data)
}

// Close performs the close handshake once. Close codes the peer
// normally answers with are not reported as errors.
func (s *Sink) Close() error {
	s.closeOnce.Do(func() {
		err := s.conn.Close(websocket.StatusNormalClosure, "")
		if !IsCleanClose(err) {
			s.closeErr = err
		}
	})
	return s.closeErr
}

// Reader is the read half of a connection.
type Reader struct {
	conn *websocket.Conn
}

func NewReader(conn *websocket.Conn) *Reader {
	return &Reader{conn: conn}
}

// Read returns the next packet. Binary frames come back as binary MESSAGE packets
// carrying the raw frame.
func (r *Reader) Read(ctx context.Context) (*parser.Packet, error) {
	mt, data, err := r.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	packet, err := parser.Parse(data, mt == websocket.MessageBinary)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return packet, nil
}

// DecodeError is returned by Reader.Read when a frame arrived intact
// but could not be parsed. The connection itself is still usable.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "websocket: " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

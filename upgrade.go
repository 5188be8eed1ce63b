package eio

import (
	"context"
	"fmt"
	"net/http"

	"nhooyr.io/websocket"

	"github.com/karagenc/eio-server/parser"
	"github.com/karagenc/eio-server/transport"
	_websocket "github.com/karagenc/eio-server/transport/websocket"
)

// handleUpgrade moves a polling session to the WebSocket connection of r.
//
// Client sends 2probe, server answers 3probe on the new connection.
// Server then sends a NOOP on polling so the client knows nothing more
// is coming that way, and the client finishes with 5 (UPGRADE).
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request, ss *session) {
	sid := ss.socket.ID()

	if !ss.socket.IsHTTP() {
		writeServerError(w, ErrorBadRequest)
		return
	}
	if !s.store.beginUpgrade(sid) {
		writeServerError(w, ErrorBadRequest)
		return
	}
	defer s.store.endUpgrade(sid)

	conn, err := _websocket.Accept(w, r, s.wsAcceptOptions, s.maxBufferSize)
	if err != nil {
		s.callbacks.OnError(err)
		return
	}

	// nhooyr.io/websocket closes the connection if a read outlives its context.
	ctx, cancel := context.WithTimeout(ss.ctx, s.upgradeTimeout)
	sink := _websocket.NewSink(conn)
	reader := _websocket.NewReader(conn)
	err = s.probe(ctx, ss, sink, reader)
	cancel()
	if err != nil {
		s.debug.Log("Upgrade failed", sid, err)
		conn.Close(websocket.StatusPolicyViolation, "upgrade failed")
		s.callbacks.OnError(fmt.Errorf("eio: upgrade of socket %d failed: %w", sid, err))
		return
	}

	err = ss.socket.UpgradeFromHTTP(sink)
	if err != nil {
		conn.Close(websocket.StatusGoingAway, "")
		s.callbacks.OnError(err)
		return
	}
	s.debug.Log("Upgraded", sid)

	s.store.endUpgrade(sid)
	s.readLoop(ss, reader)
}

func (s *Server) probe(ctx context.Context, ss *session, sink *_websocket.Sink, reader *_websocket.Reader) error {
	packet, err := reader.Read(ctx)
	if err != nil {
		return err
	}
	if packet.Type != parser.PacketTypePing || string(packet.Data) != "probe" {
		return fmt.Errorf("expected 2probe, got: %s", packet)
	}

	pong := parser.MustNewPacket(parser.PacketTypePong, false, []byte("probe"))
	err = sink.SendFrame(ctx, transport.FrameText, pong.Build(false))
	if err != nil {
		return err
	}

	noop := parser.MustNewPacket(parser.PacketTypeNoop, false, nil)
	err = ss.socket.Send(ctx, noop)
	if err != nil {
		return err
	}

	packet, err = reader.Read(ctx)
	if err != nil {
		return err
	}
	if packet.Type != parser.PacketTypeUpgrade {
		return fmt.Errorf("expected an UPGRADE packet, got: %s", packet)
	}
	return nil
}

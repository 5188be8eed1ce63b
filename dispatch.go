package eio

import (
	"context"
	"time"

	"github.com/karagenc/eio-server/parser"
)

// Control tells the caller of HandlePacket whether to keep reading packets.
type Control int

const (
	Continue Control = iota
	// Terminate means the connection should be closed. With a nil error, the peer
	// asked for it; with a non-nil one, the transport failed.
	Terminate
)

func (c Control) String() string {
	if c == Terminate {
		return "terminate"
	}
	return "continue"
}

// HandlePacket processes one decoded packet received from the peer.
//
// A returned error doesn't mean the connection is broken: a packet that is not
// valid mid-session yields Continue with a *ProtocolViolation, and errors of
// the handler are returned as they are, also with Continue. What to do about
// them is up to the caller. A CLOSE packet yields Terminate; closing the socket
// is again left to the caller.
//
// The handler is called without any lock of the socket held,
// so it can send on the socket.
func (s *Socket) HandlePacket(ctx context.Context, packet *parser.Packet, handler Handler) (Control, error) {
	s.debug.Log("Received packet", packet)

	switch packet.Type {
	case parser.PacketTypeOpen:
		return Continue, &ProtocolViolation{PacketType: packet.Type, Reason: "it should only be used in the handshake"}
	case parser.PacketTypeClose:
		return Terminate, nil
	case parser.PacketTypePing:
		return Continue, &ProtocolViolation{PacketType: packet.Type, Reason: "the server doesn't get pinged"}
	case parser.PacketTypePong:
		s.heartbeat.pong(time.Now())
		return Continue, nil
	case parser.PacketTypeMessage:
		var err error
		if packet.IsBinary {
			err = s.HandleBinary(ctx, packet.Data, handler)
		} else {
			err = handler.Handle(ctx, string(packet.Data), s)
		}
		return Continue, err
	case parser.PacketTypeUpgrade:
		return Continue, &ProtocolViolation{PacketType: packet.Type, Reason: "upgrading an upgraded connection is not supported"}
	case parser.PacketTypeNoop:
		return Continue, &ProtocolViolation{PacketType: packet.Type, Reason: "it should only be used in the upgrade process"}
	default:
		return Continue, &ProtocolViolation{PacketType: packet.Type, Reason: "unknown packet type"}
	}
}

// HandleBinary hands binary data to the handler. Binary data has no packet
// envelope, so there is nothing to dispatch on.
func (s *Socket) HandleBinary(ctx context.Context, data []byte, handler Handler) error {
	return handler.HandleBinary(ctx, data, s)
}

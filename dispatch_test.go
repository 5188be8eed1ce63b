package eio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/karagenc/eio-server/internal/utils"
	"github.com/karagenc/eio-server/parser"
)

func TestHandlePacket(t *testing.T) {
	ctx := context.Background()

	newSockets := func() []*Socket {
		httpSocket := NewHTTPSocket(100, utils.NewTestHTTPSender(), nil)
		wsSocket := NewWebSocketSocket(101, utils.NewTestFrameSink(), nil)
		upgraded := NewHTTPSocket(102, utils.NewTestHTTPSender(), nil)
		if err := upgraded.UpgradeFromHTTP(utils.NewTestFrameSink()); err != nil {
			t.Fatal(err)
		}
		return []*Socket{httpSocket, wsSocket, upgraded}
	}

	t.Run("packets that are invalid mid-session should be protocol violations", func(t *testing.T) {
		types := []parser.PacketType{
			parser.PacketTypeOpen,
			parser.PacketTypePing,
			parser.PacketTypeUpgrade,
			parser.PacketTypeNoop,
		}
		for _, socket := range newSockets() {
			for _, pt := range types {
				control, err := socket.HandlePacket(ctx, parser.MustNewPacket(pt, false, nil), HandlerFuncs{})
				require.Equal(t, Continue, control, pt.String())

				var violation *ProtocolViolation
				require.ErrorAs(t, err, &violation, pt.String())
				require.Equal(t, pt, violation.PacketType)
			}
		}
	})

	t.Run("unknown packet type should be a protocol violation", func(t *testing.T) {
		socket := NewHTTPSocket(103, utils.NewTestHTTPSender(), nil)
		control, err := socket.HandlePacket(ctx, &parser.Packet{Type: parser.PacketType(9)}, HandlerFuncs{})
		require.Equal(t, Continue, control)
		var violation *ProtocolViolation
		require.ErrorAs(t, err, &violation)
	})

	t.Run("CLOSE should terminate", func(t *testing.T) {
		for _, socket := range newSockets() {
			control, err := socket.HandlePacket(ctx, parser.MustNewPacket(parser.PacketTypeClose, false, nil), HandlerFuncs{})
			require.NoError(t, err)
			require.Equal(t, Terminate, control)

			// Closing is left to the caller.
			require.NotEqual(t, "", socket.TransportName())
		}
	})

	t.Run("PONG should update the last pong time", func(t *testing.T) {
		for _, socket := range newSockets() {
			before := time.Now()
			control, err := socket.HandlePacket(ctx, parser.MustNewPacket(parser.PacketTypePong, false, nil), HandlerFuncs{})
			require.NoError(t, err)
			require.Equal(t, Continue, control)
			require.False(t, socket.LastPong().Before(before))
		}
	})

	t.Run("MESSAGE should be handed to the handler", func(t *testing.T) {
		socket := NewHTTPSocket(104, utils.NewTestHTTPSender(), nil)

		var received []string
		handler := HandlerFuncs{
			OnMessage: func(ctx context.Context, text string, s *Socket) error {
				require.Same(t, socket, s)
				received = append(received, text)
				return nil
			},
		}

		for _, text := range []string{"first", "second", ""} {
			control, err := socket.HandlePacket(ctx, parser.MustNewPacket(parser.PacketTypeMessage, false, []byte(text)), handler)
			require.NoError(t, err)
			require.Equal(t, Continue, control)
		}
		require.Equal(t, []string{"first", "second", ""}, received)
	})

	t.Run("handler errors should be returned unchanged", func(t *testing.T) {
		socket := NewHTTPSocket(105, utils.NewTestHTTPSender(), nil)
		handlerErr := errors.New("application failure")
		handler := HandlerFuncs{
			OnMessage: func(ctx context.Context, text string, s *Socket) error { return handlerErr },
		}

		control, err := socket.HandlePacket(ctx, parser.MustNewPacket(parser.PacketTypeMessage, false, []byte("x")), handler)
		require.Equal(t, Continue, control)
		require.Equal(t, handlerErr, err)
	})

	t.Run("binary MESSAGE should be handed to HandleBinary", func(t *testing.T) {
		socket := NewWebSocketSocket(106, utils.NewTestFrameSink(), nil)

		var received []byte
		handler := HandlerFuncs{
			OnMessage: func(ctx context.Context, text string, s *Socket) error {
				t.Fatal("text handler should not be called")
				return nil
			},
			OnBinary: func(ctx context.Context, data []byte, s *Socket) error {
				received = data
				return nil
			},
		}

		control, err := socket.HandlePacket(ctx, parser.MustNewPacket(parser.PacketTypeMessage, true, []byte{1, 2, 3}), handler)
		require.NoError(t, err)
		require.Equal(t, Continue, control)
		require.Equal(t, []byte{1, 2, 3}, received)
	})
}

func TestHandleBinary(t *testing.T) {
	socket := NewWebSocketSocket(107, utils.NewTestFrameSink(), nil)
	handlerErr := errors.New("cannot decode")

	err := socket.HandleBinary(context.Background(), []byte{0xde, 0xad}, HandlerFuncs{
		OnBinary: func(ctx context.Context, data []byte, s *Socket) error {
			require.Equal(t, []byte{0xde, 0xad}, data)
			return handlerErr
		},
	})
	require.Equal(t, handlerErr, err)

	// Nil functions ignore the data.
	require.NoError(t, socket.HandleBinary(context.Background(), []byte{1}, HandlerFuncs{}))
}

func TestControlString(t *testing.T) {
	require.Equal(t, "continue", Continue.String())
	require.Equal(t, "terminate", Terminate.String())
}

package eio

import (
	"context"

	"github.com/karagenc/eio-server/transport"
)

type FrameType = transport.FrameType

const (
	FrameText   = transport.FrameText
	FrameBinary = transport.FrameBinary
)

type (
	// HTTPSender streams a long-polling response.
	HTTPSender interface {
		SendChunk(ctx context.Context, chunk []byte) error

		// Abort terminates the response without ending it gracefully.
		Abort()
	}

	// FrameSink is the write half of a WebSocket connection.
	FrameSink interface {
		// SendFrame must return once ctx is done. Socket.Close relies on it
		// to take the connection away from a stalled write.
		SendFrame(ctx context.Context, ft FrameType, data []byte) error

		// Close performs the close handshake.
		Close() error
	}

	// An HTTPSender can implement this to be told that
	// the session moved to WebSocket and the response can end normally.
	discarder interface {
		Discard()
	}
)

// transportChannel is either *httpChannel or *wsChannel.
// A Socket with a nil transportChannel is closed.
type transportChannel interface {
	name() string
	sendText(ctx context.Context, data []byte) error
	sendBinary(ctx context.Context, data []byte) error
	close() error
}

type httpChannel struct {
	sender HTTPSender
}

func (c *httpChannel) name() string { return transport.NamePolling }

func (c *httpChannel) sendText(ctx context.Context, data []byte) error {
	return c.sender.SendChunk(ctx, data)
}

func (c *httpChannel) sendBinary(ctx context.Context, data []byte) error {
	return c.sender.SendChunk(ctx, data)
}

func (c *httpChannel) close() error {
	c.sender.Abort()
	return nil
}

func (c *httpChannel) discard() {
	if d, ok := c.sender.(discarder); ok {
		d.Discard()
	}
}

type wsChannel struct {
	sink FrameSink
}

func (c *wsChannel) name() string { return transport.NameWebSocket }

func (c *wsChannel) sendText(ctx context.Context, data []byte) error {
	return c.sink.SendFrame(ctx, FrameText, data)
}

func (c *wsChannel) sendBinary(ctx context.Context, data []byte) error {
	return c.sink.SendFrame(ctx, FrameBinary, data)
}

func (c *wsChannel) close() error { return c.sink.Close() }

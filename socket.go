package eio

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/karagenc/eio-server/internal/sync"
	"github.com/karagenc/eio-server/parser"
	"github.com/karagenc/eio-server/transport"
)

// Socket is one logical connection. It starts on either long-polling or WebSocket,
// can move from polling to WebSocket once, and is closed exactly once.
//
// Every write to the underlying channel (sends, the upgrade swap and close)
// happens while holding the write slot, so writes from the packet handler, the
// heartbeat and the application never interleave. Waiting for the slot can be
// cancelled, and closing the socket cancels the write in progress, so a stalled
// peer cannot keep the other writers or Close waiting.
type Socket struct {
	id int64

	// Guarded by writeSlot.
	channel transportChannel

	// Holding a value in it means holding the channel.
	writeSlot chan struct{}

	// Readable without the write slot so that queries and logging never wait for a write.
	transportName atomic.Value

	heartbeat *heartbeatState

	// Cancelled by Close. Every write runs under a context derived from it.
	closed    context.Context
	closeFunc context.CancelFunc
	closeOnce sync.Once

	debug Debugger
}

// NewHTTPSocket creates a socket on the long-polling transport.
func NewHTTPSocket(sid int64, sender HTTPSender, debug Debugger) *Socket {
	return newSocket(sid, &httpChannel{sender: sender}, debug)
}

// NewWebSocketSocket creates a socket that is on WebSocket from the start.
func NewWebSocketSocket(sid int64, sink FrameSink, debug Debugger) *Socket {
	return newSocket(sid, &wsChannel{sink: sink}, debug)
}

func newSocket(sid int64, c transportChannel, debug Debugger) *Socket {
	if debug == nil {
		debug = NewNoopDebugger()
	}

	closed, closeFunc := context.WithCancel(context.Background())
	s := &Socket{
		id:        sid,
		channel:   c,
		writeSlot: make(chan struct{}, 1),
		heartbeat: newHeartbeatState(time.Now()),
		closed:    closed,
		closeFunc: closeFunc,
	}
	s.transportName.Store(c.name())
	s.debug = debug.WithDynamicContext("[eio] Socket with ID: "+strconv.FormatInt(sid, 10), s.TransportName)
	return s
}

// acquire takes the write slot. It fails with ctx's error,
// or with ErrSocketClosed once the socket is closed.
func (s *Socket) acquire(ctx context.Context) error {
	select {
	case <-s.closed.Done():
		return ErrSocketClosed
	default:
	}

	select {
	case s.writeSlot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closed.Done():
		return ErrSocketClosed
	}
}

func (s *Socket) release() { <-s.writeSlot }

// writeContext returns a context that is also cancelled when the socket is closed.
func (s *Socket) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.closed, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Session ID (sid)
func (s *Socket) ID() int64 { return s.id }

// Name of the current transport. Empty once the socket is closed.
func (s *Socket) TransportName() string {
	name, _ := s.transportName.Load().(string)
	return name
}

func (s *Socket) IsHTTP() bool { return s.TransportName() == transport.NamePolling }

func (s *Socket) IsWebSocket() bool { return s.TransportName() == transport.NameWebSocket }

// LastPong returns when the last PONG was received,
// or when the socket was created if none was received yet.
func (s *Socket) LastPong() time.Time { return s.heartbeat.last() }

// Done is closed when Close is called.
func (s *Socket) Done() <-chan struct{} { return s.closed.Done() }

// UpgradeFromHTTP moves the socket from long-polling to WebSocket.
// The swap waits for the send in progress, so a concurrent send goes out
// either entirely over polling or entirely over WebSocket.
//
// If the socket is not on polling, nothing changes and ErrNotUpgradable
// (or ErrSocketClosed) is returned.
func (s *Socket) UpgradeFromHTTP(sink FrameSink) error {
	err := s.acquire(context.Background())
	if err != nil {
		return err
	}
	defer s.release()

	if s.channel == nil {
		return ErrSocketClosed
	}
	old, ok := s.channel.(*httpChannel)
	if !ok {
		return ErrNotUpgradable
	}

	s.channel = &wsChannel{sink: sink}
	s.transportName.Store(s.channel.name())
	old.discard()

	s.debug.Log("Upgraded from", old.name())
	return nil
}

// Close aborts the polling response or performs the WebSocket close handshake,
// and stops the heartbeat. A write in progress is cancelled first.
// Only the first call does anything; later calls return ErrSocketClosed.
func (s *Socket) Close() error {
	first := false
	s.closeOnce.Do(func() {
		first = true
		s.closeFunc()
	})
	if !first {
		return ErrSocketClosed
	}

	// The writer holding the slot has had its context cancelled above.
	s.writeSlot <- struct{}{}
	c := s.channel
	s.channel = nil
	s.transportName.Store("")
	s.release()

	s.debug.Log("Closing", c.name())

	// c can no longer be reached by any other writer.
	err := c.close()
	if err != nil {
		return &TransportError{Op: "close", Transport: c.name(), Err: err}
	}
	return nil
}

// write runs fn with the channel held. A closed socket makes it a silent no-op.
func (s *Socket) write(ctx context.Context, fn func(ctx context.Context, c transportChannel) error) error {
	err := s.acquire(ctx)
	if err == ErrSocketClosed {
		return nil
	} else if err != nil {
		return err
	}
	defer s.release()

	// The slot can be won in the same instant Close is called.
	if s.channel == nil || s.closed.Err() != nil {
		return nil
	}

	ctx, cancel := s.writeContext(ctx)
	defer cancel()

	err = fn(ctx, s.channel)
	if err != nil {
		return &TransportError{Op: "send", Transport: s.channel.name(), Err: err}
	}
	return nil
}

// Send writes a packet in its text encoding: as a chunk on polling,
// as a text frame on WebSocket. Sending on a closed socket is a no-op
// and returns nil; use the heartbeat to find out whether the peer is alive.
//
// Send gives up with ctx's error if ctx is done while it waits for another write.
func (s *Socket) Send(ctx context.Context, packet *parser.Packet) error {
	data := packet.Build(false)
	return s.write(ctx, func(ctx context.Context, c transportChannel) error {
		s.debug.Log("Sending packet", packet)
		return c.sendText(ctx, data)
	})
}

// Emit sends text as a MESSAGE packet.
func (s *Socket) Emit(ctx context.Context, text string) error {
	return s.Send(ctx, &parser.Packet{
		Type: parser.PacketTypeMessage,
		Data: []byte(text),
	})
}

// EmitBinary writes data as it is: a chunk on polling, a binary frame on WebSocket.
// It is never wrapped in a packet envelope.
func (s *Socket) EmitBinary(ctx context.Context, data []byte) error {
	return s.write(ctx, func(ctx context.Context, c transportChannel) error {
		s.debug.Log("Sending binary data", len(data))
		return c.sendBinary(ctx, data)
	})
}

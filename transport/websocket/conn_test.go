package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/karagenc/eio-server/parser"
	"github.com/karagenc/eio-server/transport"
)

func newTestPair(t *testing.T, onConn func(conn *websocket.Conn)) *websocket.Conn {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Accept(w, r, nil, 1024)
		if err != nil {
			t.Error(err)
			return
		}
		onConn(conn)
	}))
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close(websocket.StatusNormalClosure, "") })
	return client
}

func TestSink(t *testing.T) {
	t.Run("should keep text and binary frames apart", func(t *testing.T) {
		client := newTestPair(t, func(conn *websocket.Conn) {
			sink := NewSink(conn)
			ctx := context.Background()
			_ = sink.SendFrame(ctx, transport.FrameText, []byte("4hi"))
			_ = sink.SendFrame(ctx, transport.FrameBinary, []byte{0x0, 0x1})
			// Keep the handler alive until the client is done reading.
			_, _, _ = conn.Read(ctx)
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		mt, data, err := client.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, websocket.MessageText, mt)
		assert.Equal(t, []byte("4hi"), data)

		mt, data, err = client.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, websocket.MessageBinary, mt)
		assert.Equal(t, []byte{0x0, 0x1}, data)
	})

	t.Run("should close with a normal closure", func(t *testing.T) {
		closed := make(chan error, 1)
		client := newTestPair(t, func(conn *websocket.Conn) {
			sink := NewSink(conn)
			closed <- sink.Close()
			assert.NoError(t, sink.Close(), "second close is a no-op")
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, _, err := client.Read(ctx)
		assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
		assert.NoError(t, <-closed)
	})
}

func TestReader(t *testing.T) {
	packets := make(chan *parser.Packet, 2)
	errs := make(chan error, 1)

	client := newTestPair(t, func(conn *websocket.Conn) {
		r := NewReader(conn)
		for i := 0; i < 3; i++ {
			p, err := r.Read(context.Background())
			if err != nil {
				errs <- err
				continue
			}
			packets <- p
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Write(ctx, websocket.MessageText, []byte("4hello")))
	require.NoError(t, client.Write(ctx, websocket.MessageBinary, []byte{0x9}))
	require.NoError(t, client.Write(ctx, websocket.MessageText, []byte("9")))

	p := <-packets
	assert.Equal(t, parser.PacketTypeMessage, p.Type)
	assert.False(t, p.IsBinary)
	assert.Equal(t, []byte("hello"), p.Data)

	p = <-packets
	assert.True(t, p.IsBinary)
	assert.Equal(t, []byte{0x9}, p.Data)

	var decodeErr *DecodeError
	assert.True(t, errors.As(<-errs, &decodeErr))
}

func TestIsCleanClose(t *testing.T) {
	assert.True(t, IsCleanClose(nil))
	assert.True(t, IsCleanClose(context.Canceled))
	assert.False(t, IsCleanClose(errors.New("boom")))
}

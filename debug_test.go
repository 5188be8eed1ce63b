package eio

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/karagenc/eio-server/internal/utils"
)

func TestDebugger(t *testing.T) {
	t.Run("should join context and values", func(t *testing.T) {
		var buf bytes.Buffer
		d := NewWriterDebugger(&buf).WithContext("[eio/server]")
		d.Log("Closing socket", 42, ReasonPingTimeout)
		require.Equal(t, "[eio/server]: Closing socket: 42: ping timeout\n", buf.String())
	})

	t.Run("dynamic context should follow the transport of the socket", func(t *testing.T) {
		var buf bytes.Buffer
		socket := NewHTTPSocket(42, utils.NewTestHTTPSender(), NewWriterDebugger(&buf))

		require.NoError(t, socket.UpgradeFromHTTP(utils.NewTestFrameSink()))
		require.Equal(t, "[eio] Socket with ID: 42: websocket: Upgraded from: polling\n", buf.String())

		buf.Reset()
		require.NoError(t, socket.Close())
		require.Equal(t, "[eio] Socket with ID: 42: Closing: websocket\n", buf.String())

		buf.Reset()
		require.NoError(t, socket.Emit(context.Background(), "ignored"))
		require.Empty(t, buf.String())
	})

	t.Run("noop debugger should stay noop", func(t *testing.T) {
		d := NewNoopDebugger().WithContext("ctx").WithDynamicContext("ctx", func() string { return "x" })
		d.Log("nothing")
		require.Equal(t, NewNoopDebugger(), d)
	})
}

package websocket

import (
	"context"
	"errors"
	"io"
	"net"

	"nhooyr.io/websocket"
)

var expectedCloseCodes = []websocket.StatusCode{
	websocket.StatusNormalClosure,
	websocket.StatusGoingAway,
	websocket.StatusNoStatusRcvd,
	websocket.StatusAbnormalClosure,
}

// IsCleanClose reports whether err only says that the connection went away
// the way connections normally do.
func IsCleanClose(err error) bool {
	if err == nil {
		return true
	}
	status := websocket.CloseStatus(err)
	for _, expected := range expectedCloseCodes {
		if status == expected {
			return true
		}
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, context.Canceled)
}

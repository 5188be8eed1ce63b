// Package transport holds what the polling and websocket transports share
// with the socket that drives them.
package transport

type FrameType int

const (
	FrameText FrameType = iota
	FrameBinary
)

func (t FrameType) String() string {
	if t == FrameBinary {
		return "binary"
	}
	return "text"
}

const (
	NamePolling   = "polling"
	NameWebSocket = "websocket"
)

package eio

type (
	SocketCallback func(socket *Socket)
	ErrorCallback  func(err error)
	// err can be nil. Always do a nil check.
	CloseCallback func(socket *Socket, reason Reason, err error)
)

type Callbacks struct {
	// Called once the handshake of a new socket is done.
	OnSocket SocketCallback

	// Called for errors that don't close the socket, such as protocol
	// violations, handler errors and failed upgrades.
	OnError ErrorCallback

	OnClose CloseCallback
}

func (c *Callbacks) setMissing() {
	if c.OnSocket == nil {
		c.OnSocket = func(socket *Socket) {}
	}
	if c.OnError == nil {
		c.OnError = func(err error) {}
	}
	if c.OnClose == nil {
		c.OnClose = func(socket *Socket, reason Reason, err error) {}
	}
}

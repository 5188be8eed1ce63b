package eio

import "context"

// Handler receives the application messages of a socket.
// It may send on the socket while handling a message.
type Handler interface {
	Handle(ctx context.Context, text string, socket *Socket) error
	HandleBinary(ctx context.Context, data []byte, socket *Socket) error
}

// HandlerFuncs is a Handler made of functions. Nil fields ignore the message.
type HandlerFuncs struct {
	OnMessage func(ctx context.Context, text string, socket *Socket) error
	OnBinary  func(ctx context.Context, data []byte, socket *Socket) error
}

var _ Handler = HandlerFuncs{}

func (h HandlerFuncs) Handle(ctx context.Context, text string, socket *Socket) error {
	if h.OnMessage == nil {
		return nil
	}
	return h.OnMessage(ctx, text, socket)
}

func (h HandlerFuncs) HandleBinary(ctx context.Context, data []byte, socket *Socket) error {
	if h.OnBinary == nil {
		return nil
	}
	return h.OnBinary(ctx, data, socket)
}

package eio

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"nhooyr.io/websocket"
)

const ProtocolVersion = 4

const (
	defaultPingTimeout    = time.Second * 20
	defaultPingInterval   = time.Second * 25
	defaultUpgradeTimeout = time.Second * 10
	defaultMaxBufferSize  = 1e6
)

type ServerConfig struct {
	// When to send PING packets to clients.
	PingInterval time.Duration

	// After sending PING, client should send PONG before this timeout exceeds.
	PingTimeout time.Duration

	// Time to wait before the first PING of a socket. Defaults to PingInterval.
	PingGrace time.Duration

	// Timeout to wait before upgrading a client transport.
	UpgradeTimeout time.Duration

	// MaxBufferSize is used for preventing DOS.
	// This is the equivalent of maxHTTPBufferSize.
	MaxBufferSize        int64
	DisableMaxBufferSize bool

	// Gzip the polling stream for clients that accept it.
	Compression bool

	// Called before a new socket is created. Returning false rejects the handshake with 403.
	Authenticator AuthFunc `structs:"-" mapstructure:"-"`

	// Custom WebSocket options to use.
	WebSocketAcceptOptions *websocket.AcceptOptions `structs:"-" mapstructure:"-"`

	Callbacks Callbacks `structs:"-" mapstructure:"-"`

	// For debugging purposes. Leave it nil if it is of no use.
	Debugger Debugger `structs:"-" mapstructure:"-"`
}

// DecodeServerConfig fills a ServerConfig from a generic map, such as one read
// from a configuration file. Keys match field names case insensitively.
// Durations can be given as strings ("25s") or as nanoseconds.
func DecodeServerConfig(m map[string]any) (*ServerConfig, error) {
	config := new(ServerConfig)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           config,
	})
	if err != nil {
		return nil, err
	}
	err = decoder.Decode(m)
	if err != nil {
		return nil, fmt.Errorf("eio: invalid server config: %w", err)
	}
	return config, nil
}

package parser

import (
	"fmt"
	"time"

	"github.com/karagenc/eio-server/internal/json"
)

type HandshakeResponse struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int64    `json:"pingInterval"`
	PingTimeout  int64    `json:"pingTimeout"`
	MaxPayload   int64    `json:"maxPayload"`
}

func (hr *HandshakeResponse) GetPingInterval() time.Duration {
	return time.Duration(hr.PingInterval) * time.Millisecond
}

func (hr *HandshakeResponse) GetPingTimeout() time.Duration {
	return time.Duration(hr.PingTimeout) * time.Millisecond
}

// NewHandshakePacket builds the OPEN packet sent as the first packet of a session.
func NewHandshakePacket(hr *HandshakeResponse) (*Packet, error) {
	if hr.Upgrades == nil {
		hr.Upgrades = []string{}
	}
	data, err := json.Marshal(hr)
	if err != nil {
		return nil, err
	}
	return NewPacket(PacketTypeOpen, false, data)
}

func ParseHandshakeResponse(p *Packet) (*HandshakeResponse, error) {
	if p.Type != PacketTypeOpen {
		return nil, fmt.Errorf("parser: packet with a type of OPEN was expected, got %s", p.Type)
	}

	hr := new(HandshakeResponse)
	err := json.Unmarshal(p.Data, hr)
	if err != nil {
		return nil, err
	}
	return hr, nil
}

package parser

import (
	"encoding/base64"
	"fmt"
	"strconv"
)

type PacketType byte

const (
	PacketTypeOpen PacketType = iota
	PacketTypeClose
	PacketTypePing
	PacketTypePong
	PacketTypeMessage
	PacketTypeUpgrade
	PacketTypeNoop

	packetTypeMax = PacketTypeNoop
)

var packetTypeNames = [...]string{
	PacketTypeOpen:    "OPEN",
	PacketTypeClose:   "CLOSE",
	PacketTypePing:    "PING",
	PacketTypePong:    "PONG",
	PacketTypeMessage: "MESSAGE",
	PacketTypeUpgrade: "UPGRADE",
	PacketTypeNoop:    "NOOP",
}

func (p PacketType) String() string {
	if p > packetTypeMax {
		return "UNKNOWN(" + strconv.Itoa(int(p)) + ")"
	}
	return packetTypeNames[p]
}

// ToChar returns the ASCII digit the packet type is written as.
func (p PacketType) ToChar() byte { return byte(p) + '0' }

func (p *PacketType) FromChar(b byte) error {
	if b < '0' || b > packetTypeMax.ToChar() {
		return errInvalidPacketType
	}
	*p = PacketType(b - '0')
	return nil
}

// Binary data sent inside a text envelope is base64 encoded and prefixed with this byte.
const base64Prefix byte = 'b'

var (
	errInvalidPacketSize = fmt.Errorf("parser: invalid packet size")
	errInvalidPacketType = fmt.Errorf("parser: invalid packet type")
)

type Packet struct {
	IsBinary bool
	Type     PacketType
	Data     []byte
}

// NewPacket creates a packet. Only MESSAGE packets can carry binary data.
func NewPacket(packetType PacketType, isBinary bool, data []byte) (*Packet, error) {
	if packetType > packetTypeMax {
		return nil, errInvalidPacketType
	}
	if packetType != PacketTypeMessage && isBinary {
		return nil, errInvalidPacketType
	}
	return &Packet{
		IsBinary: isBinary,
		Type:     packetType,
		Data:     data,
	}, nil
}

// MustNewPacket is like NewPacket but panics on an invalid type/binary combination.
// Use it for packets built from constants.
func MustNewPacket(packetType PacketType, isBinary bool, data []byte) *Packet {
	p, err := NewPacket(packetType, isBinary, data)
	if err != nil {
		panic(err)
	}
	return p
}

// Parse decodes a single packet. binaryData reports whether data arrived
// as a binary frame, in which case it is taken as a raw MESSAGE.
func Parse(data []byte, binaryData bool) (*Packet, error) {
	if binaryData {
		return &Packet{
			IsBinary: true,
			Type:     PacketTypeMessage,
			Data:     data,
		}, nil
	}

	if len(data) < 1 {
		return nil, errInvalidPacketSize
	}

	if data[0] == base64Prefix {
		encoded := data[1:]
		decoded := make([]byte, base64.StdEncoding.DecodedLen(len(encoded)))
		n, err := base64.StdEncoding.Decode(decoded, encoded)
		if err != nil {
			return nil, fmt.Errorf("parser: invalid base64 payload: %w", err)
		}
		return &Packet{
			IsBinary: true,
			Type:     PacketTypeMessage,
			Data:     decoded[:n],
		}, nil
	}

	packet := new(Packet)
	if err := packet.Type.FromChar(data[0]); err != nil {
		return nil, err
	}
	packet.Data = data[1:]
	return packet, nil
}

// Build encodes the packet. If supportsBinary is true, binary packets are returned
// as is (to be written as a binary frame); otherwise they're base64 encoded into a text envelope.
func (p *Packet) Build(supportsBinary bool) []byte {
	if p.IsBinary {
		if supportsBinary {
			return p.Data
		}
		b := make([]byte, 1+base64.StdEncoding.EncodedLen(len(p.Data)))
		b[0] = base64Prefix
		base64.StdEncoding.Encode(b[1:], p.Data)
		return b
	}

	b := make([]byte, 1+len(p.Data))
	b[0] = p.Type.ToChar()
	copy(b[1:], p.Data)
	return b
}

func (p *Packet) String() string {
	if p.IsBinary {
		return fmt.Sprintf("%s <binary, %d bytes>", p.Type, len(p.Data))
	}
	return fmt.Sprintf("%s %q", p.Type, p.Data)
}

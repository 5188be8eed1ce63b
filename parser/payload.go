package parser

import "bytes"

// RecordSeparator delimits packets inside a polling payload.
const RecordSeparator byte = 0x1e

// EncodePayloads joins packets with RecordSeparator. Binary packets are base64 encoded.
func EncodePayloads(packets ...*Packet) []byte {
	var buf bytes.Buffer
	for i, packet := range packets {
		if i != 0 {
			buf.WriteByte(RecordSeparator)
		}
		buf.Write(packet.Build(false))
	}
	return buf.Bytes()
}

func DecodePayloads(b []byte) ([]*Packet, error) {
	split := bytes.Split(b, []byte{RecordSeparator})
	packets := make([]*Packet, 0, len(split))

	for _, sp := range split {
		packet, err := Parse(sp, false)
		if err != nil {
			return nil, err
		}
		packets = append(packets, packet)
	}
	return packets, nil
}

package utils

import (
	"bufio"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/tomruk/yeast"
	"nhooyr.io/websocket"

	"github.com/karagenc/eio-server/parser"
	"github.com/karagenc/eio-server/transport"
)

var yeaster = yeast.New()

// EIOURL builds the engine.io URL of ts. sid is left out when empty.
// A cache busting t parameter is added, like browsers do.
func EIOURL(t *testing.T, ts *httptest.Server, transportName, sid string) string {
	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	q := u.Query()
	q.Add("EIO", "4")
	q.Add("transport", transportName)
	if sid != "" {
		q.Add("sid", sid)
	}
	q.Add("t", yeaster.Yeast())
	u.RawQuery = q.Encode()
	return u.String()
}

// PollingStream is the open response of a polling handshake.
type PollingStream struct {
	Response *http.Response
	r        *bufio.Reader
}

// Next returns the next record of the stream, without the separator.
func (s *PollingStream) Next() (string, error) {
	record, err := s.r.ReadString(parser.RecordSeparator)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(record, string(rune(parser.RecordSeparator))), nil
}

func (s *PollingStream) Close() error { return s.Response.Body.Close() }

// EIOHandshake opens a polling session and reads its OPEN packet.
func EIOHandshake(t *testing.T, ts *httptest.Server) (hr *parser.HandshakeResponse, stream *PollingStream) {
	req, err := http.NewRequest("GET", EIOURL(t, ts, transport.NamePolling, ""), nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		t.Fatalf("handshake failed with status: %d", resp.StatusCode)
	}

	stream = &PollingStream{Response: resp, r: bufio.NewReader(resp.Body)}
	t.Cleanup(func() { stream.Close() })

	record, err := stream.Next()
	if err != nil {
		t.Fatal(err)
	}
	packet, err := parser.Parse([]byte(record), false)
	if err != nil {
		t.Fatal(err)
	}
	hr, err = parser.ParseHandshakeResponse(packet)
	if err != nil {
		t.Fatal(err)
	}
	return
}

// EIOPush posts the given packets to the session and returns the response status.
func EIOPush(t *testing.T, ts *httptest.Server, sid string, packets ...*parser.Packet) (status int) {
	body := bytes.NewReader(parser.EncodePayloads(packets...))
	req, err := http.NewRequest("POST", EIOURL(t, ts, transport.NamePolling, sid), body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

// EIODial opens a WebSocket connection. With an empty sid it is a handshake,
// otherwise it is an upgrade of that session.
func EIODial(t *testing.T, ts *httptest.Server, sid string) *websocket.Conn {
	u := strings.Replace(EIOURL(t, ts, transport.NameWebSocket, sid), "http", "ws", 1)
	conn, _, err := websocket.Dial(context.Background(), u, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

// EIOReadText reads a text frame and parses it as a packet.
func EIOReadText(t *testing.T, conn *websocket.Conn) *parser.Packet {
	mt, data, err := conn.Read(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if mt != websocket.MessageText {
		t.Fatalf("expected a text frame, got: %s", mt)
	}
	packet, err := parser.Parse(data, false)
	if err != nil {
		t.Fatal(err)
	}
	return packet
}

// EIOWriteText writes a packet as a text frame.
func EIOWriteText(t *testing.T, conn *websocket.Conn, packet *parser.Packet) {
	err := conn.Write(context.Background(), websocket.MessageText, packet.Build(false))
	if err != nil {
		t.Fatal(err)
	}
}

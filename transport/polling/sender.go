package polling

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/karagenc/eio-server/internal/sync"
	"github.com/karagenc/eio-server/parser"
)

var (
	ErrAborted        = errors.New("polling: stream aborted")
	ErrDiscarded      = errors.New("polling: stream discarded")
	ErrAlreadyServing = errors.New("polling: stream is already being served")
	ErrPayloadTooBig  = errors.New("polling: maxHTTPBufferSize (MaxBufferSize) exceeded")
)

// Sender streams chunks to a single long-lived polling response.
// Chunks are queued by SendChunk and written, in order, by Serve.
// Each chunk is terminated by parser.RecordSeparator so the client
// can split the stream back into packets.
type Sender struct {
	queue   *chunkQueue
	serving atomic.Bool

	aborted   chan struct{}
	abortOnce sync.Once

	discarded   chan struct{}
	discardOnce sync.Once
}

func NewSender() *Sender {
	return &Sender{
		queue:     newChunkQueue(),
		aborted:   make(chan struct{}),
		discarded: make(chan struct{}),
	}
}

// SendChunk never blocks on the network.
func (s *Sender) SendChunk(ctx context.Context, chunk []byte) error {
	select {
	case <-s.aborted:
		return ErrAborted
	case <-s.discarded:
		return ErrDiscarded
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.queue.add(chunk)
	return nil
}

// Abort tears the response down without finishing it.
// The client sees the connection drop instead of a terminated chunked body.
func (s *Sender) Abort() {
	s.abortOnce.Do(func() { close(s.aborted) })
}

// Discard finishes the response normally after writing what is already queued.
// Used when the session moves to another transport.
func (s *Sender) Discard() {
	s.discardOnce.Do(func() { close(s.discarded) })
}

// Queued returns the number of chunks not yet written.
func (s *Sender) Queued() int { return s.queue.len() }

func setHeaders(w http.ResponseWriter, r *http.Request) {
	wh := w.Header()
	wh.Set("Content-Type", "text/plain; charset=UTF-8")
	wh.Set("Cache-Control", "no-store")
	wh.Set("X-Content-Type-Options", "nosniff")

	userAgent := r.UserAgent()
	if strings.Contains(userAgent, ";MSIE") || strings.Contains(userAgent, "Trident/") {
		wh.Set("X-XSS-Protection", "0")
	}
}

// Serve must be called from the HTTP handler that owns w.
// It returns nil once discarded, the request context's error if the client goes away,
// or a write error. On abort it panics with http.ErrAbortHandler.
func (s *Sender) Serve(w http.ResponseWriter, r *http.Request) error {
	if !s.serving.CompareAndSwap(false, true) {
		return ErrAlreadyServing
	}

	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}

	setHeaders(w, r)
	w.WriteHeader(http.StatusOK)
	flush()

	writeQueued := func() error {
		for _, chunk := range s.queue.get() {
			if _, err := w.Write(chunk); err != nil {
				return err
			}
			if _, err := w.Write([]byte{parser.RecordSeparator}); err != nil {
				return err
			}
		}
		flush()
		return nil
	}

	for {
		select {
		case <-s.aborted:
			panic(http.ErrAbortHandler)
		default:
		}

		if err := writeQueued(); err != nil {
			return err
		}

		select {
		case <-s.queue.ready:
		case <-s.aborted:
			panic(http.ErrAbortHandler)
		case <-s.discarded:
			return writeQueued()
		case <-r.Context().Done():
			return r.Context().Err()
		}
	}
}

// ReadPayloads decodes the body of a polling POST request.
// maxSize <= 0 means no limit.
func ReadPayloads(r io.Reader, maxSize int64) ([]*parser.Packet, error) {
	if maxSize > 0 {
		r = io.LimitReader(r, maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return nil, ErrPayloadTooBig
	}
	return parser.DecodePayloads(data)
}

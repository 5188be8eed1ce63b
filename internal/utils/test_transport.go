package utils

import (
	"context"

	"github.com/karagenc/eio-server/internal/sync"
	"github.com/karagenc/eio-server/transport"
)

// TestHTTPSender records the chunks written to a polling response.
type TestHTTPSender struct {
	mu        sync.Mutex
	chunks    [][]byte
	aborted   bool
	discarded bool

	// Returned by SendChunk when set.
	SendErr error

	// Called inside SendChunk, before the chunk is recorded.
	OnSend func(chunk []byte)
}

func NewTestHTTPSender() *TestHTTPSender { return new(TestHTTPSender) }

func (s *TestHTTPSender) SendChunk(ctx context.Context, chunk []byte) error {
	if s.OnSend != nil {
		s.OnSend(chunk)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SendErr != nil {
		return s.SendErr
	}
	s.chunks = append(s.chunks, chunk)
	return nil
}

func (s *TestHTTPSender) Abort() {
	s.mu.Lock()
	s.aborted = true
	s.mu.Unlock()
}

func (s *TestHTTPSender) Discard() {
	s.mu.Lock()
	s.discarded = true
	s.mu.Unlock()
}

// Chunks returns the recorded chunks as strings.
func (s *TestHTTPSender) Chunks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	chunks := make([]string, len(s.chunks))
	for i, c := range s.chunks {
		chunks[i] = string(c)
	}
	return chunks
}

func (s *TestHTTPSender) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

func (s *TestHTTPSender) Discarded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.discarded
}

type TestFrame struct {
	Type transport.FrameType
	Data string
}

// TestFrameSink records the frames written to a WebSocket connection.
type TestFrameSink struct {
	mu         sync.Mutex
	frames     []TestFrame
	closeCalls int

	// Returned by SendFrame and Close when set.
	SendErr  error
	CloseErr error

	// Called inside SendFrame, before the frame is recorded.
	OnSend func(ft transport.FrameType, data []byte)

	// Frames it returns true for are never written: SendFrame blocks
	// until ctx is done, like a write to a peer that stopped reading.
	Stall func(ft transport.FrameType, data []byte) bool
}

func NewTestFrameSink() *TestFrameSink { return new(TestFrameSink) }

func (s *TestFrameSink) SendFrame(ctx context.Context, ft transport.FrameType, data []byte) error {
	if s.OnSend != nil {
		s.OnSend(ft, data)
	}
	if s.Stall != nil && s.Stall(ft, data) {
		<-ctx.Done()
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SendErr != nil {
		return s.SendErr
	}
	s.frames = append(s.frames, TestFrame{Type: ft, Data: string(data)})
	return nil
}

func (s *TestFrameSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	return s.CloseErr
}

func (s *TestFrameSink) Frames() []TestFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TestFrame(nil), s.frames...)
}

func (s *TestFrameSink) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}

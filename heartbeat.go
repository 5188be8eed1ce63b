package eio

import (
	"context"
	"errors"
	"time"

	"github.com/karagenc/eio-server/internal/sync"
	"github.com/karagenc/eio-server/parser"
)

type heartbeatState struct {
	mu       sync.Mutex
	lastPong time.Time

	pongChan chan struct{}
}

func newHeartbeatState(now time.Time) *heartbeatState {
	return &heartbeatState{
		lastPong: now,
		pongChan: make(chan struct{}, 1),
	}
}

func (h *heartbeatState) pong(at time.Time) {
	h.mu.Lock()
	if at.After(h.lastPong) {
		h.lastPong = at
	}
	h.mu.Unlock()

	select {
	case h.pongChan <- struct{}{}:
	default:
	}
}

func (h *heartbeatState) last() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastPong
}

// acknowledged reports whether a PONG arrived after the PING sent at sentAt,
// and before timeout ran out.
func (h *heartbeatState) acknowledged(sentAt time.Time, timeout time.Duration) bool {
	last := h.last()
	return last.After(sentAt) && last.Sub(sentAt) < timeout
}

// Forget a signal left over from an earlier PING.
func (h *heartbeatState) drain() {
	select {
	case <-h.pongChan:
	default:
	}
}

type HeartbeatConfig struct {
	// Time between two PINGs.
	Interval time.Duration

	// After sending PING, the peer should send PONG before this timeout exceeds.
	Timeout time.Duration

	// Time to wait before the first PING, so that it doesn't race the handshake.
	// Defaults to Interval.
	Grace time.Duration
}

// Heartbeat pings the peer every config.Interval until the socket is closed,
// ctx is done, or the peer stops answering. It blocks; run it on its own goroutine.
//
// It returns ErrPingTimeout if a PING was not answered in time, the error of a
// failed send, or nil if it was stopped by Close or ctx.
func (s *Socket) Heartbeat(ctx context.Context, config HeartbeatConfig) error {
	grace := config.Grace
	if grace == 0 {
		grace = config.Interval
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.closed, cancel)
	defer stop()

	if !sleepContext(ctx, grace) {
		s.debug.Log("heartbeat", "stopped")
		return nil
	}

	ping := parser.MustNewPacket(parser.PacketTypePing, false, nil)

	for {
		s.heartbeat.drain()
		sentAt := time.Now()

		err := s.sendPing(ctx, ping, config.Timeout)
		if err != nil {
			if ctx.Err() != nil {
				s.debug.Log("heartbeat", "stopped")
				return nil
			}
			if errors.Is(err, context.DeadlineExceeded) {
				s.debug.Log("heartbeat", "PING could not be sent within pingTimeout")
				return ErrPingTimeout
			}
			return err
		}

		if !s.awaitPong(ctx, sentAt, config.Timeout) {
			if ctx.Err() != nil {
				s.debug.Log("heartbeat", "stopped")
				return nil
			}
			s.debug.Log("heartbeat", "pingTimeout exceeded")
			return ErrPingTimeout
		}
		s.debug.Log("heartbeat", "pong received")

		if !sleepContext(ctx, config.Interval-time.Since(sentAt)) {
			s.debug.Log("heartbeat", "stopped")
			return nil
		}
	}
}

// sendPing gives up once timeout elapses. A PING that is stuck behind
// another write counts as unanswered.
func (s *Socket) sendPing(ctx context.Context, ping *parser.Packet, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.Send(ctx, ping)
}

func (s *Socket) awaitPong(ctx context.Context, sentAt time.Time, timeout time.Duration) bool {
	timer := time.NewTimer(timeout - time.Since(sentAt))
	defer timer.Stop()

	for {
		select {
		case <-s.heartbeat.pongChan:
			if s.heartbeat.acknowledged(sentAt, timeout) {
				return true
			}
		case <-timer.C:
			return s.heartbeat.acknowledged(sentAt, timeout)
		case <-ctx.Done():
			return false
		}
	}
}

// sleepContext returns false if ctx is done before d elapses.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

package polling

import "github.com/karagenc/eio-server/internal/sync"

type chunkQueue struct {
	chunks [][]byte
	// Buffered so a signal sent while the writer is busy isn't lost.
	ready chan struct{}
	mu    sync.Mutex
}

func newChunkQueue() *chunkQueue {
	return &chunkQueue{
		ready: make(chan struct{}, 1),
	}
}

// add a chunk to the queue and signal the writer (if any).
func (q *chunkQueue) add(chunk []byte) {
	q.mu.Lock()
	q.chunks = append(q.chunks, chunk)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Retrieve the chunks without waiting.
func (q *chunkQueue) get() [][]byte {
	q.mu.Lock()
	chunks := q.chunks
	q.chunks = nil
	q.mu.Unlock()
	return chunks
}

func (q *chunkQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks)
}

//go:build eio_deadlock

// Build with `-tags eio_deadlock` to have lock ordering problems
// between the channel lock and the heartbeat lock reported at runtime.
package sync

import (
	"sync"

	"github.com/sasha-s/go-deadlock"
)

type (
	Mutex     = deadlock.Mutex
	RWMutex   = deadlock.RWMutex
	Once      = sync.Once
	WaitGroup = sync.WaitGroup
)

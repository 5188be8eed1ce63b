package eio

import "sync/atomic"

// Session IDs are handed out from a process-wide counter, so they are
// unique across servers and never reused.
var sidSeq atomic.Int64

func nextSID() int64 {
	return sidSeq.Add(1)
}

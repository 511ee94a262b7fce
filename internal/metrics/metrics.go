package metrics

import (
	"sync"
	"sync/atomic"
)

// rateLimitStats holds counters for rate limit drops (HTTP 429).
// Kept simple/thread-safe for use from middlewares and exposition.
type rateLimitStats struct {
	total    uint64
	mu       sync.Mutex
	byPrefix map[string]uint64
}

var rl rateLimitStats

// IncRateLimitDrop increments drop counters for the given prefix.
// Use prefix "global" for global limiter rejections.
func IncRateLimitDrop(prefix string) {
	if prefix == "" {
		prefix = "global"
	}
	atomic.AddUint64(&rl.total, 1)
	rl.mu.Lock()
	if rl.byPrefix == nil {
		rl.byPrefix = make(map[string]uint64)
	}
	rl.byPrefix[prefix]++
	rl.mu.Unlock()
}

// RateLimitSnapshot returns a copy of the current counters.
func RateLimitSnapshot() (total uint64, by map[string]uint64) {
	total = atomic.LoadUint64(&rl.total)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	by = make(map[string]uint64, len(rl.byPrefix))
	for k, v := range rl.byPrefix {
		by[k] = v
	}
	return total, by
}

// dispatchStats counts webhook dispatch outcomes per trigger type.
type dispatchStats struct {
	total uint64
	mu    sync.Mutex
	byKey map[string]uint64
}

var ds dispatchStats

// IncDispatch records one webhook dispatch outcome.
func IncDispatch(triggerType, status string) {
	atomic.AddUint64(&ds.total, 1)
	ds.mu.Lock()
	if ds.byKey == nil {
		ds.byKey = make(map[string]uint64)
	}
	ds.byKey[triggerType+":"+status]++
	ds.mu.Unlock()
}

// DispatchSnapshot returns a copy of the dispatch counters, keyed
// "<trigger_type>:<status>".
func DispatchSnapshot() (total uint64, by map[string]uint64) {
	total = atomic.LoadUint64(&ds.total)
	ds.mu.Lock()
	defer ds.mu.Unlock()
	by = make(map[string]uint64, len(ds.byKey))
	for k, v := range ds.byKey {
		by[k] = v
	}
	return total, by
}

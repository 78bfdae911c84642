package mosaic

import (
	"sync"
	"time"
)

// blockCacheKey is the (obid, iid) pair that uniquely identifies a
// DecodedBlock slot (spec.md §3's BlockCache key).
type blockCacheKey struct {
	Obid OutputBlockId
	Iid  InputId
}

// blockCache is C5: a mutex-guarded map with condition variables
// implementing the blocking publish/take_all_for contract of
// spec.md §4.5. This is the Go-idiomatic rendering of the REDESIGN
// FLAG noted in DESIGN.md: the original implementation polled a queue
// with get_nowait() in a loop; this cache instead blocks its caller
// until the relevant predicate holds, waking on every cursor advance.
type blockCache struct {
	mu     sync.Mutex
	notify *sync.Cond

	blocks map[blockCacheKey]DecodedBlock
	cursor OutputBlockId // writer's current obid
	lookAhead int

	aborted bool
	order   []OutputBlockId // row-major order, for cursor comparisons
	rank    map[OutputBlockId]int
}

func newBlockCache(order []OutputBlockId, lookAhead int) *blockCache {
	c := &blockCache{
		blocks:    make(map[blockCacheKey]DecodedBlock),
		lookAhead: lookAhead,
		rank:      make(map[OutputBlockId]int, len(order)),
		order:     order,
	}
	c.notify = sync.NewCond(&c.mu)
	for i, obid := range order {
		c.rank[obid] = i
	}
	if len(order) > 0 {
		c.cursor = order[0]
	}
	return c
}

// publish is called by read workers. It blocks while obid is more than
// lookAhead obids ahead of the writer's cursor, then admits the block.
// Publishing a duplicate key is a programming error (panic-class, per
// spec.md §4.5).
// The returned duration is the time this call spent blocked waiting for
// look-ahead room, for the worker's wait-on-cache counter (spec.md §3).
func (c *blockCache) publish(obid OutputBlockId, iid InputId, block DecodedBlock) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := time.Now()
	for !c.aborted && c.rank[obid]-c.rank[c.cursor] > c.lookAhead {
		c.notify.Wait()
	}
	waited := time.Since(start)
	if c.aborted {
		return waited
	}
	key := blockCacheKey{Obid: obid, Iid: iid}
	if _, exists := c.blocks[key]; exists {
		panic(&InvariantError{Msg: "duplicate publish for the same (obid, iid)"})
	}
	c.blocks[key] = block
	c.notify.Broadcast()
	return waited
}

// takeAllFor is called by the writer. It blocks until every task in
// tasks has published, then atomically removes and returns all of that
// obid's entries. Returns ok=false if the cache was aborted first. The
// returned duration is the time spent blocked waiting, for the writer's
// wait-on-queue counter (spec.md §3).
func (c *blockCache) takeAllFor(obid OutputBlockId, tasks []ReadTask) (map[InputId]DecodedBlock, bool, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := time.Now()
	for {
		if c.aborted {
			return nil, false, time.Since(start)
		}
		if c.allPresentLocked(obid, tasks) {
			break
		}
		c.notify.Wait()
	}
	waited := time.Since(start)
	out := make(map[InputId]DecodedBlock, len(tasks))
	for _, t := range tasks {
		key := blockCacheKey{Obid: obid, Iid: t.Iid}
		out[t.Iid] = c.blocks[key]
		delete(c.blocks, key)
	}
	if idx := c.rank[obid]; idx+1 < len(c.order) {
		c.cursor = c.order[idx+1]
	}
	c.notify.Broadcast()
	return out, true, waited
}

func (c *blockCache) allPresentLocked(obid OutputBlockId, tasks []ReadTask) bool {
	for _, t := range tasks {
		if _, ok := c.blocks[blockCacheKey{Obid: obid, Iid: t.Iid}]; !ok {
			return false
		}
	}
	return true
}

// abort sets the shared abort flag and wakes every blocked caller so
// they can observe it and unwind.
func (c *blockCache) abort() {
	c.mu.Lock()
	c.aborted = true
	c.mu.Unlock()
	c.notify.Broadcast()
}

func (c *blockCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.blocks)
}

// Aborted reports whether the cache's shared abort flag has been set.
// Read workers check it before each read; publish and takeAllFor check
// the flag at their suspension points, and the writer observes it
// through takeAllFor's ok result.
func (c *blockCache) Aborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

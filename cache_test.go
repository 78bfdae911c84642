package mosaic

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockCachePublishThenTake(t *testing.T) {
	order := []OutputBlockId{{Row: 0, Col: 0}, {Row: 0, Col: 1}}
	c := newBlockCache(order, 2)

	tasks := []ReadTask{{Obid: order[0], Iid: 0}, {Obid: order[0], Iid: 1}}
	c.publish(order[0], 0, DecodedBlock{Obid: order[0], Iid: 0})
	c.publish(order[0], 1, DecodedBlock{Obid: order[0], Iid: 1})

	got, ok, _ := c.takeAllFor(order[0], tasks)
	require.True(t, ok)
	assert.Len(t, got, 2)
	assert.Equal(t, 0, c.size())
}

func TestBlockCacheTakeBlocksUntilComplete(t *testing.T) {
	order := []OutputBlockId{{Row: 0, Col: 0}}
	c := newBlockCache(order, 2)
	tasks := []ReadTask{{Obid: order[0], Iid: 0}, {Obid: order[0], Iid: 1}}

	done := make(chan map[InputId]DecodedBlock, 1)
	go func() {
		got, ok, _ := c.takeAllFor(order[0], tasks)
		require.True(t, ok)
		done <- got
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("takeAllFor returned before all contributions were published")
	default:
	}

	c.publish(order[0], 0, DecodedBlock{})
	c.publish(order[0], 1, DecodedBlock{})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("takeAllFor never returned after publish")
	}
}

// Universal invariant 5: cache residency never exceeds W_LA obids of
// look-ahead (S5's scenario, generalized: N workers, W_LA = N).
func TestBlockCacheLookAheadBound(t *testing.T) {
	n := 2
	numObids := 4
	contribsPerObid := 4

	order := make([]OutputBlockId, numObids)
	for i := range order {
		order[i] = OutputBlockId{Row: i, Col: 0}
	}
	c := newBlockCache(order, n)

	var maxSize int
	var mu sync.Mutex
	recordMax := func() {
		mu.Lock()
		if s := c.size(); s > maxSize {
			maxSize = s
		}
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for obidx := 0; obidx < numObids; obidx++ {
		for iid := 0; iid < contribsPerObid; iid++ {
			wg.Add(1)
			go func(obidx, iid int) {
				defer wg.Done()
				c.publish(order[obidx], InputId(iid), DecodedBlock{})
				recordMax()
			}(obidx, iid)
		}
	}

	for obidx := 0; obidx < numObids; obidx++ {
		tasks := make([]ReadTask, contribsPerObid)
		for iid := 0; iid < contribsPerObid; iid++ {
			tasks[iid] = ReadTask{Obid: order[obidx], Iid: InputId(iid)}
		}
		_, ok, _ := c.takeAllFor(order[obidx], tasks)
		require.True(t, ok)
	}
	wg.Wait()

	// publish() admits any obid up to and including W_LA ahead of the
	// cursor (spec.md §4.5: blocked only when "more than W_LA ahead"),
	// so at most W_LA+1 obids' worth of contributions can be resident
	// at once.
	assert.LessOrEqual(t, maxSize, (n+1)*contribsPerObid)
}

func TestBlockCacheAbortWakesWaiters(t *testing.T) {
	order := []OutputBlockId{{Row: 0, Col: 0}}
	c := newBlockCache(order, 1)
	tasks := []ReadTask{{Obid: order[0], Iid: 0}}

	done := make(chan bool, 1)
	go func() {
		_, ok, _ := c.takeAllFor(order[0], tasks)
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	c.abort()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("abort did not wake the blocked waiter")
	}
}

package mosaic

import (
	"container/list"
	"context"

	"go.uber.org/zap"
)

// defaultHandleLRUSize is K in spec.md §4.6: the number of open input
// handles a single read worker keeps cached before evicting the least
// recently used one.
const defaultHandleLRUSize = 8

// readerLRU is the per-thread, per-worker cache of open Readers keyed by
// InputId. Handles are never shared across workers; each worker owns its
// own readerLRU. On eviction the handle is closed.
type readerLRU struct {
	cap   int
	list  *list.List // front = most recently used
	elems map[InputId]*list.Element
}

type readerLRUEntry struct {
	iid    InputId
	reader Reader
}

func newReaderLRU(cap int) *readerLRU {
	return &readerLRU{cap: cap, list: list.New(), elems: make(map[InputId]*list.Element)}
}

func (l *readerLRU) get(iid InputId) (Reader, bool) {
	if e, ok := l.elems[iid]; ok {
		l.list.MoveToFront(e)
		return e.Value.(*readerLRUEntry).reader, true
	}
	return nil, false
}

func (l *readerLRU) put(iid InputId, r Reader) {
	if l.list.Len() >= l.cap {
		back := l.list.Back()
		if back != nil {
			entry := back.Value.(*readerLRUEntry)
			_ = entry.reader.Close()
			delete(l.elems, entry.iid)
			l.list.Remove(back)
		}
	}
	l.elems[iid] = l.list.PushFront(&readerLRUEntry{iid: iid, reader: r})
}

func (l *readerLRU) closeAll() {
	for e := l.list.Front(); e != nil; e = e.Next() {
		_ = e.Value.(*readerLRUEntry).reader.Close()
	}
	l.list.Init()
	l.elems = make(map[InputId]*list.Element)
}

// readWorker is C6: it consumes one partition of the FlatReadList in
// order, opening (and LRU-caching) per-thread Readers, reading each
// task's SrcRect, and publishing the result into the shared cache. On
// the first read failure it records the error, sets the shared abort
// flag and exits; it never retries.
type readWorker struct {
	id       int
	provider Provider
	infos    *imageInfoCache
	outGrid  GridSpec
	needsReproj []bool
	resample string
	cache    *blockCache
	band     int
	logger   *zap.Logger
	lru      *readerLRU

	BlocksRead    int
	BytesRead     int64
	WaitOnCacheNs int64
}

func newReadWorker(id int, provider Provider, infos *imageInfoCache, outGrid GridSpec, needsReproj []bool, resample string, cache *blockCache, band int, logger *zap.Logger) *readWorker {
	return &readWorker{
		id: id, provider: provider, infos: infos, outGrid: outGrid,
		needsReproj: needsReproj, resample: resample, cache: cache, band: band,
		logger: logger, lru: newReaderLRU(defaultHandleLRUSize),
	}
}

// run executes the worker's assigned subsequence. It returns the first
// read error encountered, if any, after setting the cache's abort flag.
func (w *readWorker) run(ctx context.Context, tasks []ReadTask) error {
	defer w.lru.closeAll()
	for _, t := range tasks {
		select {
		case <-ctx.Done():
			w.cache.abort()
			return ctx.Err()
		default:
		}
		if w.cache.Aborted() {
			// A peer worker or the writer already hit a fatal error and
			// set the shared flag; nothing left for us to do. Return nil
			// so the pool's first error stays the one that caused it.
			return nil
		}

		reader, err := w.readerFor(ctx, t.Iid)
		if err != nil {
			w.cache.abort()
			return err
		}
		if w.cache.Aborted() {
			return nil
		}
		pixels, err := reader.ReadBlock(ctx, w.band, t.SrcRect)
		if err != nil {
			w.cache.abort()
			return err
		}
		w.BlocksRead++
		w.BytesRead += int64(len(pixels) * 8)
		waited := w.cache.publish(t.Obid, t.Iid, DecodedBlock{Obid: t.Obid, Iid: t.Iid, Rect: t.DstRect, Pixels: pixels})
		w.WaitOnCacheNs += int64(waited)
		w.logger.Debug("published block", zap.Int("worker", w.id), zap.Int("row", t.Obid.Row), zap.Int("col", t.Obid.Col), zap.Int("input", int(t.Iid)))
	}
	return nil
}

func (w *readWorker) readerFor(ctx context.Context, iid InputId) (Reader, error) {
	if r, ok := w.lru.get(iid); ok {
		return r, nil
	}
	info := w.infos.get(iid)
	var grid *GridSpec
	if w.needsReproj[iid] {
		grid = &w.outGrid
	}
	r, err := w.provider.OpenRead(ctx, info, grid, w.resample)
	if err != nil {
		return nil, &ReadError{Input: info.Path, Cause: err}
	}
	w.lru.put(iid, r)
	return r, nil
}

package mosaic

import (
	"context"

	"go.uber.org/zap"
)

// mosaicWriter is C7: the single thread that consumes the cache in plan
// (row-major) order, composes each output block by first-hit-wins, and
// writes it. It is the sole mutator of the output file and never holds
// the cache's lock while doing I/O.
type mosaicWriter struct {
	plan     *BlockPlan
	cache    *blockCache
	out      Writer
	band     int
	noData   float64
	stats    *bandStats
	logger   *zap.Logger

	WaitOnQueueNs int64
}

func newMosaicWriter(plan *BlockPlan, cache *blockCache, out Writer, band int, noData float64, logger *zap.Logger) *mosaicWriter {
	return &mosaicWriter{plan: plan, cache: cache, out: out, band: band, noData: noData, stats: newBandStats(), logger: logger}
}

// run executes the loop of spec.md §4.7. It returns an error (and stops
// at the first obid it could not complete) if the cache reports abort,
// or if a write fails.
func (w *mosaicWriter) run(ctx context.Context) error {
	for _, entry := range w.plan.Entries {
		contribs, ok, waited := w.cache.takeAllFor(entry.Obid, entry.Tasks)
		w.WaitOnQueueNs += int64(waited)
		if !ok {
			return &InvariantError{Msg: "writer aborted before completing plan"}
		}

		rOut := entry.Rect
		buf := make([]float64, rOut.Width*rOut.Height)
		for i := range buf {
			buf[i] = w.noData
		}
		for _, task := range entry.Tasks {
			block, ok := contribs[task.Iid]
			if !ok {
				w.cache.abort()
				return &InvariantError{Msg: "missing contribution for published obid"}
			}
			compose(buf, rOut.Width, block.Pixels, task.DstRect, w.noData)
		}

		w.stats.accumulate(buf, &w.noData)
		if err := w.out.WriteBlock(ctx, w.band, entry.Obid, rOut, buf); err != nil {
			w.cache.abort()
			return err
		}
		w.logger.Debug("wrote block", zap.Int("row", entry.Obid.Row), zap.Int("col", entry.Obid.Col))
	}
	return nil
}

// compose applies first-hit-wins: a destination pixel already set to a
// non-nodata value is preserved; a pixel still at nodata is overwritten
// by the incoming block. outWidth is the stride of dst.
func compose(dst []float64, outWidth int, src []float64, rect BlockRect, noData float64) {
	for y := 0; y < rect.Height; y++ {
		for x := 0; x < rect.Width; x++ {
			di := (rect.Y+y)*outWidth + (rect.X + x)
			if dst[di] != noData {
				continue
			}
			dst[di] = src[y*rect.Width+x]
		}
	}
}

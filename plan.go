package mosaic

// BuildPlan implements C3: it enumerates the output grid's blocks in
// row-major order and, for each, lists the ReadTasks of every
// intersecting input, in user-list (priority) order.
//
// Block extents follow the original_source's makeOutputBlockList
// edge-remainder heuristic: a trailing row or column shorter than
// blockSize/4 is folded into the previous block instead of becoming its
// own tiny block, avoiding pathologically small edge reads.
func BuildPlan(outGrid GridSpec, infos []ImageInfo, needsReproj []bool, blockSize int) *BlockPlan {
	rowStarts, rowSizes := splitDimension(outGrid.Height, blockSize)
	colStarts, colSizes := splitDimension(outGrid.Width, blockSize)

	plan := &BlockPlan{OutGrid: outGrid, BlockSize: blockSize}
	for r := range rowStarts {
		for c := range colStarts {
			obid := OutputBlockId{Row: r, Col: c}
			rOut := BlockRect{X: colStarts[c], Y: rowStarts[r], Width: colSizes[c], Height: rowSizes[r]}
			tasks := tasksForBlock(obid, rOut, outGrid, infos, needsReproj)
			plan.Entries = append(plan.Entries, PlanEntry{Obid: obid, Rect: rOut, Tasks: tasks})
		}
	}
	return plan
}

// splitDimension divides n pixels into blocks of size blockSize,
// merging a short trailing remainder (< blockSize/4) into the previous
// block rather than emitting it as its own block.
func splitDimension(n, blockSize int) (starts, sizes []int) {
	if n <= 0 {
		return nil, nil
	}
	pos := 0
	for pos < n {
		size := blockSize
		if pos+size > n {
			size = n - pos
		}
		remaining := n - (pos + size)
		if remaining > 0 && remaining < blockSize/4 {
			size = n - pos
		}
		starts = append(starts, pos)
		sizes = append(sizes, size)
		pos += size
	}
	return starts, sizes
}

// tasksForBlock computes, for one output block, the ReadTask for every
// input whose footprint intersects it, in user-list (priority) order.
func tasksForBlock(obid OutputBlockId, rOut BlockRect, outGrid GridSpec, infos []ImageInfo, needsReproj []bool) []ReadTask {
	var tasks []ReadTask
	for _, info := range infos {
		srcRect, ok := intersectInOutputSpace(rOut, outGrid, info, needsReproj[info.ID])
		if !ok {
			continue
		}
		dstRect := BlockRect{
			X:      srcRect.outX - rOut.X,
			Y:      srcRect.outY - rOut.Y,
			Width:  srcRect.width,
			Height: srcRect.height,
		}
		var src BlockRect
		if needsReproj[info.ID] {
			src = BlockRect{X: srcRect.outX, Y: srcRect.outY, Width: srcRect.width, Height: srcRect.height}
		} else {
			src = BlockRect{X: srcRect.inX, Y: srcRect.inY, Width: srcRect.width, Height: srcRect.height}
		}
		tasks = append(tasks, ReadTask{Obid: obid, Iid: info.ID, SrcRect: src, DstRect: dstRect})
	}
	return tasks
}

type blockIntersection struct {
	outX, outY        int
	inX, inY          int
	width, height     int
}

// intersectInOutputSpace computes the overlap between an output block
// rectangle and an input's footprint, expressed both in output pixel
// space (for dst-rect / reprojected src-rect) and in the input's own
// native pixel space (for a direct, non-reprojected read) — mirroring
// original_source's BlockSpec.transformToFilePixelCoords.
func intersectInOutputSpace(rOut BlockRect, outGrid GridSpec, info ImageInfo, reprojected bool) (blockIntersection, bool) {
	// Footprint of the input, expressed in output pixel coordinates.
	inOx, inOy := info.Grid.Origin()
	inPx, inPy := info.Grid.PixelSize()
	outOx, outOy := outGrid.Origin()
	outPx, outPy := outGrid.PixelSize()

	footprintX0 := int(roundHalfAway((inOx - outOx) / outPx))
	footprintY0 := int(roundHalfAway((outOy - inOy) / outPy))
	footprintX1 := footprintX0 + int(roundHalfAway(float64(info.Grid.Width)*inPx/outPx))
	footprintY1 := footprintY0 + int(roundHalfAway(float64(info.Grid.Height)*inPy/outPy))

	x0 := maxInt(rOut.X, footprintX0)
	y0 := maxInt(rOut.Y, footprintY0)
	x1 := minInt(rOut.X+rOut.Width, footprintX1)
	y1 := minInt(rOut.Y+rOut.Height, footprintY1)
	if x0 >= x1 || y0 >= y1 {
		return blockIntersection{}, false
	}

	bi := blockIntersection{outX: x0, outY: y0, width: x1 - x0, height: y1 - y0}
	if !reprojected {
		bi.inX = x0 - footprintX0
		bi.inY = y0 - footprintY0
	}
	return bi, true
}

func roundHalfAway(f float64) float64 {
	if f < 0 {
		return f - 0.5
	}
	return f + 0.5
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

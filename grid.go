package mosaic

import (
	"context"
	"math"
	"os"

	"github.com/airbusgeo/godal"
	"github.com/tbonfort/gobs"
)

const alignmentTolerance = 1e-4

// ResolveGrid implements C2: from the frozen ImageInfo set and the user's
// options, compute the output GridSpec. It also reports, per input,
// whether that input's native grid differs from the output grid and
// therefore needs a reprojection view (spec.md §4.2's last bullet).
func ResolveGrid(ctx context.Context, infos []ImageInfo, opts Options) (GridSpec, []bool, error) {
	if len(infos) == 0 {
		return GridSpec{}, nil, &InvariantError{Msg: "ResolveGrid called with no inputs"}
	}

	targetWKT, err := targetProjection(infos, opts)
	if err != nil {
		return GridSpec{}, nil, err
	}

	transforms := make([]*godal.CoordinateTransform, len(infos))
	for i, info := range infos {
		if info.Grid.Projection == targetWKT {
			continue
		}
		srcSR, err := godal.NewSpatialRefFromWKT(info.Grid.Projection)
		if err != nil {
			return GridSpec{}, nil, &MetadataError{Input: info.Path, Msg: "parsing source projection", Cause: err}
		}
		dstSR, err := godal.NewSpatialRefFromWKT(targetWKT)
		if err != nil {
			return GridSpec{}, nil, &MetadataError{Msg: "parsing target projection", Cause: err}
		}
		tr, err := godal.NewCoordinateTransform(srcSR, dstSR)
		if err != nil {
			return GridSpec{}, nil, &MetadataError{Input: info.Path, Msg: "no resolvable reprojection to target projection", Cause: err}
		}
		transforms[i] = tr
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	pool := gobs.NewPool(4)
	batch := pool.Batch()
	bounds := make([][4]float64, len(infos))
	for i, info := range infos {
		i, info, tr := i, info, transforms[i]
		batch.Submit(func() error {
			x0, y0, x1, y1, err := boundingBoxInTarget(info.Grid, tr)
			if err != nil {
				return &MetadataError{Input: info.Path, Msg: "reprojecting bounds", Cause: err}
			}
			bounds[i] = [4]float64{x0, y0, x1, y1}
			return nil
		})
	}
	batch.Wait()
	for _, b := range bounds {
		minX = math.Min(minX, b[0])
		minY = math.Min(minY, b[1])
		maxX = math.Max(maxX, b[2])
		maxY = math.Max(maxY, b[3])
	}

	xres, yres := opts.XRes, opts.YRes
	if xres == 0 {
		xres, yres = infos[0].Grid.PixelSize()
	}
	if xres <= 0 || yres <= 0 {
		return GridSpec{}, nil, &MetadataError{Msg: "resolved pixel size is non-positive"}
	}

	originX := math.Floor(minX/xres) * xres
	originY := math.Ceil(maxY/yres) * yres
	width := int(math.Ceil((maxX - originX) / xres))
	height := int(math.Ceil((originY - minY) / yres))

	out := GridSpec{
		Projection:   targetWKT,
		GeoTransform: [6]float64{originX, xres, 0, originY, 0, -yres},
		Width:        width,
		Height:       height,
		DataType:     infos[0].Grid.DataType,
		NoData:       resolveNoData(infos, opts),
	}

	needsReproj := make([]bool, len(infos))
	for i, info := range infos {
		if info.Grid.Projection != targetWKT || !gridAligned(info.Grid, out) {
			needsReproj[i] = true
			continue
		}
		if err := checkAlignment(info.Grid, out); err != nil {
			return GridSpec{}, nil, err
		}
	}
	return out, needsReproj, nil
}

func targetProjection(infos []ImageInfo, opts Options) (string, error) {
	switch {
	case opts.OutProjEPSG != 0:
		sr, err := godal.NewSpatialRefFromEPSG(opts.OutProjEPSG)
		if err != nil {
			return "", &MetadataError{Msg: "resolving --outprojepsg", Cause: err}
		}
		return sr.WKT()
	case opts.OutProjWKTFile != "":
		data, err := os.ReadFile(opts.OutProjWKTFile)
		if err != nil {
			return "", &MetadataError{Msg: "reading --outprojwktfile", Cause: err}
		}
		return string(data), nil
	default:
		return infos[0].Grid.Projection, nil
	}
}

// boundingBoxInTarget samples corners and edge midpoints of grid's
// bounding box and transforms them into the target projection, per
// spec.md §4.2's guard against non-affine reprojection edges.
func boundingBoxInTarget(grid GridSpec, tr *godal.CoordinateTransform) (x0, y0, x1, y1 float64, err error) {
	ox, oy := grid.Origin()
	px, py := grid.PixelSize()
	w := float64(grid.Width) * px
	h := float64(grid.Height) * py

	xs := []float64{ox, ox + w/2, ox + w}
	ys := []float64{oy, oy - h/2, oy - h}

	x0, y0 = math.Inf(1), math.Inf(1)
	x1, y1 = math.Inf(-1), math.Inf(-1)
	for _, x := range xs {
		for _, y := range ys {
			tx, ty := x, y
			if tr != nil {
				tx, ty, err = tr.Transform(x, y)
				if err != nil {
					return 0, 0, 0, 0, err
				}
			}
			x0, y0 = math.Min(x0, tx), math.Min(y0, ty)
			x1, y1 = math.Max(x1, tx), math.Max(y1, ty)
		}
	}
	return x0, y0, x1, y1, nil
}

func resolveNoData(infos []ImageInfo, opts Options) *float64 {
	if opts.NullVal != nil {
		return opts.NullVal
	}
	for _, info := range infos {
		if info.Grid.NoData != nil {
			nd := *info.Grid.NoData
			return &nd
		}
	}
	return nil
}

// gridAligned is a cheap pre-check: same pixel size. checkAlignment does
// the precise sub-pixel-tolerance test.
func gridAligned(a, b GridSpec) bool {
	ax, ay := a.PixelSize()
	bx, by := b.PixelSize()
	return math.Abs(ax-bx) < alignmentTolerance && math.Abs(ay-by) < alignmentTolerance
}

// checkAlignment implements the original_source's isAligned check: the
// input's origin must fall on an exact multiple of the output pixel size
// from the output's origin, within alignmentTolerance pixels. A same-
// projection, same-resolution input that fails this is not safely
// readable in its native space; ResolveGrid rejects it with this
// MetadataError rather than routing it through a reprojection view.
func checkAlignment(in, out GridSpec) error {
	ox, oy := in.Origin()
	rx, ry := out.Origin()
	xres, yres := out.PixelSize()
	if !isAligned(ox, rx, xres) || !isAligned(oy, ry, yres) {
		return &MetadataError{Msg: "input grid is not aligned to the output pixel grid"}
	}
	return nil
}

func isAligned(a, b, res float64) bool {
	d := (a - b) / res
	return math.Abs(d-math.Round(d)) < alignmentTolerance
}

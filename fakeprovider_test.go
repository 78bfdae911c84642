package mosaic

import (
	"context"
	"fmt"
)

// fakeImage is an in-memory raster used by tests: row-major float64
// pixels plus the GridSpec they live on.
type fakeImage struct {
	grid   GridSpec
	pixels []float64 // single band, row-major
}

// fakeProvider is an in-memory Provider implementing exactly the
// operations spec.md §6 names, letting the end-to-end scenarios (S1-S6)
// and the universal invariants of §8 run without a real GDAL install.
type fakeProvider struct {
	images map[string]*fakeImage

	output       *fakeOutput
	failOnRead   map[string]bool // path -> fail every read
}

type fakeOutput struct {
	path   string
	grid   GridSpec
	pixels []float64
	closed bool
	writes []writeRecord
}

type writeRecord struct {
	obid OutputBlockId
	rect BlockRect
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{images: make(map[string]*fakeImage), failOnRead: make(map[string]bool)}
}

func (p *fakeProvider) addImage(path string, grid GridSpec, pixels []float64) {
	p.images[path] = &fakeImage{grid: grid, pixels: pixels}
}

func (p *fakeProvider) Probe(ctx context.Context, id InputId, path string) (ImageInfo, error) {
	img, ok := p.images[path]
	if !ok {
		return ImageInfo{}, &MetadataError{Input: path, Msg: "not found"}
	}
	return ImageInfo{ID: id, Path: path, Grid: img.grid, NativeBlockX: img.grid.Width, NativeBlockY: img.grid.Height, NumBands: 1}, nil
}

func (p *fakeProvider) OpenRead(ctx context.Context, info ImageInfo, grid *GridSpec, resample string) (Reader, error) {
	img, ok := p.images[info.Path]
	if !ok {
		return nil, &ReadError{Input: info.Path, Cause: fmt.Errorf("not found")}
	}
	return &fakeReader{path: info.Path, img: img, fail: p.failOnRead[info.Path]}, nil
}

func (p *fakeProvider) CreateOutput(ctx context.Context, path string, grid GridSpec, numBands int, driver string, creationOptions []string) (Writer, error) {
	nd := 0.0
	if grid.NoData != nil {
		nd = *grid.NoData
	}
	pixels := make([]float64, grid.Width*grid.Height)
	for i := range pixels {
		pixels[i] = nd
	}
	p.output = &fakeOutput{path: path, grid: grid, pixels: pixels}
	return p.output, nil
}

func (p *fakeProvider) RemoveOutput(path string) error {
	if p.output != nil && p.output.path == path {
		p.output = nil
	}
	return nil
}

type fakeReader struct {
	path string
	img  *fakeImage
	fail bool
}

func (r *fakeReader) ReadBlock(ctx context.Context, band int, rect BlockRect) ([]float64, error) {
	if r.fail {
		return nil, &ReadError{Input: r.path, Cause: fmt.Errorf("injected read failure")}
	}
	out := make([]float64, rect.Width*rect.Height)
	w := r.img.grid.Width
	for y := 0; y < rect.Height; y++ {
		for x := 0; x < rect.Width; x++ {
			srcIdx := (rect.Y+y)*w + (rect.X + x)
			out[y*rect.Width+x] = r.img.pixels[srcIdx]
		}
	}
	return out, nil
}

func (r *fakeReader) Close() error { return nil }

func (w *fakeOutput) WriteBlock(ctx context.Context, band int, obid OutputBlockId, rect BlockRect, buf []float64) error {
	stride := w.grid.Width
	for y := 0; y < rect.Height; y++ {
		for x := 0; x < rect.Width; x++ {
			w.pixels[(rect.Y+y)*stride+(rect.X+x)] = buf[y*rect.Width+x]
		}
	}
	w.writes = append(w.writes, writeRecord{obid: obid, rect: rect})
	return nil
}

func (w *fakeOutput) Close() error {
	w.closed = true
	return nil
}

func flatGrid(width, height int, xres, yres float64, noData float64) GridSpec {
	nd := noData
	return GridSpec{
		Projection:   "EPSG:4326",
		GeoTransform: [6]float64{0, xres, 0, float64(height) * yres, 0, -yres},
		Width:        width,
		Height:       height,
		DataType:     Float64,
		NoData:       &nd,
	}
}

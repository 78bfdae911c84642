package mosaic

// InputId identifies one entry of the user-supplied input list. It is also
// the entry's priority rank: lower ids win ties during composition.
type InputId int

// GridSpec describes a pixel grid: a projection, an affine geotransform,
// dimensions, a pixel datatype and an optional nodata sentinel. A GridSpec
// is immutable once constructed.
type GridSpec struct {
	Projection   string // opaque WKT token
	GeoTransform [6]float64
	Width        int
	Height       int
	DataType     DataType
	NoData       *float64
}

// PixelSize returns the absolute (x, y) pixel size of the grid.
func (g GridSpec) PixelSize() (float64, float64) {
	x := g.GeoTransform[1]
	y := g.GeoTransform[5]
	if x < 0 {
		x = -x
	}
	if y < 0 {
		y = -y
	}
	return x, y
}

// Origin returns the grid's top-left geographic corner.
func (g GridSpec) Origin() (float64, float64) {
	return g.GeoTransform[0], g.GeoTransform[3]
}

// DataType is a provider-agnostic pixel datatype tag.
type DataType int

const (
	Byte DataType = iota
	UInt16
	Int16
	UInt32
	Int32
	Float32
	Float64
)

// ImageInfo is the frozen, per-input metadata captured by the probing
// phase (C1). It is shared read-only across every goroutine once probing
// completes.
type ImageInfo struct {
	ID             InputId
	Path           string
	Grid           GridSpec
	NativeBlockX   int
	NativeBlockY   int
	NumBands       int
}

// OutputBlockId is the (row, col) position of a block in the output grid,
// in row-major order.
type OutputBlockId struct {
	Row int
	Col int
}

// Less reports whether id precedes other in row-major order.
func (id OutputBlockId) Less(other OutputBlockId) bool {
	if id.Row != other.Row {
		return id.Row < other.Row
	}
	return id.Col < other.Col
}

// BlockRect is a pixel rectangle relative to some named grid (output, an
// input's native grid, or an input's reprojection view).
type BlockRect struct {
	X, Y          int
	Width, Height int
}

// ReadTask is one input's contribution to one output block: where to read
// from (SrcRect, in the input's native or reprojected pixel space) and
// where the result lands (DstRect, relative to the output block's
// top-left corner).
type ReadTask struct {
	Obid    OutputBlockId
	Iid     InputId
	SrcRect BlockRect
	DstRect BlockRect
}

// PlanEntry is one row of the BlockPlan: an output block, its pixel
// rectangle in the output grid (which may be larger than the nominal
// block size at the edge-remainder-merged right/bottom blocks), and the
// ordered (user-list order) list of ReadTasks that contribute to it.
type PlanEntry struct {
	Obid  OutputBlockId
	Rect  BlockRect
	Tasks []ReadTask
}

// BlockPlan is the full, immutable schedule produced by the plan builder
// (C3), in output row-major order.
type BlockPlan struct {
	Entries  []PlanEntry
	OutGrid  GridSpec
	BlockSize int
}

// FlatReadList flattens a BlockPlan into the single ordered sequence of
// reads consumed by C4's partitioning.
func (p *BlockPlan) FlatReadList() []ReadTask {
	n := 0
	for _, e := range p.Entries {
		n += len(e.Tasks)
	}
	out := make([]ReadTask, 0, n)
	for _, e := range p.Entries {
		out = append(out, e.Tasks...)
	}
	return out
}

// Partition splits the FlatReadList into N per-worker subsequences using
// the round-robin rule of spec.md §4.4: worker w receives {T_i : i mod N
// == w}, preserving relative order.
func Partition(flat []ReadTask, n int) [][]ReadTask {
	out := make([][]ReadTask, n)
	for i, t := range flat {
		w := i % n
		out[w] = append(out[w], t)
	}
	return out
}

// DecodedBlock is a pixel buffer produced by a read worker and destined
// for exactly one cache slot and one composition.
type DecodedBlock struct {
	Obid   OutputBlockId
	Iid    InputId
	Rect   BlockRect
	Pixels []float64
}

// Package mosaic builds a single raster mosaic from many overlapping
// georeferenced input files, reading inputs concurrently in fixed-size
// blocks so that per-read I/O latency is hidden behind parallelism.
//
// The entry point is Do. Everything else in this package is the
// block-level read/write scheduler Do drives: probing (ProbeAll),
// output-grid resolution (ResolveGrid), block plan construction
// (BuildPlan), and the bounded producer/consumer pipeline between the
// read workers and the writer.
package mosaic

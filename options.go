package mosaic

import (
	"os"
	"strings"

	"go.uber.org/zap"
)

// Options is the single, explicit configuration value accepted by Do. It
// carries exactly the fields named in spec.md §6 plus the ambient
// additions (Logger, Verbose) described in SPEC_FULL.md.
type Options struct {
	// NumWorkers is N, the number of read worker threads. Default 4.
	NumWorkers int
	// BlockSize is B, the output working block size in pixels. Default 1024.
	BlockSize int
	// Driver is the output GDAL driver short name, e.g. "GTiff".
	Driver string
	// CreationOptions are opaque "K=V" pairs passed through to the
	// provider's CreateOutput verbatim.
	CreationOptions []string
	// NullVal overrides the output nodata sentinel. Nil defers to the
	// grid resolver's default (the first input's nodata, if any).
	NullVal *float64
	// MonitorJSONPath, if set, receives the serialized Monitor record.
	MonitorJSONPath string
	// OutProjEPSG and OutProjWKTFile are mutually exclusive target
	// projection overrides.
	OutProjEPSG    int
	OutProjWKTFile string
	// XRes, YRes override the resolved output pixel size. Either both
	// set or both zero.
	XRes, YRes float64
	// Resample is the resampling method name passed to the provider's
	// reprojection view, e.g. "near", "bilinear", "cubic".
	Resample string

	// Logger receives structured log output. Nil selects a no-op logger.
	Logger *zap.Logger
	// Verbose is recorded in the monitor's config. It does not change
	// logging: the level is whatever Logger was built with, and a nil
	// Logger discards output at every level.
	Verbose bool

	// lookAheadOverride lets tests exercise small look-ahead windows
	// without spawning many goroutines. Zero selects the spec default,
	// max(2, NumWorkers).
	lookAheadOverride int
}

// DefaultOptions returns the spec's documented defaults.
func DefaultOptions() Options {
	return Options{
		NumWorkers: 4,
		BlockSize:  1024,
		Driver:     "GTiff",
		Resample:   "near",
	}
}

// Validate checks the option set for the usage-error conditions of
// spec.md §7(a): missing fields, conflicting projection overrides,
// nonsensical numeric fields.
func (o *Options) Validate() error {
	if o.NumWorkers <= 0 {
		return &UsageError{Msg: "numworkers must be >= 1"}
	}
	if o.BlockSize <= 0 {
		return &UsageError{Msg: "blocksize must be >= 1"}
	}
	if o.Driver == "" {
		return &UsageError{Msg: "driver must be set"}
	}
	if o.OutProjEPSG != 0 && o.OutProjWKTFile != "" {
		return &UsageError{Msg: "outprojepsg and outprojwktfile are mutually exclusive"}
	}
	if (o.XRes != 0) != (o.YRes != 0) {
		return &UsageError{Msg: "xres and yres must be set together"}
	}
	if o.XRes < 0 || o.YRes < 0 {
		return &UsageError{Msg: "xres and yres must be positive"}
	}
	return nil
}

func (o *Options) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return zap.NewNop()
}

func (o *Options) lookAhead() int {
	if o.lookAheadOverride > 0 {
		return o.lookAheadOverride
	}
	if o.NumWorkers > 2 {
		return o.NumWorkers
	}
	return 2
}

// ReadInputList parses an infilelist per spec.md §6: one path per line,
// blank lines and '#'-prefixed lines ignored, order significant.
func ReadInputList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &UsageError{Msg: "reading input list: " + err.Error()}
	}
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil, &UsageError{Msg: "input list is empty"}
	}
	return out, nil
}

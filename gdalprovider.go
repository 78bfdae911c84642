package mosaic

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/airbusgeo/godal"
)

// GDALProvider is the production Provider, backed by
// github.com/airbusgeo/godal. RegisterAll (and, if vsi.go's
// RegisterGCS was called, the "gs://" VSI handler) must have run before
// any method here is used; cmd/mosaic/main.go does this once at startup.
type GDALProvider struct{}

var _ Provider = GDALProvider{}

func (GDALProvider) Probe(ctx context.Context, id InputId, path string) (ImageInfo, error) {
	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return ImageInfo{}, &MetadataError{Input: path, Msg: "open", Cause: err}
	}
	defer ds.Close()

	st := ds.Structure()
	gt, err := ds.GeoTransform()
	if err != nil {
		return ImageInfo{}, &MetadataError{Input: path, Msg: "geotransform", Cause: err}
	}
	sr := ds.SpatialRef()
	wkt, err := sr.WKT()
	if err != nil {
		return ImageInfo{}, &MetadataError{Input: path, Msg: "spatialref", Cause: err}
	}

	info := ImageInfo{
		ID:           id,
		Path:         path,
		NativeBlockX: st.BlockSizeX,
		NativeBlockY: st.BlockSizeY,
		NumBands:     st.NBands,
		Grid: GridSpec{
			Projection:   wkt,
			GeoTransform: gt,
			Width:        st.SizeX,
			Height:       st.SizeY,
			DataType:     dataTypeFromGDAL(st.DataType),
		},
	}
	if st.NBands > 0 {
		band := ds.Bands()[0]
		if nd, ok := band.NoData(); ok {
			info.Grid.NoData = &nd
		}
	}
	return info, nil
}

func (GDALProvider) OpenRead(ctx context.Context, info ImageInfo, grid *GridSpec, resample string) (Reader, error) {
	ds, err := godal.Open(info.Path, godal.RasterOnly())
	if err != nil {
		return nil, &ReadError{Input: info.Path, Cause: err}
	}
	if grid == nil {
		return &gdalReader{path: info.Path, ds: ds}, nil
	}

	switches := []string{
		"-r", resample,
		"-t_srs", grid.Projection,
		"-tr", fmt.Sprintf("%g", absf(grid.GeoTransform[1])), fmt.Sprintf("%g", absf(grid.GeoTransform[5])),
		"-te",
		fmt.Sprintf("%g", grid.GeoTransform[0]),
		fmt.Sprintf("%g", grid.GeoTransform[3]-float64(grid.Height)*absf(grid.GeoTransform[5])),
		fmt.Sprintf("%g", grid.GeoTransform[0]+float64(grid.Width)*absf(grid.GeoTransform[1])),
		fmt.Sprintf("%g", grid.GeoTransform[3]),
	}
	vrtPath := "/vsimem/" + reprojVRTName(info.Path)
	vrtDS, err := ds.Translate(vrtPath, switches, godal.VRT)
	ds.Close()
	if err != nil {
		return nil, &ReadError{Input: info.Path, Cause: fmt.Errorf("reprojection view: %w", err)}
	}
	return &gdalReader{path: info.Path, ds: vrtDS, vrtPath: vrtPath}, nil
}

func (GDALProvider) CreateOutput(ctx context.Context, path string, grid GridSpec, numBands int, driver string, creationOptions []string) (Writer, error) {
	drv, err := godal.NewDriver(driver)
	if err != nil {
		return nil, &WriteError{Output: path, Cause: err}
	}
	ds, err := drv.Create(path, numBands, gdalDataType(grid.DataType), grid.Width, grid.Height,
		godal.CreationOption(creationOptions...))
	if err != nil {
		return nil, &WriteError{Output: path, Cause: err}
	}
	if err := ds.SetGeoTransform(grid.GeoTransform); err != nil {
		ds.Close()
		return nil, &WriteError{Output: path, Cause: err}
	}
	if grid.Projection != "" {
		if err := ds.SetProjection(grid.Projection); err != nil {
			ds.Close()
			return nil, &WriteError{Output: path, Cause: err}
		}
	}
	if grid.NoData != nil {
		for _, band := range ds.Bands() {
			_ = band.SetNoData(*grid.NoData)
		}
	}
	return &gdalWriter{path: path, ds: ds}, nil
}

func (GDALProvider) RemoveOutput(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

type gdalReader struct {
	path    string
	ds      *godal.Dataset
	vrtPath string
}

func (r *gdalReader) ReadBlock(ctx context.Context, band int, rect BlockRect) ([]float64, error) {
	bands := r.ds.Bands()
	if band >= len(bands) {
		return nil, &ReadError{Input: r.path, Cause: fmt.Errorf("band %d out of range (%d bands)", band, len(bands))}
	}
	buf := make([]float64, rect.Width*rect.Height)
	if err := bands[band].Read(rect.X, rect.Y, buf, rect.Width, rect.Height); err != nil {
		return nil, &ReadError{Input: r.path, Cause: err}
	}
	return buf, nil
}

func (r *gdalReader) Close() error {
	err := r.ds.Close()
	if r.vrtPath != "" {
		_ = godal.VSIUnlink(r.vrtPath)
	}
	return err
}

type gdalWriter struct {
	path string
	ds   *godal.Dataset
}

func (w *gdalWriter) WriteBlock(ctx context.Context, band int, obid OutputBlockId, rect BlockRect, buf []float64) error {
	bands := w.ds.Bands()
	if band >= len(bands) {
		return &WriteError{Output: w.path, Obid: &obid, Cause: fmt.Errorf("band %d out of range", band)}
	}
	if err := bands[band].Write(rect.X, rect.Y, buf, rect.Width, rect.Height); err != nil {
		return &WriteError{Output: w.path, Obid: &obid, Cause: err}
	}
	return nil
}

func (w *gdalWriter) Close() error { return w.ds.Close() }

func reprojVRTName(path string) string {
	return strings.NewReplacer("/", "_", ":", "_").Replace(path) + ".vrt"
}

func absf(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func dataTypeFromGDAL(dt godal.DataType) DataType {
	switch dt {
	case godal.Byte:
		return Byte
	case godal.UInt16:
		return UInt16
	case godal.Int16:
		return Int16
	case godal.UInt32:
		return UInt32
	case godal.Int32:
		return Int32
	case godal.Float32:
		return Float32
	default:
		return Float64
	}
}

func gdalDataType(dt DataType) godal.DataType {
	switch dt {
	case Byte:
		return godal.Byte
	case UInt16:
		return godal.UInt16
	case Int16:
		return godal.Int16
	case UInt32:
		return godal.UInt32
	case Int32:
		return godal.Int32
	case Float32:
		return godal.Float32
	default:
		return godal.Float64
	}
}

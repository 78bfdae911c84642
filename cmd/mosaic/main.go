package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/geoblocks/mosaic"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	infilelist      string
	outfile         string
	numWorkers      int
	blockSize       int
	driver          string
	creationOptions []string
	nullVal         float64
	nullValSet      bool
	monitorJSON     string
	outProjEPSG     int
	outProjWKTFile  string
	xres, yres      float64
	resample        string
	verbose         bool
	gcsBlockSize    int
	gcsCachedBlocks int

	startTime time.Time
	logger    *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "mosaic",
	Short: "build a raster mosaic from many overlapping input files",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		startTime = time.Now()
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("zap.build: %w", err)
		}

		godal.RegisterAll()
		if _, err := mosaic.RegisterGCS(cmd.Context(), mosaic.GCSOptions{
			BlockSize: gcsBlockSize, NumCachedBlocks: gcsCachedBlocks,
		}); err != nil {
			logger.Debug("gs:// support unavailable, continuing with local/http inputs only", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		if logger != nil {
			logger.Sugar().Debugf("command %s took %.1fs", cmd.Name(), time.Since(startTime).Seconds())
			_ = logger.Sync()
		}
	},

	RunE: runMosaic,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "verbose output")
	rootCmd.PersistentFlags().IntVar(&gcsBlockSize, "gcs-blocksize", 1<<20, "gs:// cache block size in bytes")
	rootCmd.PersistentFlags().IntVar(&gcsCachedBlocks, "gcs-numblocks", 64, "number of gs:// cached blocks")

	rootCmd.Flags().StringVarP(&infilelist, "infilelist", "i", "", "text file of input paths, one per line, priority order")
	rootCmd.MarkFlagRequired("infilelist")
	rootCmd.Flags().StringVarP(&outfile, "outfile", "o", "", "output raster path")
	rootCmd.MarkFlagRequired("outfile")
	rootCmd.Flags().IntVarP(&numWorkers, "numthreads", "n", 4, "number of read worker threads")
	rootCmd.Flags().IntVarP(&blockSize, "blocksize", "b", 1024, "output working block size in pixels")
	rootCmd.Flags().StringVarP(&driver, "driver", "d", "GTiff", "output GDAL driver short name")
	rootCmd.Flags().StringArrayVar(&creationOptions, "co", nil, "output creation option K=V, repeatable")
	rootCmd.Flags().Float64Var(&nullVal, "nullval", 0, "output nodata sentinel")
	rootCmd.Flags().StringVar(&monitorJSON, "monitorjson", "", "path to write the run's monitor record as JSON")
	rootCmd.Flags().IntVar(&outProjEPSG, "outprojepsg", 0, "target projection as an EPSG code")
	rootCmd.Flags().StringVar(&outProjWKTFile, "outprojwktfile", "", "target projection as a WKT file")
	rootCmd.Flags().Float64Var(&xres, "xres", 0, "output pixel size, x")
	rootCmd.Flags().Float64Var(&yres, "yres", 0, "output pixel size, y")
	rootCmd.Flags().StringVar(&resample, "resample", "near", "resampling method for reprojected inputs")
}

func runMosaic(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("nullval") {
		nullValSet = true
	}
	inputs, err := mosaic.ReadInputList(infilelist)
	if err != nil {
		return exitWith(err)
	}

	opts := mosaic.DefaultOptions()
	opts.NumWorkers = numWorkers
	opts.BlockSize = blockSize
	opts.Driver = driver
	opts.CreationOptions = creationOptions
	opts.MonitorJSONPath = monitorJSON
	opts.OutProjEPSG = outProjEPSG
	opts.OutProjWKTFile = outProjWKTFile
	opts.XRes, opts.YRes = xres, yres
	opts.Resample = resample
	opts.Logger = logger
	opts.Verbose = verbose
	if nullValSet {
		opts.NullVal = &nullVal
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	_, err = mosaic.Do(ctx, mosaic.GDALProvider{}, inputs, outfile, opts)
	return exitWith(err)
}

// exitWith maps a core error to spec.md §6's process exit codes by
// calling os.Exit directly: cobra's own non-zero-on-error behavior
// always exits 1, which is too coarse for the usage/metadata/IO
// distinction this CLI promises.
func exitWith(err error) error {
	if err == nil {
		return nil
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(mosaic.ExitCode(err))
	return err
}

func main() {
	ctx := context.Background()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

package mosaic

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// State is a node of the driver's linear lifecycle state machine
// (spec.md §4.9).
type State int

const (
	Init State = iota
	Probing
	Planning
	Running
	Finalizing
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case Probing:
		return "probing"
	case Planning:
		return "planning"
	case Running:
		return "running"
	case Finalizing:
		return "finalizing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is returned by Do on success.
type Result struct {
	Monitor *Monitor
}

// Do is the single programmatic entry point of spec.md §6:
// do_mosaic(inputs, output, options) -> MonitorRecord. It drives the
// Init -> Probing -> Planning -> Running -> Finalizing -> {Done|Failed}
// state machine, running C1-C9 in order. Finalizing always runs, even on
// failure, so output handles are closed and the monitor is flushed.
func Do(ctx context.Context, provider Provider, inputs []string, output string, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	logger := opts.logger()
	mon := NewMonitor()
	mon.Config = map[string]interface{}{
		"numWorkers":      opts.NumWorkers,
		"blockSize":       opts.BlockSize,
		"driver":          opts.Driver,
		"creationOptions": opts.CreationOptions,
		"nullVal":         opts.NullVal,
		"monitorJsonPath": opts.MonitorJSONPath,
		"outProjEPSG":     opts.OutProjEPSG,
		"outProjWKTFile":  opts.OutProjWKTFile,
		"xRes":            opts.XRes,
		"yRes":            opts.YRes,
		"resample":        opts.Resample,
		"verbose":         opts.Verbose,
	}

	state := Init
	var runErr error
	var out Writer
	var plan *BlockPlan
	var noData float64

	finalize := func() {
		state = Finalizing
		mon.StartPhase(PhaseFinalizing)
		if out != nil {
			if cerr := out.Close(); cerr != nil && runErr == nil {
				runErr = &WriteError{Output: output, Cause: cerr}
			}
		}
		if runErr != nil {
			_ = provider.RemoveOutput(output)
		}
		mon.EndPhase(PhaseFinalizing)
		if opts.MonitorJSONPath != "" {
			_ = mon.WriteFile(opts.MonitorJSONPath)
		}
		if runErr != nil {
			state = Failed
			logger.Error("mosaic failed", zap.Error(runErr), zap.String("state", state.String()))
		} else {
			state = Done
			logger.Info("mosaic done")
		}
	}

	state = Probing
	mon.StartPhase(PhaseProbing)
	infos, err := ProbeAll(ctx, provider, inputs, opts.NumWorkers)
	mon.EndPhase(PhaseProbing)
	if err != nil {
		runErr = err
		finalize()
		return nil, runErr
	}
	cache := newImageInfoCache(infos)

	state = Planning
	mon.StartPhase(PhasePlanning)
	outGrid, needsReproj, err := ResolveGrid(ctx, infos, opts)
	if err != nil {
		mon.EndPhase(PhasePlanning)
		runErr = err
		finalize()
		return nil, runErr
	}
	plan = BuildPlan(outGrid, infos, needsReproj, opts.BlockSize)
	mon.EndPhase(PhasePlanning)
	mon.Plan = PlanSummary{
		OutputBlocks: len(plan.Entries),
		ReadTasks:    len(plan.FlatReadList()),
		Inputs:       len(infos),
	}

	if outGrid.NoData != nil {
		noData = *outGrid.NoData
	}

	numBands := infos[0].NumBands
	if numBands < 1 {
		numBands = 1
	}
	out, err = provider.CreateOutput(ctx, output, outGrid, numBands, opts.Driver, opts.CreationOptions)
	if err != nil {
		runErr = err
		finalize()
		return nil, runErr
	}

	// spec.md §4.7: for multi-band outputs the plan is re-executed per
	// band, reusing C2-C4 (outGrid, needsReproj, plan) unchanged; only C5-C7
	// (cache, workers, writer) are fresh each pass.
	state = Running
	mon.StartPhase(PhaseRunning)
	order := make([]OutputBlockId, len(plan.Entries))
	for i, e := range plan.Entries {
		order[i] = e.Obid
	}
	flat := plan.FlatReadList()
	partitions := Partition(flat, opts.NumWorkers)

	perWorkerCounters := make([]WorkerCounters, opts.NumWorkers)
	for i := range perWorkerCounters {
		perWorkerCounters[i] = WorkerCounters{ID: i}
	}
	var writerWaitOnQueueNs int64
	mon.Bands = make([]StatsReport, 0, numBands)

bandLoop:
	for band := 0; band < numBands; band++ {
		bandCache := newBlockCache(order, opts.lookAhead())

		workers := make([]*readWorker, opts.NumWorkers)
		p := pool.New().WithErrors().WithFirstError()
		for w := 0; w < opts.NumWorkers; w++ {
			w := w
			workers[w] = newReadWorker(w, provider, cache, outGrid, needsReproj, opts.Resample, bandCache, band, logger)
			tasks := partitions[w]
			p.Go(func() error {
				return workers[w].run(ctx, tasks)
			})
		}

		writer := newMosaicWriter(plan, bandCache, out, band, noData, logger)
		writeErrCh := make(chan error, 1)
		go func() {
			writeErrCh <- writer.run(ctx)
		}()

		workerErr := p.Wait()
		writeErr := <-writeErrCh

		for i, w := range workers {
			perWorkerCounters[i].BlocksRead += w.BlocksRead
			perWorkerCounters[i].BytesRead += w.BytesRead
			perWorkerCounters[i].WaitOnCacheSeconds += time.Duration(w.WaitOnCacheNs).Seconds()
		}
		writerWaitOnQueueNs += writer.WaitOnQueueNs
		mon.Bands = append(mon.Bands, writer.stats.report())

		if workerErr != nil {
			runErr = workerErr
			break bandLoop
		}
		if writeErr != nil {
			runErr = writeErr
			break bandLoop
		}
	}
	mon.EndPhase(PhaseRunning)
	// The writer is the single thread blocked inside takeAllFor; it gets
	// its own counters entry, one slot past the read workers, so its
	// wait-on-queue time isn't lost (spec.md §3, §6).
	perWorkerCounters = append(perWorkerCounters, WorkerCounters{
		ID:                 opts.NumWorkers,
		WaitOnQueueSeconds: time.Duration(writerWaitOnQueueNs).Seconds(),
	})
	mon.Workers = perWorkerCounters

	finalize()
	if runErr != nil {
		return nil, runErr
	}
	return &Result{Monitor: mon}, nil
}

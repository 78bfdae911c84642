package mosaic

import "fmt"

// UsageError reports bad CLI/programmatic options: conflicting projection
// flags, a missing input list, and the like. It fails a run before any
// worker is spawned.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return fmt.Sprintf("usage: %s", e.Msg) }

// MetadataError reports that an input could not be probed, or that the
// input set's projections cannot be reconciled into a single output grid.
type MetadataError struct {
	Input string
	Msg   string
	Cause error
}

func (e *MetadataError) Error() string {
	if e.Input != "" {
		return fmt.Sprintf("metadata: %s: %s", e.Input, e.Msg)
	}
	return fmt.Sprintf("metadata: %s", e.Msg)
}

func (e *MetadataError) Unwrap() error { return e.Cause }

// ReadError reports a block read failure against one input. The core
// never retries; the provider is responsible for its own retry policy.
type ReadError struct {
	Input string
	Obid  OutputBlockId
	Cause error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read: %s block (%d,%d): %v", e.Input, e.Obid.Row, e.Obid.Col, e.Cause)
}

func (e *ReadError) Unwrap() error { return e.Cause }

// WriteError reports an output creation or block write failure.
type WriteError struct {
	Output string
	Obid   *OutputBlockId
	Cause  error
}

func (e *WriteError) Error() string {
	if e.Obid != nil {
		return fmt.Sprintf("write: %s block (%d,%d): %v", e.Output, e.Obid.Row, e.Obid.Col, e.Cause)
	}
	return fmt.Sprintf("write: %s: %v", e.Output, e.Cause)
}

func (e *WriteError) Unwrap() error { return e.Cause }

// InvariantError indicates the plan/cache contract was violated: a bug in
// this library, not in the caller's input. It is always fatal.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string { return fmt.Sprintf("invariant violated: %s", e.Msg) }

// ExitCode maps an error produced by this package to the process exit
// code defined in spec.md §6.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch err.(type) {
	case *UsageError:
		return 1
	case *MetadataError:
		return 3
	case *ReadError, *WriteError:
		return 2
	case *InvariantError:
		return 2
	default:
		return 2
	}
}

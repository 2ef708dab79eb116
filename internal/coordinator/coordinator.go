// Package coordinator spawns W-1 aggregator workers plus one in-process
// slice, picks the best available transport (shared-address threads,
// forked processes over shared memory, or forked processes over temp
// files), waits for completion, and merges the partial matrices into one
// accumulator.
//
// Grounded on jason.go's self re-exec worker pattern
// (BRCGO_ALT_MODE / exec.Command(os.Args[0], ...)) for the two
// process-based transports, and on speed_of_light.go / pavel.go's
// goroutine worker pools for the thread transport.
package coordinator

import (
	"context"
	"fmt"
	"os"
	"runtime"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/asterd/pageviz/internal/aggregator"
	"github.com/asterd/pageviz/internal/dateindex"
	"github.com/asterd/pageviz/internal/pathregistry"
)

// Transport names the mechanism used to move a worker's partial matrix
// back to the coordinator.
type Transport int

const (
	// Auto resolves to Threads without running a capability probe:
	// goroutines sharing one address space are always available here
	// (unlike the fork-based sources this spec generalises). The two
	// fork-based transports exist so --transport can force them for the
	// transport equivalence property under test.
	Auto Transport = iota
	Threads
	SharedMemory
	TempFile
)

func (t Transport) String() string {
	switch t {
	case Threads:
		return "threads"
	case SharedMemory:
		return "shm"
	case TempFile:
		return "tempfile"
	default:
		return "auto"
	}
}

// MaxWorkers caps the worker count regardless of NumCPU.
const MaxWorkers = 16

// WorkerCount returns min(logical CPUs, MaxWorkers), lower bound 1.
func WorkerCount() int {
	n := runtime.NumCPU()
	if n > MaxWorkers {
		n = MaxWorkers
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Coordinator orchestrates the parallel aggregation of one input file.
type Coordinator struct {
	InputPath string
	Dates     *dateindex.Index
	Registry  *pathregistry.Registry
	Workers   int
	Transport Transport
	ChunkSize int
	Log       zerolog.Logger
}

// Run aggregates each of the len(boundaries)-1 ranges given by boundaries
// in parallel via the selected transport, and returns the merged matrix.
func (c *Coordinator) Run(ctx context.Context, boundaries []int64) (aggregator.Matrix, error) {
	pathCount := c.Registry.Len()
	dateCount := c.Dates.Len()
	acc := aggregator.NewMatrix(pathCount, dateCount)

	transport := c.Transport
	if transport == Auto {
		transport = Threads
	}

	switch transport {
	case Threads:
		return c.runThreads(ctx, boundaries, acc)
	case SharedMemory:
		return c.runForked(ctx, boundaries, acc, shmPayload)
	case TempFile:
		return c.runForked(ctx, boundaries, acc, tempFilePayload)
	default:
		return nil, fmt.Errorf("coordinator: unknown transport %v", transport)
	}
}

// runThreads is the shared-address-space transport: one goroutine per
// range, no serialisation, joined with errgroup so any hard I/O error on
// one range cancels the rest instead of leaking goroutines.
func (c *Coordinator) runThreads(ctx context.Context, boundaries []int64, acc aggregator.Matrix) (aggregator.Matrix, error) {
	f, err := os.Open(c.InputPath)
	if err != nil {
		return nil, fmt.Errorf("coordinator: open input: %w", err)
	}
	defer f.Close()

	fileSize := boundaries[len(boundaries)-1]

	var data mmap.MMap
	if fileSize > 0 {
		data, err = mmap.Map(f, mmap.RDONLY, 0)
		if err != nil {
			c.Log.Warn().Err(err).Msg("mmap unavailable, falling back to chunked reads")
		} else {
			defer data.Unmap()
		}
	}

	workers := len(boundaries) - 1
	partials := make([]aggregator.Matrix, workers)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		i := i
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			partials[i] = aggregator.NewMatrix(c.Registry.Len(), c.Dates.Len())
			start, end := boundaries[i], boundaries[i+1]
			if start >= end {
				return nil
			}
			if data != nil {
				aggregator.ScanMmap([]byte(data), start, end, c.Dates, c.Registry, partials[i])
				return nil
			}
			wf, err := os.Open(c.InputPath)
			if err != nil {
				return fmt.Errorf("worker %d: %w", i, err)
			}
			defer wf.Close()
			return aggregator.ScanReader(wf, start, end, c.ChunkSize, c.Dates, c.Registry, partials[i])
		})
	}

	if err := g.Wait(); err != nil {
		// A hard I/O error is fatal for the thread transport: there is no
		// process boundary to recover across, unlike the fork transports.
		return nil, fmt.Errorf("coordinator: worker failed: %w", err)
	}

	for _, p := range partials {
		if p != nil {
			acc.Add(p)
		}
	}
	return acc, nil
}

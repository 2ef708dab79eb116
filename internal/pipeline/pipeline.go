// Package pipeline wires DateIndex, PathRegistry, RangePartitioner,
// RangeAggregator, Coordinator and JsonEmitter into one Run call. Grounded
// on nathan.go and jason.go's main() functions, which perform exactly this
// wiring inline; here it is pulled out into a side-effect-free function so
// the core stays callable without global state.
package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/asterd/pageviz/internal/coordinator"
	"github.com/asterd/pageviz/internal/dateindex"
	"github.com/asterd/pageviz/internal/jsonemit"
	"github.com/asterd/pageviz/internal/pathregistry"
	"github.com/asterd/pageviz/internal/rangepart"
)

// FatalError wraps an error from one of the failure classes
// that must abort the whole process (input unavailable, output unwritable).
// Worker failures the coordinator recovers from, and transport fallbacks,
// never reach this type; an error the coordinator itself returns is
// reported with Class "worker failure".
type FatalError struct {
	Class string
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("pageviz: %s: %v", e.Class, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Options configures one Run invocation.
type Options struct {
	InputPath  string
	OutputPath string
	SeedFile   string
	Workers    int
	Transport  coordinator.Transport
	ChunkSize  int
	Log        zerolog.Logger
}

// Run executes the full ingest-to-JSON pipeline.
func Run(ctx context.Context, opts Options) error {
	f, err := os.Open(opts.InputPath)
	if err != nil {
		return &FatalError{Class: "input unavailable", Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return &FatalError{Class: "input unavailable", Err: err}
	}
	fileSize := info.Size()

	dates := dateindex.Build()

	reg := pathregistry.New(uint32(dates.Len()))
	if opts.SeedFile != "" {
		if err := pathregistry.SeedFile(reg, opts.SeedFile); err != nil {
			opts.Log.Warn().Err(err).Str("seed_file", opts.SeedFile).Msg("seed list unreadable, continuing without it")
		}
	}
	if err := reg.Prescan(f, fileSize); err != nil {
		return &FatalError{Class: "input unavailable", Err: err}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = coordinator.WorkerCount()
	}
	if fileSize == 0 {
		workers = 1
	}

	boundaries, err := rangepart.Split(f, fileSize, workers)
	if err != nil {
		return &FatalError{Class: "input unavailable", Err: err}
	}

	coord := &coordinator.Coordinator{
		InputPath: opts.InputPath,
		Dates:     dates,
		Registry:  reg,
		Workers:   workers,
		Transport: opts.Transport,
		ChunkSize: opts.ChunkSize,
		Log:       opts.Log,
	}

	matrix, err := coord.Run(ctx, boundaries)
	if err != nil {
		return &FatalError{Class: "worker failure", Err: err}
	}

	out, err := os.Create(opts.OutputPath)
	if err != nil {
		return &FatalError{Class: "output unwritable", Err: err}
	}
	defer out.Close()

	if err := jsonemit.Write(out, matrix, reg, dates); err != nil {
		return &FatalError{Class: "output unwritable", Err: err}
	}
	return nil
}

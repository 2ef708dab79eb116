// Command pageviz is the CLI dispatcher for the page-visit aggregator.
// It is a thin external collaborator over internal/pipeline: argument
// parsing, configuration layering and process exit status live here, never
// in the core.
//
// Grounded on the Cobra-as-CLI-transport convention documented in
// other_examples/theRebelliousNerd-codenerd__prompts.go.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/asterd/pageviz/internal/config"
	"github.com/asterd/pageviz/internal/coordinator"
	"github.com/asterd/pageviz/internal/logging"
	"github.com/asterd/pageviz/internal/pipeline"
)

func main() {
	// A fork-based transport re-execs this same binary with
	// PAGEVIZ_WORKER_MODE=1; that path never touches Cobra or config, it
	// just aggregates a range and exits. Mirrors jason.go's
	// os.Getenv(altModeVar) check at the very top of its own main.
	if coordinator.IsWorkerProcess() {
		os.Exit(coordinator.RunWorkerProcess())
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pageviz",
		Short: "Aggregate a page-visit log into per-path, per-day visit counts",
	}
	root.AddCommand(newParseCmd())
	return root
}

func newParseCmd() *cobra.Command {
	var (
		seedFile  string
		workers   int
		transport string
		chunkSize int
		profileTo string
	)

	cmd := &cobra.Command{
		Use:   "parse <input> <output>",
		Short: "Aggregate visits per path per day and write pretty-printed JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := config.Load()
			if err != nil {
				return fmt.Errorf("pageviz: load config: %w", err)
			}
			if cmd.Flags().Changed("workers") {
				v.Set("workers", workers)
			}
			if cmd.Flags().Changed("transport") {
				v.Set("transport", transport)
			}
			if cmd.Flags().Changed("chunk-size") {
				v.Set("chunk-size", chunkSize)
			}
			if cmd.Flags().Changed("profile") {
				v.Set("profile", profileTo)
			}
			cfg := config.Resolve(v)

			if cfg.ProfileTo != "" {
				defer profile.Start(profile.ProfilePath(cfg.ProfileTo), profile.CPUProfile).Stop()
			}

			t, err := parseTransport(cfg.Transport)
			if err != nil {
				return err
			}

			log := logging.New(os.Stderr)

			err = pipeline.Run(context.Background(), pipeline.Options{
				InputPath:  args[0],
				OutputPath: args[1],
				SeedFile:   seedFile,
				Workers:    cfg.Workers,
				Transport:  t,
				ChunkSize:  cfg.ChunkSize,
				Log:        log,
			})
			if err != nil {
				log.Error().Err(err).Msg("parse failed")
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&seedFile, "seed-file", "", "newline-delimited file of previously-seen URIs")
	cmd.Flags().IntVar(&workers, "workers", 0, "worker count (default: min(NumCPU, 16))")
	cmd.Flags().StringVar(&transport, "transport", "auto", "IPC transport: auto, threads, shm, tempfile")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "read chunk size in bytes for the non-mmap fallback path")
	cmd.Flags().StringVar(&profileTo, "profile", "", "directory to write a CPU profile into")

	return cmd
}

func parseTransport(name string) (coordinator.Transport, error) {
	switch name {
	case "", "auto":
		return coordinator.Auto, nil
	case "threads":
		return coordinator.Threads, nil
	case "shm":
		return coordinator.SharedMemory, nil
	case "tempfile":
		return coordinator.TempFile, nil
	default:
		return coordinator.Auto, fmt.Errorf("pageviz: unknown transport %q", name)
	}
}

package coordinator

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/asterd/pageviz/internal/aggregator"
)

// shmDir is the tmpfs-backed directory used for the shared-memory transport.
// If it is not writable, the coordinator transparently falls through to the
// temp-file transport.
const shmDir = "/dev/shm"

type payloadKind struct {
	name string
	dir  func() (string, error)
}

var shmPayload = payloadKind{name: outputKindSHM, dir: probeSHMDir}
var tempFilePayload = payloadKind{name: outputKindTempFile, dir: probeTempDir}

func probeSHMDir() (string, error) {
	info, err := os.Stat(shmDir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("coordinator: %s unavailable", shmDir)
	}
	probe, err := os.CreateTemp(shmDir, "pageviz-probe-*")
	if err != nil {
		return "", fmt.Errorf("coordinator: %s not writable: %w", shmDir, err)
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return shmDir, nil
}

func probeTempDir() (string, error) {
	if dir, err := probeSHMDir(); err == nil {
		return dir, nil
	}
	return os.TempDir(), nil
}

// runForked implements both fork-based transports: spawn W-1 re-exec'd
// worker processes over [boundaries[i], boundaries[i+1]) for i in
// 0..workers-2, compute the last range in-process concurrently, then merge.
// A worker's failure (non-zero exit, missing or malformed payload) recovers
// by re-aggregating that worker's range in-process.
func (c *Coordinator) runForked(ctx context.Context, boundaries []int64, acc aggregator.Matrix, kind payloadKind) (aggregator.Matrix, error) {
	workers := len(boundaries) - 1
	dir, err := kind.dir()
	if err != nil {
		if kind.name == outputKindSHM {
			c.Log.Warn().Err(err).Msg("shared memory unavailable, falling back to temp files")
			return c.runForked(ctx, boundaries, acc, tempFilePayload)
		}
		return nil, err
	}

	registryBlobPath, err := c.writeRegistryBlob(dir)
	if err != nil {
		return nil, fmt.Errorf("coordinator: write registry blob: %w", err)
	}
	defer os.Remove(registryBlobPath)

	type childResult struct {
		idx     int
		matrix  aggregator.Matrix
		payload string
		err     error
	}

	numChildren := workers - 1
	results := make(chan childResult, numChildren)
	cmds := make([]*exec.Cmd, numChildren)
	payloadPaths := make([]string, numChildren)

	for i := 0; i < numChildren; i++ {
		start, end := boundaries[i], boundaries[i+1]
		payloadPath := filepath.Join(dir, fmt.Sprintf("pageviz-%d-%d.part", os.Getpid(), i))
		payloadPaths[i] = payloadPath

		cmd := exec.Command(os.Args[0], "--pageviz-worker")
		cmd.Env = append(os.Environ(),
			envWorkerMode+"=1",
			envInputPath+"="+c.InputPath,
			envRangeStart+"="+strconv.FormatInt(start, 10),
			envRangeEnd+"="+strconv.FormatInt(end, 10),
			envRegistryBlob+"="+registryBlobPath,
			envDateCount+"="+strconv.Itoa(c.Dates.Len()),
			envOutputKind+"="+kind.name,
			envOutputPath+"="+payloadPath,
			envChunkSize+"="+strconv.Itoa(c.ChunkSize),
		)
		cmd.Stderr = os.Stderr
		cmds[i] = cmd
	}

	for i, cmd := range cmds {
		if start, end := boundaries[i], boundaries[i+1]; start >= end {
			results <- childResult{idx: i, matrix: aggregator.NewMatrix(c.Registry.Len(), c.Dates.Len())}
			cmds[i] = nil
			continue
		}
		if err := cmd.Start(); err != nil {
			c.Log.Warn().Err(err).Int("worker", i).Msg("failed to start worker process, recovering in-process")
			results <- childResult{idx: i, err: err}
			cmds[i] = nil
		}
	}

	// The parent computes the last slice itself, concurrently with the
	// children it just started.
	lastIdx := workers - 1
	lastCh := make(chan childResult, 1)
	go func() {
		m := aggregator.NewMatrix(c.Registry.Len(), c.Dates.Len())
		start, end := boundaries[lastIdx], boundaries[lastIdx+1]
		if start < end {
			if err := c.recomputeRange(start, end, m); err != nil {
				lastCh <- childResult{idx: lastIdx, err: err}
				return
			}
		}
		lastCh <- childResult{idx: lastIdx, matrix: m}
	}()

	wantCells := c.Registry.Len() * c.Dates.Len()
	for i, cmd := range cmds {
		if cmd == nil {
			continue
		}
		i := i
		go func(cmd *exec.Cmd) {
			waitErr := cmd.Wait()
			m, err := collectChildPayload(waitErr, payloadPaths[i], wantCells)
			if err != nil {
				c.Log.Warn().Err(err).Int("worker", i).Msg("worker process recovering in-process")
				results <- childResult{idx: i, err: err}
				return
			}
			results <- childResult{idx: i, matrix: m}
		}(cmd)
	}

	received := 0
	for received < numChildren {
		res := <-results
		received++
		if res.err != nil {
			start, end := boundaries[res.idx], boundaries[res.idx+1]
			m := aggregator.NewMatrix(c.Registry.Len(), c.Dates.Len())
			if start < end {
				if err := c.recomputeRange(start, end, m); err != nil {
					return nil, fmt.Errorf("coordinator: recovery for worker %d failed: %w", res.idx, err)
				}
			}
			acc.Add(m)
			continue
		}
		acc.Add(res.matrix)
	}

	last := <-lastCh
	if last.err != nil {
		return nil, fmt.Errorf("coordinator: in-process slice failed: %w", last.err)
	}
	acc.Add(last.matrix)

	for _, p := range payloadPaths {
		os.Remove(p)
	}
	return acc, nil
}

// collectChildPayload turns one worker's exit status and payload file into
// either a decoded matrix or an error that tells the caller to recover that
// worker's range in-process. A non-nil waitErr (non-zero exit, signal,
// exec failure), a missing payload file, or a payload whose length doesn't
// match wantCells*4 bytes are all treated the same way: the worker's output
// cannot be trusted, so its range must be recomputed rather than merged.
func collectChildPayload(waitErr error, payloadPath string, wantCells int) (aggregator.Matrix, error) {
	if waitErr != nil {
		return nil, fmt.Errorf("worker process failed: %w", waitErr)
	}
	data, readErr := os.ReadFile(payloadPath)
	if readErr != nil {
		return nil, fmt.Errorf("worker payload missing: %w", readErr)
	}
	m, decErr := decodeMatrix(data, wantCells)
	if decErr != nil {
		return nil, fmt.Errorf("worker payload malformed: %w", decErr)
	}
	return m, nil
}

// recomputeRange re-aggregates one byte range in-process, used both for the
// coordinator's own in-process slice and for recovering a failed worker.
func (c *Coordinator) recomputeRange(start, end int64, out aggregator.Matrix) error {
	f, err := os.Open(c.InputPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return aggregator.ScanReader(f, start, end, c.ChunkSize, c.Dates, c.Registry, out)
}

func (c *Coordinator) writeRegistryBlob(dir string) (string, error) {
	f, err := os.CreateTemp(dir, "pageviz-registry-*.blob")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := c.Registry.WriteBlob(f); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// writeSHMPayload maps a fresh tmpfs-backed file of exactly len(m)*4 bytes
// and stores the little-endian counter matrix directly into the mapped
// pages, exercising golang.org/x/sys/unix's raw mmap surface rather than
// the read-only mmap-go wrapper used for the input file.
func writeSHMPayload(path string, m aggregator.Matrix) error {
	size := len(m) * 4
	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR, 0o600)
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		return err
	}
	if size == 0 {
		return nil
	}
	region, err := unix.Mmap(fd, 0, size, unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return err
	}
	defer unix.Munmap(region)
	copy(region, encodeMatrix(m))
	return nil
}

// writeTempFilePayload writes the little-endian counter matrix as a plain
// stream to a regular file, for the transport fallback that does not
// require a shared-memory-capable filesystem.
func writeTempFilePayload(path string, m aggregator.Matrix) error {
	return os.WriteFile(path, encodeMatrix(m), 0o600)
}

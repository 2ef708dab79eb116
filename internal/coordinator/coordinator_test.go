package coordinator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asterd/pageviz/internal/dateindex"
	"github.com/asterd/pageviz/internal/pathregistry"
	"github.com/asterd/pageviz/internal/rangepart"
)

// TestMain lets this test binary double as the worker process the fork-based
// transports re-exec via exec.Command(os.Args[0], ...): when a child sets
// PAGEVIZ_WORKER_MODE=1, IsWorkerProcess is true before any test flag is
// parsed, so it runs the worker and exits instead of running go test's own
// suite. Grounded on the standard library's own re-exec test pattern (e.g.
// os/exec_test.go's GO_WANT_HELPER_PROCESS), applied here to
// PAGEVIZ_WORKER_MODE so TestRunForkedTransportMatchesThreads below can drive real
// subprocesses instead of mocking exec.Command.
func TestMain(m *testing.M) {
	if IsWorkerProcess() {
		os.Exit(RunWorkerProcess())
	}
	os.Exit(m.Run())
}

func writeFixture(t *testing.T, rows int) (string, int64) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	slugs := []string{"a", "b", "c"}
	var size int64
	for i := 0; i < rows; i++ {
		slug := slugs[i%len(slugs)]
		line := "https://stitcher.io/blog/" + slug + ",2024-01-15T00:00:00+00:00\n"
		n, err := f.WriteString(line)
		require.NoError(t, err)
		size += int64(n)
	}
	return path, size
}

func buildRegistry(t *testing.T, path string, size int64) (*pathregistry.Registry, *dateindex.Index) {
	t.Helper()
	dates := dateindex.Build()
	reg := pathregistry.New(uint32(dates.Len()))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, reg.Prescan(f, size))
	return reg, dates
}

func TestRunThreadsSingleWorkerEqualsMultiWorker(t *testing.T) {
	path, size := writeFixture(t, 3000)
	reg, dates := buildRegistry(t, path, size)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var results []uint64
	for _, workers := range []int{1, 2, 5} {
		boundaries, err := rangepart.Split(f, size, workers)
		require.NoError(t, err)

		c := &Coordinator{
			InputPath: path,
			Dates:     dates,
			Registry:  reg,
			Transport: Threads,
			Log:       zerolog.Nop(),
		}
		matrix, err := c.Run(context.Background(), boundaries)
		require.NoError(t, err)
		results = append(results, matrix.Sum())
	}

	for _, sum := range results {
		assert.Equal(t, uint64(3000), sum)
	}
}

// TestRunForkedTransportMatchesThreads drives the real self-re-exec worker
// path (via TestMain above) end to end, over multiple workers, and checks
// its merged matrix is byte-identical to the shared-address-space
// transport's, exercising the encode/decode + blob-handoff round trip that
// TestRunThreadsSingleWorkerEqualsMultiWorker never touches.
func TestRunForkedTransportMatchesThreads(t *testing.T) {
	path, size := writeFixture(t, 4000)
	reg, dates := buildRegistry(t, path, size)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	boundaries, err := rangepart.Split(f, size, 4)
	require.NoError(t, err)

	threadsCoord := &Coordinator{
		InputPath: path,
		Dates:     dates,
		Registry:  reg,
		Transport: Threads,
		Log:       zerolog.Nop(),
	}
	want, err := threadsCoord.Run(context.Background(), boundaries)
	require.NoError(t, err)

	tempFileCoord := &Coordinator{
		InputPath: path,
		Dates:     dates,
		Registry:  reg,
		Transport: TempFile,
		Log:       zerolog.Nop(),
	}
	got, err := tempFileCoord.Run(context.Background(), boundaries)
	require.NoError(t, err)

	assert.Equal(t, want, got)
	assert.Equal(t, uint64(4000), got.Sum())
}

// TestRunSharedMemoryTransportMatchesThreads is the same check for the
// tmpfs-backed transport; it skips if /dev/shm isn't a writable directory,
// mirroring probeSHMDir's own fallback condition rather than failing the
// suite on a host without a tmpfs-backed /dev/shm.
func TestRunSharedMemoryTransportMatchesThreads(t *testing.T) {
	if _, err := probeSHMDir(); err != nil {
		t.Skipf("shared memory unavailable in this environment: %v", err)
	}

	path, size := writeFixture(t, 4000)
	reg, dates := buildRegistry(t, path, size)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	boundaries, err := rangepart.Split(f, size, 4)
	require.NoError(t, err)

	threadsCoord := &Coordinator{
		InputPath: path,
		Dates:     dates,
		Registry:  reg,
		Transport: Threads,
		Log:       zerolog.Nop(),
	}
	want, err := threadsCoord.Run(context.Background(), boundaries)
	require.NoError(t, err)

	shmCoord := &Coordinator{
		InputPath: path,
		Dates:     dates,
		Registry:  reg,
		Transport: SharedMemory,
		Log:       zerolog.Nop(),
	}
	got, err := shmCoord.Run(context.Background(), boundaries)
	require.NoError(t, err)

	assert.Equal(t, want, got)
}

func TestWorkerCountBounds(t *testing.T) {
	n := WorkerCount()
	assert.GreaterOrEqual(t, n, 1)
	assert.LessOrEqual(t, n, MaxWorkers)
}

func TestTransportStringer(t *testing.T) {
	assert.Equal(t, "auto", Auto.String())
	assert.Equal(t, "threads", Threads.String())
	assert.Equal(t, "shm", SharedMemory.String())
	assert.Equal(t, "tempfile", TempFile.String())
}

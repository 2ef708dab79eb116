package coordinator

import (
	"fmt"
	"os"
	"strconv"

	"github.com/asterd/pageviz/internal/aggregator"
	"github.com/asterd/pageviz/internal/dateindex"
	"github.com/asterd/pageviz/internal/pathregistry"
)

// IsWorkerProcess reports whether this process was re-exec'd by a
// Coordinator's fork-based transport. cmd/pageviz calls this at the very
// top of main, before Cobra parses any flags, mirroring jason.go's
// os.Getenv(altModeVar) check at the top of its own main.
func IsWorkerProcess() bool {
	return os.Getenv(envWorkerMode) == "1"
}

// RunWorkerProcess executes one worker's range aggregation and writes its
// partial matrix to the transport-specific payload location, then returns
// the process exit code. It never returns for the caller to continue normal
// CLI dispatch; cmd/pageviz calls os.Exit with the returned code.
func RunWorkerProcess() int {
	inputPath := os.Getenv(envInputPath)
	start, err := strconv.ParseInt(os.Getenv(envRangeStart), 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pageviz worker: bad range start: %v\n", err)
		return 1
	}
	end, err := strconv.ParseInt(os.Getenv(envRangeEnd), 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pageviz worker: bad range end: %v\n", err)
		return 1
	}
	dateCount, err := strconv.Atoi(os.Getenv(envDateCount))
	if err != nil {
		fmt.Fprintf(os.Stderr, "pageviz worker: bad date count: %v\n", err)
		return 1
	}
	chunkSize, _ := strconv.Atoi(os.Getenv(envChunkSize))

	blobFile, err := os.Open(os.Getenv(envRegistryBlob))
	if err != nil {
		fmt.Fprintf(os.Stderr, "pageviz worker: open registry blob: %v\n", err)
		return 1
	}
	registry, err := pathregistry.FromBlob(blobFile, uint32(dateCount))
	blobFile.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pageviz worker: decode registry blob: %v\n", err)
		return 1
	}

	dates := dateindex.Build()

	f, err := os.Open(inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pageviz worker: open input: %v\n", err)
		return 1
	}
	defer f.Close()

	matrix := aggregator.NewMatrix(registry.Len(), dates.Len())
	if start < end {
		if err := aggregator.ScanReader(f, start, end, chunkSize, dates, registry, matrix); err != nil {
			fmt.Fprintf(os.Stderr, "pageviz worker: aggregate range: %v\n", err)
			return 1
		}
	}

	outputPath := os.Getenv(envOutputPath)
	switch os.Getenv(envOutputKind) {
	case outputKindSHM:
		err = writeSHMPayload(outputPath, matrix)
	case outputKindTempFile:
		err = writeTempFilePayload(outputPath, matrix)
	default:
		err = fmt.Errorf("unknown output kind %q", os.Getenv(envOutputKind))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "pageviz worker: write payload: %v\n", err)
		return 1
	}
	return 0
}

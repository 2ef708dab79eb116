package coordinator

// Environment variables used to hand a byte range and shared context to a
// re-exec'd worker process. Grounded on jason.go's BRCGO_ALT_MODE self
// re-exec trick (os.Getenv / exec.Command(os.Args[0], ...)), generalised
// from a single flag to a full parameter set since this worker needs its
// input range and registry, not just a stdout-buffering mode switch.
const (
	envWorkerMode   = "PAGEVIZ_WORKER_MODE"
	envInputPath    = "PAGEVIZ_INPUT_PATH"
	envRangeStart   = "PAGEVIZ_RANGE_START"
	envRangeEnd     = "PAGEVIZ_RANGE_END"
	envRegistryBlob = "PAGEVIZ_REGISTRY_BLOB"
	envDateCount    = "PAGEVIZ_DATE_COUNT"
	envOutputKind   = "PAGEVIZ_OUTPUT_KIND"
	envOutputPath   = "PAGEVIZ_OUTPUT_PATH"
	envChunkSize    = "PAGEVIZ_CHUNK_SIZE"

	outputKindSHM      = "shm"
	outputKindTempFile = "tempfile"
)

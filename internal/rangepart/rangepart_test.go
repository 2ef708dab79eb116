package rangepart

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content string) (*os.File, int64) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f, int64(len(content))
}

func TestSplitCoversWholeFile(t *testing.T) {
	lines := make([]string, 0, 1000)
	for i := 0; i < 1000; i++ {
		lines = append(lines, "https://stitcher.io/blog/x,2024-01-15T00:00:00+00:00")
	}
	content := strings.Join(lines, "\n") + "\n"
	f, size := writeTemp(t, content)

	for _, workers := range []int{1, 2, 3, 4, 8} {
		boundaries, err := Split(f, size, workers)
		require.NoError(t, err)
		require.Len(t, boundaries, workers+1)
		assert.Equal(t, int64(0), boundaries[0])
		assert.Equal(t, size, boundaries[workers])

		for i := 1; i < len(boundaries); i++ {
			assert.GreaterOrEqual(t, boundaries[i], boundaries[i-1])
		}
		for i := 1; i < workers; i++ {
			b := boundaries[i]
			if b == 0 || b == size {
				continue
			}
			assert.Equal(t, byte('\n'), content[b-1], "boundary %d must land right after a newline", i)
		}
	}
}

func TestSplitEmptyFile(t *testing.T) {
	f, size := writeTemp(t, "")
	boundaries, err := Split(f, size, 4)
	require.NoError(t, err)
	for _, b := range boundaries {
		assert.Equal(t, int64(0), b)
	}
}

func TestSplitSmallerThanWorkerCount(t *testing.T) {
	content := "https://stitcher.io/blog/a,2024-01-15T00:00:00+00:00\n"
	f, size := writeTemp(t, content)

	boundaries, err := Split(f, size, 8)
	require.NoError(t, err)
	assert.Equal(t, int64(0), boundaries[0])
	assert.Equal(t, size, boundaries[len(boundaries)-1])
	for i := 1; i < len(boundaries); i++ {
		assert.GreaterOrEqual(t, boundaries[i], boundaries[i-1])
	}
}

func TestSplitSingleWorkerSpansWholeFile(t *testing.T) {
	content := "https://stitcher.io/blog/a,2024-01-15T00:00:00+00:00\n"
	f, size := writeTemp(t, content)

	boundaries, err := Split(f, size, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, size}, boundaries)
}

package pathregistry

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dateCount = 2557

func TestSeedGivesLowestIDs(t *testing.T) {
	r := New(dateCount)
	r.Seed(func(yield func(string) bool) {
		for _, uri := range []string{
			"https://stitcher.io/blog/hello",
			"https://stitcher.io/blog/world",
		} {
			if !yield(uri) {
				return
			}
		}
	})

	off, ok := r.Lookup([]byte("hello"))
	require.True(t, ok)
	assert.Equal(t, uint32(0), off)

	off, ok = r.Lookup([]byte("world"))
	require.True(t, ok)
	assert.Equal(t, uint32(dateCount), off)
}

func TestPrescanSkipsSeeded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.csv")
	content := "https://stitcher.io/blog/hello,2024-01-15T00:00:00+00:00\n" +
		"https://stitcher.io/blog/world,2024-01-15T00:00:00+00:00\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	info, err := f.Stat()
	require.NoError(t, err)

	r := New(dateCount)
	r.Seed(func(yield func(string) bool) {
		yield("https://stitcher.io/blog/world")
	})
	require.NoError(t, r.Prescan(f, info.Size()))

	assert.Equal(t, 2, r.Len())
	// world was seeded first, so it keeps id 0 even though hello appears
	// first in the file.
	off, ok := r.Lookup([]byte("world"))
	require.True(t, ok)
	assert.Equal(t, uint32(0), off)

	off, ok = r.Lookup([]byte("hello"))
	require.True(t, ok)
	assert.Equal(t, uint32(dateCount), off)
}

func TestPrescanExtractsBareSlugWithoutTimestampTail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.csv")
	content := "https://stitcher.io/blog/hello,2024-01-15T00:00:00+00:00\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	info, err := f.Stat()
	require.NoError(t, err)

	r := New(dateCount)
	require.NoError(t, r.Prescan(f, info.Size()))

	require.Equal(t, 1, r.Len())
	off, ok := r.Lookup([]byte("hello"))
	require.True(t, ok)
	assert.Equal(t, uint32(0), off)

	// The timestamp-tail-included string must not have been registered.
	_, ok = r.Lookup([]byte("hello,2024-01-15T00:00:00+00:00"))
	assert.False(t, ok)
}

func TestPrescanSkipsMalformedShortLineWithoutPanic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.csv")
	// Shorter than PrefixLen+LineTail: must be skipped, not sliced into a panic.
	content := "https://stitcher.io/x,bad\n" +
		"https://stitcher.io/blog/hello,2024-01-15T00:00:00+00:00\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	info, err := f.Stat()
	require.NoError(t, err)

	r := New(dateCount)
	require.NotPanics(t, func() {
		require.NoError(t, r.Prescan(f, info.Size()))
	})

	require.Equal(t, 1, r.Len())
	_, ok := r.Lookup([]byte("hello"))
	assert.True(t, ok)
}

func TestPrescanEmptyWindowLeavesEmptyRegistry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.csv")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r := New(dateCount)
	require.NoError(t, r.Prescan(f, 0))
	assert.Equal(t, 0, r.Len())
}

func TestUnknownSlugLookupMisses(t *testing.T) {
	r := New(dateCount)
	r.insert("known")
	_, ok := r.Lookup([]byte("unknown"))
	assert.False(t, ok)
}

func TestWriteBlobRoundTrip(t *testing.T) {
	r := New(dateCount)
	r.insert("alpha")
	r.insert("beta")
	r.insert("beta/nested")

	var buf bytes.Buffer
	require.NoError(t, r.WriteBlob(&buf))

	r2, err := FromBlob(&buf, dateCount)
	require.NoError(t, err)

	assert.Equal(t, r.IDToSlug(), r2.IDToSlug())
	for _, slug := range r.IDToSlug() {
		want, ok := r.Lookup([]byte(slug))
		require.True(t, ok)
		got, ok := r2.Lookup([]byte(slug))
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestFromBlobRejectsCorruptedPayload(t *testing.T) {
	r := New(dateCount)
	r.insert("alpha")

	var buf bytes.Buffer
	require.NoError(t, r.WriteBlob(&buf))

	corrupted := buf.Bytes()
	corrupted[len(corrupted)-1] ^= 0xFF

	_, err := FromBlob(bytes.NewReader(corrupted), dateCount)
	assert.ErrorContains(t, err, "checksum mismatch")
}

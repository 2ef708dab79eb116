// Package aggregator implements the hot loop: it walks a byte range of the
// input without materialising lines and increments a dense u32 counter
// matrix indexed by path_id + date_id.
//
// Grounded on nathan.go's borrowed-slice line walk, radu.go's byte-pointer
// field parsing, and jason.go's no-copy field-boundary detection, adapted
// from temperature parsing to the fixed slug/date line shape used here.
package aggregator

import (
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/asterd/pageviz/internal/dateindex"
	"github.com/asterd/pageviz/internal/pathregistry"
)

// stride is the byte distance from one line's '\n' to the first byte of the
// next slug: URL_PREFIX_LEN + 1.
const stride = pathregistry.PrefixLen + 1

// lineTail mirrors pathregistry.LineTail so both packages agree on where
// the slug ends without importing each other's internals piecemeal.
const lineTail = pathregistry.LineTail

// DefaultChunkSize is the read-chunk size for the non-mmap fallback path.
// A performance knob, not a correctness knob: it must exceed the maximum
// line length, which the fixed line shape guarantees for any realistic slug.
const DefaultChunkSize = 32 << 20

// ErrChunkTooSmall is returned when a read chunk contains no newline at
// all, meaning the chunk size is smaller than one line. ScanReader bails
// out with this error rather than looping forever trying to find one.
var ErrChunkTooSmall = errors.New("aggregator: chunk too small to contain one full line")

// Matrix is a contiguous, zero-initialised P*D array of visit counters.
// Cell (p, d) lives at flat index p*D + d; PathRegistry pre-multiplies p by
// D so the hot loop only ever adds an already-scaled offset to a date id.
type Matrix []uint32

// NewMatrix allocates a zeroed matrix for pathCount paths over dateCount days.
func NewMatrix(pathCount, dateCount int) Matrix {
	return make(Matrix, pathCount*dateCount)
}

// Add sums other into m in place. Commutative and associative: merge order
// never affects the result.
func (m Matrix) Add(other Matrix) {
	for i, v := range other {
		m[i] += v
	}
}

// Sum returns the total of all cells, used to verify count conservation.
func (m Matrix) Sum() uint64 {
	var total uint64
	for _, v := range m {
		total += uint64(v)
	}
	return total
}

// ScanMmap walks the newline-aligned range data[start:end] of a memory
// mapped file and increments counts in place. start and end must already
// satisfy the range-boundary invariant (0, len(data), or
// immediately after a '\n'); the mmap fast path needs no chunk-tail
// handling because the whole range is available as one contiguous buffer.
func ScanMmap(data []byte, start, end int64, dates *dateindex.Index, reg *pathregistry.Registry, out Matrix) {
	walkLines(data[start:end], dates, reg, out)
}

// walkLines is the shared hot loop: cursor starts at URL_PREFIX_LEN and
// advances by stride per accepted or rejected line.
func walkLines(buf []byte, dates *dateindex.Index, reg *pathregistry.Registry, out Matrix) {
	n := len(buf)
	pos := pathregistry.PrefixLen
	for pos < n {
		nl := bytes.IndexByte(buf[pos:], '\n')
		if nl < 0 {
			return
		}
		nl += pos

		if nl-pos < lineTail {
			// Line shorter than the fixed tail after pos: not a
			// well-formed row. Treat the remaining buffer as exhausted.
			return
		}

		comma := nl - lineTail
		slug := buf[pos:comma]
		dateKey := buf[comma+3 : comma+11] // skip ",20"

		if offset, ok := reg.Lookup(slug); ok {
			if id, ok := dates.LookupBytes(dateKey); ok {
				out[offset+id]++
			}
		}

		pos = nl + stride
	}
}

// ScanReader is the portable fallback for sources that cannot be mmap'ed:
// it reads the range in fixed-size chunks, backs off to the last complete
// line in each chunk, and re-seeks so the next read starts exactly at a
// line boundary. Used when mmap is unavailable (e.g. a non-regular file)
// and by any caller holding only an *os.File and a byte range.
func ScanReader(f *os.File, start, end int64, chunkSize int, dates *dateindex.Index, reg *pathregistry.Registry, out Matrix) error {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	pos := start
	buf := make([]byte, chunkSize)

	for pos < end {
		want := int64(chunkSize)
		if remaining := end - pos; remaining < want {
			want = remaining
		}
		n, err := f.ReadAt(buf[:want], pos)
		if err != nil && err != io.EOF {
			return err
		}
		chunk := buf[:n]
		if n == 0 {
			break
		}

		lastNL := bytes.LastIndexByte(chunk, '\n')
		if lastNL < 0 {
			// No newline anywhere in the chunk: either the range is too
			// small to contain one full line, or the data is malformed.
			// Bail rather than loop.
			if want < end-pos {
				return ErrChunkTooSmall
			}
			return nil
		}

		walkLines(chunk[:lastNL+1], dates, reg, out)
		pos += int64(lastNL + 1)
	}
	return nil
}

package coordinator

import (
	"encoding/binary"
	"fmt"

	"github.com/asterd/pageviz/internal/aggregator"
)

// encodeMatrix serialises a partial matrix as a little-endian u32 array,
// exactly P*D*4 bytes.
func encodeMatrix(m aggregator.Matrix) []byte {
	buf := make([]byte, len(m)*4)
	for i, v := range m {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return buf
}

// decodeMatrix is the inverse of encodeMatrix. A length not a multiple of 4,
// or not matching the expected cell count, is treated as a malformed
// payload: the caller falls back to in-process recovery.
func decodeMatrix(buf []byte, wantCells int) (aggregator.Matrix, error) {
	if len(buf) != wantCells*4 {
		return nil, fmt.Errorf("coordinator: malformed payload: got %d bytes, want %d", len(buf), wantCells*4)
	}
	m := make(aggregator.Matrix, wantCells)
	for i := range m {
		m[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return m, nil
}

// Package rangepart splits an input file into W newline-aligned byte
// ranges, one per worker, whose union covers [0, file_size) exactly.
package rangepart

import (
	"bufio"
	"os"
)

// Split computes W+1 boundaries: boundaries[0]=0, boundaries[W]=fileSize,
// and for i in 1..W-1, boundaries[i] is the file offset immediately after
// the first '\n' at or after floor(fileSize*i/W). Grounded on radu.go's
// fileRange split loop, adapted from an in-memory slice scan to seek+read
// boundary probing since the input here is far larger than one buffer.
func Split(f *os.File, fileSize int64, workers int) ([]int64, error) {
	if workers < 1 {
		workers = 1
	}
	boundaries := make([]int64, workers+1)
	boundaries[0] = 0
	boundaries[workers] = fileSize

	for i := 1; i < workers; i++ {
		target := fileSize * int64(i) / int64(workers)
		pos, err := advanceToNewline(f, target, fileSize)
		if err != nil {
			return nil, err
		}
		boundaries[i] = pos
	}

	// Guarantee non-decreasing boundaries even if two targets land in the
	// same trailing run with no newline between them (the last range would
	// then be empty, which is a valid zero-length range for a worker).
	for i := 1; i <= workers; i++ {
		if boundaries[i] < boundaries[i-1] {
			boundaries[i] = boundaries[i-1]
		}
	}
	return boundaries, nil
}

// advanceToNewline seeks to target and returns the offset immediately
// after the next '\n', or fileSize if none remains.
func advanceToNewline(f *os.File, target, fileSize int64) (int64, error) {
	if target >= fileSize {
		return fileSize, nil
	}
	if _, err := f.Seek(target, 0); err != nil {
		return 0, err
	}
	r := bufio.NewReader(f)
	discarded, err := r.ReadBytes('\n')
	if err != nil {
		// EOF with no trailing '\n': the last byte of the file is not a
		// newline, so this boundary collapses onto fileSize.
		return fileSize, nil
	}
	return target + int64(len(discarded)), nil
}

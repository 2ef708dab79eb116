package pathregistry

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
)

// WriteBlob serialises the registry's id_to_slug list, in discovery order,
// as a length-prefixed stream, preceded by an xxhash checksum of that
// stream. A forked worker process re-inserts the same slugs in the same
// order to reconstruct byte-identical offsets, standing in for the
// copy-on-write inheritance that a true fork() would give the registries
// for free across a real process boundary. The checksum lets FromBlob reject a
// truncated or corrupted tmpfs/temp-file payload up front instead of
// building a silently wrong registry from it.
func (r *Registry) WriteBlob(w io.Writer) error {
	var body bytes.Buffer
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(r.idToSlug)))
	body.Write(lenBuf[:])
	for _, slug := range r.idToSlug {
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(slug)))
		body.Write(lenBuf[:])
		body.WriteString(slug)
	}

	bw := bufio.NewWriter(w)
	var sumBuf [8]byte
	binary.LittleEndian.PutUint64(sumBuf[:], xxhash.Sum64(body.Bytes()))
	if _, err := bw.Write(sumBuf[:]); err != nil {
		return err
	}
	if _, err := bw.Write(body.Bytes()); err != nil {
		return err
	}
	return bw.Flush()
}

// FromBlob rebuilds a Registry from a stream written by WriteBlob, first
// verifying the leading checksum against the body that follows. Insertion
// happens in the same discovery order, so ids and pre-multiplied offsets
// come out identical to the parent's registry.
func FromBlob(r io.Reader, dateCount uint32) (*Registry, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("pathregistry: read blob: %w", err)
	}
	if len(body) < 8 {
		return nil, fmt.Errorf("pathregistry: blob shorter than checksum header")
	}
	wantSum := binary.LittleEndian.Uint64(body[:8])
	body = body[8:]
	if gotSum := xxhash.Sum64(body); gotSum != wantSum {
		return nil, fmt.Errorf("pathregistry: blob checksum mismatch (got %x, want %x)", gotSum, wantSum)
	}

	br := bytes.NewReader(body)
	var lenBuf [4]byte

	if _, err := io.ReadFull(br, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("pathregistry: read count: %w", err)
	}
	count := binary.LittleEndian.Uint32(lenBuf[:])

	reg := New(dateCount)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(br, lenBuf[:]); err != nil {
			return nil, fmt.Errorf("pathregistry: read slug %d length: %w", i, err)
		}
		slugLen := binary.LittleEndian.Uint32(lenBuf[:])
		slugBuf := make([]byte, slugLen)
		if _, err := io.ReadFull(br, slugBuf); err != nil {
			return nil, fmt.Errorf("pathregistry: read slug %d: %w", i, err)
		}
		reg.insert(string(slugBuf))
	}
	return reg, nil
}

// Package pathregistry discovers URL path slugs and assigns each a dense,
// pre-multiplied id so that a counter cell lookup costs one addition.
package pathregistry

import (
	"bufio"
	"bytes"
	"io"
	"iter"
	"os"
	"strings"
	"unsafe"

	"github.com/dolthub/swiss"
)

// PrefixLen is the fixed length of "https://stitcher.io/blog/".
const PrefixLen = 25

// LineTail is the fixed length of ",YYYY-MM-DDTHH:MM:SS+00:00" that follows
// the slug on every line. Shared with internal/aggregator so both packages
// agree on where the slug ends.
const LineTail = 26

const prescanWindow = 16 << 20 // 16 MiB pre-scan window

// Registry is the frozen slug -> pre-multiplied-offset table, plus the
// reverse id_to_slug list in discovery order.
type Registry struct {
	slugToOffset *swiss.Map[string, uint32]
	idToSlug     []string
	dateCount    uint32
}

// New allocates an empty registry sized for a dense-id space of D dates.
func New(dateCount uint32) *Registry {
	return &Registry{
		slugToOffset: swiss.NewMap[string, uint32](1024),
		idToSlug:     make([]string, 0, 1024),
		dateCount:    dateCount,
	}
}

// insert adds slug if unseen and returns its pre-multiplied offset either way.
func (r *Registry) insert(slug string) uint32 {
	if off, ok := r.slugToOffset.Get(slug); ok {
		return off
	}
	id := uint32(len(r.idToSlug))
	off := id * r.dateCount
	// swiss.Map does not intern the key; copy so later mutation of the
	// caller's buffer can't corrupt the stored slug.
	owned := strings.Clone(slug)
	r.slugToOffset.Put(owned, off)
	r.idToSlug = append(r.idToSlug, owned)
	return off
}

// Seed strips the fixed prefix from each URI and inserts the slug if new.
// Order matters: seeding before the pre-scan gives recurring, previously
// known slugs the lowest ids, and hence the lowest (most cache-local)
// counter offsets. This is the seed-first Open Question decision recorded
// in DESIGN.md.
func (r *Registry) Seed(uris iter.Seq[string]) {
	for uri := range uris {
		if len(uri) <= PrefixLen {
			continue
		}
		r.insert(uri[PrefixLen:])
	}
}

// SeedFile reads a newline-delimited file of URIs and feeds them to Seed.
// A missing or unreadable seed file is not fatal to the parse: a caller
// that supplied a bad path just gets fewer pre-seeded slugs.
func SeedFile(r *Registry, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	r.Seed(func(yield func(string) bool) {
		for sc.Scan() {
			if !yield(sc.Text()) {
				return
			}
		}
	})
	return sc.Err()
}

// Prescan reads the first min(fileSize, 16MiB) of input, walks lines up to
// the last newline in that window, and inserts any slug not already
// registered by the seed phase.
func (r *Registry) Prescan(f *os.File, fileSize int64) error {
	window := int64(prescanWindow)
	if fileSize < window {
		window = fileSize
	}
	if window == 0 {
		return nil
	}

	buf := make([]byte, window)
	if _, err := f.ReadAt(buf, 0); err != nil && err != io.EOF {
		return err
	}

	lastNL := bytes.LastIndexByte(buf, '\n')
	if lastNL < 0 {
		// No complete line in the pre-scan window: if no seed was supplied
		// either, the registry stays empty and the aggregator will
		// produce an empty output.
		return nil
	}
	buf = buf[:lastNL+1]

	pos := 0
	for pos < len(buf) {
		nl := bytes.IndexByte(buf[pos:], '\n')
		if nl < 0 {
			break
		}
		nl += pos
		// A line shorter than prefix+tail is malformed; skip it rather than
		// slicing with a high bound below the low bound.
		if nl-pos >= PrefixLen+LineTail {
			r.insert(string(buf[pos+PrefixLen : nl-LineTail]))
		}
		pos = nl + 1
	}
	return nil
}

// Lookup returns the pre-multiplied offset for a borrowed slug byte slice,
// ok=false if the slug was never registered. This is the hot loop's only
// slug-table probe, called once per input row, so it must not allocate: a
// plain string(slug) conversion passed into a non-builtin method call does
// not get the compiler's map-key elision and would copy every row's slug
// onto the heap. Instead this views slug as a string in place with
// unsafe.String, the same no-copy technique nathan.go's unsafeString uses
// for its own hot-loop lookups. Safe here because the swiss map only reads
// the string during the call and slug is the caller's line buffer, which
// outlives the call.
func (r *Registry) Lookup(slug []byte) (uint32, bool) {
	if len(slug) == 0 {
		return r.slugToOffset.Get("")
	}
	view := unsafe.String(&slug[0], len(slug))
	return r.slugToOffset.Get(view)
}

// Len returns P, the number of distinct registered slugs.
func (r *Registry) Len() int {
	return len(r.idToSlug)
}

// Slug returns the discovery-order slug for a dense path id (offset/D).
func (r *Registry) Slug(id uint32) string {
	return r.idToSlug[id]
}

// IDToSlug exposes the discovery-ordered slug list for the emitter, which
// must walk paths in registry id order.
func (r *Registry) IDToSlug() []string {
	return r.idToSlug
}

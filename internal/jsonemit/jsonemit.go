// Package jsonemit writes the accumulator as a pretty-printed JSON document
// whose exact bytes are required to match a reference format.
//
// Grounded on jason.go's hand-rolled, allocation-conscious string builders
// (intToBytes, Counter.String): the emitter never calls fmt.Sprintf or
// encoding/json in the hot path, since neither can reproduce this
// document's exact key ordering, escaping and indentation.
package jsonemit

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/asterd/pageviz/internal/aggregator"
	"github.com/asterd/pageviz/internal/dateindex"
	"github.com/asterd/pageviz/internal/pathregistry"
)

// Write emits the counter matrix as pretty-printed JSON to w. Paths appear
// in registry id order; within a path, days appear in date id order. A
// path with zero total visits, or a day with zero visits within a path, is
// omitted entirely. Empty input, or input with no surviving non-zero cell,
// produces exactly "{}\n".
func Write(w io.Writer, matrix aggregator.Matrix, reg *pathregistry.Registry, dates *dateindex.Index) error {
	bw := bufio.NewWriterSize(w, 1<<20)

	pathCount := reg.Len()
	dateCount := dates.Len()

	if pathCount == 0 || dateCount == 0 {
		if _, err := bw.WriteString("{}\n"); err != nil {
			return err
		}
		return bw.Flush()
	}

	datePrefixes := buildDatePrefixes(dates)

	// The path count in a realistic run is in the low thousands, so
	// buffering the whole object body is cheap; it also lets a fully
	// zero-count matrix collapse to the exact "{}\n" shape required for
	// the empty-output case rather than an empty-but-braced "{\n}".
	var paths bytes.Buffer
	firstPath := true
	var body strings.Builder
	for p := 0; p < pathCount; p++ {
		offset := uint32(p) * uint32(dateCount)
		row := matrix[offset : offset+uint32(dateCount)]

		body.Reset()
		firstDay := true
		for d, count := range row {
			if count == 0 {
				continue
			}
			if !firstDay {
				body.WriteString(",\n")
			}
			firstDay = false
			body.WriteString(datePrefixes[d])
			body.WriteString(strconv.FormatUint(uint64(count), 10))
		}
		if firstDay {
			// No non-zero day in this path: omit the path entirely.
			continue
		}

		if !firstPath {
			paths.WriteByte(',')
		}
		firstPath = false

		paths.WriteString(pathHeader(reg.Slug(uint32(p))))
		paths.WriteString(body.String())
		paths.WriteString("\n    }")
	}

	if firstPath {
		if _, err := bw.WriteString("{}\n"); err != nil {
			return err
		}
		return bw.Flush()
	}

	if _, err := bw.WriteString("{"); err != nil {
		return err
	}
	if _, err := bw.Write(paths.Bytes()); err != nil {
		return err
	}
	if _, err := bw.WriteString("\n}"); err != nil {
		return err
	}
	return bw.Flush()
}

// buildDatePrefixes precomputes each day's `"        "20YY-MM-DD": "` key
// prefix once, indexed by date id, so the hot emission loop never formats
// a date string per cell.
func buildDatePrefixes(dates *dateindex.Index) []string {
	prefixes := make([]string, dates.Len())
	for id := 0; id < dates.Len(); id++ {
		prefixes[id] = "        \"" + dates.Date(uint32(id)) + "\": "
	}
	return prefixes
}

// pathHeader builds the `\n    "\/blog\/<slug>": {\n` header for one path,
// escaping the literal prefix slashes and any slash inside the slug.
func pathHeader(slug string) string {
	var b strings.Builder
	b.WriteString("\n    \"\\/blog\\/")
	escapeSlashes(&b, slug)
	b.WriteString("\": {\n")
	return b.String()
}

func escapeSlashes(b *strings.Builder, s string) {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			b.WriteString("\\/")
		} else {
			b.WriteByte(s[i])
		}
	}
}

// Command validate is the verification external collaborator: it reads a
// reference and an actual JSON output file and reports whether they are
// byte-for-byte identical and, if not, whether they are at least
// structurally equal once idempotently re-parsed.
//
// Uses encoding/json for parsing (an unordered structural diff is exactly
// the right tool here, unlike the emission path in internal/jsonemit) plus
// testify/assert's diff-friendly equality helper, grounded on the pervasive
// testify usage in cristian1one-virtual-vectorfs.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/stretchr/testify/assert"
)

func main() {
	var referencePath, actualPath string
	flag.StringVar(&referencePath, "reference", "", "path to the reference JSON output")
	flag.StringVar(&actualPath, "actual", "", "path to the produced JSON output")
	flag.Parse()

	if referencePath == "" || actualPath == "" {
		fmt.Fprintln(os.Stderr, "validate: both --reference and --actual are required")
		os.Exit(2)
	}

	refBytes, err := os.ReadFile(referencePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "validate: %v\n", err)
		os.Exit(1)
	}
	actualBytes, err := os.ReadFile(actualPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "validate: %v\n", err)
		os.Exit(1)
	}

	if bytes.Equal(refBytes, actualBytes) {
		fmt.Println("OK: byte-for-byte identical")
		return
	}

	fmt.Fprintln(os.Stderr, "MISMATCH: outputs differ byte-for-byte, checking structural equality")

	var refStruct, actualStruct map[string]map[string]int64
	if err := json.Unmarshal(refBytes, &refStruct); err != nil {
		fmt.Fprintf(os.Stderr, "validate: parse reference: %v\n", err)
		os.Exit(1)
	}
	if err := json.Unmarshal(actualBytes, &actualStruct); err != nil {
		fmt.Fprintf(os.Stderr, "validate: parse actual: %v\n", err)
		os.Exit(1)
	}

	if assert.ObjectsAreEqualValues(refStruct, actualStruct) {
		fmt.Println("PARTIAL: structurally equal, but not byte-identical (formatting drift)")
		os.Exit(1)
	}

	fmt.Fprintln(os.Stderr, "FAIL: structural mismatch")
	os.Exit(1)
}

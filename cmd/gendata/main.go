// Command gendata is the dataset-generation external collaborator: it
// emits synthetic input files in the fixed page-visit line shape so the
// benchmark and test suite can exercise arbitrary row counts without
// checking large fixtures into the repository.
//
// Uses math/rand/v2 rather than a third-party RNG: no example repo in the
// pack carries one, and reproducible pseudo-random row generation is
// exactly what the standard library's PRNG is for.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
)

const urlPrefix = "https://stitcher.io/blog/"

func main() {
	var (
		outPath     string
		rows        int
		pathCount   int
		seed        uint64
		slugMinLen  int
		slugMaxLen  int
		nestedRatio float64
	)

	flag.StringVar(&outPath, "out", "measurements.csv", "output file path")
	flag.IntVar(&rows, "rows", 1_000_000, "number of rows to generate")
	flag.IntVar(&pathCount, "paths", 2000, "number of distinct path slugs")
	flag.Uint64Var(&seed, "seed", 42, "PRNG seed, for reproducible datasets")
	flag.IntVar(&slugMinLen, "slug-min", 4, "minimum slug length")
	flag.IntVar(&slugMaxLen, "slug-max", 16, "maximum slug length")
	flag.Float64Var(&nestedRatio, "nested-ratio", 0.15, "fraction of slugs containing a '/' segment")
	flag.Parse()

	f, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gendata: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	w := bufio.NewWriterSize(f, 4<<20)
	defer w.Flush()

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	slugs := make([]string, pathCount)
	for i := range slugs {
		slugs[i] = randomSlug(rng, slugMinLen, slugMaxLen, nestedRatio)
	}

	for i := 0; i < rows; i++ {
		slug := slugs[rng.IntN(pathCount)]
		date := randomDate(rng)
		fmt.Fprintf(w, "%s%s,%sT%02d:%02d:%02d+00:00\n",
			urlPrefix, slug, date, rng.IntN(24), rng.IntN(60), rng.IntN(60))
	}
}

const letters = "abcdefghijklmnopqrstuvwxyz0123456789-"

func randomSlug(rng *rand.Rand, minLen, maxLen int, nestedRatio float64) string {
	n := minLen + rng.IntN(maxLen-minLen+1)
	buf := make([]byte, 0, n+8)
	if rng.Float64() < nestedRatio {
		segLen := 3 + rng.IntN(6)
		for i := 0; i < segLen; i++ {
			buf = append(buf, letters[rng.IntN(len(letters)-1)])
		}
		buf = append(buf, '/')
	}
	for i := 0; i < n; i++ {
		buf = append(buf, letters[rng.IntN(len(letters)-1)])
	}
	return string(buf)
}

var monthDays = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

func randomDate(rng *rand.Rand) string {
	year := 2020 + rng.IntN(7) // 2020..2026, matches the fixed window
	month := 1 + rng.IntN(12)
	days := monthDays[month-1]
	if month == 2 && (year%4 == 0) {
		days = 29
	}
	day := 1 + rng.IntN(days)
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

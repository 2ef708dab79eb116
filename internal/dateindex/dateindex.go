// Package dateindex enumerates the fixed 2020-01-01..2026-12-31 window and
// assigns each calendar day a dense, chronologically ordered id.
package dateindex

import "fmt"

// Count is the number of days in the window, D in the counter matrix shape P*D.
const Count = 2557

var monthLen = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// isLeap uses the closed-window rule (year+2000) % 4 == 0. Correct for
// 2020-2099, not the full Gregorian rule; the window never crosses a
// century boundary so that distinction never matters here.
func isLeap(year int) bool {
	return (year+2000)%4 == 0
}

// Index is the frozen date index: dense ids in ascending chronological order.
type Index struct {
	dateToID map[string]uint32
	idToDate []string
}

// Build enumerates years 20..26, months 1..12, days 1..monthLen, assigning
// ids by encounter order (which equals chronological order). No failure
// mode: the window is static and always produces exactly Count entries.
func Build() *Index {
	idToDate := make([]string, 0, Count)
	dateToID := make(map[string]uint32, Count)

	for yy := 20; yy <= 26; yy++ {
		feb := monthLen[1]
		if isLeap(yy) {
			feb = 29
		}
		for month := 1; month <= 12; month++ {
			days := monthLen[month-1]
			if month == 2 {
				days = feb
			}
			for day := 1; day <= days; day++ {
				key := fmt.Sprintf("%02d-%02d-%02d", yy, month, day)
				id := uint32(len(idToDate))
				idToDate = append(idToDate, key)
				dateToID[key] = id
			}
		}
	}

	return &Index{dateToID: dateToID, idToDate: idToDate}
}

// Lookup returns the dense id for an 8-byte "YY-MM-DD" key, ok=false if the
// key falls outside the window.
func (idx *Index) Lookup(key string) (uint32, bool) {
	id, ok := idx.dateToID[key]
	return id, ok
}

// LookupBytes is the allocation-free variant used by the hot loop: it takes
// a borrowed byte slice into the read buffer rather than an already-copied
// string. Go's map lookup with a []byte-derived key still requires a string
// conversion, but the compiler elides the copy for a map read (no retention
// past the call), so this stays allocation-free in practice.
func (idx *Index) LookupBytes(key []byte) (uint32, bool) {
	id, ok := idx.dateToID[string(key)]
	return id, ok
}

// Date returns the canonical "20YY-MM-DD" textual form for a dense id.
func (idx *Index) Date(id uint32) string {
	yymmdd := idx.idToDate[id]
	return "20" + yymmdd
}

// Len returns D, the number of registered days.
func (idx *Index) Len() int {
	return len(idx.idToDate)
}

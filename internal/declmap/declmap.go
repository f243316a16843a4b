// Package declmap records where symbol-id markers were written into
// generated files.
//
// A Location names the exact byte where a 16-character id marker begins. The
// Index maps each symbol id to the set of its locations; it is read back from
// and written to the declaration map text format:
//
//	=<symbolId>
//	<filePath>;<offset>
//	<filePath>;<offset>
//	=<symbolId>
//	...
package declmap

import (
	"sort"
)

// Location is the position of a declaration marker. Offset 0 means no
// patchable marker was written.
type Location struct {
	FilePath string
	Offset   int64
}

// Entry is one symbol id with its locations in sorted order.
type Entry struct {
	ID        string
	Locations []Location
}

// Index maps symbol ids to deduplicated location sets. Iteration is always
// in ascending id order. Index is not safe for concurrent mutation; use a
// Recorder while producers are running.
type Index struct {
	m map[string]map[Location]struct{}
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{m: make(map[string]map[Location]struct{})}
}

// Add records loc under id. Duplicates are ignored.
func (x *Index) Add(id string, loc Location) {
	set, ok := x.m[id]
	if !ok {
		set = make(map[Location]struct{})
		x.m[id] = set
	}
	set[loc] = struct{}{}
}

// AddLocation is Add with the location fields spelled out.
func (x *Index) AddLocation(id, filePath string, offset int64) {
	x.Add(id, Location{FilePath: filePath, Offset: offset})
}

// Merge adds every location of other.
func (x *Index) Merge(other *Index) {
	for id, set := range other.m {
		for loc := range set {
			x.Add(id, loc)
		}
	}
}

// Len returns the number of symbol ids.
func (x *Index) Len() int { return len(x.m) }

// IDs returns the symbol ids in ascending order.
func (x *Index) IDs() []string {
	ids := make([]string, 0, len(x.m))
	for id := range x.m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Locations returns the locations of id ordered by file path then offset.
func (x *Index) Locations(id string) []Location {
	set := x.m[id]
	locs := make([]Location, 0, len(set))
	for loc := range set {
		locs = append(locs, loc)
	}
	SortLocations(locs)
	return locs
}

// Entries returns every id with its locations, in id order.
func (x *Index) Entries() []Entry {
	ids := x.IDs()
	out := make([]Entry, len(ids))
	for i, id := range ids {
		out[i] = Entry{ID: id, Locations: x.Locations(id)}
	}
	return out
}

// SortLocations orders locations by file path then offset.
func SortLocations(locs []Location) {
	sort.Slice(locs, func(i, j int) bool {
		if locs[i].FilePath != locs[j].FilePath {
			return locs[i].FilePath < locs[j].FilePath
		}
		return locs[i].Offset < locs[j].Offset
	})
}

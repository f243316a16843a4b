// Package redirect builds the lookup tables that resolve a truncated symbol
// id to the file declaring it.
//
// Ids are sharded by leading characters. Each shard table maps the
// significant prefix of an id, minus the characters the shard already
// consumed, to either a file or a disambiguation page. A shard that would
// hold more than MaxTableEntries ids is split again on the next character.
package redirect

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jward/xref/internal/declmap"
	"github.com/jward/xref/internal/symbols"
)

// Defaults.
const (
	DefaultSignificantIDLength = 8
	DefaultMaxTableEntries     = 4096
)

// PartialDir holds the disambiguation pages.
const PartialDir = "partial"

// Options controls table layout.
type Options struct {
	// SignificantIDLength is how many leading id characters are kept. It is
	// written into every table so resolvers truncate the same way.
	SignificantIDLength int
	// MaxTableEntries bounds the ids in one table before it is split.
	MaxTableEntries int
}

// DefaultOptions returns the default layout.
func DefaultOptions() Options {
	return Options{
		SignificantIDLength: DefaultSignificantIDLength,
		MaxTableEntries:     DefaultMaxTableEntries,
	}
}

// Validate checks that the options describe a usable layout.
func (o Options) Validate() error {
	if o.SignificantIDLength < 2 || o.SignificantIDLength > symbols.IDWidth {
		return fmt.Errorf("significant id length %d out of range [2,%d]", o.SignificantIDLength, symbols.IDWidth)
	}
	if o.MaxTableEntries < 1 {
		return fmt.Errorf("max table entries must be positive, got %d", o.MaxTableEntries)
	}
	return nil
}

// Target is what a key resolves to: a file, or a disambiguation page.
type Target struct {
	File    string
	Partial string
}

// Entry is one row of a table.
type Entry struct {
	Key string
	// File indexes Table.Files, or is -1 for a disambiguation entry.
	File    int
	Partial string
}

// Table is one shard.
type Table struct {
	Prefix  string
	Files   []string
	Entries []Entry
}

// FileName is the table's file name inside the project directory.
func (t *Table) FileName() string {
	return "a" + t.Prefix + ".html"
}

// Candidate is one location listed on a disambiguation page.
type Candidate struct {
	ID   string
	Path string
}

// Partial is a disambiguation page for a key with several locations.
type Partial struct {
	Key        string
	Candidates []Candidate
}

// FileName is the page's path relative to the project directory.
func (p *Partial) FileName() string {
	return PartialDir + "/" + p.Key + ".html"
}

// Result is the complete set of tables for one declaration map.
type Result struct {
	SignificantIDLength int
	Tables              []Table
	Partials            []Partial
}

type group struct {
	prefix string
	ids    []string
}

// Build lays out the redirect tables for x.
func Build(x *declmap.Index, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	res := &Result{SignificantIDLength: opts.SignificantIDLength}
	for _, g := range split(group{ids: x.IDs()}, 0, opts) {
		res.addTable(x, g, opts)
	}
	return res, nil
}

// split partitions g by the character at depth. Groups still larger than
// the table bound are split again until the prefix would consume the whole
// significant part of the id.
func split(g group, depth int, opts Options) []group {
	var out []group
	for i := 0; i < len(g.ids); {
		c := charAt(g.ids[i], depth)
		j := i
		for j < len(g.ids) && charAt(g.ids[j], depth) == c {
			j++
		}
		sub := group{prefix: g.prefix + c, ids: g.ids[i:j]}
		if len(sub.ids) > opts.MaxTableEntries && depth+2 < opts.SignificantIDLength && c != "" {
			out = append(out, split(sub, depth+1, opts)...)
		} else {
			out = append(out, sub)
		}
		i = j
	}
	return out
}

func charAt(id string, i int) string {
	if i >= len(id) {
		return ""
	}
	return id[i : i+1]
}

func (r *Result) truncate(id string) string {
	if len(id) > r.SignificantIDLength {
		return id[:r.SignificantIDLength]
	}
	return id
}

func (r *Result) addTable(x *declmap.Index, g group, opts Options) {
	type keyed struct {
		cands []Candidate
	}
	byKey := make(map[string]*keyed)
	var keys []string
	paths := make(map[string]struct{})
	for _, id := range g.ids {
		k := r.truncate(id)
		e, ok := byKey[k]
		if !ok {
			e = &keyed{}
			byKey[k] = e
			keys = append(keys, k)
		}
		seen := make(map[string]bool)
		for _, loc := range x.Locations(id) {
			p := normalizePath(loc.FilePath)
			if seen[p] {
				continue
			}
			seen[p] = true
			e.cands = append(e.cands, Candidate{ID: id, Path: p})
			paths[p] = struct{}{}
		}
	}
	sort.Strings(keys)

	t := Table{Prefix: g.prefix}
	for p := range paths {
		t.Files = append(t.Files, p)
	}
	sort.Strings(t.Files)
	fileIndex := make(map[string]int, len(t.Files))
	for i, p := range t.Files {
		fileIndex[p] = i
	}

	for _, k := range keys {
		cands := byKey[k].cands
		short := k[min(len(g.prefix), len(k)):]
		if len(cands) == 1 {
			t.Entries = append(t.Entries, Entry{Key: short, File: fileIndex[cands[0].Path]})
			continue
		}
		SortCandidates(cands)
		p := Partial{Key: k, Candidates: cands}
		t.Entries = append(t.Entries, Entry{Key: short, File: -1, Partial: p.FileName()})
		r.Partials = append(r.Partials, p)
	}
	r.Tables = append(r.Tables, t)
}

func normalizePath(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// SortCandidates orders candidates by path ignoring case and the final
// extension, then by full path, then by id.
func SortCandidates(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := stripExt(cands[i].Path), stripExt(cands[j].Path)
		if c := symbols.FoldCompare(a, b); c != 0 {
			return c < 0
		}
		if cands[i].Path != cands[j].Path {
			return cands[i].Path < cands[j].Path
		}
		return cands[i].ID < cands[j].ID
	})
}

func stripExt(p string) string {
	slash := strings.LastIndexByte(p, '/')
	dot := strings.LastIndexByte(p, '.')
	if dot > slash+1 {
		return p[:dot]
	}
	return p
}

// Resolve looks id up the way a browser would: pick the table with the
// longest matching prefix, then the truncated key.
func (r *Result) Resolve(id string) (Target, bool) {
	var best *Table
	for i := range r.Tables {
		t := &r.Tables[i]
		if strings.HasPrefix(id, t.Prefix) && (best == nil || len(t.Prefix) > len(best.Prefix)) {
			best = t
		}
	}
	if best == nil {
		return Target{}, false
	}
	k := r.truncate(id)
	short := k[min(len(best.Prefix), len(k)):]
	i := sort.Search(len(best.Entries), func(i int) bool { return best.Entries[i].Key >= short })
	if i == len(best.Entries) || best.Entries[i].Key != short {
		return Target{}, false
	}
	e := best.Entries[i]
	if e.File < 0 {
		return Target{Partial: e.Partial}, true
	}
	return Target{File: best.Files[e.File]}, true
}

// Partial returns the disambiguation page for key.
func (r *Result) Partial(key string) (*Partial, bool) {
	for i := range r.Partials {
		if r.Partials[i].Key == key {
			return &r.Partials[i], true
		}
	}
	return nil, false
}
